package config

import (
	"testing"
	"time"

	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", config.Server.Addr())
	assert.True(t, config.Server.Development())
	assert.Equal(t, 500*time.Millisecond, config.Render.MinDelay)
	assert.Equal(t, 3*time.Second, config.Render.Ceiling)
	assert.Equal(t, "https://cdn.tailwindcss.com", config.Render.TailwindURL)
	assert.Equal(t, 2*time.Minute, config.Editor.ConfirmTimeout)
	assert.Equal(t, StorageLocal, config.Storage.Backend)
	assert.True(t, config.Storage.Subscribed)
	assert.Equal(t, "templates", config.Catalog.Dir)
	assert.True(t, config.Catalog.Watch)
	assert.True(t, config.Browser.Headless)
	assert.Equal(t, "text", config.Log.Format)
}

func TestLoadOverrides(t *testing.T) {
	viper.Reset()
	viper.Set("server.port", 3000)
	viper.Set("server.host", "0.0.0.0")
	viper.Set("server.allowed_origins", []string{"https://builder.example.com"})
	viper.Set("render.min_delay", "200ms")
	viper.Set("render.ceiling", "5s")
	viper.Set("storage.backend", " Remote ")
	viper.Set("api.base_url", "https://api.example.com")
	viper.Set("log.level", "debug")
	viper.Set("log.format", "JSON")

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", config.Server.Addr())
	assert.Equal(t, []string{"https://builder.example.com"}, config.Server.AllowedOrigins)
	assert.Equal(t, 200*time.Millisecond, config.Render.MinDelay)
	assert.Equal(t, 5*time.Second, config.Render.Ceiling)
	assert.Equal(t, StorageRemote, config.Storage.Backend)
	assert.Equal(t, "json", config.Log.Format)

	logCfg := config.Log.LoggerConfig()
	assert.Equal(t, logging.LevelDebug, logCfg.Level)
	assert.Equal(t, "json", logCfg.Format)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   interface{}
		section string
	}{
		{"port out of range", "server.port", 70000, "server"},
		{"dangerous host", "server.host", "localhost;rm", "server"},
		{"bad origin", "server.allowed_origins", []string{"javascript:alert(1)"}, "server"},
		{"ceiling below min delay", "render.ceiling", "100ms", "render"},
		{"bad tailwind url", "render.tailwind_url", "ftp://cdn", "render"},
		{"zero confirm timeout", "editor.confirm_timeout", "0s", "editor"},
		{"unknown backend", "storage.backend", "postgres", "storage"},
		{"traversal in db path", "storage.path", "../../etc/sites.db", "storage"},
		{"traversal in catalog", "catalog.dir", "../templates", "catalog"},
		{"unknown log level", "log.level", "verbose", "log"},
		{"unknown log format", "log.format", "xml", "log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			viper.Set(tt.key, tt.value)

			config, err := Load()
			require.Error(t, err)
			assert.Nil(t, config)
			assert.Equal(t, weberrors.ErrCodeConfigInvalid, weberrors.CodeOf(err))

			var siteErr *weberrors.SiteError
			require.ErrorAs(t, err, &siteErr)
			assert.Equal(t, weberrors.ErrorTypeConfig, siteErr.Type)
			assert.Equal(t, tt.section, siteErr.Context["section"])
		})
	}
}

func TestRemoteBackendNeedsAPI(t *testing.T) {
	viper.Reset()
	viper.Set("storage.backend", StorageRemote)
	viper.Set("api.base_url", "not a url")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestAllowedOriginsFromEnvString(t *testing.T) {
	viper.Reset()
	viper.Set("server.allowed_origins", "http://localhost:3000,https://example.com")

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://localhost:3000", "https://example.com"}, config.Server.AllowedOrigins)
}

func TestMemoryDatabase(t *testing.T) {
	viper.Reset()
	viper.Set("storage.path", ":memory:")

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":memory:", config.Storage.Path)
}
