// Package config loads webgen settings through Viper from the .webgen.yml
// file, WEBGEN_ environment variables and command-line flags.
//
// Load applies defaults for anything left unset and validates the result;
// every validation failure is reported as a config error.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/conneroisu/webgen/internal/compositor"
	"github.com/conneroisu/webgen/internal/editor"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/logging"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/conneroisu/webgen/internal/validation"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	StorageLocal  = "local"
	StorageRemote = "remote"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Render  RenderConfig  `mapstructure:"render" yaml:"render"`
	Editor  EditorConfig  `mapstructure:"editor" yaml:"editor"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Open            bool          `mapstructure:"open" yaml:"open"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	Environment     string        `mapstructure:"environment" yaml:"environment"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// APIConfig points at the hosted backend used when storage.backend is remote.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type RenderConfig struct {
	MinDelay    time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
	Ceiling     time.Duration `mapstructure:"ceiling" yaml:"ceiling"`
	TailwindURL string        `mapstructure:"tailwind_url" yaml:"tailwind_url"`
}

type EditorConfig struct {
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
}

type StorageConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend"`
	Path        string `mapstructure:"path" yaml:"path"`
	SessionFile string `mapstructure:"session_file" yaml:"session_file"`
	// Subscribed seeds the local owner's subscription flag.
	Subscribed bool `mapstructure:"subscribed" yaml:"subscribed"`
}

type CatalogConfig struct {
	Dir      string        `mapstructure:"dir" yaml:"dir"`
	Watch    bool          `mapstructure:"watch" yaml:"watch"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// BrowserConfig selects the headless browser used by preview and edit.
// RemoteURL wins over Bin when both are set.
type BrowserConfig struct {
	Bin       string `mapstructure:"bin" yaml:"bin"`
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Addr is the listen address of the host server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Development reports whether the server runs with development defaults.
func (s ServerConfig) Development() bool {
	return s.Environment == "" || s.Environment == "development"
}

// LoggerConfig converts the log section for logging.NewLogger.
func (l LogConfig) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(l.Level)
	cfg.Format = l.Format
	return cfg
}

// SetDefaults registers every default on the global Viper instance.
func SetDefaults() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.open", false)
	viper.SetDefault("server.allowed_origins", []string{})
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)

	viper.SetDefault("api.base_url", "http://localhost:5000/api")
	viper.SetDefault("api.timeout", 30*time.Second)

	viper.SetDefault("render.min_delay", sandbox.DefaultMinDelay)
	viper.SetDefault("render.ceiling", sandbox.DefaultCeiling)
	viper.SetDefault("render.tailwind_url", compositor.DefaultTailwindURL)

	viper.SetDefault("editor.confirm_timeout", editor.DefaultConfirmTimeout)

	viper.SetDefault("storage.backend", StorageLocal)
	viper.SetDefault("storage.path", ".webgen/sites.db")
	viper.SetDefault("storage.session_file", "")
	viper.SetDefault("storage.subscribed", true)

	viper.SetDefault("catalog.dir", "templates")
	viper.SetDefault("catalog.watch", true)
	viper.SetDefault("catalog.debounce", 300*time.Millisecond)

	viper.SetDefault("browser.headless", true)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func Load() (*Config, error) {
	SetDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, weberrors.NewConfigError(weberrors.ErrCodeConfigInvalid, "decode configuration: "+err.Error())
	}

	// Comma separated lists arrive as one string from the environment.
	if raw := viper.GetString("server.allowed_origins"); len(config.Server.AllowedOrigins) == 0 && raw != "" {
		config.Server.AllowedOrigins = strings.Split(raw, ",")
	}
	config.Storage.Backend = strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	config.Log.Format = strings.ToLower(config.Log.Format)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	checks := []struct {
		section string
		check   func() error
	}{
		{"server", func() error { return validateServerConfig(&config.Server) }},
		{"api", func() error { return validateAPIConfig(&config.API, config.Storage.Backend) }},
		{"render", func() error { return validateRenderConfig(&config.Render) }},
		{"editor", func() error { return validatePositive("confirm_timeout", config.Editor.ConfirmTimeout) }},
		{"storage", func() error { return validateStorageConfig(&config.Storage) }},
		{"catalog", func() error { return validateCatalogConfig(&config.Catalog) }},
		{"log", func() error { return validateLogConfig(&config.Log) }},
	}
	for _, c := range checks {
		if err := c.check(); err != nil {
			return weberrors.NewConfigError(weberrors.ErrCodeConfigInvalid,
				fmt.Sprintf("%s config: %v", c.section, err)).WithContext("section", c.section)
		}
	}
	return nil
}

func validateServerConfig(config *ServerConfig) error {
	// 0 lets the system pick a port.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if config.Host != "" && validation.SanitizeInput(config.Host) != config.Host {
		return fmt.Errorf("host contains control characters")
	}
	for _, char := range []string{";", "&", "|", "$", "`", "<", ">", "\"", "'", "\\", "/"} {
		if strings.Contains(config.Host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}
	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if err := validation.ValidateURL(origin); err != nil {
			return fmt.Errorf("allowed origin %q: %w", origin, err)
		}
	}
	if err := validatePositive("read_timeout", config.ReadTimeout); err != nil {
		return err
	}
	return validatePositive("shutdown_timeout", config.ShutdownTimeout)
}

func validateAPIConfig(config *APIConfig, backend string) error {
	if backend == StorageRemote {
		if err := validation.ValidateURL(config.BaseURL); err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
	} else if config.BaseURL != "" {
		if _, err := url.Parse(config.BaseURL); err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
	}
	return validatePositive("timeout", config.Timeout)
}

func validateRenderConfig(config *RenderConfig) error {
	if config.MinDelay < 0 {
		return fmt.Errorf("min_delay must not be negative")
	}
	if err := validatePositive("ceiling", config.Ceiling); err != nil {
		return err
	}
	if config.Ceiling < config.MinDelay {
		return fmt.Errorf("ceiling %s is shorter than min_delay %s", config.Ceiling, config.MinDelay)
	}
	if config.TailwindURL != "" {
		if err := validation.ValidateURL(config.TailwindURL); err != nil {
			return fmt.Errorf("tailwind_url: %w", err)
		}
	}
	return nil
}

func validateStorageConfig(config *StorageConfig) error {
	switch config.Backend {
	case StorageLocal:
		if config.Path != ":memory:" {
			if err := validation.ValidatePath(config.Path); err != nil {
				return fmt.Errorf("path: %w", err)
			}
		}
	case StorageRemote:
	default:
		return fmt.Errorf("unknown backend %q: use %s or %s", config.Backend, StorageLocal, StorageRemote)
	}
	if config.SessionFile != "" {
		if err := validation.ValidatePath(config.SessionFile); err != nil {
			return fmt.Errorf("session_file: %w", err)
		}
	}
	return nil
}

func validateCatalogConfig(config *CatalogConfig) error {
	if err := validation.ValidatePath(config.Dir); err != nil {
		return fmt.Errorf("dir: %w", err)
	}
	if config.Watch {
		return validatePositive("debounce", config.Debounce)
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown level %q", config.Level)
	}
	if config.Format != "text" && config.Format != "json" {
		return fmt.Errorf("unknown format %q: use text or json", config.Format)
	}
	return nil
}

func validatePositive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}
