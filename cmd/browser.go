package cmd

import (
	"context"

	"github.com/conneroisu/webgen/internal/config"
	"github.com/conneroisu/webgen/internal/logging"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/spf13/cobra"
)

// headless is a browser page used as a render surface.
type headless struct {
	browser  *sandbox.Browser
	surface  *sandbox.RodSurface
	renderer *sandbox.Renderer
	logger   logging.Logger
}

func (h *headless) close() {
	if err := h.surface.Close(); err != nil {
		h.logger.Debug(context.Background(), "Closing page failed", "error", err.Error())
	}
	if err := h.browser.Close(); err != nil {
		h.logger.Warn(context.Background(), err, "Closing browser failed")
	}
}

func openBrowserApp(cmd *cobra.Command) (*headless, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return launchHeadless(commandContext(cmd), cfg, newLogger(cmd, cfg))
}

func launchHeadless(ctx context.Context, cfg *config.Config, logger logging.Logger) (*headless, error) {
	browser, err := sandbox.LaunchBrowser(ctx, sandbox.BrowserConfig{
		RemoteURL: cfg.Browser.RemoteURL,
		Bin:       cfg.Browser.Bin,
		Headless:  cfg.Browser.Headless,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	surface, err := browser.NewSurface()
	if err != nil {
		browser.Close()
		return nil, err
	}
	return &headless{
		browser: browser,
		surface: surface,
		renderer: sandbox.NewRenderer(sandbox.Options{
			MinDelay: cfg.Render.MinDelay,
			Ceiling:  cfg.Render.Ceiling,
			Logger:   logger,
		}),
		logger: logger,
	}, nil
}
