package sandbox

import (
	"context"
	"fmt"
	"sync"

	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/logging"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ComputedStyle is the resolved style of an element as a browser reports it.
type ComputedStyle struct {
	Color           string `json:"color"`
	BackgroundColor string `json:"backgroundColor"`
	FontSize        string `json:"fontSize"`
}

// BrowserConfig configures a headless Chromium instance.
type BrowserConfig struct {
	// RemoteURL connects to an already running browser instead of launching.
	RemoteURL string
	// Bin overrides the browser binary.
	Bin      string
	Headless bool
	Logger   logging.Logger
}

// Browser owns a Chromium process and its pages.
type Browser struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	logger  logging.Logger
}

// LaunchBrowser starts Chromium, or connects to cfg.RemoteURL.
func LaunchBrowser(ctx context.Context, cfg BrowserConfig) (*Browser, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("browser")

	var (
		wsURL string
		lnch  *launcher.Launcher
	)
	if cfg.RemoteURL != "" {
		wsURL = cfg.RemoteURL
		logger.Info(ctx, "Connecting to remote browser", "url", wsURL)
	} else {
		lnch = launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			lnch = lnch.Bin(cfg.Bin)
		}
		u, err := lnch.Context(ctx).Launch()
		if err != nil {
			return nil, weberrors.NewSandboxAccessError("failed to launch browser", err)
		}
		wsURL = u
		logger.Info(ctx, "Launched local browser", "url", wsURL)
	}

	b := rod.New().Context(ctx).ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, weberrors.NewSandboxAccessError("failed to connect to browser", err)
	}
	return &Browser{browser: b, lnch: lnch, logger: logger}, nil
}

// NewSurface opens a blank page and wraps it as a surface.
func (b *Browser) NewSurface() (*RodSurface, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, weberrors.NewSandboxAccessError("failed to open page", err)
	}
	return NewRodSurface(page, b.logger), nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	err := b.browser.Close()
	if b.lnch != nil {
		b.lnch.Cleanup()
	}
	return err
}

// RodSurface renders into a Chromium page.
type RodSurface struct {
	mu     sync.Mutex
	page   *rod.Page
	logger logging.Logger
}

// NewRodSurface wraps an open page.
func NewRodSurface(page *rod.Page, logger logging.Logger) *RodSurface {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RodSurface{page: page, logger: logger}
}

// Write implements Surface. The load signal comes from the page's load
// event observed through WaitLoad.
func (s *RodSurface) Write(ctx context.Context, doc string) (<-chan LoadSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.page.Context(ctx)
	if err := p.SetDocumentContent(doc); err != nil {
		return nil, err
	}

	signals := make(chan LoadSignal, 1)
	go func() {
		if err := p.WaitLoad(); err != nil {
			signals <- LoadSignal{Err: err}
			return
		}
		signals <- LoadSignal{}
	}()
	return signals, nil
}

// Clear implements Surface.
func (s *RodSurface) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Context(ctx).SetDocumentContent("")
}

const computedStyleJS = `(i) => {
	const el = document.querySelector('[data-edit-index="' + i + '"]');
	if (!el) return null;
	const cs = window.getComputedStyle(el);
	return {color: cs.color, backgroundColor: cs.backgroundColor, fontSize: cs.fontSize};
}`

// ComputedStyle reads the resolved style of the element with the given
// stable index.
func (s *RodSurface) ComputedStyle(ctx context.Context, index int) (*ComputedStyle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.page.Context(ctx).Eval(computedStyleJS, index)
	if err != nil {
		return nil, weberrors.NewSandboxAccessError("failed to read computed style", err)
	}
	if res.Value.Nil() {
		return nil, fmt.Errorf("no element with index %d", index)
	}
	return &ComputedStyle{
		Color:           res.Value.Get("color").Str(),
		BackgroundColor: res.Value.Get("backgroundColor").Str(),
		FontSize:        res.Value.Get("fontSize").Str(),
	}, nil
}

// SetViewport emulates the device size of v.
func (s *RodSurface) SetViewport(ctx context.Context, v Viewport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.page.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             v.PixelWidth(),
		Height:            v.Height,
		DeviceScaleFactor: 1,
		Mobile:            v.Mobile,
	})
}

// Screenshot captures the page as PNG.
func (s *RodSurface) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// HTML returns the live document markup.
func (s *RodSurface) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Context(ctx).HTML()
}

// Close closes the page.
func (s *RodSurface) Close() error {
	return s.page.Close()
}
