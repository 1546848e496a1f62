// Package server is the webgen host: the template gallery and device
// previews, the editor shell with its websocket session channel, published
// sites and a live-reload hub for catalog changes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/conneroisu/webgen/internal/appstate"
	"github.com/conneroisu/webgen/internal/backend"
	"github.com/conneroisu/webgen/internal/compositor"
	"github.com/conneroisu/webgen/internal/config"
	"github.com/conneroisu/webgen/internal/logging"
	"github.com/conneroisu/webgen/internal/published"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/conneroisu/webgen/internal/validation"
	"github.com/conneroisu/webgen/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Preferences is the signed-in user's state the pages read.
type Preferences interface {
	Theme() string
	User() *appstate.User
}

// ChangeNotifier reports template catalog changes.
type ChangeNotifier interface {
	OnChange(fn func())
}

// Options wires a Server. Config and Backend are required.
type Options struct {
	Config      *config.Config
	Backend     backend.Backend
	Catalog     ChangeNotifier
	Preferences Preferences
	Logger      logging.Logger
}

// Server serves the host pages and editing sessions.
type Server struct {
	config      *config.Config
	backend     backend.Backend
	preferences Preferences
	compositor  *compositor.Compositor
	published   *published.Renderer
	renderer    *sandbox.Renderer
	logger      logging.Logger
	router      chi.Router
	hub         *hub

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	shutdownOnce sync.Once
	// lifetime ends at shutdown and bounds every websocket.
	lifetime context.Context
	cancel   context.CancelFunc
}

// New creates a server and starts its reload hub.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("server needs a configuration")
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("server needs a backend")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	comp := compositor.NewCompositor(compositor.Options{TailwindURL: opts.Config.Render.TailwindURL})
	s := &Server{
		config:      opts.Config,
		backend:     opts.Backend,
		preferences: opts.Preferences,
		compositor:  comp,
		published:   published.NewRenderer(comp),
		renderer: sandbox.NewRenderer(sandbox.Options{
			MinDelay: opts.Config.Render.MinDelay,
			Ceiling:  opts.Config.Render.Ceiling,
			Logger:   logger,
		}),
		logger: logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.lifetime, s.cancel = ctx, cancel
	s.hub = newHub(logger)
	go s.hub.run(ctx)

	if opts.Catalog != nil {
		opts.Catalog.OnChange(func() {
			s.logger.Info(context.Background(), "Template catalog changed, reloading clients")
			s.hub.send(ctx, reloadMessage)
		})
	}

	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if t := s.config.Server.ReadTimeout; t > 0 {
			r.Use(middleware.Timeout(t))
		}
		r.Get("/", s.handleGallery)
		r.Get("/templates/{id}/preview", s.handlePreview)
		r.Get("/templates/{id}/document", s.handleTemplateDocument)
		r.Post("/templates/{id}/use", s.handleUseTemplate)
		r.Get("/editor/{websiteID}", s.handleEditor)
		r.Get("/site/{slug}", s.handleSite)
	})

	// Websockets outlive the page timeout.
	r.Get("/ws/reload", s.handleReloadSocket)
	r.Get("/ws/editor/{websiteID}", s.handleEditorSocket)

	r.NotFound(s.handleNotFound)
	return r
}

// corsOrigins returns the configured origins. Development servers also
// accept any local port.
func (s *Server) corsOrigins() []string {
	origins := append([]string(nil), s.config.Server.AllowedOrigins...)
	if s.config.Server.Development() {
		origins = append(origins, "http://localhost:*", "http://127.0.0.1:*")
	}
	return origins
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug(r.Context(), "Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Start listens until ctx is cancelled or the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Server.Addr()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.Server.ReadTimeout,
		IdleTimeout:       120 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	target := "http://" + listener.Addr().String()
	s.logger.Info(ctx, "Server listening", "url", target)
	if s.config.Server.Open {
		go s.openBrowser(ctx, target)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Shutdown did not complete cleanly")
		}
	}()

	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown closes every websocket and stops the HTTP server. It is safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")
		s.cancel()
		s.hub.closeAll()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})
	return shutdownErr
}

func (s *Server) openBrowser(ctx context.Context, target string) {
	if err := validation.ValidateURL(target); err != nil {
		s.logger.Warn(ctx, err, "Refusing to open browser")
		return
	}

	var err error
	switch runtime.GOOS {
	case "linux":
		err = exec.Command("xdg-open", target).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	case "darwin":
		err = exec.Command("open", target).Start()
	default:
		err = fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}
	if err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser", "url", target)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.Get(),
		"checks": map[string]interface{}{
			"reload_clients": s.hub.count(),
			"storage":        s.config.Storage.Backend,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

// checkOrigin accepts same-host origins and the configured allow list.
func (s *Server) checkOrigin(r *http.Request) bool {
	allowed := append([]string{r.Host}, s.config.Server.AllowedOrigins...)
	if err := validation.ValidateOrigin(r.Header.Get("Origin"), allowed); err != nil {
		s.logger.Warn(r.Context(), err, "Websocket origin rejected", "origin", r.Header.Get("Origin"))
		return false
	}
	return true
}

// originPatterns mirrors the allow list for the websocket handshake.
func (s *Server) originPatterns() []string {
	var patterns []string
	for _, origin := range s.config.Server.AllowedOrigins {
		if origin == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
