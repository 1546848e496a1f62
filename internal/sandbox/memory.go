package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/webgen/internal/document"
)

// MemorySurface is an in-process surface. Documents are parsed with the
// HTML5 parser; the load signal fires once parsing completes. It backs
// headless CLI edits and tests.
type MemorySurface struct {
	mu        sync.Mutex
	doc       *document.Document
	raw       string
	writes    int
	silent    bool
	writeErr  error
	loadErr   error
	loadDelay time.Duration
}

// MemoryOption configures a MemorySurface.
type MemoryOption func(*MemorySurface)

// WithSilent makes the surface never signal, as a browser that hangs.
func WithSilent() MemoryOption {
	return func(s *MemorySurface) { s.silent = true }
}

// WithWriteError makes every write fail, as a sandbox that denies access.
func WithWriteError(err error) MemoryOption {
	return func(s *MemorySurface) { s.writeErr = err }
}

// WithLoadError makes every load report err.
func WithLoadError(err error) MemoryOption {
	return func(s *MemorySurface) { s.loadErr = err }
}

// WithLoadDelay delays the load signal.
func WithLoadDelay(d time.Duration) MemoryOption {
	return func(s *MemorySurface) { s.loadDelay = d }
}

// NewMemorySurface creates an empty in-process surface.
func NewMemorySurface(opts ...MemoryOption) *MemorySurface {
	s := &MemorySurface{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write implements Surface.
func (s *MemorySurface) Write(_ context.Context, doc string) (<-chan LoadSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return nil, s.writeErr
	}

	s.writes++
	s.raw = doc
	s.doc = nil

	signals := make(chan LoadSignal, 1)
	if s.silent {
		return signals, nil
	}

	sig := LoadSignal{Err: s.loadErr}
	if sig.Err == nil {
		parsed, err := document.Parse(doc)
		if err != nil {
			sig.Err = err
		} else {
			s.doc = parsed
		}
	}

	if s.loadDelay > 0 {
		go func(d time.Duration) {
			time.Sleep(d)
			signals <- sig
		}(s.loadDelay)
		return signals, nil
	}
	signals <- sig
	return signals, nil
}

// Clear implements Surface.
func (s *MemorySurface) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc, s.raw = nil, ""
	return nil
}

// Document returns the parsed content, or nil when empty or unparsed.
func (s *MemorySurface) Document() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// HTML returns the raw content last written.
func (s *MemorySurface) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

// Writes counts successful writes.
func (s *MemorySurface) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
