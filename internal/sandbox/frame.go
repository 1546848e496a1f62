// Package sandbox renders composed documents into isolated browsing
// contexts and tracks their load lifecycle.
//
// A Frame is the render target. Its content is written by exactly one render
// cycle at a time; a new write replaces the whole document and makes every
// signal from the previous write inert.
package sandbox

import (
	"context"
	"sync"
)

// State is the lifecycle state of a frame.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// LoadSignal is reported by a surface once a written document finished
// loading. A nil Err means the load succeeded.
type LoadSignal struct {
	Err error
}

// Surface is an isolated browsing context that can hold one document.
type Surface interface {
	// Write replaces the surface content. The returned channel delivers at
	// most one signal for this write; it may never deliver one.
	Write(ctx context.Context, doc string) (<-chan LoadSignal, error)
	// Clear destroys the current content.
	Clear(ctx context.Context) error
}

// Frame binds a surface to its lifecycle state.
type Frame struct {
	id      string
	surface Surface

	// write is held for the length of a render cycle.
	write sync.Mutex

	mu      sync.RWMutex
	state   State
	content string
	err     error
}

// NewFrame creates an empty frame on the given surface.
func NewFrame(id string, surface Surface) *Frame {
	return &Frame{id: id, surface: surface}
}

// ID returns the frame identifier used in logs.
func (f *Frame) ID() string {
	return f.id
}

// Surface returns the underlying browsing context.
func (f *Frame) Surface() Surface {
	return f.surface
}

// State returns the current lifecycle state.
func (f *Frame) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// Content returns the last document written to the frame.
func (f *Frame) Content() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.content
}

// Err returns the error that moved the frame into StateError.
func (f *Frame) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Clear destroys the frame content and returns it to StateEmpty.
func (f *Frame) Clear(ctx context.Context) error {
	f.write.Lock()
	defer f.write.Unlock()

	if err := f.surface.Clear(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.state, f.content, f.err = StateEmpty, "", nil
	f.mu.Unlock()
	return nil
}

func (f *Frame) begin(doc string) {
	f.mu.Lock()
	f.state, f.content, f.err = StateLoading, doc, nil
	f.mu.Unlock()
}

func (f *Frame) finish(state State, err error) {
	f.mu.Lock()
	f.state, f.err = state, err
	f.mu.Unlock()
}
