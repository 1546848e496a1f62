package sandbox

import (
	"context"
	"errors"
	"sync"
)

// DocumentSender delivers a document to a browser-side frame. seq
// identifies the write; the browser echoes it back with its load report.
type DocumentSender interface {
	SendDocument(ctx context.Context, seq int64, doc string) error
}

// RemoteSurface is a sandboxed iframe living in a connected browser. The
// host forwards the browser's load reports through Signal.
type RemoteSurface struct {
	sender DocumentSender

	mu      sync.Mutex
	seq     int64
	pending chan LoadSignal
}

// NewRemoteSurface creates a surface that writes through sender.
func NewRemoteSurface(sender DocumentSender) *RemoteSurface {
	return &RemoteSurface{sender: sender}
}

// Write implements Surface.
func (s *RemoteSurface) Write(ctx context.Context, doc string) (<-chan LoadSignal, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	signals := make(chan LoadSignal, 1)
	s.pending = signals
	s.mu.Unlock()

	if err := s.sender.SendDocument(ctx, seq, doc); err != nil {
		s.mu.Lock()
		if s.seq == seq {
			s.pending = nil
		}
		s.mu.Unlock()
		return nil, err
	}
	return signals, nil
}

// Clear implements Surface.
func (s *RemoteSurface) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.pending = nil
	s.mu.Unlock()
	return s.sender.SendDocument(ctx, seq, "")
}

// Signal records a load report for write seq. Reports for superseded
// writes are dropped and Signal returns false.
func (s *RemoteSurface) Signal(seq int64, loadErr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.seq || s.pending == nil {
		return false
	}
	sig := LoadSignal{}
	if loadErr != "" {
		sig.Err = errors.New(loadErr)
	}
	s.pending <- sig
	s.pending = nil
	return true
}

// Seq returns the sequence number of the latest write.
func (s *RemoteSurface) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}
