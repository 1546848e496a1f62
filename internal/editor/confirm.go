package editor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultConfirmTimeout bounds how long a remote prompt waits for a reply.
const DefaultConfirmTimeout = 2 * time.Minute

// EventSender delivers host events to a connected browser.
type EventSender interface {
	SendEvent(ctx context.Context, ev Event) error
}

// RemoteConfirmer asks a connected browser to confirm. Replies arrive
// through Reply, which must not be called from the goroutine blocked in
// Confirm.
type RemoteConfirmer struct {
	sender  EventSender
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan bool
}

// NewRemoteConfirmer creates a confirmer that prompts through sender. A
// prompt that is not answered within timeout counts as declined.
func NewRemoteConfirmer(sender EventSender, timeout time.Duration) *RemoteConfirmer {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &RemoteConfirmer{
		sender:  sender,
		timeout: timeout,
		pending: make(map[string]chan bool),
	}
}

// Confirm implements Confirmer.
func (c *RemoteConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	id := uuid.NewString()
	reply := make(chan bool, 1)

	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.sender.SendEvent(ctx, Event{Type: EventConfirm, ID: id, Prompt: prompt}); err != nil {
		return false, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case ok := <-reply:
		return ok, nil
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Reply answers prompt id. It reports false for unknown or answered ids.
func (c *RemoteConfirmer) Reply(id string, ok bool) bool {
	c.mu.Lock()
	reply, found := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !found {
		return false
	}
	reply <- ok
	return true
}
