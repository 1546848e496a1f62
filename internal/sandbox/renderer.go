package sandbox

import (
	"context"
	"time"

	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/logging"
)

const (
	// DefaultMinDelay keeps the loading indicator up long enough to hide a
	// flash of unstyled content.
	DefaultMinDelay = 500 * time.Millisecond
	// DefaultCeiling bounds how long a frame may stay loading.
	DefaultCeiling = 3 * time.Second
)

// Options configures a Renderer.
type Options struct {
	MinDelay time.Duration
	Ceiling  time.Duration
	Logger   logging.Logger
}

// Outcome describes how a render cycle ended.
type Outcome struct {
	State    State
	TimedOut bool
	Err      error
	Elapsed  time.Duration
}

// Ready reports whether the frame can be interacted with.
func (o Outcome) Ready() bool {
	return o.State == StateReady
}

// Renderer drives frames through empty -> loading -> ready|error.
type Renderer struct {
	minDelay time.Duration
	ceiling  time.Duration
	logger   logging.Logger
}

// NewRenderer creates a renderer. Zero durations take the defaults; a
// negative MinDelay disables the display delay.
func NewRenderer(opts Options) *Renderer {
	r := &Renderer{
		minDelay: opts.MinDelay,
		ceiling:  opts.Ceiling,
		logger:   opts.Logger,
	}
	if r.minDelay == 0 {
		r.minDelay = DefaultMinDelay
	}
	if r.minDelay < 0 {
		r.minDelay = 0
	}
	if r.ceiling <= 0 {
		r.ceiling = DefaultCeiling
	}
	if r.logger == nil {
		r.logger = logging.NewNopLogger()
	}
	r.logger = r.logger.WithComponent("renderer")
	return r
}

// Render replaces the frame content with composed and waits for the
// surface to settle. It returns once the frame is ready or in error; the
// ceiling guarantees it never waits longer than the configured bound.
func (r *Renderer) Render(ctx context.Context, composed string, frame *Frame) Outcome {
	frame.write.Lock()
	defer frame.write.Unlock()

	start := time.Now()
	frame.begin(composed)
	r.logger.Debug(ctx, "Rendering document", "frame", frame.id, "bytes", len(composed))

	ceiling := time.NewTimer(r.ceiling)
	defer ceiling.Stop()

	signals, err := frame.surface.Write(ctx, composed)
	if err != nil {
		serr := weberrors.NewSandboxAccessError("cannot access frame document", err).
			WithContext("frame", frame.id)
		return r.fail(ctx, frame, serr, start)
	}

	select {
	case sig := <-signals:
		if sig.Err != nil {
			return r.fail(ctx, frame, weberrors.NewRenderError("document failed to load", sig.Err).
				WithContext("frame", frame.id), start)
		}
	case <-ceiling.C:
		return r.forceReady(ctx, frame, start)
	case <-ctx.Done():
		return r.fail(ctx, frame, weberrors.NewRenderError("render cancelled", ctx.Err()), start)
	}

	if r.minDelay > 0 {
		delay := time.NewTimer(r.minDelay)
		defer delay.Stop()
		select {
		case <-delay.C:
		case <-ceiling.C:
			return r.forceReady(ctx, frame, start)
		case <-ctx.Done():
			return r.fail(ctx, frame, weberrors.NewRenderError("render cancelled", ctx.Err()), start)
		}
	}

	frame.finish(StateReady, nil)
	elapsed := time.Since(start)
	r.logger.Debug(ctx, "Frame ready", "frame", frame.id, "elapsed_ms", elapsed.Milliseconds())
	return Outcome{State: StateReady, Elapsed: elapsed}
}

func (r *Renderer) forceReady(ctx context.Context, frame *Frame, start time.Time) Outcome {
	err := weberrors.NewRenderTimeoutError("frame did not signal load before the ceiling").
		WithContext("frame", frame.id).
		WithContext("ceiling_ms", r.ceiling.Milliseconds())
	r.logger.Warn(ctx, err, "Render timed out, forcing ready", "frame", frame.id)

	frame.finish(StateReady, nil)
	return Outcome{State: StateReady, TimedOut: true, Err: err, Elapsed: time.Since(start)}
}

func (r *Renderer) fail(ctx context.Context, frame *Frame, err *weberrors.SiteError, start time.Time) Outcome {
	r.logger.Error(ctx, err, "Render failed", "frame", frame.id)
	frame.finish(StateError, err)
	return Outcome{State: StateError, Err: err, Elapsed: time.Since(start)}
}
