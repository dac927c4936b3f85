package media

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/fault"
)

var (
	errNoStream       = errors.New("no media stream")
	errUnsupportedPCM = errors.New("preview requires 16-bit PCM")
)

// Capture is one in-progress recording.
type Capture interface {
	Format() string
	Events() <-chan Event
	Stop()
}

type Options struct {
	Preferences []string
	Timeslice   time.Duration
	Constraints Constraints
	Preview     PreviewSink
	Logger      *slog.Logger
}

// Controller exclusively owns the acquired stream for one interview.
type Controller struct {
	runtime Runtime
	opts    Options
	logger  *slog.Logger

	mu     sync.Mutex
	stream Stream
	format string
}

func NewController(runtime Runtime, opts Options) *Controller {
	if len(opts.Preferences) == 0 {
		opts.Preferences = DefaultPreferences
	}
	if !opts.Constraints.Audio && !opts.Constraints.Video {
		opts.Constraints.Audio = true
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{runtime: runtime, opts: opts, logger: logger}
}

// Acquire opens the capture stream and negotiates the recording format.
// Calling it while a stream is held is a no-op.
func (c *Controller) Acquire(ctx context.Context) error {
	if c.runtime == nil {
		return fault.New(fault.KindUnsupported, "acquire media", "")
	}
	if c.Acquired() {
		return nil
	}

	stream, err := c.runtime.Acquire(ctx, c.opts.Constraints)
	if err != nil {
		return classify(err)
	}
	// The runtime may not observe ctx; a stream that arrives after
	// cancellation is never handed out.
	if err := ctx.Err(); err != nil {
		stopTracks(stream)
		return classify(err)
	}
	format := Negotiate(c.opts.Preferences, c.runtime.Supports, c.runtime.DefaultFormat())

	c.mu.Lock()
	if c.stream != nil {
		c.mu.Unlock()
		stopTracks(stream)
		return nil
	}
	c.stream = stream
	c.format = format
	c.mu.Unlock()

	if c.opts.Preview != nil {
		if err := c.opts.Preview.Attach(stream); err != nil {
			c.logger.Warn("media preview unavailable", "error", err.Error())
		}
	}

	c.logger.Info("media acquired", "format", format, "tracks", len(stream.Tracks()))
	return nil
}

func (c *Controller) Acquired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Format returns the negotiated recording format, or "" before Acquire.
func (c *Controller) Format() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// StartCapture begins a recorder on the acquired stream.
func (c *Controller) StartCapture() (Capture, error) {
	c.mu.Lock()
	stream, format := c.stream, c.format
	c.mu.Unlock()

	if stream == nil {
		return nil, fault.Conflict("start recording", "media stream is not acquired")
	}
	rec, err := NewRecorder(stream, format, c.opts.Timeslice)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Release stops every track of the held stream. Each acquired stream is
// released exactly once; later calls return false.
func (c *Controller) Release() bool {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	if stream == nil {
		return false
	}
	if c.opts.Preview != nil {
		c.opts.Preview.Detach()
	}
	stopTracks(stream)
	c.logger.Info("media released")
	return true
}

// Scope acquires media, runs fn, and releases on every exit path.
func (c *Controller) Scope(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.Acquire(ctx); err != nil {
		return err
	}
	defer c.Release()
	return fn(ctx)
}

func stopTracks(stream Stream) {
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}

func classify(err error) error {
	if _, ok := fault.KindOf(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fault.Wrap(fault.KindTimeout, "acquire media", "", err)
	}
	return fault.Wrap(fault.KindUnsupported, "acquire media", "", err)
}
