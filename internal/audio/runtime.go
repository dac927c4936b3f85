package audio

import (
	"context"
	"log/slog"

	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/media"
)

// Runtime implements media.Runtime on top of PulseAudio.
type Runtime struct {
	Input    string
	Fallback string
	Logger   *slog.Logger

	// selectDevice is replaced in tests.
	selectDevice func(ctx context.Context, input, fallback string) (Selection, error)
	start        func(Device) (media.Stream, error)
}

func NewRuntime(input, fallback string, logger *slog.Logger) *Runtime {
	return &Runtime{Input: input, Fallback: fallback, Logger: logger}
}

func (r *Runtime) Acquire(ctx context.Context, constraints media.Constraints) (media.Stream, error) {
	if constraints.Video {
		return nil, fault.New(fault.KindDevice, "acquire media", "No camera found. Disable media.video or connect a camera.")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	selectDevice := r.selectDevice
	if selectDevice == nil {
		selectDevice = SelectDevice
	}
	selection, err := selectDevice(ctx, r.Input, r.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && r.Logger != nil {
		r.Logger.Warn(selection.Warning)
	}

	start := r.start
	if start == nil {
		start = func(d Device) (media.Stream, error) { return startStream(d) }
	}
	return start(selection.Device)
}

// Supports reports the formats the recorder can encode from Pulse PCM.
func (r *Runtime) Supports(format string) bool {
	return media.Encodable(format)
}

func (r *Runtime) DefaultFormat() string {
	return media.FormatWAV
}
