package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/rbright/rehearse/internal/audio"
	"github.com/rbright/rehearse/internal/config"
	"github.com/rbright/rehearse/internal/cue"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/ipc"
	"github.com/rbright/rehearse/internal/media"
	"github.com/rbright/rehearse/internal/output"
	"github.com/rbright/rehearse/internal/pipeline"
	"github.com/rbright/rehearse/internal/questions"
	"github.com/rbright/rehearse/internal/session"
	"github.com/rbright/rehearse/internal/transcript"
	"github.com/rbright/rehearse/internal/tui"
)

const (
	socketProbeTimeout = 180 * time.Millisecond
	socketRetries      = 8
	shutdownTimeout    = 10 * time.Second
)

func (r Runner) commandInterview(ctx context.Context, cfg config.Config, logger *slog.Logger, cvPath string) int {
	cvText, err := readCV(ctx, cfg, cvPath, false)
	if err != nil {
		return r.fail(logger, "interview", err)
	}

	lock, err := acquireSocket(ctx, logger)
	if err != nil {
		return r.fail(logger, "interview", err)
	}
	if lock != nil {
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("release control socket", "error", err.Error())
			}
		}()
	}

	meter := media.NewLevelMeter()
	notifier := cue.New(cfg.Cue, logger)
	iv := buildInterview(cfg, logger, meter, notifier)

	started := time.Now()
	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	if lock != nil {
		g.Go(func() error {
			return ipc.Serve(gctx, lock, iv.Mux())
		})
	}
	g.Go(func() error {
		defer cancel()
		return r.runScreen(gctx, iv, cvText, meter)
	})
	runErr := g.Wait()
	cancel()

	// Close moves the phase to closed; capture the outcome first.
	state := iv.Snapshot()

	closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer closeCancel()
	if err := iv.Close(closeCtx); err != nil {
		logger.Warn("interview shutdown incomplete", "error", err.Error())
	}
	notifier.Close(closeCtx)

	logInterviewResult(logger, state, started)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, tea.ErrProgramKilled) {
		return r.fail(logger, "interview", runErr)
	}

	switch state.Phase {
	case interview.PhaseFinished:
		fmt.Fprintf(r.Stdout, "Interview %s finished: %d of %d questions answered.\n",
			state.Session.ID, state.Progress.Answered, state.Progress.Total)
	case interview.PhaseFailed:
		if state.Err != nil {
			return r.fail(logger, "interview", state.Err)
		}
	default:
		if state.Session.ID != "" {
			fmt.Fprintf(r.Stdout, "Interview %s left in progress: %d of %d questions answered.\n",
				state.Session.ID, state.Progress.Answered, state.Progress.Total)
		}
	}
	return 0
}

// acquireSocket claims the control socket. Without a socket location the
// interview runs without remote control.
func acquireSocket(ctx context.Context, logger *slog.Logger) (*ipc.Lock, error) {
	socketPath, err := ipc.SocketPath()
	if err != nil {
		logger.Warn("control socket disabled", "error", err.Error())
		return nil, nil
	}

	lock, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{
		ProbeTimeout: socketProbeTimeout,
		Retries:      socketRetries,
	})
	if errors.Is(err, ipc.ErrAlreadyRunning) {
		return nil, errors.New("another rehearse interview is already running")
	}
	return lock, err
}

func buildInterview(cfg config.Config, logger *slog.Logger, meter *media.LevelMeter, notifier *cue.Notifier) *interview.Interview {
	client := newBackendClient(cfg, logger)

	runtime := audio.NewRuntime(cfg.Media.Input, cfg.Media.Fallback, logger)
	devices := media.NewController(runtime, media.Options{
		Preferences: cfg.Media.Formats,
		Timeslice:   time.Duration(cfg.Media.TimesliceMS) * time.Millisecond,
		Constraints: media.Constraints{Audio: true, Video: cfg.Media.Video},
		Preview:     meter,
		Logger:      logger,
	})

	transcriber := pipeline.NewTranscriber(client, pipeline.Options{
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.Transcription.MaxAttempts,
			Backoff:     time.Duration(cfg.Transcription.RetryBackoffMS) * time.Millisecond,
		},
		Transcript: transcript.Options{CapitalizeSentences: cfg.Transcript.CapitalizeSentences},
		DumpClips:  cfg.Debug.ClipDump,
		Logger:     logger,
	})

	return interview.New(interview.Options{
		Sessions:    session.NewController(session.BackendStore{Client: client}, logger),
		Questions:   questions.NewLoader(client, time.Duration(cfg.Questions.TimeoutMS)*time.Millisecond),
		Devices:     devices,
		Transcriber: transcriber,
		Indicator:   notifier,
		Copier:      output.NewClipboard(cfg.Clipboard.Argv, logger),
		Logger:      logger,
	})
}

func (r Runner) runScreen(ctx context.Context, iv *interview.Interview, cvText string, meter *media.LevelMeter) error {
	if r.screen != nil {
		return r.screen(ctx, iv, cvText)
	}
	model := tui.New(ctx, iv, cvText, meter.Level)
	_, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func logInterviewResult(logger *slog.Logger, state interview.State, started time.Time) {
	if logger == nil {
		return
	}
	fields := []any{
		"phase", state.Phase,
		"session_id", state.Session.ID,
		"questions", state.Progress.Total,
		"answered", state.Progress.Answered,
		"format", state.Format,
		"duration_ms", time.Since(started).Milliseconds(),
	}

	if state.Err != nil {
		logger.Error("interview failed", append(fields, "error", state.Err.Error())...)
		return
	}
	logger.Info("interview complete", fields...)
}
