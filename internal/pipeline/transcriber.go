// Package pipeline turns a finalized answer clip into a display transcript:
// optional debug dump, upload with bounded retry, and normalization.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/rehearse/internal/answer"
	"github.com/rbright/rehearse/internal/backend"
	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/media"
	"github.com/rbright/rehearse/internal/transcript"
)

// Uploader is the transcription collaborator.
type Uploader interface {
	TranscribeAnswer(ctx context.Context, clip backend.Clip, sessionID string, questionIndex int) (string, error)
}

// RetryPolicy bounds transcription attempts. Only network failures are
// retried; MaxAttempts <= 1 disables retry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

type Options struct {
	Retry      RetryPolicy
	Transcript transcript.Options
	DumpClips  bool
	Logger     *slog.Logger
}

// Transcriber owns the clip -> transcript path for every answer upload.
type Transcriber struct {
	uploader Uploader
	opts     Options
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

func NewTranscriber(uploader Uploader, opts Options) *Transcriber {
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transcriber{uploader: uploader, opts: opts, logger: logger, sleep: sleepContext}
}

// Transcribe uploads clip for questionIndex and returns the normalized text.
func (t *Transcriber) Transcribe(ctx context.Context, clip answer.Clip, sessionID string, questionIndex int) (string, error) {
	if len(clip.Data) == 0 {
		return "", fault.Processing("transcribe answer", "Failed to process audio recording")
	}
	if t.opts.DumpClips {
		t.writeDebugClip(clip, questionIndex)
	}

	upload := backend.Clip{
		Data:     clip.Data,
		Format:   clip.Format,
		Filename: fmt.Sprintf("answer-%d.%s", questionIndex, media.Extension(clip.Format)),
	}

	var lastErr error
	for attempt := 1; attempt <= t.opts.Retry.MaxAttempts; attempt++ {
		started := time.Now()
		text, err := t.uploader.TranscribeAnswer(ctx, upload, sessionID, questionIndex)
		if err == nil {
			normalized := transcript.Normalize(text, t.opts.Transcript)
			if normalized == "" {
				t.logger.Warn("empty transcript", "question", questionIndex, "clip", clip.Ref)
			}
			t.logger.Info("answer transcribed",
				"question", questionIndex,
				"clip", clip.Ref,
				"bytes", len(clip.Data),
				"attempt", attempt,
				"elapsed_ms", time.Since(started).Milliseconds(),
			)
			return normalized, nil
		}

		lastErr = err
		if !retryable(err) || attempt == t.opts.Retry.MaxAttempts {
			break
		}
		t.logger.Warn("transcription attempt failed; retrying",
			"question", questionIndex,
			"attempt", attempt,
			"error", err.Error(),
		)
		if err := t.sleep(ctx, t.opts.Retry.Backoff); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func retryable(err error) bool {
	return errors.Is(err, fault.ErrNetwork)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Transcriber) writeDebugClip(clip answer.Clip, questionIndex int) {
	file, err := createDebugFile(fmt.Sprintf("answer-%d", questionIndex), media.Extension(clip.Format))
	if err != nil {
		t.logger.Warn("unable to create debug clip dump", "error", err.Error())
		return
	}
	defer file.Close()

	if _, err := file.Write(clip.Data); err != nil {
		t.logger.Warn("unable to write debug clip dump", "error", err.Error())
	}
}

// createDebugFile creates timestamped artifacts under state/rehearse/debug.
func createDebugFile(prefix string, extension string) (*os.File, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "rehearse", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}
