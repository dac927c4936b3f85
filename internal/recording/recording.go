// Package recording drives per-question answer recording: capture, clip
// assembly, and background transcription uploads.
package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rbright/rehearse/internal/answer"
	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/media"
)

// Capturer starts a recorder on the acquired media stream.
type Capturer interface {
	StartCapture() (media.Capture, error)
}

// Transcriber uploads a clip and returns its transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, clip answer.Clip, sessionID string, questionIndex int) (string, error)
}

// Indicator is the recording-facing subset of user feedback.
type Indicator interface {
	RecordingStarted(ctx context.Context, questionIndex int)
	RecordingStopped(ctx context.Context, questionIndex int)
	AnswerReady(ctx context.Context, questionIndex int)
	AnswerFailed(ctx context.Context, questionIndex int, message string)
}

type noopIndicator struct{}

func (noopIndicator) RecordingStarted(context.Context, int)     {}
func (noopIndicator) RecordingStopped(context.Context, int)     {}
func (noopIndicator) AnswerReady(context.Context, int)          {}
func (noopIndicator) AnswerFailed(context.Context, int, string) {}

type Options struct {
	SessionID func() string
	Indicator Indicator
	Logger    *slog.Logger
}

type collected struct {
	increments [][]byte
	final      bool
}

type active struct {
	index   int
	attempt uint64
	capture media.Capture
	done    chan collected
}

// Machine owns the single active recording and every in-flight upload.
type Machine struct {
	board       *answer.Board
	capturer    Capturer
	transcriber Transcriber
	sessionID   func() string
	indicator   Indicator
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *active
	uploads sync.WaitGroup
}

func New(board *answer.Board, capturer Capturer, transcriber Transcriber, opts Options) *Machine {
	if opts.Indicator == nil {
		opts.Indicator = noopIndicator{}
	}
	if opts.SessionID == nil {
		opts.SessionID = func() string { return "" }
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		board:       board,
		capturer:    capturer,
		transcriber: transcriber,
		sessionID:   opts.SessionID,
		indicator:   opts.Indicator,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Recording returns the question currently recording, if any.
func (m *Machine) Recording() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return 0, false
	}
	return m.current.index, true
}

// Start begins recording questionIndex.
func (m *Machine) Start(ctx context.Context, questionIndex int) error {
	if m.capturer == nil {
		return fault.New(fault.KindUnsupported, "start recording", "")
	}

	// Indicator calls happen after unlock.
	m.mu.Lock()
	attempt, err := m.board.Start(questionIndex)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	capture, err := m.capturer.StartCapture()
	if err != nil {
		m.mu.Unlock()
		m.fail(ctx, questionIndex, attempt, err)
		return err
	}

	done := make(chan collected, 1)
	go func() {
		increments, final := media.Collect(capture.Events())
		done <- collected{increments: increments, final: final}
	}()

	m.current = &active{index: questionIndex, attempt: attempt, capture: capture, done: done}
	m.mu.Unlock()

	m.logger.Info("recording started", "question", questionIndex, "attempt", attempt, "format", capture.Format())
	m.indicator.RecordingStarted(ctx, questionIndex)
	return nil
}

// Stop finalizes the recording of questionIndex and launches its upload.
// It returns once the clip is assembled; the upload continues in the
// background and only ever updates questionIndex.
func (m *Machine) Stop(ctx context.Context, questionIndex int) error {
	m.mu.Lock()
	cur := m.current
	if cur == nil || cur.index != questionIndex {
		m.mu.Unlock()
		return fault.Conflict("stop recording", fmt.Sprintf("question %d is not recording", questionIndex+1))
	}
	m.current = nil
	m.mu.Unlock()

	cur.capture.Stop()

	var res collected
	select {
	case res = <-cur.done:
	case <-ctx.Done():
		m.fail(ctx, questionIndex, cur.attempt, ctx.Err())
		return ctx.Err()
	}
	m.indicator.RecordingStopped(ctx, questionIndex)

	if err := m.board.Stop(questionIndex, cur.attempt); err != nil {
		return err
	}

	data, err := media.Assemble(cur.capture.Format(), res.increments)
	if err == nil && !res.final {
		err = fault.Processing("assemble clip", "Failed to process audio recording")
	}
	if err != nil {
		m.fail(ctx, questionIndex, cur.attempt, err)
		return err
	}

	clip := answer.Clip{Ref: uuid.NewString(), Format: cur.capture.Format(), Data: data}
	if err := m.board.Uploading(questionIndex, cur.attempt, clip); err != nil {
		return err
	}

	m.uploads.Add(1)
	go m.upload(questionIndex, cur.attempt, clip)
	return nil
}

// Toggle stops questionIndex when it is recording, otherwise starts it.
func (m *Machine) Toggle(ctx context.Context, questionIndex int) error {
	if idx, ok := m.Recording(); ok && idx == questionIndex {
		return m.Stop(ctx, questionIndex)
	}
	return m.Start(ctx, questionIndex)
}

func (m *Machine) upload(questionIndex int, attempt uint64, clip answer.Clip) {
	defer m.uploads.Done()

	text, err := m.transcriber.Transcribe(m.ctx, clip, m.sessionID(), questionIndex)
	if err != nil {
		m.fail(m.ctx, questionIndex, attempt, err)
		return
	}
	if err := m.board.Transcribed(questionIndex, attempt, text); err != nil {
		m.logger.Debug("dropping transcript", "question", questionIndex, "error", err.Error())
		return
	}
	m.indicator.AnswerReady(m.ctx, questionIndex)
}

func (m *Machine) fail(ctx context.Context, questionIndex int, attempt uint64, cause error) {
	message := failureMessage(cause)
	if err := m.board.Fail(questionIndex, attempt, message); err != nil {
		m.logger.Debug("dropping failure", "question", questionIndex, "error", err.Error())
		return
	}
	m.logger.Error("answer failed", "question", questionIndex, "error", cause.Error())
	m.indicator.AnswerFailed(ctx, questionIndex, message)
}

func failureMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Recording cancelled"
	}
	return fault.UserMessage(err)
}

// Abort discards the active recording without uploading it.
func (m *Machine) Abort() {
	m.mu.Lock()
	cur := m.current
	m.current = nil
	m.mu.Unlock()

	if cur == nil {
		return
	}
	cur.capture.Stop()
	<-cur.done
	m.fail(context.Background(), cur.index, cur.attempt, context.Canceled)
}

// Wait blocks until every in-flight upload has settled or ctx ends.
func (m *Machine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.uploads.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown aborts any recording, waits for uploads within ctx, then
// cancels whatever is still running.
func (m *Machine) Shutdown(ctx context.Context) error {
	m.Abort()
	err := m.Wait(ctx)
	m.cancel()
	if err != nil {
		_ = m.Wait(context.Background())
	}
	return err
}
