// Package interview runs one interview attempt: session, questions, media,
// per-question recording, navigation, and finalization.
package interview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/rehearse/internal/answer"
	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/media"
	"github.com/rbright/rehearse/internal/navigation"
	"github.com/rbright/rehearse/internal/output"
	"github.com/rbright/rehearse/internal/questions"
	"github.com/rbright/rehearse/internal/recording"
	"github.com/rbright/rehearse/internal/session"
)

// Phase is the page-level lifecycle of an interview.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLoading  Phase = "loading"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
	PhaseFailed   Phase = "failed"
	PhaseClosed   Phase = "closed"
)

type Sessions interface {
	Start(ctx context.Context) (session.Session, error)
	Current() (session.Session, bool)
	Finish(ctx context.Context, answerCount int) (session.Session, error)
}

type QuestionSource interface {
	Load(ctx context.Context, cvText string) ([]questions.Question, error)
	Cancel()
}

// Devices is the media capture handle owner.
type Devices interface {
	Acquire(ctx context.Context) error
	Release() bool
	Format() string
	StartCapture() (media.Capture, error)
}

type Copier interface {
	CopyTranscript(ctx context.Context, entries []output.Entry) error
}

type Options struct {
	Sessions    Sessions
	Questions   QuestionSource
	Devices     Devices
	Transcriber recording.Transcriber
	Indicator   recording.Indicator
	Copier      Copier
	Logger      *slog.Logger
}

// State is a consistent snapshot for rendering.
type State struct {
	Phase     Phase
	Err       error
	Session   session.Session
	Questions []questions.Question
	Answers   []answer.Answer
	Current   int
	Recording int
	Format    string
	Progress  navigation.Progress
}

// CurrentAnswer returns the answer for the current question.
func (s State) CurrentAnswer() (answer.Answer, bool) {
	if s.Current < 0 || s.Current >= len(s.Answers) {
		return answer.Answer{}, false
	}
	return s.Answers[s.Current], true
}

// Interview is safe for concurrent use by the TUI and the IPC server.
type Interview struct {
	sessions Sessions
	loader   QuestionSource
	devices  Devices
	copier   Copier
	logger   *slog.Logger

	board    *answer.Board
	recorder *recording.Machine
	nav      *navigation.Navigator
	changes  chan struct{}

	mu        sync.RWMutex
	phase     Phase
	pageErr   error
	cvText    string
	questions []questions.Question

	closeOnce sync.Once
	closeErr  error
}

func New(opts Options) *Interview {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	iv := &Interview{
		sessions: opts.Sessions,
		loader:   opts.Questions,
		devices:  opts.Devices,
		copier:   opts.Copier,
		logger:   logger,
		board:    answer.NewBoard(),
		nav:      navigation.New(0),
		changes:  make(chan struct{}, 1),
		phase:    PhaseIdle,
	}
	iv.recorder = recording.New(iv.board, opts.Devices, opts.Transcriber, recording.Options{
		SessionID: iv.sessionID,
		Indicator: opts.Indicator,
		Logger:    logger,
	})
	iv.board.OnChange(func(answer.Answer) { iv.notify() })
	return iv
}

// Changes delivers a coalesced signal after any state change. It never
// blocks writers.
func (iv *Interview) Changes() <-chan struct{} { return iv.changes }

func (iv *Interview) notify() {
	select {
	case iv.changes <- struct{}{}:
	default:
	}
}

func (iv *Interview) sessionID() string {
	s, _ := iv.sessions.Current()
	return s.ID
}

// Begin validates the CV, starts the session, then loads questions and
// acquires media concurrently. Any failure is page-level and releases
// media. Begin may be called again after a failure; an already started
// session is reused.
func (iv *Interview) Begin(ctx context.Context, cvText string) error {
	iv.mu.Lock()
	switch iv.phase {
	case PhaseLoading, PhaseActive, PhaseFinished, PhaseClosed:
		phase := iv.phase
		iv.mu.Unlock()
		return fault.Conflict("begin interview", "interview is "+string(phase))
	}
	iv.phase = PhaseLoading
	iv.pageErr = nil
	iv.cvText = cvText
	iv.questions = nil
	iv.mu.Unlock()
	iv.board.Reset()
	iv.nav.SetTotal(0)
	iv.notify()

	if err := iv.bootstrap(ctx, cvText); err != nil {
		iv.devices.Release()
		iv.setFailed(err)
		return err
	}
	return nil
}

// Retry reruns Begin with the last CV text after a page-level failure.
func (iv *Interview) Retry(ctx context.Context) error {
	iv.mu.RLock()
	phase, cvText := iv.phase, iv.cvText
	iv.mu.RUnlock()
	if phase != PhaseFailed {
		return fault.Conflict("retry interview", "nothing to retry")
	}
	return iv.Begin(ctx, cvText)
}

func (iv *Interview) bootstrap(ctx context.Context, cvText string) error {
	if err := questions.ValidateCV(cvText); err != nil {
		return err
	}

	if _, ok := iv.sessions.Current(); !ok {
		s, err := iv.sessions.Start(ctx)
		if err != nil {
			return err
		}
		iv.notify()
		iv.logger.Info("interview session ready", "session_id", s.ID)
	}

	var loaded []questions.Question
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		qs, err := iv.loader.Load(gctx, cvText)
		if err != nil {
			return err
		}
		loaded = qs
		return nil
	})
	g.Go(func() error {
		return iv.devices.Acquire(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	iv.mu.Lock()
	if iv.phase != PhaseLoading || ctx.Err() != nil {
		iv.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return err
		}
		return fault.Conflict("begin interview", "interview closed while starting")
	}
	iv.questions = loaded
	iv.phase = PhaseActive
	iv.mu.Unlock()
	iv.nav.SetTotal(len(loaded))
	iv.notify()

	iv.logger.Info("interview active", "questions", len(loaded), "format", iv.devices.Format())
	return nil
}

func (iv *Interview) setFailed(err error) {
	iv.mu.Lock()
	if iv.phase != PhaseClosed {
		iv.phase = PhaseFailed
		iv.pageErr = err
	}
	iv.mu.Unlock()
	iv.logger.Error("interview failed", "error", err.Error())
	iv.notify()
}

func (iv *Interview) requireActive(op string) error {
	iv.mu.RLock()
	defer iv.mu.RUnlock()
	if iv.phase != PhaseActive {
		return fault.Conflict(op, "interview is not active")
	}
	if len(iv.questions) == 0 {
		return fault.Validation(op, "No questions to answer.")
	}
	return nil
}

// Toggle starts or stops recording the current question.
func (iv *Interview) Toggle(ctx context.Context) error {
	if err := iv.requireActive("toggle recording"); err != nil {
		return err
	}
	err := iv.recorder.Toggle(ctx, iv.nav.Current())
	iv.notify()
	return err
}

// StopRecording stops whichever question is recording, if any.
func (iv *Interview) StopRecording(ctx context.Context) error {
	idx, ok := iv.recorder.Recording()
	if !ok {
		return nil
	}
	return iv.recorder.Stop(ctx, idx)
}

func (iv *Interview) Next() int     { return iv.move(iv.nav.Next) }
func (iv *Interview) Previous() int { return iv.move(iv.nav.Previous) }
func (iv *Interview) Jump(idx int) int {
	return iv.move(func() int { return iv.nav.Jump(idx) })
}

// move applies step and discards an unsaved edit on the question left
// behind. Recordings and uploads for it carry on.
func (iv *Interview) move(step func() int) int {
	from := iv.nav.Current()
	idx := step()
	if idx != from && iv.board.Get(from).Editing {
		if err := iv.board.CancelEdit(from); err != nil {
			iv.logger.Debug("discard edit", "question", from, "error", err.Error())
		}
	}
	iv.notify()
	return idx
}

func (iv *Interview) BeginEdit() error {
	if err := iv.requireActive("edit transcript"); err != nil {
		return err
	}
	return iv.board.BeginEdit(iv.nav.Current())
}

func (iv *Interview) UpdateDraft(text string) error {
	return iv.board.UpdateDraft(iv.nav.Current(), text)
}

func (iv *Interview) SaveEdit() error {
	return iv.board.SaveEdit(iv.nav.Current())
}

func (iv *Interview) CancelEdit() error {
	return iv.board.CancelEdit(iv.nav.Current())
}

func (iv *Interview) Progress() navigation.Progress {
	return navigation.Progress{
		Current:  iv.nav.Current(),
		Total:    iv.nav.Total(),
		Answered: iv.board.Answered(),
		InFlight: iv.board.InFlight(),
	}
}

// Snapshot returns the current render state. Answers has one entry per
// question; untouched questions are Idle.
func (iv *Interview) Snapshot() State {
	iv.mu.RLock()
	state := State{
		Phase:     iv.phase,
		Err:       iv.pageErr,
		Questions: append([]questions.Question(nil), iv.questions...),
	}
	iv.mu.RUnlock()

	state.Session, _ = iv.sessions.Current()
	state.Answers = make([]answer.Answer, len(state.Questions))
	for i := range state.Questions {
		state.Answers[i] = iv.board.Get(i)
	}
	state.Current = iv.nav.Current()
	state.Recording = -1
	if idx, ok := iv.recorder.Recording(); ok {
		state.Recording = idx
	}
	state.Format = iv.devices.Format()
	state.Progress = iv.Progress()
	return state
}

// Finish waits for in-flight uploads, then finalizes the session with the
// number of answered questions.
func (iv *Interview) Finish(ctx context.Context) (session.Session, error) {
	iv.mu.RLock()
	phase := iv.phase
	iv.mu.RUnlock()
	if phase == PhaseFinished {
		return session.Session{}, session.ErrAlreadyFinished
	}
	if phase != PhaseActive {
		return session.Session{}, fault.Conflict("finish interview", "interview is not active")
	}
	if _, ok := iv.recorder.Recording(); ok {
		return session.Session{}, fault.Conflict("finish interview", "Stop recording before finishing.")
	}
	if err := iv.recorder.Wait(ctx); err != nil {
		return session.Session{}, err
	}

	s, err := iv.sessions.Finish(ctx, iv.board.Answered())
	if err != nil {
		return session.Session{}, err
	}

	iv.mu.Lock()
	iv.phase = PhaseFinished
	iv.mu.Unlock()
	iv.devices.Release()
	iv.notify()
	return s, nil
}

// CopyTranscript copies every answered question to the clipboard.
func (iv *Interview) CopyTranscript(ctx context.Context) error {
	if iv.copier == nil {
		return fault.New(fault.KindUnsupported, "copy transcript", "Clipboard is not configured.")
	}
	state := iv.Snapshot()
	entries := make([]output.Entry, 0, len(state.Questions))
	for i, q := range state.Questions {
		a := state.Answers[i]
		if !a.Answered() {
			continue
		}
		entries = append(entries, output.Entry{Number: i + 1, Question: q.Text, Transcript: a.Transcript})
	}
	err := iv.copier.CopyTranscript(ctx, entries)
	if errors.Is(err, output.ErrNothingToCopy) {
		return fault.Validation("copy transcript", "No answers to copy yet.")
	}
	return err
}

// Close cancels any question load, discards an active recording, waits for
// uploads within ctx, and releases media. Only the first call has effect.
func (iv *Interview) Close(ctx context.Context) error {
	iv.closeOnce.Do(func() {
		// Marked first so a Begin still acquiring media backs out and
		// releases what it got.
		iv.mu.Lock()
		iv.phase = PhaseClosed
		iv.mu.Unlock()

		iv.loader.Cancel()
		iv.closeErr = iv.recorder.Shutdown(ctx)
		iv.devices.Release()
		iv.notify()
	})
	return iv.closeErr
}

// StatusLine summarizes the current answer for one-line surfaces.
func StatusLine(a answer.Answer) string {
	switch a.Status {
	case fsm.StateRecording:
		return "Recording…"
	case fsm.StateProcessing:
		return "Processing recording…"
	case fsm.StateUploading:
		return "Transcribing your answer…"
	case fsm.StateReady:
		if a.Editing {
			return "Editing transcript"
		}
		return "Answer recorded successfully"
	case fsm.StateError:
		if msg := strings.TrimSpace(a.ErrorMessage); msg != "" {
			return msg
		}
		return "Recording failed"
	default:
		return "Not answered yet"
	}
}
