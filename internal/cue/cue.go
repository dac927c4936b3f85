// Package cue announces recording state changes with audio cues and
// replaceable desktop notifications.
package cue

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/config"
)

const (
	activeTimeoutMS = 300000
	readyTimeoutMS  = 2500
	dispatchTimeout = 400 * time.Millisecond
)

// Notifier implements the recording indicator port.
type Notifier struct {
	cfg      config.CueConfig
	logger   *slog.Logger
	messages messages
	emit     func(context.Context, cueKind) error

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
	sounds         sync.WaitGroup

	queueMu sync.Mutex
	tail    chan struct{}
	notices sync.WaitGroup
}

func New(cfg config.CueConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: messagesFromEnv(),
	}
	n.emit = func(ctx context.Context, kind cueKind) error {
		return emitCue(ctx, kind, n.cfg)
	}
	return n
}

// RecordingStarted plays the start cue and shows the recording notice.
func (n *Notifier) RecordingStarted(ctx context.Context, questionIndex int) {
	n.playCue(cueStart)
	n.show(ctx, activeTimeoutMS, question(n.messages.recording, questionIndex), "")
}

// RecordingStopped plays the stop cue and shows the transcribing notice.
func (n *Notifier) RecordingStopped(ctx context.Context, questionIndex int) {
	n.playCue(cueStop)
	n.show(ctx, activeTimeoutMS, question(n.messages.processing, questionIndex), "")
}

func (n *Notifier) AnswerReady(ctx context.Context, questionIndex int) {
	n.playCue(cueComplete)
	n.show(ctx, readyTimeoutMS, question(n.messages.ready, questionIndex), "")
}

func (n *Notifier) AnswerFailed(ctx context.Context, questionIndex int, message string) {
	n.playCue(cueError)
	if strings.TrimSpace(message) == "" {
		message = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	n.show(ctx, timeout, n.messages.errorText, question("Question %d: ", questionIndex)+message)
}

// Close dismisses the active notification and waits for queued cues.
func (n *Notifier) Close(ctx context.Context) {
	if n.cfg.Enable {
		n.enqueue(ctx, n.dismiss)
	}
	n.notices.Wait()
	n.sounds.Wait()
}

func (n *Notifier) show(ctx context.Context, timeoutMS int, summary, body string) {
	if !n.cfg.Enable {
		return
	}
	n.enqueue(ctx, func(ctx context.Context) error {
		n.mu.Lock()
		replaceID := n.notificationID
		n.mu.Unlock()

		appName := strings.TrimSpace(n.cfg.DesktopAppName)
		if appName == "" {
			appName = "rehearse"
		}

		id, err := desktopNotify(ctx, appName, replaceID, summary, body, timeoutMS)
		if err != nil {
			return err
		}

		n.mu.Lock()
		n.notificationID = id
		n.mu.Unlock()
		return nil
	})
}

func (n *Notifier) dismiss(ctx context.Context) error {
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// enqueue runs fn in the background after every earlier notification
// operation has finished. Replacement ids depend on that order.
func (n *Notifier) enqueue(ctx context.Context, fn func(context.Context) error) {
	done := make(chan struct{})
	n.queueMu.Lock()
	prev := n.tail
	n.tail = done
	n.queueMu.Unlock()

	n.notices.Add(1)
	go func() {
		defer n.notices.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		n.run(ctx, fn)
	}()
}

// run executes a notification operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("cue notification failed", "error", err.Error())
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	n.sounds.Add(1)
	go func() {
		defer n.sounds.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := n.emit(context.Background(), kind); err != nil {
			n.logger.Debug("audio cue failed", "cue", kind.String(), "error", err.Error())
		}
	}()
}
