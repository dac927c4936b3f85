// Package session owns the interview session lifecycle: start, finish, and
// history.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rbright/rehearse/internal/fault"
)

// ErrAlreadyFinished is returned by a second Finish of the same session.
var ErrAlreadyFinished = errors.New("interview already finished")

// Session is one interview attempt.
type Session struct {
	ID          string
	CreatedAt   time.Time
	FinishedAt  time.Time
	AnswerCount int
}

func (s Session) Finished() bool { return !s.FinishedAt.IsZero() }

// Status renders the history label for s.
func (s Session) Status() string {
	if s.Finished() {
		return "Completed"
	}
	return "In Progress"
}

// Store is the remote session collaborator.
type Store interface {
	StartInterview(ctx context.Context) (string, error)
	FinishInterview(ctx context.Context, sessionID string) error
	ListInterviews(ctx context.Context) ([]Session, error)
}

// Controller runs exactly one session per interview attempt.
type Controller struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	current   *Session
	finishing bool
}

func NewController(store Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{store: store, logger: logger, now: time.Now}
}

// Start opens the session. A second Start on the same controller is a
// conflict.
func (c *Controller) Start(ctx context.Context) (Session, error) {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return Session{}, fault.Conflict("start_interview", "interview already started")
	}
	// Reserve the slot so concurrent starts conflict.
	c.current = &Session{}
	c.mu.Unlock()

	id, err := c.store.StartInterview(ctx)
	if err != nil {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
		c.logger.Error("start interview failed", "error", err.Error())
		return Session{}, asServerError("start_interview", "Failed to start interview session", err)
	}

	s := Session{ID: id, CreatedAt: c.now()}
	c.mu.Lock()
	c.current = &s
	c.mu.Unlock()

	c.logger.Info("interview started", "session_id", id)
	return s, nil
}

// Current returns the active session, if started.
func (c *Controller) Current() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil || c.current.ID == "" {
		return Session{}, false
	}
	return *c.current, true
}

// Finish closes the session with answerCount answers. Failures are
// returned as-is and never retried.
func (c *Controller) Finish(ctx context.Context, answerCount int) (Session, error) {
	c.mu.Lock()
	switch {
	case c.current == nil || c.current.ID == "":
		c.mu.Unlock()
		return Session{}, fault.Conflict("finish_interview", "no interview in progress")
	case c.current.Finished():
		c.mu.Unlock()
		return Session{}, ErrAlreadyFinished
	case c.finishing:
		c.mu.Unlock()
		return Session{}, fault.Conflict("finish_interview", "finish already in progress")
	}
	c.finishing = true
	id := c.current.ID
	c.mu.Unlock()

	err := c.store.FinishInterview(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.finishing = false
	if err != nil {
		c.logger.Error("finish interview failed", "session_id", id, "error", err.Error())
		return Session{}, asServerError("finish_interview", "Failed to finish interview", err)
	}
	c.current.FinishedAt = c.now()
	c.current.AnswerCount = answerCount
	c.logger.Info("interview finished", "session_id", id, "answers", answerCount)
	return *c.current, nil
}

// List returns past sessions ordered by creation time.
func (c *Controller) List(ctx context.Context) ([]Session, error) {
	sessions, err := c.store.ListInterviews(ctx)
	if err != nil {
		return nil, asServerError("list_interviews", "Failed to load interviews", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func asServerError(op, message string, err error) error {
	if _, ok := fault.KindOf(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fault.Wrap(fault.KindServer, op, message, err)
}
