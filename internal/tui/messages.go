package tui

import "github.com/rbright/rehearse/internal/session"

// beganMsg reports the outcome of interview bootstrap.
type beganMsg struct{ err error }

// changedMsg signals that interview state moved.
type changedMsg struct{}

// actionMsg carries the result of a user action run off the event loop.
type actionMsg struct {
	action string
	err    error
}

type finishedMsg struct {
	session session.Session
	err     error
}

type levelTickMsg struct{}

// clearNoticeMsg clears the notice it was scheduled for.
type clearNoticeMsg struct{ seq int }
