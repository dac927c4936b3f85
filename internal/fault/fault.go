// Package fault defines the error kinds shared by the interview client.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindPermission  Kind = "permission"
	KindDevice      Kind = "device"
	KindUnsupported Kind = "unsupported"
	KindTimeout     Kind = "timeout"
	KindConflict    Kind = "conflict"
	KindNetwork     Kind = "network"
	KindServer      Kind = "server"
	KindProcessing  Kind = "processing"
)

// Sentinels match any *Error of the same kind through errors.Is.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrPermission  = &Error{Kind: KindPermission}
	ErrDevice      = &Error{Kind: KindDevice}
	ErrUnsupported = &Error{Kind: KindUnsupported}
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrNetwork     = &Error{Kind: KindNetwork}
	ErrServer      = &Error{Kind: KindServer}
	ErrProcessing  = &Error{Kind: KindProcessing}
)

// Error is a classified failure. Message is safe to show to the user.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validation(op, message string) *Error { return New(KindValidation, op, message) }

func Conflict(op, message string) *Error { return New(KindConflict, op, message) }

func Processing(op, message string) *Error { return New(KindProcessing, op, message) }

func Server(op, message string, status int) *Error {
	return &Error{Kind: KindServer, Op: op, Message: message, Status: status}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// UserMessage renders err for display. Classified errors carry their own
// message; media kinds fall back to actionable guidance.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return err.Error()
	}
	if fe.Message != "" {
		return fe.Message
	}
	switch fe.Kind {
	case KindPermission:
		return "Microphone access denied. Allow access to the audio server and retry."
	case KindDevice:
		return "No microphone found. Connect a device and retry."
	case KindUnsupported:
		return "Audio recording is not supported in this environment."
	case KindTimeout:
		return "Request timed out. Please try again."
	case KindNetwork:
		return "Network error. Check the backend address and retry."
	case KindProcessing:
		return "Failed to process audio recording"
	default:
		return string(fe.Kind) + " error"
	}
}

// PageLevel reports whether err blocks the whole interview screen rather
// than a single answer.
func PageLevel(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	switch kind {
	case KindValidation, KindPermission, KindDevice, KindUnsupported, KindTimeout, KindServer, KindNetwork:
		return true
	default:
		return false
	}
}
