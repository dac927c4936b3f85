// Package questions loads the ordered interview question set for a CV.
package questions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rbright/rehearse/internal/fault"
)

// DefaultTimeout bounds a single question request.
const DefaultTimeout = 60 * time.Second

// MinCVLength is the shortest trimmed CV text accepted.
const MinCVLength = 20

// ErrSuperseded is returned by a Load that a newer Load replaced.
var ErrSuperseded = errors.New("question load superseded")

type Question struct {
	Index int
	Text  string
}

// Generator is the backend collaborator that produces raw question text.
type Generator interface {
	GenerateQuestions(ctx context.Context, cvText string) ([]string, error)
}

var validate = validator.New()

type cvInput struct {
	Text string `validate:"required,min=20"`
}

// ValidateCV rejects CV text that is missing or too short to generate from.
func ValidateCV(text string) error {
	input := cvInput{Text: strings.TrimSpace(text)}
	if err := validate.Struct(input); err != nil {
		if input.Text == "" {
			return fault.Wrap(fault.KindValidation, "validate cv", "No CV detected. Please upload your CV first.", err)
		}
		return fault.Wrap(fault.KindValidation, "validate cv",
			fmt.Sprintf("CV text is too short (minimum %d characters).", MinCVLength), err)
	}
	return nil
}

// Loader issues question requests. Only the most recent Load may deliver
// results; starting a new one cancels the previous request.
type Loader struct {
	generator Generator
	timeout   time.Duration

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

func NewLoader(generator Generator, timeout time.Duration) *Loader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Loader{generator: generator, timeout: timeout}
}

func (l *Loader) Timeout() time.Duration { return l.timeout }

// Load validates cvText, then requests questions under the loader deadline.
// An empty result is valid.
func (l *Loader) Load(ctx context.Context, cvText string) ([]Question, error) {
	if err := ValidateCV(cvText); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.generation++
	gen := l.generation
	l.cancel = cancel
	l.mu.Unlock()

	raw, err := l.generator.GenerateQuestions(reqCtx, strings.TrimSpace(cvText))

	l.mu.Lock()
	current := gen == l.generation
	if current {
		l.cancel = nil
	}
	l.mu.Unlock()

	if !current {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, classify(ctx, reqCtx, err)
	}
	return index(raw), nil
}

// Cancel aborts the in-flight load, if any.
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.generation++
}

func classify(parent, reqCtx context.Context, err error) error {
	if _, ok := fault.KindOf(err); ok && !errors.Is(err, context.Canceled) {
		return err
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fault.Wrap(fault.KindTimeout, "generate_questions", "Request timed out. Please try again.", err)
	}
	if _, ok := fault.KindOf(err); ok {
		return err
	}
	return fault.Wrap(fault.KindServer, "generate_questions", "Failed to generate questions", err)
}

// index keeps every server position; question_idx on upload refers to it.
func index(raw []string) []Question {
	out := make([]Question, len(raw))
	for i, text := range raw {
		out[i] = Question{Index: i, Text: strings.TrimSpace(text)}
	}
	return out
}
