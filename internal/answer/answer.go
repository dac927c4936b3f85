// Package answer holds per-question answer state for one interview session.
package answer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/fsm"
)

// ErrStaleAttempt is returned when a write carries an attempt token that
// has since been superseded by a newer recording of the same question.
var ErrStaleAttempt = errors.New("stale answer attempt")

// Clip is one finalized recording.
type Clip struct {
	Ref    string
	Format string
	Data   []byte
}

type Answer struct {
	QuestionIndex int
	Status        fsm.State
	Clip          *Clip
	Transcript    string
	HasTranscript bool
	ErrorMessage  string
	Editing       bool
	Draft         string
	Attempt       uint64
}

// Answered reports whether the answer has a usable transcript.
func (a Answer) Answered() bool {
	return a.Status == fsm.StateReady && a.HasTranscript
}

// Board owns every Answer in a session. Each Answer is created lazily and
// only written by operations naming its index; at most one is Recording.
type Board struct {
	mu        sync.Mutex
	answers   map[int]*Answer
	recording int
	attempts  uint64
	onChange  func(Answer)
}

func NewBoard() *Board {
	return &Board{answers: map[int]*Answer{}, recording: -1}
}

// OnChange registers fn to receive a copy of each answer after it changes.
// fn runs outside the board lock.
func (b *Board) OnChange(fn func(Answer)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

func (b *Board) Get(idx int) Answer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a, ok := b.answers[idx]; ok {
		return *a
	}
	return Answer{QuestionIndex: idx, Status: fsm.StateIdle}
}

func (b *Board) Snapshot() []Answer {
	b.mu.Lock()
	out := make([]Answer, 0, len(b.answers))
	for _, a := range b.answers {
		out = append(out, *a)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].QuestionIndex < out[j].QuestionIndex })
	return out
}

// Recording returns the index currently recording, if any.
func (b *Board) Recording() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recording, b.recording >= 0
}

func (b *Board) Answered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, a := range b.answers {
		if a.Answered() {
			n++
		}
	}
	return n
}

func (b *Board) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, a := range b.answers {
		if fsm.Busy(a.Status) {
			n++
		}
	}
	return n
}

// Reset drops every answer. Used when a new session begins.
func (b *Board) Reset() {
	b.mu.Lock()
	b.answers = map[int]*Answer{}
	b.recording = -1
	b.mu.Unlock()
}

// Start begins a new attempt for idx and returns its token. Any prior clip,
// transcript and error on idx are discarded.
func (b *Board) Start(idx int) (uint64, error) {
	if idx < 0 {
		return 0, fault.Validation("start recording", fmt.Sprintf("invalid question index %d", idx))
	}

	b.mu.Lock()
	if b.recording >= 0 {
		current := b.recording
		b.mu.Unlock()
		return 0, fault.Conflict("start recording", fmt.Sprintf("question %d is already recording", current+1))
	}

	a := b.ensure(idx)
	next, err := fsm.Transition(a.Status, fsm.EventStart)
	if err != nil {
		b.mu.Unlock()
		return 0, fault.Conflict("start recording", fmt.Sprintf("question %d is busy (%s)", idx+1, a.Status))
	}

	b.attempts++
	a.Attempt = b.attempts
	a.Status = next
	a.Clip = nil
	a.Transcript = ""
	a.HasTranscript = false
	a.ErrorMessage = ""
	a.Editing = false
	a.Draft = ""
	b.recording = idx

	attempt := a.Attempt
	b.notifyLocked(a)
	return attempt, nil
}

// Stop moves a recording answer to Processing and frees the recording slot.
func (b *Board) Stop(idx int, attempt uint64) error {
	return b.apply(idx, attempt, fsm.EventStop, func(a *Answer) {
		if b.recording == idx {
			b.recording = -1
		}
	})
}

// Uploading attaches the finalized clip and marks the upload in flight.
func (b *Board) Uploading(idx int, attempt uint64, clip Clip) error {
	return b.apply(idx, attempt, fsm.EventUpload, func(a *Answer) {
		c := clip
		a.Clip = &c
	})
}

func (b *Board) Transcribed(idx int, attempt uint64, transcript string) error {
	return b.apply(idx, attempt, fsm.EventTranscribed, func(a *Answer) {
		a.Transcript = transcript
		a.HasTranscript = true
	})
}

func (b *Board) Fail(idx int, attempt uint64, message string) error {
	return b.apply(idx, attempt, fsm.EventFail, func(a *Answer) {
		a.ErrorMessage = message
		if b.recording == idx {
			b.recording = -1
		}
	})
}

func (b *Board) BeginEdit(idx int) error {
	return b.edit(idx, func(a *Answer) error {
		if a.Status != fsm.StateReady {
			return fault.Conflict("edit transcript", "only a transcribed answer can be edited")
		}
		if !a.Editing {
			a.Editing = true
			a.Draft = a.Transcript
		}
		return nil
	})
}

func (b *Board) UpdateDraft(idx int, text string) error {
	return b.edit(idx, func(a *Answer) error {
		if !a.Editing {
			return fault.Conflict("edit transcript", "answer is not being edited")
		}
		a.Draft = text
		return nil
	})
}

// SaveEdit replaces the transcript with the draft. The clip is not
// re-transcribed.
func (b *Board) SaveEdit(idx int) error {
	return b.edit(idx, func(a *Answer) error {
		if !a.Editing {
			return fault.Conflict("save transcript", "answer is not being edited")
		}
		a.Transcript = a.Draft
		a.HasTranscript = true
		a.Editing = false
		a.Draft = ""
		return nil
	})
}

func (b *Board) CancelEdit(idx int) error {
	return b.edit(idx, func(a *Answer) error {
		if !a.Editing {
			return nil
		}
		a.Editing = false
		a.Draft = ""
		return nil
	})
}

func (b *Board) apply(idx int, attempt uint64, event fsm.Event, mutate func(*Answer)) error {
	b.mu.Lock()
	a, ok := b.answers[idx]
	if !ok || a.Attempt != attempt {
		b.mu.Unlock()
		return fmt.Errorf("question %d %s: %w", idx, event, ErrStaleAttempt)
	}

	next, err := fsm.Transition(a.Status, event)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	a.Status = next
	mutate(a)
	b.notifyLocked(a)
	return nil
}

func (b *Board) edit(idx int, mutate func(*Answer) error) error {
	b.mu.Lock()
	a, ok := b.answers[idx]
	if !ok {
		b.mu.Unlock()
		return fault.Conflict("edit transcript", "question has no answer yet")
	}
	if err := mutate(a); err != nil {
		b.mu.Unlock()
		return err
	}
	b.notifyLocked(a)
	return nil
}

func (b *Board) ensure(idx int) *Answer {
	a, ok := b.answers[idx]
	if !ok {
		a = &Answer{QuestionIndex: idx, Status: fsm.StateIdle}
		b.answers[idx] = a
	}
	return a
}

// notifyLocked releases b.mu before invoking the change hook.
func (b *Board) notifyLocked(a *Answer) {
	snapshot := *a
	fn := b.onChange
	b.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}
