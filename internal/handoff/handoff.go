// Package handoff passes extracted CV text from `upload` to the next
// interview run. A slot holds one value and is read at most once.
package handoff

import (
	"context"
	"errors"
	"sync"
)

// ErrEmpty is returned by Take when the slot holds nothing.
var ErrEmpty = errors.New("no CV text available; run `rehearse upload <file>` first")

const DefaultKey = "rehearse:cv_extracted_text"

// Slot is a single-value, single-consumer store.
type Slot interface {
	Put(ctx context.Context, text string) error
	Take(ctx context.Context) (string, error)
}

// MemorySlot keeps the value in process memory.
type MemorySlot struct {
	mu    sync.Mutex
	value string
	set   bool
}

func (s *MemorySlot) Put(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value, s.set = text, true
	return nil
}

func (s *MemorySlot) Take(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return "", ErrEmpty
	}
	v := s.value
	s.value, s.set = "", false
	return v, nil
}
