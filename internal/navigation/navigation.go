// Package navigation tracks the current question and summarizes progress.
package navigation

import (
	"fmt"
	"sync"
)

// Navigator holds the current question index clamped to the question set.
// Moving never touches recordings or uploads.
type Navigator struct {
	mu      sync.Mutex
	current int
	total   int
}

func New(total int) *Navigator {
	n := &Navigator{}
	n.SetTotal(total)
	return n
}

// SetTotal replaces the question count and re-clamps the current index.
func (n *Navigator) SetTotal(total int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if total < 0 {
		total = 0
	}
	n.total = total
	n.current = n.clamp(n.current)
}

func (n *Navigator) Next() int { return n.move(1) }

func (n *Navigator) Previous() int { return n.move(-1) }

// Jump moves to idx, clamped to the valid range.
func (n *Navigator) Jump(idx int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = n.clamp(idx)
	return n.current
}

func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Navigator) Total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.total
}

func (n *Navigator) move(delta int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.current = n.clamp(n.current + delta)
	return n.current
}

func (n *Navigator) clamp(idx int) int {
	upper := n.total - 1
	if upper < 0 {
		upper = 0
	}
	switch {
	case idx < 0:
		return 0
	case idx > upper:
		return upper
	default:
		return idx
	}
}

// Progress is an aggregate view of the interview.
type Progress struct {
	Current  int
	Total    int
	Answered int
	InFlight int
}

// Label renders "Question n of total".
func (p Progress) Label() string {
	if p.Total == 0 {
		return "No questions"
	}
	return fmt.Sprintf("Question %d of %d", p.Current+1, p.Total)
}

// Fraction returns answered/total in [0,1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Answered) / float64(p.Total)
}

func (p Progress) Complete() bool {
	return p.Total > 0 && p.Answered >= p.Total
}

func (p Progress) String() string {
	s := fmt.Sprintf("%s · %d/%d answered", p.Label(), p.Answered, p.Total)
	if p.InFlight > 0 {
		s += fmt.Sprintf(" · %d in progress", p.InFlight)
	}
	return s
}
