// Package tui renders the interview screen with Bubble Tea.
package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/interview"
	"github.com/rbright/rehearse/internal/session"
)

const (
	levelInterval = 80 * time.Millisecond
	noticeTTL     = 4 * time.Second
)

// Interview is the orchestrator surface the screen drives.
type Interview interface {
	Begin(ctx context.Context, cvText string) error
	Retry(ctx context.Context) error
	Toggle(ctx context.Context) error
	Next() int
	Previous() int
	BeginEdit() error
	UpdateDraft(text string) error
	SaveEdit() error
	CancelEdit() error
	Finish(ctx context.Context) (session.Session, error)
	CopyTranscript(ctx context.Context) error
	Snapshot() interview.State
	Changes() <-chan struct{}
}

// Model is the root bubbletea model for the interview screen.
type Model struct {
	ctx    context.Context
	iv     Interview
	cvText string
	level  func() float64

	state     interview.State
	micLevel  float64
	finishing bool
	confirm   bool
	finished  *session.Session

	notice    string
	noticeErr bool
	noticeSeq int

	width  int
	height int
}

// New builds the screen. level may be nil when no preview meter exists.
func New(ctx context.Context, iv Interview, cvText string, level func() float64) Model {
	return Model{
		ctx:    ctx,
		iv:     iv,
		cvText: cvText,
		level:  level,
		state:  iv.Snapshot(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		beginCmd(m.ctx, m.iv, m.cvText),
		waitChangeCmd(m.iv.Changes()),
		levelTickCmd(),
	)
}

func beginCmd(ctx context.Context, iv Interview, cvText string) tea.Cmd {
	return func() tea.Msg {
		return beganMsg{err: iv.Begin(ctx, cvText)}
	}
}

func retryCmd(ctx context.Context, iv Interview) tea.Cmd {
	return func() tea.Msg {
		return beganMsg{err: iv.Retry(ctx)}
	}
}

// waitChangeCmd blocks until the interview signals a change.
func waitChangeCmd(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

func levelTickCmd() tea.Cmd {
	return tea.Tick(levelInterval, func(time.Time) tea.Msg { return levelTickMsg{} })
}

func actionCmd(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{action: action, err: fn()}
	}
}

func finishCmd(ctx context.Context, iv Interview) tea.Cmd {
	return func() tea.Msg {
		s, err := iv.Finish(ctx)
		return finishedMsg{session: s, err: err}
	}
}

func clearNoticeCmd(seq int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg { return clearNoticeMsg{seq: seq} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case beganMsg:
		m.state = m.iv.Snapshot()
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			return m, m.setNotice(fault.UserMessage(msg.err), true)
		}
		return m, nil

	case changedMsg:
		m.state = m.iv.Snapshot()
		return m, waitChangeCmd(m.iv.Changes())

	case levelTickMsg:
		if m.level != nil {
			m.micLevel = m.level()
		}
		return m, levelTickCmd()

	case actionMsg:
		m.state = m.iv.Snapshot()
		if msg.err != nil {
			return m, m.setNotice(fault.UserMessage(msg.err), true)
		}
		if msg.action == "copy" {
			return m, m.setNotice("Transcript copied to clipboard", false)
		}
		return m, nil

	case finishedMsg:
		m.finishing = false
		m.state = m.iv.Snapshot()
		if msg.err != nil {
			return m, m.setNotice(fault.UserMessage(msg.err), true)
		}
		s := msg.session
		m.finished = &s
		return m, m.setNotice("Interview finished", false)

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
			m.noticeErr = false
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) setNotice(text string, isErr bool) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
	return clearNoticeCmd(m.noticeSeq)
}

func (m Model) editing() bool {
	a, ok := m.state.CurrentAnswer()
	return ok && a.Editing
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		return m, tea.Quit
	}
	if m.editing() {
		return m.handleEditKey(msg)
	}
	if m.confirm {
		m.confirm = false
		if msg.String() == KeyConfirmYes {
			m.finishing = true
			return m, finishCmd(m.ctx, m.iv)
		}
		return m, nil
	}

	switch msg.String() {
	case KeyQuit:
		return m, tea.Quit

	case KeyRetry:
		if m.state.Phase == interview.PhaseFailed {
			return m, retryCmd(m.ctx, m.iv)
		}
		return m, nil
	}

	if m.state.Phase != interview.PhaseActive || m.finishing {
		return m, nil
	}

	switch msg.String() {
	case KeySpace:
		return m, actionCmd("toggle", func() error { return m.iv.Toggle(m.ctx) })

	case KeyNext, KeyRight:
		m.iv.Next()
		m.state = m.iv.Snapshot()
		return m, nil

	case KeyPrevious, KeyLeft:
		m.iv.Previous()
		m.state = m.iv.Snapshot()
		return m, nil

	case KeyEdit:
		err := m.iv.BeginEdit()
		m.state = m.iv.Snapshot()
		if err != nil {
			return m, m.setNotice(fault.UserMessage(err), true)
		}
		return m, nil

	case KeyCopy:
		return m, actionCmd("copy", func() error { return m.iv.CopyTranscript(m.ctx) })

	case KeyFinish:
		if m.state.Recording >= 0 {
			return m, m.setNotice("Stop recording before finishing.", true)
		}
		m.confirm = true
		return m, nil
	}

	return m, nil
}

func (m Model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a, _ := m.state.CurrentAnswer()
	draft := a.Draft

	var err error
	switch msg.String() {
	case KeyCancel:
		err = m.iv.CancelEdit()
	case KeySave:
		err = m.iv.SaveEdit()
	case KeyBackspace:
		if runes := []rune(draft); len(runes) > 0 {
			err = m.iv.UpdateDraft(string(runes[:len(runes)-1]))
		}
	case KeyEnter:
		err = m.iv.UpdateDraft(draft + "\n")
	default:
		switch msg.Type {
		case tea.KeyRunes:
			err = m.iv.UpdateDraft(draft + string(msg.Runes))
		case tea.KeySpace:
			err = m.iv.UpdateDraft(draft + " ")
		}
	}

	m.state = m.iv.Snapshot()
	if err != nil {
		return m, m.setNotice(fault.UserMessage(err), true)
	}
	return m, nil
}
