package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rbright/rehearse/internal/answer"
	"github.com/rbright/rehearse/internal/fault"
	"github.com/rbright/rehearse/internal/fsm"
	"github.com/rbright/rehearse/internal/interview"
)

const (
	defaultWidth  = 80
	sidebarWidth  = 28
	progressWidth = 20
)

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = defaultWidth
	}

	sections := []string{
		m.renderHeader(),
		dividerStyle.Render(strings.Repeat("─", width)),
		m.renderBody(width),
		dividerStyle.Render(strings.Repeat("─", width)),
	}
	if m.notice != "" {
		if m.noticeErr {
			sections = append(sections, errorStyle.Render(m.notice))
		} else {
			sections = append(sections, readyStyle.Render(m.notice))
		}
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	header := titleStyle.Render("REHEARSE")
	if m.state.Session.ID != "" {
		header += dimStyle.Render(" · session " + m.state.Session.ID)
	}
	if m.state.Phase == interview.PhaseActive {
		header += "  " + renderProgress(m.state)
	}
	if m.state.Recording >= 0 {
		header += "  " + recordingStyle.Render("● REC") + " " + renderLevelMeter(m.micLevel)
	}
	return header
}

func (m Model) renderBody(width int) string {
	switch m.state.Phase {
	case interview.PhaseIdle, interview.PhaseLoading:
		return dimStyle.Render("  Generating questions…")
	case interview.PhaseFailed:
		msg := "Something went wrong."
		if m.state.Err != nil {
			msg = fault.UserMessage(m.state.Err)
		}
		return errorStyle.Render("  "+msg) + "\n" + dimStyle.Render("  Press r to retry or q to quit.")
	case interview.PhaseClosed:
		return dimStyle.Render("  Interview closed.")
	}

	if len(m.state.Questions) == 0 {
		return dimStyle.Render("  No questions were generated for this CV.")
	}
	if m.finished != nil || m.state.Phase == interview.PhaseFinished {
		return m.renderFinished()
	}

	sidebar := m.renderSidebar()
	detailWidth := max(20, width-sidebarWidth-3)
	detail := m.renderDetail(detailWidth)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(sidebarWidth).Render(sidebar),
		dividerStyle.Render(" │ "),
		detail,
	)
}

func (m Model) renderSidebar() string {
	lines := make([]string, 0, len(m.state.Questions))
	for i := range m.state.Questions {
		marker := statusMarker(m.state.Answers[i])
		label := fmt.Sprintf("%s Question %d", marker, i+1)
		if i == m.state.Current {
			lines = append(lines, selectedStyle.Render("> "+label))
			continue
		}
		lines = append(lines, "  "+label)
	}
	return strings.Join(lines, "\n")
}

func statusMarker(a answer.Answer) string {
	switch a.Status {
	case fsm.StateRecording:
		return recordingStyle.Render("●")
	case fsm.StateProcessing, fsm.StateUploading:
		return busyStyle.Render("…")
	case fsm.StateReady:
		return readyStyle.Render("✓")
	case fsm.StateError:
		return errorStyle.Render("✗")
	default:
		return dimStyle.Render("○")
	}
}

func (m Model) renderDetail(width int) string {
	q := m.state.Questions[m.state.Current]
	a, _ := m.state.CurrentAnswer()

	lines := []string{dimStyle.Render(m.state.Progress.Label())}
	for _, l := range wrapText(q.Text, width) {
		lines = append(lines, questionStyle.Render(l))
	}
	lines = append(lines, "", renderStatus(a))

	switch {
	case a.Editing:
		lines = append(lines, "")
		for _, l := range wrapText(a.Draft+"▌", width) {
			lines = append(lines, draftStyle.Render(l))
		}
	case a.Answered():
		lines = append(lines, "")
		lines = append(lines, wrapText(a.Transcript, width)...)
	}
	return strings.Join(lines, "\n")
}

func renderStatus(a answer.Answer) string {
	line := interview.StatusLine(a)
	switch a.Status {
	case fsm.StateRecording:
		return recordingStyle.Render(line)
	case fsm.StateProcessing, fsm.StateUploading:
		return busyStyle.Render(line)
	case fsm.StateReady:
		return readyStyle.Render(line)
	case fsm.StateError:
		return errorStyle.Render(line) + dimStyle.Render(" (press space to re-record)")
	default:
		return dimStyle.Render(line)
	}
}

func (m Model) renderFinished() string {
	count := m.state.Progress.Answered
	if m.finished != nil {
		count = m.finished.AnswerCount
	}
	return readyStyle.Render(fmt.Sprintf("  Interview finished. %d of %d questions answered.", count, len(m.state.Questions))) +
		"\n" + dimStyle.Render("  Press c to copy the transcript or q to quit.")
}

func renderProgress(state interview.State) string {
	filled := int(state.Progress.Fraction() * progressWidth)
	bar := readyStyle.Render(strings.Repeat("█", filled)) + levelOffStyle.Render(strings.Repeat("░", progressWidth-filled))
	label := fmt.Sprintf(" %d/%d", state.Progress.Answered, state.Progress.Total)
	if state.Progress.InFlight > 0 {
		label += fmt.Sprintf(" (%d transcribing)", state.Progress.InFlight)
	}
	return bar + dimStyle.Render(label)
}

func renderLevelMeter(level float64) string {
	const barLen = 8
	filled := int(level * barLen * 4)
	if filled > barLen {
		filled = barLen
	}

	var bar strings.Builder
	for i := 0; i < barLen; i++ {
		switch {
		case i >= filled:
			bar.WriteString(levelOffStyle.Render("░"))
		case float64(i)/barLen > 0.6:
			bar.WriteString(levelHotStyle.Render("█"))
		default:
			bar.WriteString(levelOnStyle.Render("█"))
		}
	}
	return bar.String()
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return footerKeyStyle.Render(k) + footerDescStyle.Render(" "+desc)
	}

	var parts []string
	switch {
	case m.confirm:
		parts = append(parts, footerDescStyle.Render("Finish the interview?"), key("y", "Yes"), key("any", "No"))
	case m.editing():
		parts = append(parts, key("ctrl+s", "Save"), key("esc", "Cancel"))
	case m.state.Phase == interview.PhaseActive && m.finished == nil:
		if m.state.Recording >= 0 {
			parts = append(parts, key("space", "Stop"))
		} else {
			parts = append(parts, key("space", "Record"))
		}
		parts = append(parts, key("n/p", "Next/Prev"), key("e", "Edit"), key("c", "Copy"), key("f", "Finish"), key("q", "Quit"))
	case m.state.Phase == interview.PhaseFailed:
		parts = append(parts, key("r", "Retry"), key("q", "Quit"))
	default:
		parts = append(parts, key("c", "Copy"), key("q", "Quit"))
	}
	return strings.Join(parts, "  ")
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case current == "":
				current = word
			case lipgloss.Width(current)+1+lipgloss.Width(word) <= width:
				current += " " + word
			default:
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
