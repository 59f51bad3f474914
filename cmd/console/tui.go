package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	interimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type assistantMsg string

type userTranscriptMsg string

type interimTranscriptMsg string

type statusMsg string

type line struct {
	speaker string
	text    string
}

type model struct {
	input   textinput.Model
	lines   []line
	interim string
	status  string
	width   int
	height  int

	// onSubmit delivers typed messages to the session loop.
	onSubmit func(text string)
	onQuit   func()
}

func newModel(onSubmit func(string), onQuit func()) model {
	input := textinput.New()
	input.Placeholder = "Type a message (or just talk)..."
	input.Focus()

	return model{
		input:    input,
		status:   "connecting",
		width:    80,
		height:   24,
		onSubmit: onSubmit,
		onQuit:   onQuit,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.onQuit()
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				m.lines = append(m.lines, line{speaker: "you", text: text})
				m.onSubmit(text)
				m.input.Reset()
			}
			return m, nil
		}

	case assistantMsg:
		m.lines = append(m.lines, line{speaker: "assistant", text: string(msg)})
		return m, nil

	case userTranscriptMsg:
		m.interim = ""
		m.lines = append(m.lines, line{speaker: "you", text: string(msg)})
		return m, nil

	case interimTranscriptMsg:
		m.interim = string(msg)
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(statusStyle.Render(fmt.Sprintf("session: %s", m.status)))
	b.WriteString("\n\n")

	visible := m.lines
	// Keep only what fits above the input line.
	if maxLines := m.height - 6; maxLines > 0 && len(visible) > maxLines {
		visible = visible[len(visible)-maxLines:]
	}

	for _, l := range visible {
		prefix := userStyle.Render("you: ")
		if l.speaker == "assistant" {
			prefix = assistantStyle.Render("assistant: ")
		}
		b.WriteString(wordwrap.String(prefix+l.text, m.width))
		b.WriteString("\n")
	}

	if m.interim != "" {
		b.WriteString(interimStyle.Render(wordwrap.String(m.interim+"...", m.width)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	return b.String()
}
