package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tjfontaine/mcp-chat/internal/orchestrator"
	"github.com/tjfontaine/mcp-chat/internal/session"
)

type submitter interface {
	Submit(ctx context.Context, s *session.Session, prompt string) (*session.Reply, error)
}

type replyMsg struct {
	reply *session.Reply
	err   error
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#01cdfe")).Padding(0, 1)
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#05ffa1"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff71ce"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
	noticeStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#9ca3d8"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3d8"))
)

type line struct {
	label string
	style lipgloss.Style
	text  string
}

type model struct {
	bridge  submitter
	session *session.Session
	title   string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	lines    []line
	thinking bool
	width    int
}

func newModel(bridge submitter, s *session.Session, modelName string, tools int) model {
	ti := textinput.New()
	ti.Placeholder = "Ask me something about the weather or math..."
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		bridge:   bridge,
		session:  s,
		title:    fmt.Sprintf("MCP Chat · %s · %d tools", modelName, tools),
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		width:    80,
		lines: []line{{
			style: noticeStyle,
			text:  "Type a question and press enter. /reset clears the chat, /quit exits.",
		}},
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) ask(prompt string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.bridge.Submit(context.Background(), m.session, prompt)
		return replyMsg{reply: reply, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		// header, status line, input, help
		m.viewport.Height = max(msg.Height-4, 1)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		}

	case replyMsg:
		m.thinking = false
		switch {
		case msg.err != nil:
			m.lines = append(m.lines, line{label: "Assistant", style: errorStyle, text: "Error: " + msg.err.Error()})
		case msg.reply.Discarded:
		case msg.reply.Status == orchestrator.StatusFailed:
			m.lines = append(m.lines, line{label: "Assistant", style: errorStyle, text: msg.reply.Text})
		default:
			m.lines = append(m.lines, line{label: "Assistant", style: assistantStyle, text: msg.reply.Text})
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.thinking {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.thinking {
		return m, nil
	}
	m.input.Reset()

	switch text {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/reset":
		m.session.Reset()
		m.lines = []line{{style: noticeStyle, text: "Conversation cleared."}}
		m.refresh()
		return m, nil
	}

	m.lines = append(m.lines, line{label: "You", style: userStyle, text: text})
	m.thinking = true
	m.refresh()
	return m, tea.Batch(m.spinner.Tick, m.ask(text))
}

func (m *model) refresh() {
	wrap := lipgloss.NewStyle().Width(max(m.width-2, 10))
	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if l.label != "" {
			b.WriteString(l.style.Render(l.label+":") + "\n")
			b.WriteString(wrap.Render(l.text))
			continue
		}
		b.WriteString(l.style.Render(wrap.Render(l.text)))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	status := ""
	if m.thinking {
		status = m.spinner.View() + " Thinking..."
	}
	return strings.Join([]string{
		headerStyle.Render(m.title),
		m.viewport.View(),
		status,
		m.input.View(),
		helpStyle.Render("enter send · /reset clear · /quit or ctrl+c exit"),
	}, "\n")
}
