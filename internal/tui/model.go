package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"linkshare/internal/client"
)

// Controller is the intent surface the model drives. *client.Session
// satisfies it.
type Controller interface {
	SubmitCode(text string)
	SendContent(text string)
	RequestDisconnect()
}

type phase int

const (
	phaseConnecting phase = iota
	phaseToken
	phasePaired
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	tokenStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")).Padding(0, 1)
	senderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
	linkStyle   = lipgloss.NewStyle().Underline(true)
)

// Model is the bubbletea state for one client session.
type Model struct {
	ctrl      Controller
	highlight *Highlighter

	phase    phase
	token    client.Token
	shareURL string
	qr       string

	entries  []string
	notice   string
	errText  string
	quitting bool

	input      textinput.Model
	transcript viewport.Model
	width      int
	height     int
	ready      bool
}

// NewModel constructs the initial model. The controller must outlive the
// program.
func NewModel(ctrl Controller, highlightStyle string) Model {
	input := textinput.New()
	input.Placeholder = "enter a share code"
	input.CharLimit = 256
	input.Focus()

	return Model{
		ctrl:      ctrl,
		highlight: NewHighlighter(highlightStyle),
		phase:     phaseConnecting,
		input:     input,
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			if m.ctrl != nil {
				m.ctrl.RequestDisconnect()
			}
			return m, tea.Quit

		case tea.KeyEnter:
			text := m.input.Value()
			m.input.Reset()
			if m.ctrl == nil {
				return m, nil
			}
			if m.phase == phasePaired {
				m.ctrl.SendContent(text)
			} else {
				m.ctrl.SubmitCode(text)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeTranscript()
		return m, nil

	case tokenMsg:
		m.phase = phaseToken
		m.token = msg.token
		m.shareURL = msg.shareURL
		m.qr = RenderQR(msg.shareURL)
		m.input.Placeholder = "enter a share code"
		return m, nil

	case connectingMsg:
		m.phase = phaseConnecting
		m.token = ""
		m.shareURL = ""
		m.qr = ""
		return m, nil

	case pairedMsg:
		m.phase = phasePaired
		m.input.Placeholder = "type a snippet and press enter"
		m.resizeTranscript()
		return m, nil

	case entryMsg:
		m.entries = append(m.entries, m.formatEntry(msg.entry))
		m.transcript.SetContent(strings.Join(m.entries, "\n"))
		m.transcript.GotoBottom()
		return m, nil

	case errorMsg:
		m.errText = fmt.Sprintf("Code not found: %s", msg.code)
		return m, nil

	case noticeMsg:
		m.notice = msg.text
		return m, nil

	case clearErrorsMsg:
		m.errText = ""
		m.notice = ""
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.transcript, cmd = m.transcript.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.quitting {
		return "bye\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("linkshare"))
	b.WriteString("\n\n")

	switch m.phase {
	case phaseConnecting:
		b.WriteString("connecting...\n")

	case phaseToken:
		b.WriteString("Your code: ")
		b.WriteString(tokenStyle.Render(string(m.token)))
		b.WriteString("\n")
		if m.shareURL != "" {
			b.WriteString("Share link: ")
			b.WriteString(linkStyle.Render(m.shareURL))
			b.WriteString("\n")
		}
		if m.qr != "" {
			b.WriteString(m.qr)
		}
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")

	case phasePaired:
		b.WriteString("Connected!\n\n")
		b.WriteString(m.transcript.View())
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	if m.errText != "" {
		b.WriteString(errorStyle.Render(m.errText))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("enter: submit | esc: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m *Model) resizeTranscript() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	// Leave room for the header, input line, and footer.
	h := m.height - 8
	if h < 3 {
		h = 3
	}
	if !m.ready {
		m.transcript = viewport.New(m.width, h)
		m.transcript.SetContent(strings.Join(m.entries, "\n"))
		m.ready = true
		return
	}
	m.transcript.Width = m.width
	m.transcript.Height = h
}

func (m Model) formatEntry(entry client.TranscriptEntry) string {
	label := senderStyle.Render(entry.Sender)
	body := entry.Content
	if m.highlight != nil {
		body = m.highlight.Highlight(body)
	}
	return fmt.Sprintf("%s  %s\n%s", label, helpStyle.Render(entry.At.Format("15:04:05")), body)
}
