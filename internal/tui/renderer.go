// Package tui is the terminal surface for the session engine: a
// bubbletea program fed by renderer callbacks and driving user intents
// back into the session.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"linkshare/internal/client"
)

// sender is the slice of *tea.Program the renderer needs. Tests plug in
// a recording fake.
type sender interface {
	Send(msg tea.Msg)
}

// Messages delivered from the session's dispatch goroutine into the
// bubbletea event loop.
type (
	tokenMsg struct {
		token    client.Token
		shareURL string
	}
	connectingMsg  struct{}
	pairedMsg      struct{}
	entryMsg       struct{ entry client.TranscriptEntry }
	errorMsg       struct{ code string }
	noticeMsg      struct{ text string }
	clearErrorsMsg struct{}
)

// Renderer adapts the session's rendering contract onto a bubbletea
// program. Every callback turns into a message; the model owns all
// presentation state.
type Renderer struct {
	prog sender
}

// NewRenderer wraps a running program (or a test double).
func NewRenderer(prog sender) *Renderer {
	return &Renderer{prog: prog}
}

var _ client.Renderer = (*Renderer)(nil)

func (r *Renderer) ShowToken(token client.Token, shareURL string) {
	r.prog.Send(tokenMsg{token: token, shareURL: shareURL})
}

func (r *Renderer) ShowConnecting() {
	r.prog.Send(connectingMsg{})
}

func (r *Renderer) ShowPairedSurface() {
	r.prog.Send(pairedMsg{})
}

func (r *Renderer) ShowTranscriptEntry(entry client.TranscriptEntry) {
	r.prog.Send(entryMsg{entry: entry})
}

func (r *Renderer) ShowError(code string) {
	r.prog.Send(errorMsg{code: code})
}

func (r *Renderer) ShowNotice(text string) {
	r.prog.Send(noticeMsg{text: text})
}

func (r *Renderer) ClearErrors() {
	r.prog.Send(clearErrorsMsg{})
}
