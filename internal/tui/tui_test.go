package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"linkshare/internal/client"
)

type fakeSender struct {
	msgs []tea.Msg
}

func (f *fakeSender) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

type fakeController struct {
	codes       []string
	contents    []string
	disconnects int
}

func (f *fakeController) SubmitCode(text string)  { f.codes = append(f.codes, text) }
func (f *fakeController) SendContent(text string) { f.contents = append(f.contents, text) }
func (f *fakeController) RequestDisconnect()      { f.disconnects++ }

func TestRendererForwardsCallbacks(t *testing.T) {
	t.Parallel()

	sink := &fakeSender{}
	r := NewRenderer(sink)

	r.ShowToken("AB12CD", "https://share.example/#AB12CD")
	r.ShowConnecting()
	r.ShowPairedSurface()
	r.ShowTranscriptEntry(client.TranscriptEntry{Sender: "XY34ZW", Content: "hi", At: time.Now()})
	r.ShowError("NOPE42")
	r.ShowNotice("Sent!")
	r.ClearErrors()

	want := []tea.Msg{
		tokenMsg{token: "AB12CD", shareURL: "https://share.example/#AB12CD"},
		connectingMsg{},
		pairedMsg{},
		nil, // entryMsg checked separately below
		errorMsg{code: "NOPE42"},
		noticeMsg{text: "Sent!"},
		clearErrorsMsg{},
	}
	if len(sink.msgs) != len(want) {
		t.Fatalf("got %d msgs, want %d", len(sink.msgs), len(want))
	}
	for i, w := range want {
		if w == nil {
			if _, ok := sink.msgs[i].(entryMsg); !ok {
				t.Fatalf("msg[%d] = %T, want entryMsg", i, sink.msgs[i])
			}
			continue
		}
		if sink.msgs[i] != w {
			t.Fatalf("msg[%d] = %#v, want %#v", i, sink.msgs[i], w)
		}
	}
}

func TestModelEnterRoutesByPhase(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	m := NewModel(ctrl, "monokai")

	typed, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ab12cd")})
	m = typed.(Model)
	submitted, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = submitted.(Model)

	if len(ctrl.codes) != 1 || ctrl.codes[0] != "ab12cd" {
		t.Fatalf("codes = %v, want [ab12cd]", ctrl.codes)
	}
	if len(ctrl.contents) != 0 {
		t.Fatalf("content sent before pairing: %v", ctrl.contents)
	}

	paired, _ := m.Update(pairedMsg{})
	m = paired.(Model)
	typed2, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("snippet")})
	m = typed2.(Model)
	sent, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = sent.(Model)

	if len(ctrl.contents) != 1 || ctrl.contents[0] != "snippet" {
		t.Fatalf("contents = %v, want [snippet]", ctrl.contents)
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if ctrl.disconnects != 1 {
		t.Fatalf("disconnects = %d, want 1", ctrl.disconnects)
	}
	if cmd == nil {
		t.Fatalf("esc should produce a quit command")
	}
}

func TestModelViewShowsTokenAndErrors(t *testing.T) {
	t.Parallel()

	m := NewModel(&fakeController{}, "monokai")

	updated, _ := m.Update(tokenMsg{token: "AB12CD", shareURL: "https://share.example/#AB12CD"})
	m = updated.(Model)

	view := m.View()
	if !strings.Contains(view, "AB12CD") {
		t.Fatalf("view missing token: %q", view)
	}
	if !strings.Contains(view, "https://share.example/#AB12CD") {
		t.Fatalf("view missing share link")
	}

	withErr, _ := m.Update(errorMsg{code: "NOPE42"})
	m = withErr.(Model)
	if !strings.Contains(m.View(), "Code not found: NOPE42") {
		t.Fatalf("view missing error text")
	}

	cleared, _ := m.Update(clearErrorsMsg{})
	m = cleared.(Model)
	if strings.Contains(m.View(), "Code not found") {
		t.Fatalf("error text survived clear")
	}
}

func TestRenderQR(t *testing.T) {
	t.Parallel()

	if got := RenderQR(""); got != "" {
		t.Fatalf("empty URL should render nothing, got %q", got)
	}
	if got := RenderQR("https://share.example/#AB12CD"); got == "" {
		t.Fatalf("QR render came back empty")
	}
}

func TestHighlighterPassthrough(t *testing.T) {
	t.Parallel()

	h := NewHighlighter("monokai")
	if got := h.Highlight(""); got != "" {
		t.Fatalf("empty content should pass through, got %q", got)
	}
	if got := h.Highlight("fmt.Println(42)"); got == "" {
		t.Fatalf("highlight dropped content")
	}
}
