package tui

import (
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
)

// Highlighter colorizes received snippets for the terminal. The language
// is never part of the protocol, so it is inferred from the content.
type Highlighter struct {
	formatter chroma.Formatter
	style     *chroma.Style
}

// NewHighlighter builds a terminal256 highlighter with the given style
// name, falling back to a sane default when it is unknown.
func NewHighlighter(styleName string) *Highlighter {
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Monokai
	}

	return &Highlighter{formatter: formatter, style: style}
}

// Highlight returns the snippet with ANSI coloring. On any failure the
// original text comes back untouched.
func (h *Highlighter) Highlight(content string) string {
	if h == nil || strings.TrimSpace(content) == "" {
		return content
	}

	lexer := lexers.Analyse(content)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return content
	}

	var out strings.Builder
	if err := h.formatter.Format(&out, h.style, iterator); err != nil {
		return content
	}
	return out.String()
}
