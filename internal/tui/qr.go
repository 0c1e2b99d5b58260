package tui

import (
	"strings"

	"github.com/mdp/qrterminal/v3"
)

// RenderQR draws the share link as a half-block QR code suitable for
// scanning straight off the terminal.
func RenderQR(shareURL string) string {
	if strings.TrimSpace(shareURL) == "" {
		return ""
	}

	var b strings.Builder
	qrterminal.GenerateWithConfig(shareURL, qrterminal.Config{
		Level:          qrterminal.L,
		Writer:         &b,
		HalfBlocks:     true,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		QuietZone:      1,
	})
	return b.String()
}
