package pawrun

import (
	"io"
	"strings"

	"golang.org/x/term"
)

// TerminalCapabilities describes the writer a call prints to
type TerminalCapabilities struct {
	TermType      string // e.g., "xterm-256color"
	IsTerminal    bool   // true if the writer is an interactive terminal
	SupportsColor bool
	ColorDepth    int // 0=none, 16=basic, 256=256color, 24=truecolor

	// Screen dimensions
	Width  int // columns
	Height int // rows
}

// NewTerminalCapabilities creates a capabilities struct with defaults for
// redirected output
func NewTerminalCapabilities() *TerminalCapabilities {
	return &TerminalCapabilities{
		TermType: "unknown",
		Width:    80,
		Height:   24,
	}
}

// DetectTerminalCapabilities inspects w. TERM and COLORTERM are read
// through getenv so a call sees its own environment snapshot.
func DetectTerminalCapabilities(w io.Writer, getenv func(string) string) *TerminalCapabilities {
	caps := NewTerminalCapabilities()
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	if t := getenv("TERM"); t != "" {
		caps.TermType = t
	}

	fd, ok := terminalFd(w)
	caps.IsTerminal = ok && term.IsTerminal(fd)
	if caps.IsTerminal {
		if width, height, err := term.GetSize(fd); err == nil && width > 0 && height > 0 {
			caps.Width = width
			caps.Height = height
		}
		caps.SupportsColor, caps.ColorDepth = detectColorSupport(caps.TermType, getenv("COLORTERM"))
	}
	return caps
}

type fdWriter interface {
	Fd() uintptr
}

func terminalFd(w io.Writer) (int, bool) {
	f, ok := w.(fdWriter)
	if !ok {
		return 0, false
	}
	return int(f.Fd()), true
}

// detectColorSupport checks if terminal supports color and returns depth
func detectColorSupport(termType, colorTerm string) (supportsColor bool, depth int) {
	termLower := strings.ToLower(termType)
	colorTerm = strings.ToLower(colorTerm)

	if termLower == "dumb" {
		return false, 0
	}
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		return true, 24
	}
	if strings.Contains(termLower, "truecolor") || strings.Contains(termLower, "24bit") {
		return true, 24
	}
	if strings.Contains(termLower, "256color") {
		return true, 256
	}
	if colorTerm != "" {
		return true, 16
	}

	colorTerms := []string{
		"xterm", "linux", "screen", "tmux", "rxvt", "konsole",
		"gnome", "putty", "cygwin", "mintty", "eterm", "alacritty",
		"kitty", "iterm", "vt100", "ansi",
	}
	for _, t := range colorTerms {
		if strings.Contains(termLower, t) {
			return true, 16
		}
	}
	return false, 0
}

// useColor resolves the session's colour mode against the detected terminal
func useColor(mode ColorMode, caps *TerminalCapabilities) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	return caps.IsTerminal && caps.SupportsColor
}
