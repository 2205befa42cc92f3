package pawrun

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectColorSupport(t *testing.T) {
	tests := []struct {
		term      string
		colorTerm string
		supported bool
		depth     int
	}{
		{"dumb", "truecolor", false, 0},
		{"xterm", "truecolor", true, 24},
		{"xterm-24bit", "", true, 24},
		{"xterm-256color", "", true, 256},
		{"custom", "yes", true, 16},
		{"screen", "", true, 16},
		{"unknown", "", false, 0},
		{"", "", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.term+"/"+tt.colorTerm, func(t *testing.T) {
			supported, depth := detectColorSupport(tt.term, tt.colorTerm)
			assert.Equal(t, tt.supported, supported)
			assert.Equal(t, tt.depth, depth)
		})
	}
}

func TestDetectTerminalCapabilities_Redirected(t *testing.T) {
	env := map[string]string{"TERM": "xterm-256color", "COLORTERM": "truecolor"}
	caps := DetectTerminalCapabilities(&bytes.Buffer{}, func(k string) string { return env[k] })
	assert.Equal(t, "xterm-256color", caps.TermType)
	assert.False(t, caps.IsTerminal)
	assert.False(t, caps.SupportsColor)
	assert.Equal(t, 80, caps.Width)

	t.Run("no environment", func(t *testing.T) {
		caps := DetectTerminalCapabilities(&bytes.Buffer{}, nil)
		assert.Equal(t, "unknown", caps.TermType)
	})
}

func TestUseColor(t *testing.T) {
	tty := &TerminalCapabilities{IsTerminal: true, SupportsColor: true}
	pipe := NewTerminalCapabilities()
	tests := []struct {
		name string
		mode ColorMode
		caps *TerminalCapabilities
		want bool
	}{
		{"always on a pipe", ColorAlways, pipe, true},
		{"never on a tty", ColorNever, tty, false},
		{"auto on a tty", ColorAuto, tty, true},
		{"auto on a pipe", ColorAuto, pipe, false},
		{"unset behaves as auto", "", tty, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, useColor(tt.mode, tt.caps))
		})
	}
}
