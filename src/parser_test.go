package pawrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, source string) (*WorkingSet, *Block) {
	t.Helper()
	state, _ := newTestState(t)
	ws := NewWorkingSet(state)
	return ws, Parse(ws, source)
}

func TestParse_Diagnostics(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		warnings int
		errors   int
		compile  int
		message  string
		help     string
	}{
		{name: "clean", source: "range 1 5 | first 2"},
		{name: "unknown command", source: "eccho 1", errors: 1, message: "Command `eccho` not found", help: "did you mean 'echo'?"},
		{name: "deprecated command", source: "[a] | str collect", warnings: 1, message: "Deprecated command", help: "use `str join` instead"},
		{name: "unknown flag", source: "sort --sideways", errors: 1, message: "Unknown flag"},
		{name: "missing argument", source: "split row", errors: 1, message: "Missing required positional argument"},
		{name: "extra argument", source: "length 1", errors: 1, message: "Extra positional argument"},
		{name: "break outside loop", source: "break", compile: 1, message: "`break` used outside of a loop"},
		{name: "return outside command", source: "return 1", compile: 1},
		{name: "constant division by zero", source: "1 / 0", compile: 1, message: "Division by zero"},
		{name: "break inside loop", source: "for x in [1 2] { break }"},
		{name: "shadowing def", source: "def echo [] { 1 }", warnings: 1, message: "Command shadows an existing command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws, block := parseSource(t, tt.source)
			require.NotNil(t, block)
			assert.Len(t, ws.ParseWarnings, tt.warnings)
			assert.Len(t, ws.ParseErrors, tt.errors)
			assert.Len(t, ws.CompileErrors, tt.compile)

			var first *StructuredError
			switch {
			case tt.errors > 0:
				first = ws.ParseErrors[0]
				assert.Equal(t, ErrorParse, first.Kind)
			case tt.warnings > 0:
				first = ws.ParseWarnings[0]
				assert.Equal(t, ErrorParseWarning, first.Kind)
			case tt.compile > 0:
				first = ws.CompileErrors[0]
				assert.Equal(t, ErrorCompile, first.Kind)
			}
			if tt.message != "" {
				require.NotNil(t, first)
				assert.Equal(t, tt.message, first.Message)
			}
			if tt.help != "" {
				assert.Equal(t, tt.help, first.Help)
			}
			if first != nil {
				assert.NotNil(t, first.Span)
			}
		})
	}
}

func TestParse_Statements(t *testing.T) {
	_, block := parseSource(t, "echo 1; echo 2\necho 3 | describe")
	require.Len(t, block.Pipelines, 3)
	assert.Len(t, block.Pipelines[2].Elements, 2)
}

func TestParse_DeltaHoldsNewDeclarations(t *testing.T) {
	ws, _ := parseSource(t, "def a [] { 1 }; def b [x: int] { $x }; a")
	delta := ws.Render()
	assert.Equal(t, 2, delta.NumDecls())
	assert.False(t, delta.Merged())
}
