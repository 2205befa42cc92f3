package pawrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func record(pairs ...any) Value {
	rec := NewRecord()
	for i := 0; i+1 < len(pairs); i += 2 {
		rec.Set(pairs[i].(string), pairs[i+1].(Value))
	}
	return RecordValue(rec, UnknownSpan)
}

func str(s string) Value { return StringValue(s, UnknownSpan) }
func num(i int64) Value  { return IntValue(i, UnknownSpan) }

func TestTableRenderer_Modes(t *testing.T) {
	table := ListValue([]Value{record("a", num(1), "b", str("x"))}, UnknownSpan)
	list := ListValue([]Value{str("a"), str("bb")}, UnknownSpan)

	tests := []struct {
		name  string
		mode  TableMode
		value Value
		want  string
	}{
		{
			name:  "basic table",
			mode:  TableBasic,
			value: table,
			want: "+---+---+---+\n" +
				"| # | a | b |\n" +
				"+---+---+---+\n" +
				"| 0 | 1 | x |\n" +
				"+---+---+---+\n",
		},
		{
			name:  "rounded table",
			mode:  TableRounded,
			value: table,
			want: "╭───┬───┬───╮\n" +
				"│ # │ a │ b │\n" +
				"├───┼───┼───┤\n" +
				"│ 0 │ 1 │ x │\n" +
				"╰───┴───┴───╯\n",
		},
		{
			name:  "psql list",
			mode:  TablePsql,
			value: list,
			want:  " 0 | a\n 1 | bb\n",
		},
		{
			name:  "markdown record",
			mode:  TableMarkdown,
			value: record("name", str("paw")),
			want:  "| name | paw |\n",
		},
		{
			name:  "unknown mode uses rounded",
			mode:  TableMode("sparkly"),
			value: record("k", str("v")),
			want:  "╭───┬───╮\n│ k │ v │\n╰───┴───╯\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &tableRenderer{mode: tt.mode, precision: -1}
			assert.Equal(t, tt.want, r.Render(tt.value))
		})
	}
}

func TestTableRenderer_Scalars(t *testing.T) {
	r := newTableRenderer(&SessionConfig{TableMode: TableRounded, FloatPrecision: 2}, nil)
	assert.Equal(t, "5\n", r.Render(num(5)))
	assert.Equal(t, "3.14\n", r.Render(FloatValue(3.14159, UnknownSpan)))
	assert.Equal(t, "", r.Render(NothingValue(UnknownSpan)))
	assert.Equal(t, "", r.Render(ListValue(nil, UnknownSpan)))
	assert.Equal(t, "Error: boom\n", r.Render(ErrorValue(&StructuredError{Message: "boom"}, UnknownSpan)))
}

func TestTableRenderer_Cells(t *testing.T) {
	r := &tableRenderer{mode: TableBasic, precision: -1}
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"nested table", ListValue([]Value{record("a", num(1)), record("a", num(2))}, UnknownSpan), "[table 2 rows]"},
		{"nested list", ListValue([]Value{num(1)}, UnknownSpan), "[list 1 items]"},
		{"nested record", record("a", num(1), "b", num(2)), "{record 2 fields}"},
		{"multi-line string", str("one\ntwo"), "one two"},
		{"float", FloatValue(2, UnknownSpan), "2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.cell(tt.value))
		})
	}
}

func TestTableRenderer_FitsWidth(t *testing.T) {
	wide := ListValue([]Value{record("a", num(1), "b", str("x"), "c", str("y"))}, UnknownSpan)

	t.Run("drops trailing columns", func(t *testing.T) {
		r := &tableRenderer{mode: TableBasic, precision: -1, maxWidth: 13}
		want := "+---+---+---+\n" +
			"| # | a | … |\n" +
			"+---+---+---+\n" +
			"| 0 | 1 | … |\n" +
			"+---+---+---+\n"
		assert.Equal(t, want, r.Render(wide))
	})

	t.Run("unlimited width", func(t *testing.T) {
		r := &tableRenderer{mode: TableBasic, precision: -1}
		assert.Contains(t, r.Render(wide), "| # | a | b | c |")
	})

	t.Run("terminal width applies", func(t *testing.T) {
		caps := &TerminalCapabilities{IsTerminal: true, Width: 40}
		r := newTableRenderer(DefaultSessionConfig(), caps)
		assert.Equal(t, 40, r.maxWidth)
		redirected := newTableRenderer(DefaultSessionConfig(), NewTerminalCapabilities())
		assert.Equal(t, 0, redirected.maxWidth)
	})
}

func TestDisplayWidth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"日本", 4},
		{"é", 1},
		{"a\u200bb", 2},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, displayWidth(tt.in))
		})
	}
}

func TestTruncateToWidth(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "he…"},
		{"hello", 1, "…"},
		{"hello", 0, ""},
		{"日本語", 4, "日…"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, truncateToWidth(tt.in, tt.width))
		})
	}
}
