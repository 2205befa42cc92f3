package pawrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommands(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   any
	}{
		{"each", "[1 2 3] | each {|x| $x * 2 }", []any{int64(2), int64(4), int64(6)}},
		{"where closure", "[1 2 3] | where {|x| $x != 2 }", []any{int64(1), int64(3)}},
		{"where row condition", "[{a: 1} {a: 5}] | where a > 2", []any{map[string]any{"a": int64(5)}}},
		{"get cell path", "{a: {b: 1}} | get a.b", int64(1)},
		{"math sum", "[1 2 3] | math sum", int64(6)},
		{"str join", "[a b c] | str join ','", "a,b,c"},
		{"str replace all", "'a-b-c' | str replace -a '-' '+'", "a+b+c"},
		{"to json", "{a: 1} | to json -r", `{"a":1}`},
		{"json keeps key order", `'{"b": 1, "a": 2}' | from json | to json -r`, `{"b":1,"a":2}`},
		{"title case", "'hello world' | str title-case", "Hello World"},
		{"camel case", "'some-text here' | str camel-case", "someTextHere"},
		{"snake case", "'helloWorld' | str snake-case", "hello_world"},
		{"kebab case", "'HTTPServer ready' | str kebab-case", "http-server-ready"},
		{"format number", "1234567 | format number", "1,234,567"},
		{"format number decimals", "1234.5 | format number -d 1", "1,234.5"},
		{"markdown to html", "'# Title' | to html", "<h1>Title</h1>\n"},
		{"help describes one command", "help str join | get name", "str join"},
	}
	r := newTestRunner(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := r.eval(t, tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ToGo(v))
		})
	}
}

func TestCommands_Errors(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		message string
	}{
		{"bad locale", "'a' | str title-case --locale '!!'", "Invalid locale"},
		{"format number needs a number", "'x' | format number", "Type mismatch"},
		{"help for a missing command", "help frobnicate", "Command not found"},
	}
	r := newTestRunner(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.eval(t, tt.source)
			serr := requireStructured(t, err)
			assert.Equal(t, tt.message, serr.Message)
		})
	}
}

func TestHelpFind(t *testing.T) {
	r := newTestRunner(t, nil)
	v, err := r.eval(t, "help --find title-case")
	require.NoError(t, err)
	rows, ok := ToGo(v).([]any)
	require.True(t, ok)
	var names []string
	for _, row := range rows {
		names = append(names, row.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "str title-case")
}

func TestHighlight(t *testing.T) {
	r := newTestRunner(t, nil)
	v, err := r.eval(t, "'echo 1' | highlight")
	require.NoError(t, err)
	assert.Contains(t, v.Str, "echo")
	assert.Contains(t, v.Str, "\x1b[")
}

func TestToMarkdown(t *testing.T) {
	table := ListValue([]Value{record("a", num(1), "b", str("x|y"))}, UnknownSpan)
	assert.Equal(t, "| a | b |\n| --- | --- |\n| 1 | x\\|y |\n", toMarkdown(table))
	assert.Equal(t, "- 1\n- two\n", toMarkdown(ListValue([]Value{num(1), str("two")}, UnknownSpan)))
	assert.Equal(t, "| key | value |\n| --- | --- |\n| k | v |\n", toMarkdown(record("k", str("v"))))
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"hello world", []string{"hello", "world"}},
		{"helloWorld", []string{"hello", "World"}},
		{"HTTPServer", []string{"HTTP", "Server"}},
		{"snake_case-and kebab", []string{"snake", "case", "and", "kebab"}},
		{"v2Release", []string{"v2", "Release"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitWords(tt.in))
		})
	}
}
