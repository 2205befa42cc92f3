package pawrun

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToGo(t *testing.T) {
	v := record(
		"name", str("paw"),
		"n", num(3),
		"ok", BoolValue(true, UnknownSpan),
		"tags", ListValue([]Value{str("a"), NothingValue(UnknownSpan)}, UnknownSpan),
	)
	assert.Equal(t, map[string]any{
		"name": "paw",
		"n":    int64(3),
		"ok":   true,
		"tags": []any{"a", nil},
	}, ToGo(v))

	t.Run("error becomes a record", func(t *testing.T) {
		got := ToGo(ErrorValue(&StructuredError{Kind: ErrorEvaluation, Message: "boom", Label: "here"}, UnknownSpan))
		m, ok := got.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "boom", m["msg"])
		assert.Equal(t, "here", m["label"])
	})
}

func TestFromGo(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int", 7, int64(7)},
		{"uint8", uint8(7), int64(7)},
		{"huge uint64", uint64(math.MaxUint64), float64(math.MaxUint64)},
		{"float32", float32(0.5), 0.5},
		{"json integer", json.Number("12"), int64(12)},
		{"json float", json.Number("1.5"), 1.5},
		{"bytes", []byte("raw"), "raw"},
		{"list", []any{1, "x"}, []any{int64(1), "x"}},
		{"any keys", map[any]any{1: true}, map[string]any{"1": true}},
		{"fallback", struct{}{}, "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToGo(FromGo(tt.in, UnknownSpan)))
		})
	}

	t.Run("map keys are sorted", func(t *testing.T) {
		v := FromGo(map[string]any{"b": 1, "a": 2, "c": 3}, UnknownSpan)
		assert.Equal(t, []string{"a", "b", "c"}, v.Record.Columns())
	})

	t.Run("span is carried", func(t *testing.T) {
		span := Span{Start: 1, End: 4}
		v := FromGo([]any{"x"}, span)
		assert.Equal(t, span, v.Span)
		assert.Equal(t, span, v.List[0].Span)
	})
}

func TestJSON_KeepsColumnOrder(t *testing.T) {
	v, err := decodeJSON(`{"z": 1, "a": [true, null, 2.5], "m": {"y": "s", "b": {}}}`, UnknownSpan)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, v.Record.Columns())

	var buf bytes.Buffer
	require.NoError(t, encodeJSON(&buf, v, "", 0))
	assert.Equal(t, `{"z":1,"a":[true,null,2.5],"m":{"y":"s","b":{}}}`, buf.String())

	t.Run("indented", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, encodeJSON(&buf, record("a", ListValue([]Value{num(1)}, UnknownSpan)), "  ", 0))
		assert.Equal(t, "{\n  \"a\": [\n    1\n  ]\n}", buf.String())
	})

	t.Run("whole floats keep a fraction", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, encodeJSON(&buf, FloatValue(2, UnknownSpan), "", 0))
		assert.Equal(t, "2.0", buf.String())
	})

	t.Run("infinity is refused", func(t *testing.T) {
		var buf bytes.Buffer
		err := encodeJSON(&buf, FloatValue(math.Inf(1), UnknownSpan), "", 0)
		assert.True(t, IsKind(err, ErrorEvaluation))
	})

	t.Run("trailing data", func(t *testing.T) {
		_, err := decodeJSON(`1 2`, UnknownSpan)
		assert.EqualError(t, err, "unexpected data after the JSON value")
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := decodeJSON(`{"a": `, UnknownSpan)
		assert.Error(t, err)
	})
}

func TestYAML_KeepsColumnOrder(t *testing.T) {
	v := record("z", num(1), "a", ListValue([]Value{str("x")}, UnknownSpan))
	n, err := toYAMLNode(v)
	require.NoError(t, err)

	back, err := fromYAMLNode(n, UnknownSpan)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, back.Record.Columns())
	assert.Equal(t, ToGo(v), ToGo(back))

	t.Run("closures are refused", func(t *testing.T) {
		_, err := toYAMLNode(ClosureValue(&Closure{}, UnknownSpan))
		assert.True(t, IsKind(err, ErrorEvaluation))
	})
}

func TestTOML(t *testing.T) {
	doc := "title = \"paw\"\n\n[server]\nport = 8080\nhost = \"localhost\"\n"
	v, err := decodeTOML(doc, UnknownSpan)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "server"}, v.Record.Columns())
	server, ok := v.Record.Get("server")
	require.True(t, ok)
	assert.Equal(t, []string{"port", "host"}, server.Record.Columns())
	assert.Equal(t, map[string]any{"port": int64(8080), "host": "localhost"}, ToGo(server))

	t.Run("encode needs a record", func(t *testing.T) {
		_, err := encodeTOML(num(1))
		assert.Error(t, err)
		out, err := encodeTOML(record("a", num(1)))
		require.NoError(t, err)
		assert.Equal(t, "a = 1\n", out)
	})
}
