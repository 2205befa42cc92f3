package pawrun

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRunner struct {
	*Runner
	out  *bytes.Buffer
	diag *bytes.Buffer
}

func newTestRunner(t *testing.T, env map[string]string) *testRunner {
	t.Helper()
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	r := New(&Config{
		Output:    out,
		ErrOutput: diag,
		Host:      &StaticHost{Dir: "/", Env: env},
	})
	return &testRunner{Runner: r, out: out, diag: diag}
}

// eval runs source with no input and collects the result
func (r *testRunner) eval(t *testing.T, source string) (Value, error) {
	t.Helper()
	return r.evalWith(t, source, EmptyPipeline(), Overrides{})
}

func (r *testRunner) evalWith(t *testing.T, source string, input PipelineData, overrides Overrides) (Value, error) {
	t.Helper()
	out, err := r.Evaluate(source, input, overrides)
	if err != nil {
		return Value{}, err
	}
	return out.IntoValue(UnknownSpan), nil
}

func requireStructured(t *testing.T, err error) *StructuredError {
	t.Helper()
	require.Error(t, err)
	serr, ok := err.(*StructuredError)
	require.True(t, ok, "expected *StructuredError, got %T", err)
	return serr
}

func TestEvaluate_SingleStatement(t *testing.T) {
	tests := []struct {
		source string
		want   interface{}
	}{
		{"echo 1", int64(1)},
		{"echo 'hello'", "hello"},
		{"echo 1.5", 1.5},
		{"echo true", true},
		{"echo 1 2", []interface{}{int64(1), int64(2)}},
		{"1 + 2 * 3", int64(7)},
		{"[3 1 2] | sort", []interface{}{int64(1), int64(2), int64(3)}},
		{"range 1 5 | first 2", []interface{}{int64(1), int64(2)}},
		{"'a,b' | split row ','", []interface{}{"a", "b"}},
	}
	r := newTestRunner(t, nil)
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			v, err := r.eval(t, tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ToGo(v))
		})
	}
}

func TestEvaluate_EmptySource(t *testing.T) {
	r := newTestRunner(t, nil)
	out, err := r.Evaluate("", EmptyPipeline(), Overrides{})
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
}

func TestEvaluate_InputFeedsFirstPipeline(t *testing.T) {
	r := newTestRunner(t, nil)
	input := NewValuePipeline(FromGo([]interface{}{1, 2, 3}, UnknownSpan))
	v, err := r.evalWith(t, "math sum", input, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), ToGo(v))

	t.Run("later pipelines do not see the input", func(t *testing.T) {
		input := NewValuePipeline(StringValue("abc", UnknownSpan))
		v, err := r.evalWith(t, "str length; describe", input, Overrides{})
		require.NoError(t, err)
		assert.Equal(t, "nothing", ToGo(v))
	})
}

func TestEvaluate_StagesRunInOrder(t *testing.T) {
	r := newTestRunner(t, nil)
	_, err := r.eval(t, "print (range 1 5 | first 2)")
	require.NoError(t, err)
	text := r.out.String()
	one, two := strings.Index(text, "1"), strings.Index(text, "2")
	require.GreaterOrEqual(t, one, 0)
	require.GreaterOrEqual(t, two, 0)
	assert.Less(t, one, two)
	assert.NotContains(t, text, "3")

	r.out.Reset()
	_, err = r.eval(t, "print a; print b; print c")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", r.out.String())
}

func TestEvaluate_ErrorStyleOverride(t *testing.T) {
	r := newTestRunner(t, nil)

	t.Run("invalid style is fatal before parsing", func(t *testing.T) {
		_, err := r.evalWith(t, "print reached", EmptyPipeline(), StringOverrides("", "not-a-real-style"))
		serr := requireStructured(t, err)
		assert.Equal(t, ErrorConfigOverride, serr.Kind)
		assert.Empty(t, r.out.String())
	})

	t.Run("invalid style wins over garbage in the source", func(t *testing.T) {
		_, err := r.evalWith(t, "frobnicate ((", EmptyPipeline(), StringOverrides("", "not-a-real-style"))
		assert.True(t, IsKind(err, ErrorConfigOverride))
	})

	t.Run("valid styles", func(t *testing.T) {
		for _, style := range []string{"fancy", "plain", "short", "PLAIN"} {
			v, err := r.evalWith(t, "echo 1", EmptyPipeline(), StringOverrides("", style))
			require.NoError(t, err, style)
			assert.Equal(t, int64(1), ToGo(v))
		}
	})

	t.Run("style reaches the session config", func(t *testing.T) {
		v, err := r.evalWith(t, "config show | get error_style", EmptyPipeline(), StringOverrides("", "short"))
		require.NoError(t, err)
		assert.Equal(t, "short", ToGo(v))
	})
}

func TestEvaluate_RenderingModeOverride(t *testing.T) {
	r := newTestRunner(t, nil)

	t.Run("invalid mode falls back to the default", func(t *testing.T) {
		v, err := r.evalWith(t, "config show | get table_mode", EmptyPipeline(), StringOverrides("not-a-real-mode", ""))
		require.NoError(t, err)
		assert.Equal(t, string(DefaultSessionConfig().TableMode), ToGo(v))
	})

	t.Run("valid mode applies", func(t *testing.T) {
		v, err := r.evalWith(t, "config show | get table_mode", EmptyPipeline(), StringOverrides("psql", ""))
		require.NoError(t, err)
		assert.Equal(t, "psql", ToGo(v))
	})

	t.Run("overrides do not outlive the call", func(t *testing.T) {
		v, err := r.eval(t, "config show | get table_mode")
		require.NoError(t, err)
		assert.Equal(t, string(DefaultSessionConfig().TableMode), ToGo(v))
	})
}

func TestEvaluate_EmbeddedError(t *testing.T) {
	r := newTestRunner(t, nil)

	t.Run("message is kept verbatim", func(t *testing.T) {
		_, err := r.eval(t, "error make {msg: 'disk on fire', label: 'here', help: 'call someone'}")
		serr := requireStructured(t, err)
		assert.Equal(t, ErrorEmbedded, serr.Kind)
		assert.Equal(t, "disk on fire", serr.Message)
		assert.Equal(t, "here", serr.Label)
		assert.Equal(t, "call someone", serr.Help)
		assert.NotNil(t, serr.Span)
	})

	t.Run("error in an earlier statement stops the block", func(t *testing.T) {
		_, err := r.eval(t, "error make {msg: 'first'}; print unreachable")
		serr := requireStructured(t, err)
		assert.Equal(t, "first", serr.Message)
		assert.NotContains(t, r.out.String(), "unreachable")
	})

	t.Run("nested causes survive", func(t *testing.T) {
		_, err := r.eval(t, "error make {msg: 'outer', inner: [{msg: 'cause', label: 'deep', inner: [{msg: 'root'}]}]}")
		serr := requireStructured(t, err)
		assert.Equal(t, "outer", serr.Message)
		require.Len(t, serr.Inner, 1)
		assert.Equal(t, "cause", serr.Inner[0].Message)
		assert.Equal(t, "deep", serr.Inner[0].Label)
		assert.Equal(t, ErrorEmbedded, serr.Inner[0].Kind)
		require.Len(t, serr.Inner[0].Inner, 1)
		assert.Equal(t, "root", serr.Inner[0].Inner[0].Message)
		assert.Contains(t, serr.Summary(), "caused by: cause")
	})

	t.Run("inner must hold records", func(t *testing.T) {
		_, err := r.eval(t, "error make {msg: 'outer', inner: [1]}")
		serr := requireStructured(t, err)
		assert.Equal(t, ErrorEvaluation, serr.Kind)
		assert.Equal(t, "Type mismatch", serr.Message)
	})

	t.Run("translator keeps the causes", func(t *testing.T) {
		embedded := newError(ErrorEmbedded, UnknownSpan, "outer", "")
		embedded.Inner = []*StructuredError{newError(ErrorEmbedded, UnknownSpan, "cause", "")}
		_, err := translateResult(NewErrorPipeline(embedded))
		serr := requireStructured(t, err)
		require.Len(t, serr.Inner, 1)
		assert.Equal(t, "cause", serr.Inner[0].Message)
	})

	t.Run("try catches it", func(t *testing.T) {
		v, err := r.eval(t, "try { error make {msg: 'boom'} } catch { |e| $e.msg }")
		require.NoError(t, err)
		assert.Equal(t, "boom", ToGo(v))
	})
}

func TestEvaluate_EnvironmentSnapshots(t *testing.T) {
	a := newTestRunner(t, map[string]string{"GREETING": "hello"})
	b := newTestRunner(t, map[string]string{"GREETING": "bonjour"})

	va, err := a.eval(t, "$env.GREETING")
	require.NoError(t, err)
	vb, err := b.eval(t, "$env.GREETING")
	require.NoError(t, err)
	assert.Equal(t, "hello", ToGo(va))
	assert.Equal(t, "bonjour", ToGo(vb))

	t.Run("cd stays in the call", func(t *testing.T) {
		dir := t.TempDir()
		v, err := a.eval(t, "cd '"+dir+"'; pwd")
		require.NoError(t, err)
		assert.Equal(t, filepath.Clean(dir), ToGo(v))
		v, err = a.eval(t, "pwd")
		require.NoError(t, err)
		assert.Equal(t, "/", ToGo(v))
	})

	t.Run("PATH becomes a list", func(t *testing.T) {
		r := newTestRunner(t, map[string]string{"PATH": "/bin:/usr/bin"})
		v, err := r.eval(t, "$env.PATH | length")
		require.NoError(t, err)
		assert.Equal(t, int64(2), ToGo(v))
	})

	t.Run("relative PWD is replaced by the cwd", func(t *testing.T) {
		r := newTestRunner(t, map[string]string{"PWD": "relative/dir"})
		v, err := r.eval(t, "$env.PWD")
		require.NoError(t, err)
		assert.Equal(t, "/", ToGo(v))
	})
}

func TestEvaluate_NoStateLeaksBetweenCalls(t *testing.T) {
	r := newTestRunner(t, nil)
	const source = "def twice [x] { $x * 2 }; twice 21"
	first, err := r.eval(t, source)
	require.NoError(t, err)
	second, err := r.eval(t, source)
	require.NoError(t, err)
	assert.Equal(t, ToGo(first), ToGo(second))
	assert.Equal(t, int64(42), ToGo(second))

	_, err = r.eval(t, "twice 21")
	assert.Error(t, err, "a command defined in one call must not exist in the next")
}

func TestEvaluate_ConcurrentCalls(t *testing.T) {
	r := newTestRunner(t, nil)
	var wg sync.WaitGroup
	results := make([]interface{}, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := r.Evaluate("range 1 10 | each { |x| $x * $x } | math sum", EmptyPipeline(), Overrides{})
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = ToGo(out.IntoValue(UnknownSpan))
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, int64(385), results[i])
	}
}

func TestEvaluate_ParseErrorBoundary(t *testing.T) {
	t.Run("statements before the garbage run", func(t *testing.T) {
		r := newTestRunner(t, nil)
		_, err := r.eval(t, "print before; frobnicate; print after")
		serr := requireStructured(t, err)
		assert.Equal(t, ErrorEvaluation, serr.Kind)
		assert.Equal(t, "Encountered garbage", serr.Message)
		require.Len(t, serr.Inner, 1)
		assert.Equal(t, ErrorParse, serr.Inner[0].Kind)
		assert.Equal(t, "before\n", r.out.String())
		assert.Contains(t, r.diag.String(), "frobnicate")
	})

	t.Run("garbage in a branch not taken", func(t *testing.T) {
		r := newTestRunner(t, nil)
		v, err := r.eval(t, "if false { frobnicate } else { echo 2 }")
		require.NoError(t, err)
		assert.Equal(t, int64(2), ToGo(v))
		assert.Contains(t, r.diag.String(), "frobnicate")
	})

	t.Run("compile errors fail only when reached", func(t *testing.T) {
		r := newTestRunner(t, nil)
		v, err := r.eval(t, "if false { 1 / 0 } else { 3 }")
		require.NoError(t, err)
		assert.Equal(t, int64(3), ToGo(v))

		_, err = r.eval(t, "1 / 0")
		serr := requireStructured(t, err)
		assert.Equal(t, "Division by zero", serr.Message)
	})

	t.Run("warnings are advisory", func(t *testing.T) {
		r := newTestRunner(t, nil)
		v, err := r.eval(t, "[a b] | str collect '-'")
		require.NoError(t, err)
		assert.Equal(t, "a-b", ToGo(v))
		assert.Contains(t, r.diag.String(), "Deprecated command")
	})
}

func TestRunner_FormatError(t *testing.T) {
	r := newTestRunner(t, nil)
	const source = "error make {msg: 'boom'}"
	_, err := r.Evaluate(source, EmptyPipeline(), Overrides{})
	require.Error(t, err)

	assert.Equal(t, "Error: boom", r.FormatError(err, source, StringOverrides("", "short")))
	plain := r.FormatError(err, source, StringOverrides("", "plain"))
	assert.True(t, strings.HasPrefix(plain, "Error: boom"), plain)
	assert.Contains(t, plain, "line 1")
}

func TestRunner_Commands(t *testing.T) {
	r := newTestRunner(t, nil)

	info, ok := r.Describe("str join")
	require.True(t, ok)
	assert.Equal(t, CategoryStrings, info.Category)
	assert.NotEmpty(t, info.Examples)

	_, ok = r.Describe("frobnicate")
	assert.False(t, ok)

	var names []string
	for _, c := range r.Commands() {
		names = append(names, c.Name)
	}
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "print")
	assert.Contains(t, names, "highlight")
}

func TestRunner_RegisterCommand(t *testing.T) {
	r := newTestRunner(t, nil)
	require.NoError(t, r.RegisterHandler("double", "Doubles its input.", func(ctx *Context, input PipelineData) (PipelineData, error) {
		return eachValue(ctx, input, func(v Value) (Value, error) {
			n, err := v.AsInt()
			if err != nil {
				return Value{}, err
			}
			return IntValue(n*2, v.Span), nil
		})
	}))

	v, err := r.eval(t, "[1 2 3] | double")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(2), int64(4), int64(6)}, ToGo(v))

	info, ok := r.Describe("double")
	require.True(t, ok)
	assert.Equal(t, CategoryCustom, info.Category)

	assert.Error(t, r.RegisterCommand(&Command{Name: "nothing"}))
	assert.Error(t, r.RegisterCommand(&Command{Run: func(*Context, PipelineData) (PipelineData, error) { return EmptyPipeline(), nil }}))
}
