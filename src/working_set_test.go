package pawrun

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T) (*EngineState, *Stack) {
	t.Helper()
	cfg := &Config{Output: io.Discard, ErrOutput: io.Discard}
	quiet := NewLogger(false, io.Discard, io.Discard)
	return BuildContext(cfg, &StaticHost{Dir: "/"}, Snapshot{Cwd: "/", Env: map[string]string{}}, quiet)
}

func TestBuildContext_Layers(t *testing.T) {
	state, stack := newTestState(t)
	for _, name := range []string{"echo", "where", "str join", "str title-case", "help", "highlight", "print"} {
		_, ok := state.FindDecl(name)
		assert.True(t, ok, "missing %s", name)
	}
	assert.Equal(t, "/", stack.Cwd())

	t.Run("base registry is shared and untouched", func(t *testing.T) {
		before := len(sharedBaseRegistry().decls)
		other, _ := newTestState(t)
		ws := NewWorkingSet(other)
		ws.AddDecl(&Command{Name: "local only", Run: func(*Context, PipelineData) (PipelineData, error) { return EmptyPipeline(), nil }})
		require.NoError(t, other.MergeDelta(ws.Render()))
		assert.Equal(t, before, len(sharedBaseRegistry().decls))
		_, ok := state.FindDecl("local only")
		assert.False(t, ok)
	})

	t.Run("working directory failure is not fatal", func(t *testing.T) {
		cfg := &Config{Output: io.Discard, ErrOutput: io.Discard}
		quiet := NewLogger(false, io.Discard, io.Discard)
		state, stack := BuildContext(cfg, &StaticHost{Dir: "relative"}, Snapshot{Env: map[string]string{}}, quiet)
		assert.NotNil(t, state)
		assert.Equal(t, "", stack.Cwd())
	})
}

func TestMergeDelta(t *testing.T) {
	noop := func(*Context, PipelineData) (PipelineData, error) { return EmptyPipeline(), nil }

	t.Run("declarations become visible", func(t *testing.T) {
		state, _ := newTestState(t)
		ws := NewWorkingSet(state)
		id := ws.AddDecl(&Command{Name: "fresh", Run: noop})
		_, err := state.Decl(id)
		assert.Error(t, err, "unmerged declarations are refused")

		delta := ws.Render()
		assert.Equal(t, 1, delta.NumDecls())
		require.NoError(t, state.MergeDelta(delta))
		assert.True(t, delta.Merged())
		cmd, err := state.Decl(id)
		require.NoError(t, err)
		assert.Equal(t, "fresh", cmd.Name)
	})

	t.Run("a delta merges once", func(t *testing.T) {
		state, _ := newTestState(t)
		ws := NewWorkingSet(state)
		ws.AddDecl(&Command{Name: "once", Run: noop})
		delta := ws.Render()
		require.NoError(t, state.MergeDelta(delta))
		err := state.MergeDelta(delta)
		assert.True(t, IsKind(err, ErrorMerge))
	})

	t.Run("stale delta", func(t *testing.T) {
		state, _ := newTestState(t)
		first := NewWorkingSet(state)
		second := NewWorkingSet(state)
		first.AddDecl(&Command{Name: "one", Run: noop})
		second.AddDecl(&Command{Name: "two", Run: noop})
		require.NoError(t, state.MergeDelta(first.Render()))
		err := state.MergeDelta(second.Render())
		require.Error(t, err)
		assert.True(t, IsKind(err, ErrorMerge))
		_, ok := state.FindDecl("two")
		assert.False(t, ok)
	})

	t.Run("nil delta", func(t *testing.T) {
		state, _ := newTestState(t)
		assert.NoError(t, state.MergeDelta(nil))
	})

	t.Run("later declarations shadow earlier ones", func(t *testing.T) {
		state, _ := newTestState(t)
		ws := NewWorkingSet(state)
		id := ws.AddDecl(&Command{Name: "echo", Run: noop})
		require.NoError(t, state.MergeDelta(ws.Render()))
		found, ok := state.FindDecl("echo")
		require.True(t, ok)
		assert.Equal(t, id, found)
	})
}

func TestParseMergeEval(t *testing.T) {
	state, stack := newTestState(t)
	ws := NewWorkingSet(state)
	block := Parse(ws, "def greet [name] { [hi $name] | str join ' ' }; greet paw")

	t.Run("unmerged command cannot run", func(t *testing.T) {
		_, err := EvalBlock(state, stack, block, EmptyPipeline())
		assert.Error(t, err)
	})

	require.NoError(t, state.MergeDelta(ws.Render()))
	out, err := EvalBlock(state, stack, block, EmptyPipeline())
	require.NoError(t, err)
	v, ok := out.Value()
	require.True(t, ok)
	assert.Equal(t, "hi paw", v.Str)
}
