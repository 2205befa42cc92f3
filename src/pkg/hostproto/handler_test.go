package hostproto

import (
	"context"
	"fmt"
	"testing"

	"github.com/phroun/pawrun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(Options{Dir: "/"})
	require.NoError(t, err)
	return h
}

func TestHandler_Eval(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	t.Run("value result", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "eval", ID: "1", Source: "echo 1"})
		assert.Equal(t, "1", resp.ID)
		assert.Equal(t, []string{StatusDone}, resp.Status)
		assert.Equal(t, int64(1), resp.Value)
		assert.Nil(t, resp.Error)
	})

	t.Run("input feeds the first pipeline", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "eval", ID: "2", Source: "math sum", Input: []interface{}{1, 2, 3}})
		assert.Equal(t, []string{StatusDone}, resp.Status)
		assert.Equal(t, int64(6), resp.Value)
	})

	t.Run("print output is captured", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "eval", ID: "3", Source: "print hello"})
		assert.Equal(t, []string{StatusDone}, resp.Status)
		assert.Equal(t, "hello\n", resp.Output)
		assert.Nil(t, resp.Value)
	})

	t.Run("script error", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "eval", ID: "4", Source: "error make {msg: 'boom'}"})
		assert.Equal(t, []string{StatusDone, StatusEvalError}, resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "boom", resp.Error.Message)
		assert.Empty(t, resp.ProtocolError)
	})

	t.Run("invalid override", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "eval", ID: "5", Source: "echo 1", Overrides: &Overrides{ErrorStyle: "sparkly"}})
		require.NotNil(t, resp.Error)
		assert.Equal(t, pawrun.ErrorConfigOverride.String(), resp.Error.Kind)
	})

	t.Run("environment comes from the request", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "eval", ID: "6", Source: "$env.GREETING", Env: map[string]string{"GREETING": "hi"}})
		assert.Equal(t, []string{StatusDone}, resp.Status)
		assert.Equal(t, "hi", resp.Value)
	})

	t.Run("missing source", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "eval", ID: "7"})
		assert.Equal(t, []string{StatusError}, resp.Status)
		assert.Equal(t, "eval operation requires 'source' field", resp.ProtocolError)
	})
}

func TestHandler_Describe(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	t.Run("all commands", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "describe", ID: "1"})
		assert.Equal(t, []string{StatusDone}, resp.Status)
		assert.Equal(t, operations, resp.Data["ops"])
		commands, ok := resp.Data["commands"].([]interface{})
		require.True(t, ok)
		var names []string
		for _, c := range commands {
			names = append(names, c.(map[string]interface{})["name"].(string))
		}
		assert.Contains(t, names, "str join")
		assert.Contains(t, names, "where")
	})

	t.Run("one command", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "describe", ID: "2", Name: "str collect"})
		require.Equal(t, []string{StatusDone}, resp.Status)
		cmd := resp.Data["command"].(map[string]interface{})
		assert.Equal(t, "str collect", cmd["name"])
		assert.Equal(t, "str join", cmd["deprecated"])
	})

	t.Run("unknown command", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "describe", ID: "3", Name: "frobnicate"})
		assert.Equal(t, []string{StatusError}, resp.Status)
		assert.Equal(t, `unknown command: "frobnicate"`, resp.ProtocolError)
	})
}

func TestHandler_Operations(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name          string
		req           *Message
		wantStatus    []string
		protocolError string
	}{
		{"ping", &Message{Op: "ping", ID: "1"}, []string{StatusDone}, ""},
		{"no op", &Message{ID: "2"}, []string{StatusError}, "request has no op"},
		{"unknown op", &Message{Op: "load-file", ID: "3"}, []string{StatusError}, `unknown operation: "load-file"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.Handle(context.Background(), tt.req)
			assert.Equal(t, tt.req.ID, resp.ID)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.protocolError, resp.ProtocolError)
		})
	}

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		resp := h.Handle(ctx, &Message{Op: "ping", ID: "4"})
		assert.Equal(t, []string{StatusError}, resp.Status)
		assert.Contains(t, resp.ProtocolError, "interrupted")
	})
}

func TestHandler_HostCommands(t *testing.T) {
	h, err := NewHandler(Options{
		Dir: "/",
		Commands: []*pawrun.Command{{
			Name:        "answer",
			Description: "Returns 42.",
			Run: func(ctx *pawrun.Context, input pawrun.PipelineData) (pawrun.PipelineData, error) {
				return pawrun.NewValuePipeline(pawrun.FromGo(42, ctx.Span)), nil
			},
		}},
	})
	require.NoError(t, err)

	resp := h.Handle(context.Background(), &Message{Op: "eval", ID: "1", Source: "answer"})
	assert.Equal(t, int64(42), resp.Value)

	resp = h.Handle(context.Background(), &Message{Op: "describe", ID: "2", Name: "answer"})
	require.Equal(t, []string{StatusDone}, resp.Status)
	assert.Equal(t, "custom", resp.Data["command"].(map[string]interface{})["category"])
}

func TestHandler_FalsyResultsCrossTheWire(t *testing.T) {
	h := newTestHandler(t)
	ctx := context.Background()

	tests := []struct {
		source string
		want   string
	}{
		{"echo 0", "0"},
		{"echo false", "false"},
		{"echo ''", ""},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			resp := h.Handle(ctx, &Message{Op: "eval", ID: "1", Source: tt.source})
			require.Equal(t, []string{StatusDone}, resp.Status)

			conn := newBufferConn()
			codec := NewMessagePackCodec(conn)
			require.NoError(t, codec.Encode(resp))
			got := &Message{}
			require.NoError(t, codec.Decode(got))
			require.NotNil(t, got.Value)
			assert.Equal(t, tt.want, fmt.Sprint(got.Value))
		})
	}

	t.Run("zero input", func(t *testing.T) {
		conn := newBufferConn()
		codec := NewMessagePackCodec(conn)
		require.NoError(t, codec.Encode(&Message{Op: "eval", ID: "2", Source: "$in + 1", Input: int64(0)}))
		req := &Message{}
		require.NoError(t, codec.Decode(req))
		resp := h.Handle(ctx, req)
		require.Nil(t, resp.Error)
		assert.Equal(t, int64(1), resp.Value)
	})

	t.Run("nested causes", func(t *testing.T) {
		resp := h.Handle(ctx, &Message{Op: "eval", ID: "3", Source: "error make {msg: 'outer', inner: [{msg: 'cause'}]}"})
		require.NotNil(t, resp.Error)
		require.Len(t, resp.Error.Inner, 1)
		assert.Equal(t, "cause", resp.Error.Inner[0].Message)
	})
}
