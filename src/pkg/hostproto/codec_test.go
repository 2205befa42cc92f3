package hostproto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufferConn is a bytes.Buffer that can be closed
type bufferConn struct {
	*bytes.Buffer
	closed bool
}

func (b *bufferConn) Close() error {
	b.closed = true
	return nil
}

func newBufferConn() *bufferConn {
	return &bufferConn{Buffer: &bytes.Buffer{}}
}

func TestNewCodec(t *testing.T) {
	for _, format := range []string{"json", "msgpack", ""} {
		t.Run("format "+format, func(t *testing.T) {
			codec, err := NewCodec(format, newBufferConn())
			require.NoError(t, err)
			assert.NotNil(t, codec)
		})
	}
	t.Run("unknown format", func(t *testing.T) {
		_, err := NewCodec("xml", newBufferConn())
		assert.EqualError(t, err, "unsupported codec format: xml")
	})
}

func TestCodecs_CarryRequestsAndResponses(t *testing.T) {
	requests := []*Message{
		{Op: "eval", ID: "1", Source: "echo 1", Cwd: "/tmp", Env: map[string]string{"HOME": "/home/paw"}},
		{Op: "eval", ID: "2", Source: "print", Overrides: &Overrides{RenderingMode: "psql", ErrorStyle: "plain"}},
		{ID: "2", Status: []string{StatusDone}, Output: "hello\n"},
		{ID: "3", Status: []string{StatusDone, StatusEvalError}, Error: &ErrorInfo{
			Kind:    "error",
			Message: "boom",
			Span:    &SpanInfo{Start: 4, End: 9},
			Inner:   []*ErrorInfo{{Kind: "evaluation error", Message: "cause"}},
		}},
	}
	for _, format := range []string{"json", "msgpack"} {
		t.Run(format, func(t *testing.T) {
			conn := newBufferConn()
			codec, err := NewCodec(format, conn)
			require.NoError(t, err)
			for _, msg := range requests {
				require.NoError(t, codec.Encode(msg))
			}
			for _, want := range requests {
				got := &Message{}
				require.NoError(t, codec.Decode(got))
				assert.Equal(t, want, got)
			}
			assert.ErrorIs(t, codec.Decode(&Message{}), io.EOF)
			require.NoError(t, codec.Close())
			assert.True(t, conn.closed)
		})
	}
}

func TestJSONCodec_KeepsIntegers(t *testing.T) {
	conn := &bufferConn{Buffer: bytes.NewBufferString(`{"op":"eval","id":"1","source":"echo","input":[1,2.5]}` + "\n")}
	msg := &Message{}
	require.NoError(t, NewJSONCodec(conn).Decode(msg))
	assert.Equal(t, []interface{}{json.Number("1"), json.Number("2.5")}, msg.Input)
}

func TestJSONCodec_DecodeError(t *testing.T) {
	conn := &bufferConn{Buffer: bytes.NewBufferString("{invalid json\n")}
	assert.Error(t, NewJSONCodec(conn).Decode(&Message{}))
}

func TestMessagePackCodec_Framing(t *testing.T) {
	t.Run("frames are length prefixed", func(t *testing.T) {
		conn := newBufferConn()
		require.NoError(t, NewMessagePackCodec(conn).Encode(&Message{Op: "ping", ID: "7"}))
		frame := conn.Bytes()
		require.Greater(t, len(frame), 4)
		n := int(frame[0])<<24 | int(frame[1])<<16 | int(frame[2])<<8 | int(frame[3])
		assert.Equal(t, len(frame)-4, n)
	})

	t.Run("truncated frame", func(t *testing.T) {
		conn := newBufferConn()
		require.NoError(t, NewMessagePackCodec(conn).Encode(&Message{Op: "ping", ID: "7"}))
		cut := &bufferConn{Buffer: bytes.NewBuffer(conn.Bytes()[:conn.Len()-2])}
		assert.ErrorIs(t, NewMessagePackCodec(cut).Decode(&Message{}), io.ErrUnexpectedEOF)
	})

	t.Run("oversized frame", func(t *testing.T) {
		conn := &bufferConn{Buffer: bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff})}
		err := NewMessagePackCodec(conn).Decode(&Message{})
		assert.ErrorContains(t, err, "exceeds the frame limit")
	})
}

func TestCodecs_KeepFalsyValues(t *testing.T) {
	values := []interface{}{int64(0), false, ""}
	for _, format := range []string{"json", "msgpack"} {
		t.Run(format, func(t *testing.T) {
			conn := newBufferConn()
			codec, err := NewCodec(format, conn)
			require.NoError(t, err)
			for _, v := range values {
				require.NoError(t, codec.Encode(&Message{ID: "r", Value: v}))
				require.NoError(t, codec.Encode(&Message{Op: "eval", ID: "q", Source: "$in", Input: v}))
			}
			for _, v := range values {
				resp := &Message{}
				require.NoError(t, codec.Decode(resp))
				require.NotNil(t, resp.Value, "value %#v", v)
				assert.Equal(t, fmt.Sprint(v), fmt.Sprint(resp.Value))

				req := &Message{}
				require.NoError(t, codec.Decode(req))
				require.NotNil(t, req.Input, "input %#v", v)
				assert.Equal(t, fmt.Sprint(v), fmt.Sprint(req.Input))
			}
		})
	}
}
