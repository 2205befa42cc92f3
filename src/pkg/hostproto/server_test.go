package hostproto

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedConn reads prepared requests and collects what the server writes
type scriptedConn struct {
	in  *bytes.Buffer
	out bytes.Buffer
}

func (c *scriptedConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *scriptedConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *scriptedConn) Close() error                { return nil }

func TestServer_AnswersEveryRequest(t *testing.T) {
	for _, format := range []string{"json", "msgpack"} {
		t.Run(format, func(t *testing.T) {
			requests := newBufferConn()
			enc, err := NewCodec(format, requests)
			require.NoError(t, err)
			const count = 20
			for i := 0; i < count; i++ {
				require.NoError(t, enc.Encode(&Message{
					Op:     "eval",
					ID:     fmt.Sprint(i),
					Source: fmt.Sprintf("echo %d", i),
				}))
			}
			require.NoError(t, enc.Encode(&Message{Op: "ping", ID: "ping"}))

			conn := &scriptedConn{in: requests.Buffer}
			codec, err := NewCodec(format, conn)
			require.NoError(t, err)
			server := NewServer(codec, newTestHandler(t), 4)
			require.NoError(t, server.Serve(context.Background()))

			dec, err := NewCodec(format, &bufferConn{Buffer: &conn.out})
			require.NoError(t, err)
			got := make(map[string]*Message)
			for {
				resp := &Message{}
				err := dec.Decode(resp)
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				got[resp.ID] = resp
			}
			require.Len(t, got, count+1)
			for i := 0; i < count; i++ {
				resp := got[fmt.Sprint(i)]
				require.NotNil(t, resp)
				assert.Equal(t, []string{StatusDone}, resp.Status)
				assert.Equal(t, fmt.Sprint(i), fmt.Sprint(resp.Value))
			}
			assert.Equal(t, "pong", got["ping"].Value)
		})
	}
}

func TestServer_MalformedStream(t *testing.T) {
	conn := &scriptedConn{in: bytes.NewBufferString(`{"op":"ping","id":"1"}` + "\n{oops\n")}
	server := NewServer(NewJSONCodec(conn), newTestHandler(t), 0)
	err := server.Serve(context.Background())
	assert.Error(t, err)

	resp := &Message{}
	require.NoError(t, NewJSONCodec(&bufferConn{Buffer: &conn.out}).Decode(resp))
	assert.Equal(t, "1", resp.ID)
	assert.Equal(t, "pong", resp.Value)
}
