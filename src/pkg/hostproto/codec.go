package hostproto

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec frames messages over a byte stream. Encode and Decode may be used
// from different goroutines, but neither is safe for concurrent use with
// itself.
type Codec interface {
	Encode(msg *Message) error
	Decode(msg *Message) error
	Close() error
}

// NewCodec creates a codec by name: "json" or "msgpack"
func NewCodec(format string, rw io.ReadWriteCloser) (Codec, error) {
	switch format {
	case "json", "":
		return NewJSONCodec(rw), nil
	case "msgpack":
		return NewMessagePackCodec(rw), nil
	default:
		return nil, fmt.Errorf("unsupported codec format: %s", format)
	}
}

// JSONCodec sends one JSON document per line
type JSONCodec struct {
	rw      io.ReadWriteCloser
	encoder *json.Encoder
	decoder *json.Decoder
}

// NewJSONCodec creates a JSON codec over rw. Numbers in decoded input keep
// their literal form so integers stay integers.
func NewJSONCodec(rw io.ReadWriteCloser) *JSONCodec {
	dec := json.NewDecoder(rw)
	dec.UseNumber()
	return &JSONCodec{
		rw:      rw,
		encoder: json.NewEncoder(rw),
		decoder: dec,
	}
}

func (c *JSONCodec) Encode(msg *Message) error {
	return c.encoder.Encode(msg)
}

func (c *JSONCodec) Decode(msg *Message) error {
	return c.decoder.Decode(msg)
}

func (c *JSONCodec) Close() error {
	return c.rw.Close()
}

// maxFrame bounds a single MessagePack frame
const maxFrame = 64 << 20

// MessagePackCodec sends each message as a 4-byte big-endian length
// followed by that many bytes of MessagePack
type MessagePackCodec struct {
	rw io.ReadWriteCloser
	r  *bufio.Reader
}

// NewMessagePackCodec creates a MessagePack codec over rw
func NewMessagePackCodec(rw io.ReadWriteCloser) *MessagePackCodec {
	return &MessagePackCodec{rw: rw, r: bufio.NewReader(rw)}
}

func (c *MessagePackCodec) Encode(msg *Message) error {
	payload, err := msgpack.Marshal(msg)
	if err != nil {
		return err
	}
	if len(payload) > maxFrame {
		return fmt.Errorf("message of %d bytes exceeds the frame limit", len(payload))
	}
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	_, err = c.rw.Write(frame)
	return err
}

// Decode reads one frame. A clean end of stream before a frame starts is
// io.EOF; a stream cut inside a frame is io.ErrUnexpectedEOF.
func (c *MessagePackCodec) Decode(msg *Message) error {
	var header [4]byte
	if _, err := io.ReadFull(c.r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrame {
		return fmt.Errorf("frame of %d bytes exceeds the frame limit", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return msgpack.Unmarshal(payload, msg)
}

func (c *MessagePackCodec) Close() error {
	return c.rw.Close()
}
