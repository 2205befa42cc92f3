package hostproto

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds the evals a Server runs at once
const DefaultConcurrency = 8

// Server reads requests from one codec and answers each on its own
// goroutine. Responses may arrive out of request order; clients match them
// by ID.
type Server struct {
	codec   Codec
	handler *Handler
	limit   int

	writeMu sync.Mutex
}

// NewServer creates a server. A limit below 1 uses DefaultConcurrency.
func NewServer(codec Codec, handler *Handler, limit int) *Server {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	return &Server{codec: codec, handler: handler, limit: limit}
}

// Serve answers requests until the stream ends or ctx is cancelled, then
// waits for requests in flight. A clean end of stream returns nil.
func (s *Server) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)

	var readErr error
	for ctx.Err() == nil {
		req := &Message{}
		if err := s.codec.Decode(req); err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		g.Go(func() error {
			return s.send(s.handler.Handle(ctx, req))
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return readErr
}

// send writes one response. A response that cannot be encoded is replaced
// by a protocol error with the same ID; if that fails too the stream is
// gone and the error ends Serve.
func (s *Server) send(resp *Message) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err := s.codec.Encode(resp)
	if err == nil {
		return nil
	}
	fallback := protocolError(&Message{ID: resp.ID}, "unable to encode response: %v", err)
	return s.codec.Encode(fallback)
}
