// Canonical chunk stream abstraction.
//
// Information Hiding:
// - Vendor SSE / event-stream mechanics hidden behind ChunkStream
// - Each adapter owns its own cursor state and cleanup

package llm

import (
	"context"
	"errors"
	"io"
)

// ErrStreamClosed indicates Recv was called after Close.
var ErrStreamClosed = errors.New("llm: stream closed")

// ChunkStream is a lazy, forward-only sequence of raw provider chunks.
//
// Recv returns io.EOF once the stream is exhausted. Streams are not
// restartable; abandoning a stream early requires only Close.
type ChunkStream interface {
	// Recv blocks until the next chunk arrives or the stream ends.
	Recv(ctx context.Context) (*RawResult, error)

	// Close releases the underlying transport. Safe to call more than once.
	Close() error
}

// SliceStream replays a fixed sequence of chunks. Used for tests and
// recorded-trace playback.
type SliceStream struct {
	chunks []*RawResult
	pos    int
	closed bool
}

// NewSliceStream creates a stream over the given chunks.
func NewSliceStream(chunks ...*RawResult) *SliceStream {
	return &SliceStream{chunks: chunks}
}

// Recv returns the next chunk or io.EOF.
func (s *SliceStream) Recv(ctx context.Context) (*RawResult, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.chunks) {
		return nil, io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

// Close marks the stream closed.
func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// Consumed reports how many chunks have been read so far.
func (s *SliceStream) Consumed() int {
	return s.pos
}

// Verify SliceStream implements ChunkStream
var _ ChunkStream = (*SliceStream)(nil)
