package client

import (
	"iter"
	"sync"

	"github.com/ValentinKolb/rKV/rpc/cluster"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/base"
)

// Stream is a lazy, single pass sequence of the responses of a streaming
// command. It owns a checked out connection until it is closed. The
// connection is checked in exactly once: healthy if the stream was consumed
// up to its last frame (or ended with a server error), discarded otherwise.
// A Stream must not be used from several goroutines at once.
type Stream struct {
	cmd  transport.IStreamingCommand
	node *cluster.Node
	conn *base.Connection

	pending    any
	hasPending bool
	done       bool // the last frame was read from the connection
	err        error

	closeOnce sync.Once
}

func newStream(cmd transport.IStreamingCommand, node *cluster.Node, conn *base.Connection, first any, done bool) *Stream {
	return &Stream{
		cmd:        cmd,
		node:       node,
		conn:       conn,
		pending:    first,
		hasPending: true,
		done:       done,
	}
}

// Node returns the name of the node serving the stream
func (s *Stream) Node() string {
	return s.node.Name()
}

// Next returns the next response. It returns false once the stream is
// exhausted, failed or closed; Err tells those cases apart. Reaching the end
// or an error closes the stream.
func (s *Stream) Next() (any, bool) {
	if s.hasPending {
		resp := s.pending
		s.pending, s.hasPending = nil, false
		if s.done {
			s.Close()
		}
		return resp, true
	}

	if s.done || s.err != nil || s.conn == nil {
		s.Close()
		return nil, false
	}

	resp, done, err := s.conn.ReceiveOne(s.cmd)
	if err != nil {
		s.err = err
		Logger.Debugf("Stream from %s failed: %v", s.node.Name(), err)
		s.Close()
		return nil, false
	}

	s.done = done
	if done {
		s.Close()
	}
	return resp, true
}

// Err returns the error that ended the stream, nil if it ended regularly or
// was closed early
func (s *Stream) Err() error {
	return s.err
}

// Close ends the stream and hands the connection back to its pool. Closing a
// stream before its last frame was read discards the connection since the
// remaining frames are still in flight. It is safe to call Close several times.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		healthy := s.done || (s.err != nil && !common.KindOf(s.err).BreaksConnection())
		if !healthy && s.err == nil {
			Logger.Debugf("Stream from %s closed before its last frame, discarding connection", s.node.Name())
		}
		s.node.Pool().Checkin(s.conn, healthy)
		s.conn = nil
		s.pending, s.hasPending = nil, false
	})
}

// All returns an iterator over the remaining responses. The stream is closed
// when the iteration ends, also if the loop body breaks early.
func (s *Stream) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		defer s.Close()
		for {
			resp, ok := s.Next()
			if !ok || !yield(resp) {
				return
			}
		}
	}
}

// Collect reads all remaining responses
func (s *Stream) Collect() ([]any, error) {
	var out []any
	for resp := range s.All() {
		out = append(out, resp)
	}
	return out, s.Err()
}
