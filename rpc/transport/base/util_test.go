package base

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trickleWriter accepts at most one byte per call
type trickleWriter struct {
	bytes.Buffer
}

func (w *trickleWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return w.Buffer.Write(p[:1])
}

// stuckWriter never accepts anything
type stuckWriter struct{}

func (stuckWriter) Write([]byte) (int, error) {
	return 0, nil
}

// zeroReader returns n bytes and then only empty reads without error
type zeroReader struct {
	n int
}

func (r *zeroReader) Read(p []byte) (int, error) {
	if r.n == 0 || len(p) == 0 {
		return 0, nil
	}
	p[0] = 1
	r.n--
	return 1, nil
}

// TestWriteAll tests that short writes are continued until the buffer is written
func TestWriteAll(t *testing.T) {
	w := &trickleWriter{}
	require.NoError(t, writeAll(w, []byte("hello world")))
	assert.Equal(t, "hello world", w.String())

	assert.ErrorIs(t, writeAll(stuckWriter{}, []byte("x")), io.ErrShortWrite)
	assert.NoError(t, writeAll(stuckWriter{}, nil))
}

// TestReadAll tests the end of stream detection of readAll
func TestReadAll(t *testing.T) {
	buf := make([]byte, 5)
	require.NoError(t, readAll(iotest.OneByteReader(bytes.NewReader([]byte("abcdef"))), buf))
	assert.Equal(t, "abcde", string(buf))

	assert.ErrorIs(t, readAll(bytes.NewReader(nil), buf), io.EOF)
	assert.ErrorIs(t, readAll(bytes.NewReader([]byte("ab")), buf), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, readAll(&zeroReader{}, buf), io.EOF)
	assert.ErrorIs(t, readAll(&zeroReader{n: 2}, buf), io.ErrUnexpectedEOF)
}
