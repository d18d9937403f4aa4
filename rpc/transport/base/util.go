package base

import (
	"io"
)

// writeAll writes the complete buffer to the stream. Short writes are
// continued at the byte level until everything is written or the stream fails.
func writeAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		buf = buf[n:]
		if err != nil {
			return err
		}
		if n == 0 && len(buf) > 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

// readAll fills the buffer from the stream.
// A read returning zero bytes before the buffer is full marks the end of the
// stream: io.EOF if nothing was read at all, io.ErrUnexpectedEOF otherwise.
func readAll(r io.Reader, buf []byte) error {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if total == len(buf) {
			return nil
		}
		if err != nil {
			if err == io.EOF && total > 0 {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if n == 0 {
			if total == 0 {
				return io.EOF
			}
			return io.ErrUnexpectedEOF
		}
	}
	return nil
}
