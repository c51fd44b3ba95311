package backend

import (
	"bufio"
	"errors"
	"io"
)

// lineReader is a specialized reader that only yields entire newline-delimited lines. A CSV
// file that is still being written can be parsed through it without ever seeing a partial
// row: an unterminated line is held back and reported as io.EOF until its newline arrives.
type lineReader struct {
	r *bufio.Reader
	// partial is the start of a line whose newline has not been read yet.
	partial []byte
	// pending is a complete line that did not fit into the caller's buffer.
	pending []byte
}

var _ io.Reader = (*lineReader)(nil)

func NewLineReader(r io.Reader) *lineReader {
	return &lineReader{
		r: bufio.NewReader(r),
	}
}

func (l *lineReader) Read(b []byte) (int, error) {
	if len(l.pending) == 0 {
		data, err := l.r.ReadBytes('\n')
		l.partial = append(l.partial, data...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, io.EOF
			}
			return 0, err
		}
		l.pending, l.partial = l.partial, nil
	}
	n := copy(b, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}
