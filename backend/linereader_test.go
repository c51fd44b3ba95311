package backend

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func expectToRead(t *testing.T, reader io.Reader, expected []byte) {
	t.Helper()
	var scratch [1024]byte
	n, err := reader.Read(scratch[:])
	if err != nil {
		t.Errorf("expected read to succeed, got: %v", err)
	} else if !bytes.Equal(scratch[:n], expected) {
		t.Errorf("expected read to yield %q, got: %q", expected, scratch[:n])
	}
}

func expectReadEOF(t *testing.T, reader io.Reader) {
	t.Helper()
	var scratch [1024]byte
	n, err := reader.Read(scratch[:])
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected read to give EOF, got: %v", err)
	} else if n != 0 {
		t.Errorf("expected read to read nothing, read %q", scratch[:n])
	}
}

func TestLineReader(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	buf.WriteString("main, 0, , 1\n")
	buf.WriteString("main, 1, 400, 1\n")
	l := NewLineReader(buf)
	expectToRead(t, l, []byte("main, 0, , 1\n"))
	expectToRead(t, l, []byte("main, 1, 400, 1\n"))
	buf.WriteString("main, 2,")
	expectReadEOF(t, l)
	buf.WriteString(" 1000, 1\n")
	expectToRead(t, l, []byte("main, 2, 1000, 1\n"))
	buf.WriteString("wor")
	expectReadEOF(t, l)
	buf.WriteString("ker")
	expectReadEOF(t, l)
	buf.WriteString(", 3, ?, 1\nworker, 4")
	expectToRead(t, l, []byte("worker, 3, ?, 1\n"))
	expectReadEOF(t, l)
}

func TestLineReaderSmallBuffer(t *testing.T) {
	l := NewLineReader(bytes.NewBufferString("abcdefgh\nij\n"))
	var got []byte
	var scratch [3]byte
	for {
		n, err := l.Read(scratch[:])
		got = append(got, scratch[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	if string(got) != "abcdefgh\nij\n" {
		t.Errorf("expected every byte to be read through a small buffer, got %q", got)
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func TestLineReaderError(t *testing.T) {
	broken := errors.New("broken pipe")
	l := NewLineReader(failingReader{err: broken})
	var scratch [16]byte
	if _, err := l.Read(scratch[:]); !errors.Is(err, broken) {
		t.Errorf("expected the underlying error, got %v", err)
	}
}
