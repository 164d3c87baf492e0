package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a read is abandoned because its context ended.
var ErrInputCancelled = errors.New("input canceled")

type line struct {
	err  error
	text string
}

// NonBlockingReader reads lines that a context can abandon. A single
// goroutine scans the underlying reader ahead of the caller, so an abandoned
// read leaves its line for the next ReadLine.
type NonBlockingReader struct {
	reader *bufio.Reader
	lines  chan line
	start  sync.Once
}

// NewNonBlockingReader creates a reader over r.
func NewNonBlockingReader(r io.Reader) *NonBlockingReader {
	if r == nil {
		panic("reader cannot be nil")
	}
	return &NonBlockingReader{reader: bufio.NewReader(r), lines: make(chan line)}
}

func (r *NonBlockingReader) scan() {
	defer close(r.lines)
	for {
		text, err := r.reader.ReadString('\n')
		if err != nil && errors.Is(err, io.EOF) && text != "" {
			// a final line without a newline still counts
			r.lines <- line{text: text}
			continue
		}
		r.lines <- line{text: text, err: err}
		if err != nil {
			return
		}
	}
}

// ReadLine returns the next line with surrounding whitespace trimmed. At the
// end of input it returns io.EOF.
func (r *NonBlockingReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.start.Do(func() { go r.scan() })

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case l, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		if l.err != nil {
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	}
}
