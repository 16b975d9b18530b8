package logging

import (
	"bufio"
	"bytes"
	"io"
	"sync"
)

// NewWriter returns the log sink for out. Unbuffered writes pass straight
// through to out so every line is visible the moment it is emitted; the
// buffered variant holds bytes until a newline completes the line.
func NewWriter(out io.Writer, unbuffered bool) io.Writer {
	if unbuffered {
		return out
	}
	return &lineWriter{w: bufio.NewWriter(out)}
}

// lineWriter batches partial writes and flushes on each completed line.
type lineWriter struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.w.Write(p)
	if err != nil {
		return n, err
	}
	if bytes.IndexByte(p, '\n') >= 0 {
		if err := l.w.Flush(); err != nil {
			return n, err
		}
	}
	return n, nil
}
