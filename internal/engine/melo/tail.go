package melo

import (
	"bytes"
	"strings"
	"sync"
)

// tail keeps the last n lines written by a worker on stderr.
type tail struct {
	lines []string
	max   int
	mu    sync.Mutex
}

func newTail(n int) *tail {
	return &tail{max: n}
}

// Add records line and reports whether it was kept. Blank lines are dropped.
func (t *tail) Add(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[len(t.lines)-t.max:]
	}
	return true
}

func (t *tail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return strings.Join(t.lines, "\n")
}

// scanOutputLines is a bufio.SplitFunc that ends a line at '\r' or '\n', so
// progress bars redrawn with carriage returns become separate lines. A line
// that fills the scanner buffer is returned as is instead of failing the scan.
func scanOutputLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}

	if atEOF || len(data) >= maxStderrLine {
		return len(data), data, nil
	}

	return 0, nil, nil
}
