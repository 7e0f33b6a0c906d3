package sidecar

import (
	"bytes"
	"strings"
	"sync"
)

// maxLineBytes bounds a buffered partial line; longer output is emitted in
// chunks rather than held until a newline arrives.
const maxLineBytes = 64 * 1024

// lineRelay is an io.Writer that forwards each complete line it receives to
// emit. It is attached to the child's stdout or stderr so exec copies the
// stream as it is produced.
type lineRelay struct {
	mu   sync.Mutex
	buf  []byte
	emit func(line string)
}

func newLineRelay(emit func(line string)) *lineRelay {
	return &lineRelay{emit: emit}
}

// Write implements io.Writer. It copies p; callers may reuse it.
func (r *lineRelay) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = append(r.buf, p...)
	for {
		i := bytes.IndexByte(r.buf, '\n')
		if i < 0 {
			break
		}
		r.emitLocked(r.buf[:i])
		r.buf = r.buf[i+1:]
	}
	if len(r.buf) >= maxLineBytes {
		r.emitLocked(r.buf)
		r.buf = nil
	}
	// Release the backing array once drained.
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return len(p), nil
}

// Flush emits any trailing partial line. It is called once the stream closes.
func (r *lineRelay) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) > 0 {
		r.emitLocked(r.buf)
		r.buf = nil
	}
}

func (r *lineRelay) emitLocked(line []byte) {
	s := strings.TrimRight(string(line), "\r")
	if s == "" {
		return
	}
	r.emit(s)
}
