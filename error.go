package imgbuf

import (
	"fmt"
	"strings"
	"sync"
)

// errorState accumulates error messages on a buffer. Collaborator failures
// are recorded here instead of propagating; callers poll HasError/GetError.
type errorState struct {
	mu   sync.Mutex
	msgs []string
}

func (e *errorState) record(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgs = append(e.msgs, msg)
}

func (e *errorState) has() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.msgs) > 0
}

func (e *errorState) reset() {
	e.mu.Lock()
	e.msgs = nil
	e.mu.Unlock()
}

func (e *errorState) get(clear bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg := strings.Join(e.msgs, "\n")
	if clear {
		e.msgs = nil
	}
	return msg
}

// Error records a plain error message on the buffer.
func (b *Buffer) Error(msg string) {
	b.errs.record(msg)
}

// Errorf records a formatted error message on the buffer.
func (b *Buffer) Errorf(format string, args ...any) {
	b.errs.record(fmt.Sprintf(format, args...))
}

// recordErr records a collaborator error verbatim. Returns the error for
// convenient tail calls.
func (b *Buffer) recordErr(err error) error {
	if err != nil {
		b.errs.record(err.Error())
	}
	return err
}

// HasError reports whether any errors have accumulated since the last drain.
func (b *Buffer) HasError() bool { return b.errs.has() }

// GetError returns the accumulated error messages, newline-joined. With
// clear, the accumulated state is drained.
func (b *Buffer) GetError(clear bool) string { return b.errs.get(clear) }
