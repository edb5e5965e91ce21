package journal

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrCancelled is returned when a blocking wait is abandoned because
	// its context was cancelled.
	ErrCancelled = errors.New("journal: wait cancelled")

	// ErrSessionClosed is returned by operations on a closed Session.
	ErrSessionClosed = errors.New("journal: session closed")

	// ErrNotPositioned is returned by Next and WaitForNext before any seek.
	ErrNotPositioned = errors.New("journal: session not positioned, seek first")

	// ErrFollowStarted is returned when Follow is called twice on a Session.
	ErrFollowStarted = errors.New("journal: follow already started on this session")

	// ErrEmptyEntry is returned when an entry has no valid fields to submit.
	ErrEmptyEntry = errors.New("journal: entry has no valid fields")
)

// OpenError reports that a read session could not be acquired.
type OpenError struct {
	Source string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("opening journal %s: %v", e.Source, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// TransportError reports a native call that returned a negative status.
// Status keeps the errno-derived code (e.g. -ENOENT) for diagnostics.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("journal %s failed (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("journal %s failed (status %d)", e.Op, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedRecordError describes a wire record without a NAME= prefix.
// It is a diagnostic: the record is skipped and the entry stays usable.
type MalformedRecordError struct {
	Record []byte
}

func (e *MalformedRecordError) Error() string {
	const max = 40
	r := e.Record
	if len(r) > max {
		r = r[:max]
	}
	return fmt.Sprintf("malformed journal record %q: missing '='", r)
}

// transportError wraps err as a TransportError, deriving a negative status
// from the underlying errno when there is one.
func transportError(op string, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	status := -int(syscall.EIO)
	var errno syscall.Errno
	if errors.As(err, &errno) {
		status = -int(errno)
	}
	return &TransportError{Op: op, Status: status, Err: err}
}

// StatusOf returns the negative status carried by err, or 0 when err is
// not a TransportError.
func StatusOf(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}
