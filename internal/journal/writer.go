package journal

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

// Writer submits entries to the journal. It holds no state besides its
// submitter, so one Writer may be shared by concurrent callers; ordering
// between concurrent writes is decided by the journal.
type Writer struct {
	sub        Submitter
	identifier string
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithIdentifier stamps SYSLOG_IDENTIFIER on entries that lack one.
func WithIdentifier(id string) WriterOption {
	return func(w *Writer) { w.identifier = id }
}

// NewWriter creates a writer on top of sub.
func NewWriter(sub Submitter, opts ...WriterOption) *Writer {
	w := &Writer{sub: sub}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteSimple formats a message and submits it with the given severity,
// like sd_journal_print.
func (w *Writer) WriteSimple(severity Severity, format string, args ...any) error {
	if !severity.Valid() {
		return fmt.Errorf("invalid severity %d", int(severity))
	}
	return w.submit("print", NewEntry(severity, fmt.Sprintf(format, args...)))
}

// WriteStructured submits all valid fields of e as a single entry, like
// sd_journal_send. Invalid field names are dropped.
func (w *Writer) WriteStructured(e *Entry) error {
	return w.submit("send", e.clone())
}

// WriteError records an errno value at error severity, like
// sd_journal_perror. The message is "<prefix>: <strerror>", or just the
// error text when prefix is empty, and ERRNO carries the decimal code.
func (w *Writer) WriteError(prefix string, errno int) error {
	text := unix.Errno(errno).Error()
	if prefix != "" {
		text = prefix + ": " + text
	}
	e := NewEntry(SeverityError, text)
	e.Add(FieldErrno, strconv.Itoa(errno))
	return w.submit("perror", e)
}

func (w *Writer) submit(op string, e *Entry) error {
	if w.identifier != "" && !e.Has(FieldIdentifier) {
		e.Add(FieldIdentifier, w.identifier)
	}
	records := Encode(e)
	if len(records) == 0 {
		return ErrEmptyEntry
	}
	if err := w.sub.Submit(records); err != nil {
		return transportError(op, err)
	}
	return nil
}

// Close releases the underlying submitter.
func (w *Writer) Close() error {
	return w.sub.Close()
}
