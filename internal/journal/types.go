// Package journal is a small client for the systemd journal: it encodes
// structured entries, submits them over the native socket protocol, and
// tails the journal through a read handle.
package journal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// Well-known field names.
const (
	FieldMessage    = "MESSAGE"
	FieldPriority   = "PRIORITY"
	FieldErrno      = "ERRNO"
	FieldIdentifier = "SYSLOG_IDENTIFIER"
	FieldWriteNonce = "JTAIL_WRITE_NONCE"
)

// Severity is a syslog-style log level, 0 (emergency) to 7 (debug).
type Severity int

const (
	SeverityEmergency Severity = Severity(journal.PriEmerg)
	SeverityAlert     Severity = Severity(journal.PriAlert)
	SeverityCritical  Severity = Severity(journal.PriCrit)
	SeverityError     Severity = Severity(journal.PriErr)
	SeverityWarning   Severity = Severity(journal.PriWarning)
	SeverityNotice    Severity = Severity(journal.PriNotice)
	SeverityInfo      Severity = Severity(journal.PriInfo)
	SeverityDebug     Severity = Severity(journal.PriDebug)
)

var severityNames = [...]string{"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug"}

// Valid reports whether s is within 0..7.
func (s Severity) Valid() bool {
	return s >= SeverityEmergency && s <= SeverityDebug
}

// Priority converts s to the go-systemd priority type.
func (s Severity) Priority() journal.Priority {
	return journal.Priority(s)
}

func (s Severity) String() string {
	if !s.Valid() {
		return "severity(" + strconv.Itoa(int(s)) + ")"
	}
	return severityNames[s]
}

// ParseSeverity accepts a digit 0-7 or a syslog level name.
func ParseSeverity(s string) (Severity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		sev := Severity(n)
		if !sev.Valid() {
			return 0, fmt.Errorf("severity %d out of range 0-7", n)
		}
		return sev, nil
	}
	switch s {
	case "emergency", "panic":
		return SeverityEmergency, nil
	case "critical":
		return SeverityCritical, nil
	case "error":
		return SeverityError, nil
	case "warn":
		return SeverityWarning, nil
	}
	for i, name := range severityNames {
		if s == name {
			return Severity(i), nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// Field is one NAME=VALUE pair of an entry.
type Field struct {
	Name  string
	Value []byte
}

// Entry is an ordered list of fields. A name may appear more than once;
// every value is kept in the order it was added.
//
// Entries returned by a Session also carry the cursor and timestamp the
// journal assigned to them.
type Entry struct {
	Fields   []Field
	Cursor   Cursor
	Realtime time.Time
}

// NewEntry builds an entry with MESSAGE and PRIORITY set.
func NewEntry(severity Severity, message string) *Entry {
	e := &Entry{}
	e.Add(FieldMessage, message)
	e.Add(FieldPriority, strconv.Itoa(int(severity)))
	return e
}

// Add appends a string-valued field.
func (e *Entry) Add(name, value string) *Entry {
	return e.AddBytes(name, []byte(value))
}

// AddBytes appends a field with a binary value.
func (e *Entry) AddBytes(name string, value []byte) *Entry {
	e.Fields = append(e.Fields, Field{Name: name, Value: value})
	return e
}

// Get returns the first value of name.
func (e *Entry) Get(name string) (string, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return string(f.Value), true
		}
	}
	return "", false
}

// GetAll returns every value of name in order.
func (e *Entry) GetAll(name string) []string {
	var out []string
	for _, f := range e.Fields {
		if f.Name == name {
			out = append(out, string(f.Value))
		}
	}
	return out
}

// Has reports whether the entry carries name at least once.
func (e *Entry) Has(name string) bool {
	_, ok := e.Get(name)
	return ok
}

// Message returns the MESSAGE field, or "" when absent.
func (e *Entry) Message() string {
	m, _ := e.Get(FieldMessage)
	return m
}

// Priority returns the PRIORITY field. ok is false when it is missing or
// not a valid severity.
func (e *Entry) Priority() (sev Severity, ok bool) {
	v, found := e.Get(FieldPriority)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || !Severity(n).Valid() {
		return 0, false
	}
	return Severity(n), true
}

// Map flattens the entry to a map; for repeated names the last value wins.
func (e *Entry) Map() map[string]string {
	m := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Name] = string(f.Value)
	}
	return m
}

// clone returns a deep copy so a caller cannot mutate an entry after it has
// been handed to a writer.
func (e *Entry) clone() *Entry {
	c := &Entry{
		Fields:   make([]Field, len(e.Fields)),
		Cursor:   e.Cursor,
		Realtime: e.Realtime,
	}
	for i, f := range e.Fields {
		c.Fields[i] = Field{Name: f.Name, Value: append([]byte(nil), f.Value...)}
	}
	return c
}

// Cursor is an opaque position in the journal, in journald's
// "s=…;i=…;b=…;m=…;t=…;x=…" form.
type Cursor string

// Seqnum extracts the hexadecimal sequence number ("i=") from the cursor.
func (c Cursor) Seqnum() (uint64, bool) {
	for part := range strings.SplitSeq(string(c), ";") {
		if after, ok := strings.CutPrefix(part, "i="); ok {
			n, err := strconv.ParseUint(after, 16, 64)
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// SeqnumID returns the "s=" component identifying the sequence stream.
func (c Cursor) SeqnumID() string {
	for part := range strings.SplitSeq(string(c), ";") {
		if after, ok := strings.CutPrefix(part, "s="); ok {
			return after
		}
	}
	return ""
}

// Compare orders two cursors of the same stream by sequence number. It
// returns -1, 0 or +1; cursors without a sequence number compare equal.
func (c Cursor) Compare(other Cursor) int {
	a, okA := c.Seqnum()
	b, okB := other.Seqnum()
	if !okA || !okB {
		return 0
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// formatCursor builds a cursor in journald's textual layout.
func formatCursor(seqnumID string, seqnum uint64, bootID string, monotonic, realtime uint64) Cursor {
	return Cursor(fmt.Sprintf("s=%s;i=%x;b=%s;m=%x;t=%x;x=%x",
		seqnumID, seqnum, bootID, monotonic, realtime, seqnum^realtime))
}
