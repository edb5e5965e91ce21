package journal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"syscall"
	"time"
)

// MemoryJournal is an in-process append-only journal. It implements both
// Submitter and Opener, and backs the loopback mode and unit tests.
type MemoryJournal struct {
	mu       sync.Mutex
	entries  []memEntry
	seqnum   uint64
	changed  chan struct{} // closed and replaced on every append
	shutdown bool

	seqnumID string
	bootID   string
	start    time.Time
}

type memEntry struct {
	cursor   Cursor
	realtime time.Time
	records  [][]byte
}

var (
	_ Submitter = (*MemoryJournal)(nil)
	_ Opener    = (*MemoryJournal)(nil)
)

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		changed:  make(chan struct{}),
		seqnumID: randomID(),
		bootID:   randomID(),
		start:    time.Now(),
	}
}

func randomID() string {
	var b [16]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Submit appends records as one entry. Records whose names journald would
// refuse are dropped the way journald drops them; an entry left with no
// fields is ignored.
func (m *MemoryJournal) Submit(records [][]byte) error {
	kept := make([][]byte, 0, len(records))
	for _, rec := range records {
		name, _, err := Decode(rec)
		if err != nil || !ValidFieldName(name) {
			continue
		}
		kept = append(kept, append([]byte(nil), rec...))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown {
		return &TransportError{Op: "submit", Status: -int(syscall.ECONNREFUSED), Err: syscall.ECONNREFUSED}
	}
	if len(kept) == 0 {
		return nil
	}

	m.seqnum++
	now := time.Now()
	m.entries = append(m.entries, memEntry{
		cursor:   formatCursor(m.seqnumID, m.seqnum, m.bootID, uint64(now.Sub(m.start).Microseconds()), uint64(now.UnixMicro())),
		realtime: now,
		records:  kept,
	})
	close(m.changed)
	m.changed = make(chan struct{})
	return nil
}

// Append is a convenience for tests: it encodes e and submits it.
func (m *MemoryJournal) Append(e *Entry) error {
	return m.Submit(Encode(e))
}

// Close implements Submitter. The journal itself stays readable.
func (m *MemoryJournal) Close() error { return nil }

// Shutdown makes the journal unreachable: later submits fail, opens fail,
// and pending waits wake up.
func (m *MemoryJournal) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return
	}
	m.shutdown = true
	close(m.changed)
}

// Len returns the number of entries.
func (m *MemoryJournal) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Entries returns decoded copies of all entries.
func (m *MemoryJournal) Entries() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Entry, len(m.entries))
	for i, me := range m.entries {
		e := decodeEntry(me.records, nil)
		e.Cursor = me.cursor
		e.Realtime = me.realtime
		out[i] = e
	}
	return out
}

// OpenHandle returns a new read handle positioned before the first entry.
func (m *MemoryJournal) OpenHandle() (ReadHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return nil, &OpenError{Source: "memory", Err: syscall.ECONNREFUSED}
	}
	return &memHandle{j: m, cur: -1, seenLen: len(m.entries)}, nil
}

// memHandle is a read cursor over a MemoryJournal.
type memHandle struct {
	j       *MemoryJournal
	pos     int // index the next Next looks at
	cur     int // index of the current entry, -1 when none
	seenLen int // journal length at the last Wait
	matches map[string][]string
	closed  bool
}

func (h *memHandle) SeekHead() error {
	if h.closed {
		return syscall.EBADF
	}
	h.pos, h.cur = 0, -1
	return nil
}

func (h *memHandle) SeekTail() error {
	if h.closed {
		return syscall.EBADF
	}
	h.j.mu.Lock()
	defer h.j.mu.Unlock()
	h.pos, h.cur = len(h.j.entries), -1
	return nil
}

func (h *memHandle) SeekCursor(cursor Cursor) error {
	if h.closed {
		return syscall.EBADF
	}
	seq, ok := cursor.Seqnum()
	if !ok {
		return fmt.Errorf("invalid cursor %q: %w", cursor, syscall.EINVAL)
	}
	h.j.mu.Lock()
	defer h.j.mu.Unlock()
	if id := cursor.SeqnumID(); id != "" && id != h.j.seqnumID {
		return fmt.Errorf("cursor from another journal: %w", syscall.EINVAL)
	}
	// Seqnums start at 1 and are dense, so entry seq lives at index seq-1.
	h.pos, h.cur = min(int(seq), len(h.j.entries)), -1
	return nil
}

func (h *memHandle) AddMatch(match string) error {
	field, value, ok := strings.Cut(match, "=")
	if !ok || !validReadFieldName(field) {
		return fmt.Errorf("invalid match %q: %w", match, syscall.EINVAL)
	}
	if h.matches == nil {
		h.matches = make(map[string][]string)
	}
	h.matches[field] = append(h.matches[field], value)
	return nil
}

func (h *memHandle) FlushMatches() {
	h.matches = nil
}

func (h *memHandle) Next() (bool, error) {
	if h.closed {
		return false, syscall.EBADF
	}
	h.j.mu.Lock()
	defer h.j.mu.Unlock()
	for h.pos < len(h.j.entries) {
		i := h.pos
		h.pos++
		if h.match(h.j.entries[i].records) {
			h.cur = i
			return true, nil
		}
	}
	return false, nil
}

// match applies sd-journal semantics: values for the same field are ORed,
// different fields are ANDed.
func (h *memHandle) match(records [][]byte) bool {
	for field, values := range h.matches {
		found := false
		for _, rec := range records {
			name, value, err := Decode(rec)
			if err != nil || name != field {
				continue
			}
			for _, v := range values {
				if string(value) == v {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (h *memHandle) Current() (RawEntry, error) {
	if h.closed {
		return RawEntry{}, syscall.EBADF
	}
	if h.cur < 0 {
		return RawEntry{}, syscall.EADDRNOTAVAIL
	}
	h.j.mu.Lock()
	defer h.j.mu.Unlock()
	me := h.j.entries[h.cur]
	records := make([][]byte, len(me.records))
	for i, r := range me.records {
		records[i] = append([]byte(nil), r...)
	}
	return RawEntry{Cursor: me.cursor, Realtime: me.realtime, Records: records}, nil
}

func (h *memHandle) Wait(timeout time.Duration) int {
	if h.closed {
		return -int(syscall.EBADF)
	}

	h.j.mu.Lock()
	if h.j.shutdown {
		h.j.mu.Unlock()
		return WaitInvalidate
	}
	if n := len(h.j.entries); n != h.seenLen {
		h.seenLen = n
		h.j.mu.Unlock()
		return WaitAppend
	}
	changed := h.j.changed
	h.j.mu.Unlock()

	if timeout == 0 {
		return WaitNop
	}
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case <-changed:
		h.j.mu.Lock()
		defer h.j.mu.Unlock()
		if h.j.shutdown {
			return WaitInvalidate
		}
		h.seenLen = len(h.j.entries)
		return WaitAppend
	case <-expired:
		return WaitNop
	}
}

func (h *memHandle) Close() error {
	h.closed = true
	return nil
}
