package journal

import "time"

// Wait results reported by ReadHandle.Wait, matching sd_journal_wait.
const (
	WaitNop        = 0 // timeout elapsed, nothing changed
	WaitAppend     = 1 // entries were appended
	WaitInvalidate = 2 // files were added, removed or rotated
)

// Submitter is the write side of the native journal API. Submit sends all
// records as one entry; it either lands in the journal whole or not at all.
type Submitter interface {
	Submit(records [][]byte) error
	Close() error
}

// RawEntry is the entry a ReadHandle is positioned on, before decoding.
type RawEntry struct {
	Cursor   Cursor
	Realtime time.Time
	Records  [][]byte
}

// ReadHandle is the read side of the native journal API. A handle is owned
// by exactly one Session and is never used from two goroutines at once.
type ReadHandle interface {
	// SeekHead positions the handle so the next Next returns the oldest entry.
	SeekHead() error
	// SeekTail positions the handle so the next Next returns the first
	// entry appended after this call.
	SeekTail() error
	// SeekCursor positions the handle so the next Next returns the entry
	// following cursor.
	SeekCursor(cursor Cursor) error

	// AddMatch restricts iteration to entries carrying "FIELD=value".
	AddMatch(match string) error
	FlushMatches()

	// Next advances one entry. It returns false when there is no entry yet.
	Next() (bool, error)
	// Current returns the entry the handle is positioned on.
	Current() (RawEntry, error)

	// Wait blocks until the journal changes or timeout elapses and returns
	// one of WaitNop, WaitAppend, WaitInvalidate, or a negative status.
	Wait(timeout time.Duration) int

	Close() error
}

// Opener acquires read handles. Each Session gets its own handle.
type Opener interface {
	OpenHandle() (ReadHandle, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func() (ReadHandle, error)

// OpenHandle calls f.
func (f OpenerFunc) OpenHandle() (ReadHandle, error) { return f() }
