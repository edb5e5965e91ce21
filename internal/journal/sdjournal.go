//go:build linux && cgo

package journal

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/coreos/go-systemd/v22/sdjournal"
)

// SDJournalOpener opens read handles through libsystemd via go-systemd's
// sdjournal. An empty Dir and no Files reads the local system journal.
type SDJournalOpener struct {
	Dir   string
	Files []string
}

var _ Opener = SDJournalOpener{}

// OpenHandle opens a new sd_journal handle.
func (o SDJournalOpener) OpenHandle() (ReadHandle, error) {
	var j *sdjournal.Journal
	var err error
	source := "system"

	switch {
	case len(o.Files) > 0:
		source = fmt.Sprint(o.Files)
		j, err = sdjournal.NewJournalFromFiles(o.Files...)
	case o.Dir != "":
		source = o.Dir
		j, err = sdjournal.NewJournalFromDir(o.Dir)
	default:
		j, err = sdjournal.NewJournal()
	}
	if err != nil {
		return nil, &OpenError{Source: source, Err: err}
	}
	return &sdHandle{j: j}, nil
}

// sdHandle adapts *sdjournal.Journal to ReadHandle.
type sdHandle struct {
	j *sdjournal.Journal
}

func (h *sdHandle) SeekHead() error {
	return h.j.SeekHead()
}

// SeekTail moves to the tail and then back onto the last entry, so the
// following Next lands on the first entry appended afterwards. On an empty
// journal Previous is a no-op and Next from the tail already does the right
// thing.
func (h *sdHandle) SeekTail() error {
	if err := h.j.SeekTail(); err != nil {
		return err
	}
	_, err := h.j.Previous()
	return err
}

func (h *sdHandle) SeekCursor(cursor Cursor) error {
	return seekAfterCursor(h.j, string(cursor))
}

// cursorSeeker is the part of *sdjournal.Journal seekAfterCursor needs.
type cursorSeeker interface {
	SeekCursor(cursor string) error
	Next() (uint64, error)
	Previous() (uint64, error)
	TestCursor(cursor string) error
}

// seekAfterCursor positions j so the following Next returns the entry
// after cursor. When the cursor's own entry is gone (rotated or vacuumed),
// sd_journal lands on the nearest entry instead, and that entry must not be
// skipped.
func seekAfterCursor(j cursorSeeker, cursor string) error {
	if err := j.SeekCursor(cursor); err != nil {
		return err
	}
	n, err := j.Next()
	if err != nil || n == 0 {
		return err
	}
	if err := j.TestCursor(cursor); err != nil {
		if !errors.Is(err, sdjournal.ErrNoTestCursor) {
			return err
		}
		_, err = j.Previous()
		return err
	}
	return nil
}

func (h *sdHandle) AddMatch(match string) error {
	return h.j.AddMatch(match)
}

func (h *sdHandle) FlushMatches() {
	h.j.FlushMatches()
}

func (h *sdHandle) Next() (bool, error) {
	n, err := h.j.Next()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Current reads the entry under the cursor. sdjournal hands fields back as
// a map, so repeated fields collapse to one value and records are ordered
// by name.
func (h *sdHandle) Current() (RawEntry, error) {
	raw, err := h.j.GetEntry()
	if err != nil {
		return RawEntry{}, err
	}

	names := make([]string, 0, len(raw.Fields))
	for name := range raw.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([][]byte, 0, len(names))
	for _, name := range names {
		records = append(records, []byte(name+"="+raw.Fields[name]))
	}

	return RawEntry{
		Cursor:   Cursor(raw.Cursor),
		Realtime: time.UnixMicro(int64(raw.RealtimeTimestamp)),
		Records:  records,
	}, nil
}

func (h *sdHandle) Wait(timeout time.Duration) int {
	if timeout < 0 {
		timeout = sdjournal.IndefiniteWait
	}
	return h.j.Wait(timeout)
}

func (h *sdHandle) Close() error {
	return h.j.Close()
}
