//go:build linux && cgo

package journal

import (
	"errors"
	"testing"

	"github.com/coreos/go-systemd/v22/sdjournal"
)

// scriptedJournal is a position over seqnums 1..n where some seqnums are
// missing, standing in for a journal whose older entries were rotated.
type scriptedJournal struct {
	seqnums []uint64
	pos     int // index of the current entry, -1 before the first
	seekTo  uint64
}

func (j *scriptedJournal) SeekCursor(cursor string) error {
	seq, ok := Cursor(cursor).Seqnum()
	if !ok {
		return errors.New("bad cursor")
	}
	j.seekTo = seq
	// Like sd_journal, the next Next lands on the nearest entry at or
	// after the cursor.
	j.pos = -1
	for i, s := range j.seqnums {
		if s < seq {
			j.pos = i
		}
	}
	return nil
}

func (j *scriptedJournal) Next() (uint64, error) {
	if j.pos+1 >= len(j.seqnums) {
		return 0, nil
	}
	j.pos++
	return 1, nil
}

func (j *scriptedJournal) Previous() (uint64, error) {
	if j.pos <= 0 {
		j.pos = -1
		return 0, nil
	}
	j.pos--
	return 1, nil
}

func (j *scriptedJournal) TestCursor(cursor string) error {
	if seq, _ := Cursor(cursor).Seqnum(); j.pos >= 0 && j.seqnums[j.pos] == seq {
		return nil
	}
	return sdjournal.ErrNoTestCursor
}

func (j *scriptedJournal) nextSeqnum(t *testing.T) uint64 {
	t.Helper()
	n, err := j.Next()
	if err != nil || n == 0 {
		t.Fatalf("Next = %d, %v", n, err)
	}
	return j.seqnums[j.pos]
}

func TestSeekAfterCursorSkipsCursorEntry(t *testing.T) {
	j := &scriptedJournal{seqnums: []uint64{1, 2, 3}}
	if err := seekAfterCursor(j, "s=x;i=2"); err != nil {
		t.Fatalf("seekAfterCursor: %v", err)
	}
	if got := j.nextSeqnum(t); got != 3 {
		t.Errorf("next entry = %d, want 3", got)
	}
}

func TestSeekAfterCursorKeepsNearestWhenCursorIsGone(t *testing.T) {
	// Entry 2 was rotated away; the cursor for it must resume at 3.
	j := &scriptedJournal{seqnums: []uint64{1, 3, 4}}
	if err := seekAfterCursor(j, "s=x;i=2"); err != nil {
		t.Fatalf("seekAfterCursor: %v", err)
	}
	if got := j.nextSeqnum(t); got != 3 {
		t.Errorf("next entry = %d, want 3", got)
	}
}
