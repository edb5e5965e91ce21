package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestClientWriteAndTail(t *testing.T) {
	mj := NewMemoryJournal()
	c := NewClient(NewWriter(mj, WithIdentifier("jtail")), mj, 50*time.Millisecond)
	defer c.Close()

	s, err := c.Tail()
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if err := s.SeekToEnd(); err != nil {
		t.Fatalf("SeekToEnd: %v", err)
	}

	if err := c.WriteSimple(SeverityInfo, "Test: %s", "example1"); err != nil {
		t.Fatalf("WriteSimple: %v", err)
	}
	if err := c.WriteStructured(NewEntry(SeverityInfo, "example3").Add("CUSTOM_FIELD", "example4")); err != nil {
		t.Fatalf("WriteStructured: %v", err)
	}
	if err := c.WriteError("demo", 2); err != nil {
		t.Fatalf("WriteError: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var got []*Entry
	for e, err := range s.Follow(ctx) {
		if err != nil {
			t.Fatalf("Follow: %v", err)
		}
		got = append(got, e)
		if len(got) == 3 {
			break
		}
	}

	if got[0].Message() != "Test: example1" {
		t.Errorf("first message = %q", got[0].Message())
	}
	if v, _ := got[1].Get("CUSTOM_FIELD"); v != "example4" {
		t.Errorf("CUSTOM_FIELD = %q", v)
	}
	if v, _ := got[2].Get(FieldErrno); v != "2" {
		t.Errorf("ERRNO = %q", v)
	}
	for _, e := range got {
		if id, _ := e.Get(FieldIdentifier); id != "jtail" {
			t.Errorf("SYSLOG_IDENTIFIER = %q", id)
		}
	}
}

func TestClientWriteSync(t *testing.T) {
	mj := NewMemoryJournal()
	c := NewClient(NewWriter(mj), mj, 20*time.Millisecond)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.WriteSync(ctx, NewEntry(SeverityNotice, "synced")); err != nil {
		t.Fatalf("WriteSync: %v", err)
	}

	entries := mj.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if nonce, _ := entries[0].Get(FieldWriteNonce); nonce == "" {
		t.Error("expected write nonce on synced entry")
	}
}

// blackholeSubmitter accepts entries and never stores them.
type blackholeSubmitter struct{}

func (blackholeSubmitter) Submit([][]byte) error { return nil }
func (blackholeSubmitter) Close() error          { return nil }

func TestClientWriteSyncCancelled(t *testing.T) {
	mj := NewMemoryJournal()
	c := NewClient(NewWriter(blackholeSubmitter{}), mj, 20*time.Millisecond)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.WriteSync(ctx, NewEntry(SeverityInfo, "never readable"))
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestClientCloseReleasesSessions(t *testing.T) {
	mj := NewMemoryJournal()
	c := NewClient(NewWriter(mj), mj, 0)

	s1, err := c.Tail()
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	s2, err := c.Tail()
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for i, s := range []*Session{s1, s2} {
		if s.State() != StateClosed {
			t.Errorf("session %d state = %v, want closed", i, s.State())
		}
	}
	if _, err := c.Tail(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Tail after Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestClientCloseSession(t *testing.T) {
	mj := NewMemoryJournal()
	c := NewClient(NewWriter(mj), mj, 0)
	defer c.Close()

	s, err := c.Tail()
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if err := c.CloseSession(s); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
	if len(c.res.sessions) != 0 {
		t.Errorf("client still tracks %d sessions", len(c.res.sessions))
	}
}

func TestClientTailOpenError(t *testing.T) {
	mj := NewMemoryJournal()
	mj.Shutdown()
	c := NewClient(NewWriter(mj), mj, 0)
	defer c.Close()

	_, err := c.Tail()
	var oe *OpenError
	if !errors.As(err, &oe) {
		t.Fatalf("expected OpenError, got %v", err)
	}
}

func TestOpenClientWritesWithoutReader(t *testing.T) {
	mj := NewMemoryJournal()
	l, err := Listen(filepath.Join(t.TempDir(), "journal.socket"), mj)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	c, err := OpenClient(Options{
		SocketPath: l.SocketPath(),
		JournalDir: filepath.Join(t.TempDir(), "missing"),
		Identifier: "jtail",
	})
	if err != nil {
		t.Fatalf("OpenClient: %v", err)
	}
	defer c.Close()

	if err := c.WriteSimple(SeverityInfo, "Test: %s", "example1"); err != nil {
		t.Fatalf("WriteSimple: %v", err)
	}
	got := waitForEntries(t, mj, 1)[0]
	if got.Message() != "Test: example1" {
		t.Errorf("MESSAGE = %q", got.Message())
	}

	// Reading is only attempted by Tail, and a failure there is an OpenError.
	if s, err := c.Tail(); err != nil {
		var oe *OpenError
		if !errors.As(err, &oe) {
			t.Errorf("Tail error = %v, want OpenError", err)
		}
	} else {
		c.CloseSession(s)
	}
}
