package journal

import (
	"errors"
	"fmt"
	"sync"
	"syscall"
	"testing"
)

// failingSubmitter returns err from every Submit.
type failingSubmitter struct{ err error }

func (f failingSubmitter) Submit([][]byte) error { return f.err }
func (f failingSubmitter) Close() error          { return nil }

func TestWriteSimple(t *testing.T) {
	mj := NewMemoryJournal()
	w := NewWriter(mj)

	if err := w.WriteSimple(3, "Test: %s", "example1"); err != nil {
		t.Fatalf("WriteSimple: %v", err)
	}

	entries := mj.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].Message(); got != "Test: example1" {
		t.Errorf("MESSAGE = %q, want %q", got, "Test: example1")
	}
	if sev, ok := entries[0].Priority(); !ok || sev != SeverityError {
		t.Errorf("PRIORITY = %v (ok=%v), want 3", sev, ok)
	}
}

func TestWriteSimpleRejectsBadSeverity(t *testing.T) {
	w := NewWriter(NewMemoryJournal())
	if err := w.WriteSimple(9, "nope"); err == nil {
		t.Fatal("expected error for severity 9")
	}
}

func TestWriteStructuredIsOneEntry(t *testing.T) {
	mj := NewMemoryJournal()
	w := NewWriter(mj)

	e := &Entry{}
	e.Add("MESSAGE", "hello").Add("PRIORITY", "6").Add("CUSTOM", "x").Add("bad", "dropped")
	if err := w.WriteStructured(e); err != nil {
		t.Fatalf("WriteStructured: %v", err)
	}

	entries := mj.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0].Map()
	want := map[string]string{"MESSAGE": "hello", "PRIORITY": "6", "CUSTOM": "x"}
	if len(got) != len(want) {
		t.Fatalf("fields = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestWriteStructuredMultiValued(t *testing.T) {
	mj := NewMemoryJournal()
	w := NewWriter(mj)

	e := NewEntry(SeverityInfo, "tags")
	e.Add("TAG", "a").Add("TAG", "b").Add("TAG", "c")
	if err := w.WriteStructured(e); err != nil {
		t.Fatalf("WriteStructured: %v", err)
	}

	tags := mj.Entries()[0].GetAll("TAG")
	if fmt.Sprint(tags) != "[a b c]" {
		t.Errorf("TAG values = %v, want [a b c]", tags)
	}
}

func TestWriteStructuredEmpty(t *testing.T) {
	w := NewWriter(NewMemoryJournal())
	e := (&Entry{}).Add("lower", "x")
	if err := w.WriteStructured(e); !errors.Is(err, ErrEmptyEntry) {
		t.Fatalf("expected ErrEmptyEntry, got %v", err)
	}
}

func TestWriteStructuredDoesNotAliasCaller(t *testing.T) {
	mj := NewMemoryJournal()
	w := NewWriter(mj, WithIdentifier("jtail-test"))

	e := NewEntry(SeverityInfo, "hello")
	if err := w.WriteStructured(e); err != nil {
		t.Fatalf("WriteStructured: %v", err)
	}
	if e.Has(FieldIdentifier) {
		t.Error("writer must not modify the caller's entry")
	}
	if id, _ := mj.Entries()[0].Get(FieldIdentifier); id != "jtail-test" {
		t.Errorf("SYSLOG_IDENTIFIER = %q, want jtail-test", id)
	}
}

func TestWriteError(t *testing.T) {
	mj := NewMemoryJournal()
	w := NewWriter(mj)

	if err := w.WriteError("opening config", int(syscall.ENOENT)); err != nil {
		t.Fatalf("WriteError: %v", err)
	}
	if err := w.WriteError("", int(syscall.EACCES)); err != nil {
		t.Fatalf("WriteError: %v", err)
	}

	entries := mj.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	first := entries[0]
	if want := "opening config: " + syscall.ENOENT.Error(); first.Message() != want {
		t.Errorf("MESSAGE = %q, want %q", first.Message(), want)
	}
	if v, _ := first.Get(FieldErrno); v != fmt.Sprint(int(syscall.ENOENT)) {
		t.Errorf("ERRNO = %q", v)
	}
	if sev, _ := first.Priority(); sev != SeverityError {
		t.Errorf("PRIORITY = %v, want err", sev)
	}

	if got := entries[1].Message(); got != syscall.EACCES.Error() {
		t.Errorf("MESSAGE without prefix = %q, want %q", got, syscall.EACCES.Error())
	}
}

func TestWriterTransportErrorKeepsStatus(t *testing.T) {
	w := NewWriter(failingSubmitter{err: fmt.Errorf("dial: %w", syscall.ECONNREFUSED)})

	err := w.WriteSimple(SeverityInfo, "hello")
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Status != -int(syscall.ECONNREFUSED) {
		t.Errorf("Status = %d, want %d", te.Status, -int(syscall.ECONNREFUSED))
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Error("TransportError should unwrap to the errno")
	}
	if StatusOf(err) != te.Status {
		t.Errorf("StatusOf = %d", StatusOf(err))
	}
}

func TestWriterAfterShutdown(t *testing.T) {
	mj := NewMemoryJournal()
	mj.Shutdown()

	err := NewWriter(mj).WriteSimple(SeverityInfo, "lost")
	if StatusOf(err) >= 0 {
		t.Fatalf("expected negative status, got %v", err)
	}
}

func TestConcurrentWriters(t *testing.T) {
	mj := NewMemoryJournal()
	w := NewWriter(mj)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := w.WriteSimple(SeverityDebug, "writer %d entry %d", n, j); err != nil {
					t.Errorf("WriteSimple: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if n := mj.Len(); n != 400 {
		t.Errorf("expected 400 entries, got %d", n)
	}
}
