package journal

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"runtime"
	"sync"
	"syscall"
	"time"
)

// DefaultWaitTimeout bounds a single native wait. It is also the worst-case
// delay between cancelling a Follow and the handle being free again.
const DefaultWaitTimeout = 250 * time.Millisecond

// SessionState tracks where a Session is in its lifecycle.
type SessionState int

const (
	StateClosed SessionState = iota
	StateOpened
	StateSeeking
	StateTailing
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateSeeking:
		return "seeking"
	case StateTailing:
		return "tailing"
	}
	return "unknown"
}

// WaitOutcome is the result of WaitForNext.
type WaitOutcome int

const (
	Available WaitOutcome = iota + 1
	TimedOut
	Cancelled
)

func (o WaitOutcome) String() string {
	switch o {
	case Available:
		return "available"
	case TimedOut:
		return "timed out"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Session is one read cursor over the journal. It is used by one reader at
// a time; independent tails need independent sessions. Close may be called
// from another goroutine.
type Session struct {
	mu       sync.Mutex
	handle   ReadHandle
	state    SessionState
	pending  *pendingWait
	followed bool
	last     Cursor

	timeout     time.Duration
	onMalformed func(error)
	cleanup     runtime.Cleanup
}

// pendingWait is a native wait running on its own goroutine. It may outlive
// the WaitForNext call that started it when that call is cancelled.
type pendingWait struct {
	done   chan struct{}
	result int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithWaitTimeout sets the timeout Follow uses for each native wait.
func WithWaitTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMalformedHandler receives records that could not be decoded. The
// default logs them at warn level.
func WithMalformedHandler(fn func(error)) SessionOption {
	return func(s *Session) { s.onMalformed = fn }
}

// Open acquires a read handle from o.
func Open(o Opener, opts ...SessionOption) (*Session, error) {
	h, err := o.OpenHandle()
	if err != nil {
		var oe *OpenError
		if errors.As(err, &oe) {
			return nil, oe
		}
		return nil, &OpenError{Source: "journal", Err: err}
	}

	s := &Session{
		handle:  h,
		state:   StateOpened,
		timeout: DefaultWaitTimeout,
		onMalformed: func(err error) {
			slog.Warn("skipping malformed journal record", "error", err)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	// Release the handle if the session is dropped without Close.
	s.cleanup = runtime.AddCleanup(s, func(h ReadHandle) { h.Close() }, h)
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cursor returns the cursor of the last entry returned by Next.
func (s *Session) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// AddMatch restricts the session to entries with "FIELD=value". Values of
// the same field are ORed, different fields are ANDed. Add matches before
// seeking.
func (s *Session) AddMatch(match string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	s.drainLocked()
	if err := s.handle.AddMatch(match); err != nil {
		return transportError("add match", err)
	}
	return nil
}

// SeekToEnd positions the session at the current tail: only entries
// appended after this call are returned.
func (s *Session) SeekToEnd() error {
	return s.seek("seek tail", s.handle.SeekTail)
}

// SeekHead positions the session before the oldest entry.
func (s *Session) SeekHead() error {
	return s.seek("seek head", s.handle.SeekHead)
}

// SeekCursor positions the session just after cursor.
func (s *Session) SeekCursor(cursor Cursor) error {
	return s.seek("seek cursor", func() error { return s.handle.SeekCursor(cursor) })
}

func (s *Session) seek(op string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	s.drainLocked()

	s.state = StateSeeking
	if err := fn(); err != nil {
		return transportError(op, err)
	}
	s.state = StateTailing
	s.last = ""
	return nil
}

// Next advances one entry. ok is false when no entry is available yet.
// If a cancelled wait is still running, Next first waits for it to return.
func (s *Session) Next() (e *Entry, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.positionedLocked(); err != nil {
		return nil, false, err
	}
	s.drainLocked()

	found, err := s.handle.Next()
	if err != nil {
		return nil, false, transportError("next", err)
	}
	if !found {
		return nil, false, nil
	}

	raw, err := s.handle.Current()
	if err != nil {
		return nil, false, transportError("read entry", err)
	}

	e = decodeEntry(raw.Records, s.onMalformed)
	e.Cursor = raw.Cursor
	e.Realtime = raw.Realtime

	if s.last != "" && e.Cursor.Compare(s.last) < 0 {
		slog.Warn("journal cursor moved backwards", "previous", s.last, "cursor", e.Cursor)
	}
	s.last = e.Cursor
	return e, true, nil
}

// WaitForNext blocks until the journal changes, timeout elapses, or ctx is
// done. A timeout of zero or less uses the session's wait timeout.
//
// The native wait runs on its own goroutine so cancellation returns at
// once; the handle stays busy until that wait ends, at most timeout later.
// A wait left behind by a cancelled call is picked up again: a change it
// saw is reported as Available, and a timeout it hit only counts against
// the remaining time.
func (s *Session) WaitForNext(ctx context.Context, timeout time.Duration) (WaitOutcome, error) {
	if ctx.Err() != nil {
		return Cancelled, nil
	}
	if timeout <= 0 {
		timeout = s.timeout
	}
	deadline := time.Now().Add(timeout)

	for {
		s.mu.Lock()
		if err := s.positionedLocked(); err != nil {
			s.mu.Unlock()
			return 0, err
		}
		p := s.pending
		fresh := p == nil
		if fresh {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				s.mu.Unlock()
				return TimedOut, nil
			}
			p = &pendingWait{done: make(chan struct{})}
			s.pending = p
			go s.runWait(p, remaining)
		}
		s.mu.Unlock()

		select {
		case <-p.done:
		case <-ctx.Done():
			return Cancelled, nil
		}

		s.mu.Lock()
		if s.pending == p {
			s.pending = nil
		}
		s.mu.Unlock()

		switch {
		case p.result < 0:
			return 0, &TransportError{Op: "wait", Status: p.result, Err: syscall.Errno(-p.result)}
		case p.result != WaitNop:
			return Available, nil
		case fresh:
			return TimedOut, nil
		}
	}
}

func (s *Session) runWait(p *pendingWait, timeout time.Duration) {
	p.result = s.handle.Wait(timeout)
	close(p.done)
}

// Follow returns the entries appended after the session's position, in
// cursor order, until ctx is done or an error occurs. The last element is
// ErrCancelled on cancellation, or the error that stopped it. The sequence
// can be ranged over once.
func (s *Session) Follow(ctx context.Context) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		s.mu.Lock()
		started := s.followed
		s.followed = true
		s.mu.Unlock()
		if started {
			yield(nil, ErrFollowStarted)
			return
		}

		for {
			if ctx.Err() != nil {
				yield(nil, ErrCancelled)
				return
			}

			e, ok, err := s.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if ok {
				if !yield(e, nil) {
					return
				}
				continue
			}

			outcome, err := s.WaitForNext(ctx, s.timeout)
			if err != nil {
				yield(nil, err)
				return
			}
			if outcome == Cancelled {
				yield(nil, ErrCancelled)
				return
			}
		}
	}
}

// Close releases the read handle, after any running wait has returned.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	p := s.pending
	s.pending = nil
	s.mu.Unlock()

	if p != nil {
		<-p.done
	}
	s.cleanup.Stop()
	return s.handle.Close()
}

// drainLocked waits for a wait left running by a cancelled WaitForNext.
// Caller must hold s.mu.
func (s *Session) drainLocked() {
	if s.pending != nil {
		<-s.pending.done
		s.pending = nil
	}
}

func (s *Session) usableLocked() error {
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) positionedLocked() error {
	switch s.state {
	case StateClosed:
		return ErrSessionClosed
	case StateTailing:
		return nil
	}
	return ErrNotPositioned
}
