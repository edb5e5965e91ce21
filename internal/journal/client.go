package journal

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Options configures OpenClient.
type Options struct {
	// SocketPath is the native protocol socket. Default: DefaultSocketPath.
	SocketPath string
	// JournalDir reads journal files from a directory instead of the system journal.
	JournalDir string
	// Files reads the given journal files instead of the system journal.
	Files []string
	// Identifier is stamped as SYSLOG_IDENTIFIER on written entries.
	Identifier string
	// WaitTimeout bounds each native wait of a tail.
	WaitTimeout time.Duration
}

// Client ties a Writer and the sessions opened through it to one lifetime.
// Close releases everything; a client that is dropped without Close
// releases its handles when it is garbage collected.
type Client struct {
	res         *clientResources
	opener      Opener
	waitTimeout time.Duration
	cleanup     runtime.Cleanup
}

// clientResources is everything Close has to release. It is kept apart
// from Client so the GC cleanup can reach it without keeping Client alive.
type clientResources struct {
	mu       sync.Mutex
	writer   *Writer
	sessions map[*Session]struct{}
	closed   bool
}

// OpenClient connects to the systemd journal: writes go to the native
// socket and reads go through sdjournal. Nothing is opened until the first
// write or Tail, so a journal that cannot be read only fails Tail, with an
// *OpenError.
func OpenClient(opts Options) (*Client, error) {
	opener := SDJournalOpener{Dir: opts.JournalDir, Files: opts.Files}

	var wopts []WriterOption
	if opts.Identifier != "" {
		wopts = append(wopts, WithIdentifier(opts.Identifier))
	}
	w := NewWriter(NewSocketSubmitter(opts.SocketPath), wopts...)
	return NewClient(w, opener, opts.WaitTimeout), nil
}

// NewClient assembles a client from an existing writer and opener.
func NewClient(w *Writer, opener Opener, waitTimeout time.Duration) *Client {
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	c := &Client{
		res: &clientResources{
			writer:   w,
			sessions: make(map[*Session]struct{}),
		},
		opener:      opener,
		waitTimeout: waitTimeout,
	}
	c.cleanup = runtime.AddCleanup(c, func(r *clientResources) { r.release() }, c.res)
	return c
}

// Writer returns the client's writer.
func (c *Client) Writer() *Writer {
	return c.res.writer
}

// WriteSimple is Writer.WriteSimple.
func (c *Client) WriteSimple(severity Severity, format string, args ...any) error {
	return c.res.writer.WriteSimple(severity, format, args...)
}

// WriteStructured is Writer.WriteStructured.
func (c *Client) WriteStructured(e *Entry) error {
	return c.res.writer.WriteStructured(e)
}

// WriteError is Writer.WriteError.
func (c *Client) WriteError(prefix string, errno int) error {
	return c.res.writer.WriteError(prefix, errno)
}

// Tail opens a new read session owned by the client. The session still
// has to be positioned with one of its Seek methods.
func (c *Client) Tail(opts ...SessionOption) (*Session, error) {
	c.res.mu.Lock()
	closed := c.res.closed
	c.res.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}

	opts = append([]SessionOption{WithWaitTimeout(c.waitTimeout)}, opts...)
	s, err := Open(c.opener, opts...)
	if err != nil {
		return nil, err
	}

	c.res.mu.Lock()
	defer c.res.mu.Unlock()
	if c.res.closed {
		s.Close()
		return nil, ErrSessionClosed
	}
	c.res.sessions[s] = struct{}{}
	return s, nil
}

// CloseSession closes s and forgets it.
func (c *Client) CloseSession(s *Session) error {
	c.res.mu.Lock()
	delete(c.res.sessions, s)
	c.res.mu.Unlock()
	return s.Close()
}

// WriteSync writes e and waits until it can be read back. The entry is
// tagged with a unique JTAIL_WRITE_NONCE so it can be found again.
func (c *Client) WriteSync(ctx context.Context, e *Entry) error {
	nonce := uuid.NewString()
	tagged := e.clone()
	tagged.Add(FieldWriteNonce, nonce)

	s, err := c.Tail()
	if err != nil {
		return err
	}
	defer c.CloseSession(s)

	if err := s.AddMatch(FieldWriteNonce + "=" + nonce); err != nil {
		return err
	}
	if err := s.SeekHead(); err != nil {
		return err
	}
	if err := c.WriteStructured(tagged); err != nil {
		return err
	}

	for {
		_, ok, err := s.Next()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		outcome, err := s.WaitForNext(ctx, c.waitTimeout)
		if err != nil {
			return err
		}
		if outcome == Cancelled {
			return fmt.Errorf("waiting for entry %s to become readable: %w", nonce, ErrCancelled)
		}
	}
}

// Close releases the writer and every session opened through the client.
func (c *Client) Close() error {
	c.cleanup.Stop()
	return c.res.release()
}

func (r *clientResources) release() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = nil
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Close())
	}
	errs = append(errs, r.writer.Close())
	return errors.Join(errs...)
}
