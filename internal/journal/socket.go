package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
)

// DefaultSocketPath is the standard journald socket location.
const DefaultSocketPath = "/run/systemd/journal/socket"

// SocketSubmitter implements Submitter by writing native protocol datagrams
// to a journald-compatible socket. Each entry is one datagram, so the
// journal sees all of its fields at once.
type SocketSubmitter struct {
	socketPath string

	mu   sync.Mutex
	conn *net.UnixConn
}

var _ Submitter = (*SocketSubmitter)(nil)

// NewSocketSubmitter creates a submitter for the given socket path.
// If socketPath is empty, uses DefaultSocketPath.
func NewSocketSubmitter(socketPath string) *SocketSubmitter {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	return &SocketSubmitter{socketPath: socketPath}
}

// Submit sends records as a single datagram. Entries too large for one
// datagram are passed to the journal through a sealed memfd instead.
func (s *SocketSubmitter) Submit(records [][]byte) error {
	data := MarshalDatagram(records)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConn(); err != nil {
		return err
	}

	_, err := s.conn.Write(data)
	if err != nil && (errors.Is(err, syscall.EMSGSIZE) || errors.Is(err, syscall.ENOBUFS)) {
		slog.Debug("journal datagram too large, using memfd", "bytes", len(data))
		err = sendMemfd(s.conn, data)
	}
	if err != nil {
		// Connection may have gone stale, close and let next write reconnect
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("writing to journal socket: %w", err)
	}
	return nil
}

// Close releases the socket connection.
func (s *SocketSubmitter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// SocketPath returns the configured socket path.
func (s *SocketSubmitter) SocketPath() string {
	return s.socketPath
}

// ensureConn opens the socket connection if not already open.
// Caller must hold s.mu.
func (s *SocketSubmitter) ensureConn() error {
	if s.conn != nil {
		return nil
	}

	addr := &net.UnixAddr{Name: s.socketPath, Net: "unixgram"}
	conn, err := net.DialUnix("unixgram", nil, addr)
	if err != nil {
		return fmt.Errorf("connecting to journal socket %s: %w", s.socketPath, err)
	}
	s.conn = conn
	return nil
}
