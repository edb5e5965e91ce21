package journal

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// Listener is a minimal journald-compatible socket. It accepts native
// protocol datagrams, including entries passed as a memfd, and hands each
// one to a Submitter. Together with a MemoryJournal it stands in for
// journald in loopback mode and in tests.
type Listener struct {
	socketPath string
	conn       *net.UnixConn
	sink       Submitter

	closeOnce sync.Once
	doneCh    chan struct{}
}

// Listen creates the socket at socketPath and starts forwarding entries to
// sink on a background goroutine.
func Listen(socketPath string, sink Submitter) (*Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}

	os.Remove(socketPath)
	addr := &net.UnixAddr{Name: socketPath, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	// Make socket world-writable so any process can log
	if err := os.Chmod(socketPath, 0666); err != nil {
		conn.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	l := &Listener{
		socketPath: socketPath,
		conn:       conn,
		sink:       sink,
		doneCh:     make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

// SocketPath returns the socket path.
func (l *Listener) SocketPath() string {
	return l.socketPath
}

// readLoop reads datagrams until the socket is closed.
func (l *Listener) readLoop() {
	defer close(l.doneCh)

	// Anything bigger than the socket send buffer arrives as a memfd.
	buf := make([]byte, 256*1024)
	oob := make([]byte, unix.CmsgSpace(4))
	count := 0

	for {
		n, oobn, flags, _, err := l.conn.ReadMsgUnix(buf, oob)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				slog.Debug("journal listener stopping", "entries", count)
				return
			}
			slog.Warn("journal listener read error", "error", err)
			continue
		}

		if flags&unix.MSG_TRUNC != 0 {
			slog.Warn("journal listener dropped truncated datagram", "bytes", n)
			continue
		}

		data := buf[:n]
		if oobn > 0 {
			passed, err := l.readRights(oob[:oobn])
			if err != nil {
				slog.Warn("journal listener dropped fd entry", "error", err)
				continue
			}
			data = passed
		}

		records, err := UnmarshalDatagram(data)
		if err != nil {
			slog.Warn("journal listener parse error", "error", err)
			continue
		}
		if err := l.sink.Submit(records); err != nil {
			slog.Error("journal listener write error", "error", err)
			continue
		}
		count++
	}
}

// readRights extracts the entry from a memfd passed with SCM_RIGHTS.
func (l *Listener) readRights(oob []byte) ([]byte, error) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}
	for _, m := range msgs {
		fds, err := unix.ParseUnixRights(&m)
		if err != nil || len(fds) == 0 {
			continue
		}
		for _, extra := range fds[1:] {
			unix.Close(extra)
		}
		return readPassedFD(fds[0])
	}
	return nil, errors.New("control message carried no file descriptor")
}

// Close stops the listener and removes the socket.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		err = l.conn.Close()
		<-l.doneCh
		os.Remove(l.socketPath)
	})
	return err
}
