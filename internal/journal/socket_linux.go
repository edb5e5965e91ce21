//go:build linux

package journal

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// sendMemfd hands data to journald as a sealed memfd passed with
// SCM_RIGHTS, which is how oversized entries travel on Linux.
func sendMemfd(conn *net.UnixConn, data []byte) error {
	fd, err := unix.MemfdCreate("journal-entry", unix.MFD_CLOEXEC|unix.MFD_ALLOW_SEALING)
	if err != nil {
		return fmt.Errorf("memfd_create: %w", err)
	}
	defer unix.Close(fd)

	for off := 0; off < len(data); {
		n, err := unix.Write(fd, data[off:])
		if err != nil {
			return fmt.Errorf("writing memfd: %w", err)
		}
		off += n
	}

	seals := unix.F_SEAL_SHRINK | unix.F_SEAL_GROW | unix.F_SEAL_WRITE | unix.F_SEAL_SEAL
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_ADD_SEALS, seals); err != nil {
		return fmt.Errorf("sealing memfd: %w", err)
	}

	// The connection is already connected, so net refuses WriteMsgUnix on
	// it; sendmsg on the raw descriptor goes to the connected peer.
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("sending memfd: %w", err)
	}
	var sendErr error
	err = raw.Write(func(sock uintptr) bool {
		sendErr = unix.Sendmsg(int(sock), nil, unix.UnixRights(fd), nil, 0)
		return sendErr != unix.EAGAIN
	})
	if err == nil {
		err = sendErr
	}
	if err != nil {
		return fmt.Errorf("sending memfd: %w", err)
	}
	return nil
}

// readPassedFD reads the whole content of a file descriptor received over
// SCM_RIGHTS and closes it.
func readPassedFD(fd int) ([]byte, error) {
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, fmt.Errorf("fstat passed fd: %w", err)
	}
	buf := make([]byte, st.Size)
	for off := 0; off < len(buf); {
		n, err := unix.Pread(fd, buf[off:], int64(off))
		if err != nil {
			return nil, fmt.Errorf("reading passed fd: %w", err)
		}
		if n == 0 {
			break
		}
		off += n
	}
	return buf, nil
}
