// Package probe reports whether the journal service is usable: the native
// socket, the systemd-journald unit state over D-Bus, and whether our own
// stderr already goes to the journal.
package probe

import (
	"context"
	"fmt"
	"net"
	"strings"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	sdjournal "github.com/coreos/go-systemd/v22/journal"

	"github.com/mbrock/jtail/internal/journal"
)

// JournaldUnit is the unit queried for ActiveState.
const JournaldUnit = "systemd-journald.service"

// Status is the result of Run.
type Status struct {
	SocketPath      string
	SocketReachable bool
	SocketError     string

	// UnitState is the ActiveState of systemd-journald, or "" when D-Bus
	// could not be asked.
	UnitState string
	UnitError string

	StderrIsJournal bool
}

// Healthy reports whether entries can be written.
func (s Status) Healthy() bool {
	return s.SocketReachable
}

// Run probes the journal service behind socketPath. ctx bounds the D-Bus
// query.
func Run(ctx context.Context, socketPath string) Status {
	st := Status{SocketPath: socketPath}

	if err := checkSocket(socketPath); err != nil {
		st.SocketError = err.Error()
	} else {
		st.SocketReachable = true
	}

	state, err := unitActiveState(ctx, JournaldUnit)
	if err != nil {
		st.UnitError = err.Error()
	} else {
		st.UnitState = state
	}

	st.StderrIsJournal, _ = sdjournal.StderrIsJournalStream()
	return st
}

// checkSocket dials the native socket. For the default socket this is the
// same check go-systemd's journal.Enabled performs.
func checkSocket(path string) error {
	if path == "" || path == journal.DefaultSocketPath {
		if !sdjournal.Enabled() {
			return fmt.Errorf("journal socket %s not reachable", journal.DefaultSocketPath)
		}
		return nil
	}
	conn, err := net.Dial("unixgram", path)
	if err != nil {
		return err
	}
	return conn.Close()
}

// unitActiveState asks systemd on the system bus for a unit's ActiveState.
func unitActiveState(ctx context.Context, unit string) (string, error) {
	conn, err := sddbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return "", fmt.Errorf("connect system bus: %w", err)
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("get ActiveState of %s: %w", unit, err)
	}
	return propertyString(prop)
}

// propertyString unwraps a string-typed unit property.
func propertyString(p *sddbus.Property) (string, error) {
	if p == nil {
		return "", fmt.Errorf("missing property")
	}
	state, ok := p.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected %s type %s", p.Name, p.Value.Signature())
	}
	return state, nil
}

// String renders the status for humans.
func (s Status) String() string {
	var b strings.Builder
	if s.SocketReachable {
		fmt.Fprintf(&b, "socket:   %s (reachable)\n", s.SocketPath)
	} else {
		fmt.Fprintf(&b, "socket:   %s (unreachable: %s)\n", s.SocketPath, s.SocketError)
	}
	if s.UnitError != "" {
		fmt.Fprintf(&b, "journald: unknown (%s)\n", s.UnitError)
	} else {
		fmt.Fprintf(&b, "journald: %s\n", s.UnitState)
	}
	fmt.Fprintf(&b, "stderr:   journal stream = %v\n", s.StderrIsJournal)
	return b.String()
}
