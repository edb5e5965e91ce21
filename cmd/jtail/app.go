package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mbrock/jtail/internal/config"
	"github.com/mbrock/jtail/internal/journal"
	"github.com/mbrock/jtail/internal/probe"
	"github.com/mbrock/jtail/internal/render"
)

// app holds what the subcommands share.
type app struct {
	cfg    config.Config
	client *journal.Client
	out    io.Writer

	// loopback only
	listener *journal.Listener
	mem      *journal.MemoryJournal
}

// newApp connects to the system journal, or with loopback starts an
// in-process journal listening on cfg.SocketPath. Writes always go
// through the socket.
func newApp(cfg config.Config, loopback bool) (*app, error) {
	if !loopback {
		client, err := journal.OpenClient(cfg.ClientOptions())
		if err != nil {
			return nil, err
		}
		return &app{cfg: cfg, client: client, out: os.Stdout}, nil
	}

	mem := journal.NewMemoryJournal()
	l, err := journal.Listen(cfg.SocketPath, mem)
	if err != nil {
		return nil, fmt.Errorf("loopback journal: %w", err)
	}
	slog.Debug("loopback journal listening", "socket", l.SocketPath())

	w := journal.NewWriter(journal.NewSocketSubmitter(l.SocketPath()), journal.WithIdentifier(cfg.Identifier))
	return &app{
		cfg:      cfg,
		client:   journal.NewClient(w, mem, cfg.WaitTimeout),
		out:      os.Stdout,
		listener: l,
		mem:      mem,
	}, nil
}

func (a *app) Close() error {
	err := a.client.Close()
	if a.listener != nil {
		err = errors.Join(err, a.listener.Close())
		a.mem.Shutdown()
	}
	return err
}

type tailOptions struct {
	afterCursor journal.Cursor
	fromStart   bool
	count       int
}

func (a *app) cmdTail(ctx context.Context, opts tailOptions) error {
	s, err := a.openSession()
	if err != nil {
		return err
	}
	defer a.client.CloseSession(s)

	switch {
	case opts.afterCursor != "":
		err = s.SeekCursor(opts.afterCursor)
	case opts.fromStart:
		err = s.SeekHead()
	default:
		err = s.SeekToEnd()
	}
	if err != nil {
		return err
	}
	return a.follow(ctx, s, opts.count)
}

// openSession opens a session with the configured matches applied.
func (a *app) openSession() (*journal.Session, error) {
	s, err := a.client.Tail()
	if err != nil {
		return nil, err
	}
	for _, m := range a.cfg.Matches {
		if err := s.AddMatch(m); err != nil {
			a.client.CloseSession(s)
			return nil, err
		}
	}
	return s, nil
}

// follow renders entries until ctx is cancelled or count entries were
// printed. Cancellation is a clean exit.
func (a *app) follow(ctx context.Context, s *journal.Session, count int) error {
	format, err := render.ParseFormat(a.cfg.Output)
	if err != nil {
		return err
	}
	r := render.New(a.out, format)

	n := 0
	for e, err := range s.Follow(ctx) {
		if errors.Is(err, journal.ErrCancelled) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := r.Render(e); err != nil {
			return err
		}
		n++
		if count > 0 && n >= count {
			return nil
		}
	}
	return nil
}

func (a *app) cmdSend(severity, message string, fields []string) error {
	sev, err := journal.ParseSeverity(severity)
	if err != nil {
		return err
	}
	if message == "" && len(fields) == 0 {
		return errors.New("send needs --message or at least one --field")
	}

	e := journal.NewEntry(sev, message)
	for _, f := range fields {
		name, value, err := parseField(f)
		if err != nil {
			return err
		}
		if !journal.ValidFieldName(name) {
			slog.Warn("dropping field with invalid name", "field", name)
			continue
		}
		e.Add(name, value)
	}
	return a.client.WriteStructured(e)
}

// parseField splits NAME=VALUE at the first '='.
func parseField(s string) (name, value string, err error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("field %q must look like NAME=VALUE", s)
	}
	return name, value, nil
}

func (a *app) cmdPrint(severity, format string, args []string) error {
	sev, err := journal.ParseSeverity(severity)
	if err != nil {
		return err
	}
	vals := make([]any, len(args))
	for i, arg := range args {
		vals[i] = arg
	}
	return a.client.WriteSimple(sev, format, vals...)
}

func (a *app) cmdPerror(prefix, errno string) error {
	n, err := parseErrno(errno)
	if err != nil {
		return err
	}
	return a.client.WriteError(prefix, n)
}

// parseErrno accepts a number or a name such as ENOENT.
func parseErrno(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("errno must be positive, got %d", n)
		}
		return n, nil
	}
	name := strings.ToUpper(s)
	for n := 1; n < 256; n++ {
		if unix.ErrnoName(unix.Errno(n)) == name {
			return n, nil
		}
	}
	return 0, fmt.Errorf("unknown errno %q", s)
}

// cmdDemo positions at the end, writes the sample entries and then tails
// them along with anything else that arrives.
func (a *app) cmdDemo(ctx context.Context, count int) error {
	s, err := a.openSession()
	if err != nil {
		return err
	}
	defer a.client.CloseSession(s)

	if err := s.SeekToEnd(); err != nil {
		return err
	}

	if err := a.client.WriteSimple(journal.SeverityInfo, "Test: %s", "example1"); err != nil {
		return err
	}
	if err := a.client.WriteSimple(journal.SeverityInfo, "Test: example2"); err != nil {
		return err
	}
	e := journal.NewEntry(journal.SeverityInfo, "example3").Add("CUSTOM_FIELD", "example4")
	if err := a.client.WriteStructured(e); err != nil {
		return err
	}
	if err := a.client.WriteError("demo", int(unix.ENOENT)); err != nil {
		return err
	}

	return a.follow(ctx, s, count)
}

func cmdStatus(ctx context.Context, cfg config.Config) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	st := probe.Run(ctx, cfg.SocketPath)
	fmt.Print(st.String())
	if !st.Healthy() {
		return 1
	}
	return 0
}
