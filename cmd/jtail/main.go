// jtail - tail and write the systemd journal
//
// Usage:
//
//	jtail tail                         Print entries as they are appended
//	jtail send --message <text>        Write one structured entry
//	jtail print <format> [args...]     Write a formatted message
//	jtail perror [--prefix p] <errno>  Write an errno entry at error severity
//	jtail status                       Check the journal service
//	jtail demo                         Write sample entries, then tail them
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdjournal "github.com/coreos/go-systemd/v22/journal"
	flag "github.com/spf13/pflag"

	"github.com/mbrock/jtail/internal/config"
	"github.com/mbrock/jtail/internal/dirs"
	"github.com/mbrock/jtail/internal/journal"
)

// Global flags
var (
	configFlag      string
	socketFlag      string
	directoryFlag   string
	fileFlags       []string
	identifierFlag  string
	outputFlag      string
	matchFlags      []string
	afterCursorFlag string
	fromStartFlag   bool
	countFlag       int
	severityFlag    string
	messageFlag     string
	fieldFlags      []string
	prefixFlag      string
	waitTimeoutFlag time.Duration
	loopbackFlag    bool
	debugFlag       bool
)

func main() {
	flag.StringVar(&configFlag, "config", config.Path(), "Config file")
	flag.StringVar(&socketFlag, "socket", journal.DefaultSocketPath, "Journal socket path (overrides JTAIL_JOURNAL_SOCKET)")
	flag.StringVarP(&directoryFlag, "directory", "D", "", "Read journal files from directory")
	flag.StringArrayVar(&fileFlags, "file", nil, "Read journal file (can be repeated)")
	flag.StringVar(&identifierFlag, "identifier", "", "SYSLOG_IDENTIFIER for written entries")
	flag.StringVarP(&outputFlag, "output", "o", "", "Output format: text, json")
	flag.StringArrayVarP(&matchFlags, "match", "m", nil, "Only show entries with FIELD=VALUE (can be repeated)")
	flag.StringVar(&afterCursorFlag, "after-cursor", "", "Start after this cursor")
	flag.BoolVar(&fromStartFlag, "from-start", false, "Start at the oldest entry instead of the tail")
	flag.IntVarP(&countFlag, "count", "n", 0, "Exit after this many entries (0 = follow forever)")
	flag.StringVarP(&severityFlag, "severity", "s", "info", "Severity 0-7 or name (emerg ... debug)")
	flag.StringVar(&messageFlag, "message", "", "MESSAGE for send")
	flag.StringArrayVarP(&fieldFlags, "field", "f", nil, "Add field NAME=VALUE (can be repeated)")
	flag.StringVar(&prefixFlag, "prefix", "", "Message prefix for perror")
	flag.DurationVar(&waitTimeoutFlag, "wait-timeout", journal.DefaultWaitTimeout, "Upper bound of a single journal wait")
	flag.BoolVar(&loopbackFlag, "loopback", false, "Serve an in-process journal on the socket instead of using journald")
	flag.BoolVar(&debugFlag, "debug", false, "Debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `jtail - tail and write the systemd journal

Usage:
  jtail tail [flags]                       Print entries appended from now on
  jtail send --message <text> [-f K=V]...  Write one structured entry
  jtail print <format> [args...]           Write a formatted message
  jtail perror [--prefix text] <errno>     Write an errno entry (severity err)
  jtail status                             Check socket and journald state
  jtail demo                               Write sample entries, then tail them

Flags:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		fatal("%v", err)
	}
	setupLogging(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := args[0]
	cmdArgs := args[1:]

	if cmd == "status" {
		os.Exit(cmdStatus(ctx, cfg))
	}

	a, err := newApp(cfg, loopbackFlag)
	if err != nil {
		fatal("%v", err)
	}

	switch cmd {
	case "tail":
		err = a.cmdTail(ctx, tailOptions{
			afterCursor: journal.Cursor(afterCursorFlag),
			fromStart:   fromStartFlag,
			count:       countFlag,
		})
	case "send":
		err = a.cmdSend(severityFlag, messageFlag, fieldFlags)
	case "print":
		if len(cmdArgs) == 0 {
			err = errors.New("usage: jtail print <format> [args...]")
			break
		}
		err = a.cmdPrint(severityFlag, cmdArgs[0], cmdArgs[1:])
	case "perror":
		if len(cmdArgs) == 0 {
			err = errors.New("usage: jtail perror [--prefix text] <errno>")
			break
		}
		err = a.cmdPerror(prefixFlag, cmdArgs[0])
	case "demo":
		err = a.cmdDemo(ctx, countFlag)
	default:
		err = fmt.Errorf("unknown command: %s", cmd)
	}

	if cerr := a.Close(); cerr != nil {
		slog.Debug("closing client", "error", cerr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// loadConfig layers flags that were set explicitly over the config file
// and environment.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return cfg, err
	}

	set := flag.CommandLine.Changed
	if set("socket") {
		cfg.SocketPath = socketFlag
	} else if loopbackFlag && os.Getenv("JTAIL_JOURNAL_SOCKET") == "" {
		cfg.SocketPath = filepath.Join(dirs.RuntimeDir(), "journal.socket")
	}
	if set("directory") {
		cfg.JournalDir = directoryFlag
	}
	if set("file") {
		cfg.Files = fileFlags
	}
	if set("identifier") {
		cfg.Identifier = identifierFlag
	}
	if set("output") {
		cfg.Output = outputFlag
	}
	if set("match") {
		cfg.Matches = matchFlags
	}
	if set("wait-timeout") {
		cfg.WaitTimeout = waitTimeoutFlag
	}
	if debugFlag {
		cfg.Debug = true
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// setupLogging installs the default slog handler. When stderr already goes
// to the journal, timestamps are left to journald.
func setupLogging(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}
	if ok, _ := sdjournal.StderrIsJournalStream(); ok {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
}

// exitCode maps an error to the process exit status. Transport failures
// exit with their errno so scripts can tell them apart.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if status := journal.StatusOf(err); status < 0 {
		return min(-status, 125)
	}
	return 1
}
