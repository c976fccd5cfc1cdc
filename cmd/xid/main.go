// xid - command-line tool for generating and inspecting xid identifiers
//
// Usage:
//
//	xid [global flags] <command> [flags] [args]
//
// Commands:
//
//	generate            Mint ids (default command)
//	inspect <id>...     Show the fields of ids (text, hex or base64 input)
//	validate <id>...    Check that ids are canonical 20-character text
//	convert <raw>...    Convert between text, hex and base64
//	min <time>          Smallest id for the second containing a time
//	bench               Measure generation throughput and check uniqueness
//	version             Print version information
//
// Global flags:
//
//	--config, -c        YAML or JSON configuration file ($XID_CONFIG)
//	--machine-id, -m    Pin the machine id (6 hex digits)
//	--redis-addr        Lease the machine id from Redis at this address
//	--log-level         debug, info, warn or error
//	--log-format        text or json
//
// Exit codes:
//
//	0: success
//	1: failure (invalid id, Redis unavailable, duplicate ids in bench)
//	2: usage error (missing arguments, bad flag values)
//
// Examples:
//
//	xid generate --count 10
//	xid generate --format json --at 2024-03-01T12:00:00Z
//	xid inspect 9m4e2mr0ui3e8a215n4g
//	xid convert 4d88e15b60f486e428412dc9
//	xid min 2024-03-01T00:00:00Z
//	xid --redis-addr localhost:6379 bench --duration 5s
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/sxyafiq/xid"
	"github.com/sxyafiq/xid/internal/config"
	"github.com/sxyafiq/xid/lease"
)

// Version information, set with -ldflags "-X main.Version=... -X main.GitCommit=...".
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// leaseCloseTimeout bounds how long shutdown waits to release a lease.
const leaseCloseTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and maps the outcome to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	s := &state{
		stdout: stdout,
		stderr: stderr,
		cfg:    config.Default(),
		logger: slog.New(slog.DiscardHandler),
	}
	err := s.newApp().Run(ctx, args)
	s.close()

	if err == nil {
		return exitOK
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "xid: %v\n", usageErr)
		return exitUsage
	}
	fmt.Fprintf(stderr, "xid: %v\n", err)
	return exitFailure
}

// ============================================================================
// Errors
// ============================================================================

// usageError marks a bad invocation (exit code 2).
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitError carries an exit code whose message was already printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func onUsageError(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return &usageError{err: err}
}

// ============================================================================
// Application
// ============================================================================

// state is shared by the commands of one invocation.
type state struct {
	stdout io.Writer
	stderr io.Writer
	cfg    config.Config
	logger *slog.Logger

	gen   *xid.Generator
	rdb   *redis.Client
	lease *lease.Lease
}

func (s *state) newApp() *cli.Command {
	app := &cli.Command{
		Name:           "xid",
		Usage:          "generate and inspect globally unique, time-sortable ids",
		Version:        fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:         s.stdout,
		ErrWriter:      s.stderr,
		DefaultCommand: "generate",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML or JSON configuration file",
				Sources: cli.EnvVars("XID_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "machine-id",
				Aliases: []string{"m"},
				Usage:   "machine id as 6 hex digits (overrides detection)",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "lease the machine id from Redis at `ADDR`",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json",
			},
		},
		Before:       s.before,
		OnUsageError: onUsageError,
		Commands: []*cli.Command{
			s.generateCommand(),
			s.inspectCommand(),
			s.validateCommand(),
			s.convertCommand(),
			s.minCommand(),
			s.benchCommand(),
			s.versionCommand(),
		},
		// exit codes are mapped by run, never by os.Exit inside the framework
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
	for _, sub := range app.Commands {
		sub.OnUsageError = onUsageError
	}
	return app
}

// before loads the configuration, applies flag overrides and builds the
// logger.
func (s *state) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return ctx, err
		}
		cfg = loaded
	}
	if v := cmd.String("machine-id"); v != "" {
		cfg.Generator.MachineID = v
	}
	if v := cmd.String("redis-addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := cmd.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if err := cfg.Validate(); err != nil {
		return ctx, &usageError{err: err}
	}

	logger, err := newLogger(s.stderr, cfg.Log)
	if err != nil {
		return ctx, &usageError{err: err}
	}
	s.cfg = cfg
	s.logger = logger
	s.logger.Debug("configuration loaded",
		slog.String("config", cmd.String("config")),
		slog.String("output_format", cfg.Output.Format))
	return ctx, nil
}

func newLogger(w io.Writer, c config.Log) (*slog.Logger, error) {
	level, err := config.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// generator builds the generator on first use, leasing the machine id when
// Redis is configured.
func (s *state) generator(ctx context.Context) (*xid.Generator, error) {
	if s.gen != nil {
		return s.gen, nil
	}
	opts, err := s.cfg.Generator.Options()
	if err != nil {
		return nil, &usageError{err: err}
	}
	opts = append(opts, xid.WithLogger(s.logger))

	if s.cfg.Redis.Addr != "" {
		l, err := s.acquireLease(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, xid.WithMachineID(l.Machine()))
	}

	s.gen = xid.NewGenerator(opts...)
	m := s.gen.MachineID()
	s.logger.Debug("generator ready",
		slog.String("machine_id", fmt.Sprintf("%x", m[:])),
		slog.Int("pid", int(s.gen.ProcessID())))
	return s.gen, nil
}

func (s *state) acquireLease(ctx context.Context) (*lease.Lease, error) {
	rc := s.cfg.Redis
	s.rdb = redis.NewClient(&redis.Options{Addr: rc.Addr})

	opts := []lease.Option{
		lease.WithLogger(s.logger),
		lease.WithPrefix(rc.Prefix),
		lease.WithTTL(rc.TTL),
		lease.WithMaxProbes(rc.MaxProbes),
	}
	if s.cfg.Generator.MachineID != "" {
		m, err := xid.ParseMachineID(s.cfg.Generator.MachineID)
		if err != nil {
			return nil, &usageError{err: err}
		}
		opts = append(opts, lease.WithStart(m))
	}

	l, err := lease.Acquire(ctx, s.rdb, opts...)
	if err != nil {
		return nil, fmt.Errorf("lease machine id from %s: %w", rc.Addr, err)
	}
	s.lease = l
	return l, nil
}

// close releases the lease and the Redis connection, if any.
func (s *state) close() {
	if s.lease != nil {
		ctx, cancel := context.WithTimeout(context.Background(), leaseCloseTimeout)
		if err := s.lease.Close(ctx); err != nil {
			s.logger.Warn("release machine id lease", slog.Any("error", err))
		}
		cancel()
		s.lease = nil
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
		s.rdb = nil
	}
}
