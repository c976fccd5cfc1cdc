package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/sxyafiq/xid"
)

const (
	maxGenerateCount = 1_000_000
	defaultBenchMax  = 5_000_000
)

// ============================================================================
// Output
// ============================================================================

// report is the JSON form of one id.
type report struct {
	ID      string    `json:"id"`
	Hex     string    `json:"hex"`
	Time    time.Time `json:"time"`
	Machine string    `json:"machine"`
	Pid     uint16    `json:"pid"`
	Counter uint32    `json:"counter"`
}

func newReport(id xid.ID) report {
	c := id.Components()
	return report{
		ID:      id.String(),
		Hex:     id.Hex(),
		Time:    c.Time,
		Machine: fmt.Sprintf("%x", c.Machine[:]),
		Pid:     c.Pid,
		Counter: c.Counter,
	}
}

// printIDs writes ids one per line in the given output format.
func (s *state) printIDs(format string, ids ...xid.ID) error {
	enc := json.NewEncoder(s.stdout)
	for _, id := range ids {
		var err error
		switch format {
		case "json":
			err = enc.Encode(newReport(id))
		case "hex":
			_, err = fmt.Fprintln(s.stdout, id.Hex())
		default:
			_, err = fmt.Fprintln(s.stdout, id.String())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *state) outputFormat(cmd *cli.Command) (string, error) {
	format := cmd.String("format")
	if format == "" {
		format = s.cfg.Output.Format
	}
	switch format {
	case "text", "hex", "json":
		return format, nil
	default:
		return "", usageErrorf("unknown output format %q (want text, hex or json)", format)
	}
}

// parseAny accepts the 20-character text form, 24 hex digits or 16
// characters of unpadded base64 (URL or standard alphabet).
func parseAny(s string) (xid.ID, error) {
	s = strings.TrimSpace(s)
	switch len(s) {
	case xid.EncodedLen:
		return xid.FromString(s)
	case 2 * xid.RawLen:
		return xid.ParseHex(s)
	case base64.RawURLEncoding.EncodedLen(xid.RawLen):
		b, err := base64.RawURLEncoding.DecodeString(s)
		if err != nil {
			if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
				return xid.Zero, fmt.Errorf("%q: invalid base64: %w", s, err)
			}
		}
		return xid.FromBytes(b)
	default:
		return xid.Zero, fmt.Errorf("%q: want 20 id characters, 24 hex digits or 16 base64 characters", s)
	}
}

// parseTime accepts RFC 3339 or integer Unix seconds.
func parseTime(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, usageErrorf("invalid time %q (want RFC 3339 or Unix seconds)", s)
	}
	return t, nil
}

// ============================================================================
// generate
// ============================================================================

func (s *state) generateCommand() *cli.Command {
	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen", "g"},
		Usage:   "mint new ids",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "number of ids to mint",
				Value:   1,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format: text, hex or json (default from config)",
			},
			&cli.StringFlag{
				Name:  "at",
				Usage: "stamp ids with this time (RFC 3339 or Unix seconds) instead of now",
			},
		},
		Action: s.generate,
	}
}

func (s *state) generate(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Present() {
		return usageErrorf("generate takes no arguments, got %q", cmd.Args().First())
	}
	count := cmd.Int("count")
	if count < 1 || count > maxGenerateCount {
		return usageErrorf("--count must be between 1 and %d", maxGenerateCount)
	}
	format, err := s.outputFormat(cmd)
	if err != nil {
		return err
	}
	var at time.Time
	if v := cmd.String("at"); v != "" {
		if at, err = parseTime(v); err != nil {
			return err
		}
	}

	gen, err := s.generator(ctx)
	if err != nil {
		return err
	}

	var ids []xid.ID
	if at.IsZero() {
		ids = gen.Batch(count)
	} else {
		ids = make([]xid.ID, count)
		for i := range ids {
			ids[i] = gen.NewWithTime(at)
		}
	}
	return s.printIDs(format, ids...)
}

// ============================================================================
// inspect
// ============================================================================

func (s *state) inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Aliases:   []string{"parse", "p"},
		Usage:     "show the fields of ids",
		ArgsUsage: "<id>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print one JSON object per id"},
		},
		Action: s.inspect,
	}
}

func (s *state) inspect(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return usageErrorf("inspect needs at least one id")
	}

	failed := false
	enc := json.NewEncoder(s.stdout)
	for _, arg := range args {
		id, err := parseAny(arg)
		if err != nil {
			fmt.Fprintf(s.stderr, "%s: %v\n", arg, err)
			failed = true
			continue
		}
		if cmd.Bool("json") {
			if err := enc.Encode(newReport(id)); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(s.stdout, "%s %s\n", id, id.Components())
	}
	if failed {
		return &exitError{code: exitFailure}
	}
	return nil
}

// ============================================================================
// validate
// ============================================================================

func (s *state) validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"val", "v"},
		Usage:     "check that ids are canonical 20-character text",
		ArgsUsage: "<id>...",
		Action:    s.validate,
	}
}

func (s *state) validate(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return usageErrorf("validate needs at least one id")
	}

	failed := false
	for _, arg := range args {
		if _, err := xid.FromString(arg); err != nil {
			fmt.Fprintf(s.stdout, "%s\tinvalid: %v\n", arg, err)
			failed = true
			continue
		}
		fmt.Fprintf(s.stdout, "%s\tvalid\n", arg)
	}
	if failed {
		return &exitError{code: exitFailure}
	}
	return nil
}

// ============================================================================
// convert
// ============================================================================

func (s *state) convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Aliases:   []string{"encode", "e"},
		Usage:     "convert ids between text, hex and base64",
		ArgsUsage: "<text|hex|base64>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "to",
				Usage: "target form: text, hex or base64",
				Value: "text",
			},
		},
		Action: s.convert,
	}
}

func (s *state) convert(_ context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) == 0 {
		return usageErrorf("convert needs at least one value")
	}
	to := cmd.String("to")
	switch to {
	case "text", "hex", "base64":
	default:
		return usageErrorf("unknown --to %q (want text, hex or base64)", to)
	}

	for _, arg := range args {
		id, err := parseAny(arg)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.stdout, id.Format(to))
	}
	return nil
}

// ============================================================================
// min
// ============================================================================

func (s *state) minCommand() *cli.Command {
	return &cli.Command{
		Name:      "min",
		Usage:     "print the smallest id for the second containing a time",
		ArgsUsage: "<RFC 3339 time | Unix seconds>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format: text, hex or json (default from config)",
			},
		},
		Action: s.smallest,
	}
}

func (s *state) smallest(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return usageErrorf("min needs exactly one time")
	}
	t, err := parseTime(cmd.Args().First())
	if err != nil {
		return err
	}
	format, err := s.outputFormat(cmd)
	if err != nil {
		return err
	}
	return s.printIDs(format, xid.SmallestWithTime(t))
}

// ============================================================================
// bench
// ============================================================================

func (s *state) benchCommand() *cli.Command {
	return &cli.Command{
		Name:    "bench",
		Aliases: []string{"b"},
		Usage:   "measure generation throughput and check uniqueness",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "how long to generate",
				Value:   2 * time.Second,
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "concurrent goroutines",
				Value:   runtime.NumCPU(),
			},
			&cli.IntFlag{
				Name:  "max",
				Usage: "stop after this many ids (bounds memory for the uniqueness check)",
				Value: defaultBenchMax,
			},
		},
		Action: s.bench,
	}
}

func (s *state) bench(ctx context.Context, cmd *cli.Command) error {
	duration := cmd.Duration("duration")
	workers := cmd.Int("workers")
	limit := int64(cmd.Int("max"))
	if duration <= 0 || workers < 1 || limit < 1 {
		return usageErrorf("--duration, --workers and --max must be positive")
	}

	gen, err := s.generator(ctx)
	if err != nil {
		return err
	}
	before := gen.Metrics()

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var minted atomic.Int64
	results := make([][]xid.ID, workers)
	eg, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := range workers {
		eg.Go(func() error {
			var ids []xid.ID
			for minted.Add(1) <= limit {
				ids = append(ids, gen.New())
				if len(ids)&1023 == 0 && ctx.Err() != nil {
					break
				}
			}
			results[w] = ids
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	var all []xid.ID
	for _, ids := range results {
		all = append(all, ids...)
	}
	xid.Sort(all)
	duplicates := 0
	for i := 1; i < len(all); i++ {
		if all[i] == all[i-1] {
			duplicates++
		}
	}
	after := gen.Metrics()

	fmt.Fprintf(s.stdout, "ids:        %d\n", len(all))
	fmt.Fprintf(s.stdout, "workers:    %d\n", workers)
	fmt.Fprintf(s.stdout, "elapsed:    %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(s.stdout, "rate:       %.0f ids/s\n", float64(len(all))/elapsed.Seconds())
	fmt.Fprintf(s.stdout, "rollovers:  %d\n", after.CounterRollovers-before.CounterRollovers)
	fmt.Fprintf(s.stdout, "duplicates: %d\n", duplicates)

	if duplicates > 0 {
		return fmt.Errorf("%d duplicate ids", duplicates)
	}
	return nil
}

// ============================================================================
// version
// ============================================================================

func (s *state) versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print version information",
		Action: func(context.Context, *cli.Command) error {
			c := xid.LayoutCapacity()
			fmt.Fprintf(s.stdout, "xid %s (commit: %s, %s)\n", Version, GitCommit, runtime.Version())
			fmt.Fprintf(s.stdout, "layout: %s\n", c)
			return nil
		},
	}
}
