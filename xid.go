// Package xid provides compact, globally unique, time-sortable identifiers
// that independent processes and machines generate without coordination.
//
// # Overview
//
// An ID is 12 bytes:
//
//	┌──────────────────┬─────────────┬──────────┬─────────────┐
//	│ 4 bytes: seconds │ 3: machine  │ 2: pid   │ 3: counter  │
//	│ since Unix epoch │ host id     │ process  │ 24-bit, +1  │
//	└──────────────────┴─────────────┴──────────┴─────────────┘
//
// and prints as 20 characters from "0123456789abcdefghijklmnopqrstuv":
//
//	9m4e2mr0ui3e8a215n4g
//
// IDs are:
//   - Sortable by creation second, both as bytes and as strings
//   - Unique across hosts (machine id) and processes (pid)
//   - Unique within a process and second for up to 2^24 ids (counter)
//   - Safe in URLs, filenames and database keys without escaping
//
// # Guarantees
//
// Ordering is guaranteed at one-second granularity. Two ids minted in the
// same second by one generator are ordered by their counter, which is
// assigned with a lock-free atomic increment. The counter starts at a random
// value and wraps modulo 2^24; wrapping is expected, not an error.
//
// The timestamp field is an unsigned 32-bit second count and rolls over on
// 2106-02-07T06:28:15Z. Clock skew between machines is not corrected.
//
// IDs are not secrets: they expose their creation time, host and process,
// and are easy to guess.
//
// # Quick Start
//
//	// Default generator, lazily created on first use
//	id := xid.New()
//	fmt.Println(id.String(), id.Time())
//
//	// Explicit generator, e.g. with a leased machine id
//	gen := xid.NewGenerator(xid.WithMachineID(lease.Machine()))
//	id = gen.New()
//
//	// Parsing
//	id, err := xid.FromString("9m4e2mr0ui3e8a215n4g")
//
//	// Range lower bound: every id minted at or after t is >= lo
//	lo := xid.SmallestWithTime(t)
package xid

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"
)

// ============================================================================
// Configuration
// ============================================================================

// Config is the declarative form of the generator options, suitable for
// loading from a configuration file.
//
// The zero Config is valid and means "detect everything".
type Config struct {
	// MachineID pins the machine id as 6 hex digits. Empty means
	// DefaultMachineID.
	MachineID string `koanf:"machine_id"`

	// ProcessID pins the process id. Nil means DefaultProcessID.
	ProcessID *uint16 `koanf:"process_id"`

	// CounterSeed pins the counter's initial value (0 to 2^24-1). Nil
	// means random.
	CounterSeed *uint32 `koanf:"counter_seed"`
}

// Validate checks the configuration and returns a *ConfigError describing
// the first invalid field.
func (c *Config) Validate() error {
	if c.MachineID != "" {
		if _, err := ParseMachineID(c.MachineID); err != nil {
			return err
		}
	}
	if c.CounterSeed != nil && *c.CounterSeed > MaxCounter {
		return newConfigError(
			"CounterSeed",
			strconv.FormatUint(uint64(*c.CounterSeed), 10),
			"out of range",
			fmt.Sprintf("must be between 0 and %d", MaxCounter),
		)
	}
	return nil
}

// Options converts the configuration into generator options.
func (c *Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var opts []Option
	if c.MachineID != "" {
		m, _ := ParseMachineID(c.MachineID)
		opts = append(opts, WithMachineID(m))
	}
	if c.ProcessID != nil {
		opts = append(opts, WithProcessID(*c.ProcessID))
	}
	if c.CounterSeed != nil {
		opts = append(opts, WithCounterSeed(*c.CounterSeed))
	}
	return opts, nil
}

// ============================================================================
// Generator
// ============================================================================

// Metrics is a snapshot of generator activity.
type Metrics struct {
	Generated        uint64 // Total ids handed out
	CounterRollovers uint64 // Times the counter wrapped to zero
	LastTimestamp    uint32 // Second of the most recent id (observability only)
}

// Generator mints new IDs.
//
// # Thread Safety
//
// All methods are safe for concurrent use without external locking. The
// counter is the only shared mutable state that affects correctness and it
// is advanced with one atomic add per id; no method blocks or fails.
//
// # Lazy Machine ID
//
// The machine id is resolved on first use. Concurrent first callers may each
// run the resolver, but only one result is published with a compare-and-swap
// and every caller uses that result.
type Generator struct {
	counter   atomic.Uint32
	machineID atomic.Pointer[[MachineLen]byte]
	pid       uint16
	clock     func() time.Time
	resolve   MachineIDFunc
	logger    *slog.Logger

	generated     atomic.Uint64
	rollovers     atomic.Uint64
	lastTimestamp atomic.Uint32
}

// NewGenerator creates a generator.
//
// Without options it resolves the machine id with DefaultMachineID (lazily),
// the process id with DefaultProcessID, reads time.Now and starts the
// counter at a random 24-bit value.
func NewGenerator(opts ...Option) *Generator {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.machineID == nil {
		o.machineID = DefaultMachineID
	}
	if o.processID == nil {
		o.processID = DefaultProcessID
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if !o.seedSet {
		o.counterSeed = randomCounterSeed()
	}

	g := &Generator{
		pid:     o.processID(),
		clock:   o.clock,
		resolve: o.machineID,
		logger:  o.logger,
	}
	g.counter.Store(o.counterSeed)
	return g
}

// NewWithConfig validates cfg and creates a generator from it. Extra options
// are applied after the configuration.
func NewWithConfig(cfg Config, opts ...Option) (*Generator, error) {
	cfgOpts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return NewGenerator(append(cfgOpts, opts...)...), nil
}

// randomCounterSeed picks the initial counter so that a restarted process
// is unlikely to reuse counters within the same second.
func randomCounterSeed() uint32 {
	var b [4]byte
	if _, err := randRead(b[:]); err != nil {
		return uint32(time.Now().UnixNano()) & MaxCounter
	}
	return binary.BigEndian.Uint32(b[:]) & MaxCounter
}

// New mints an ID stamped with the current second.
//
// Performance: no allocations, one atomic add on the hot path
func (g *Generator) New() ID {
	return g.NewWithTime(g.clock())
}

// NewWithTime mints an ID stamped with t (truncated to the second) and this
// generator's machine, process and next counter value.
func (g *Generator) NewWithTime(t time.Time) ID {
	c := g.next(1)
	return g.assemble(uint32(t.Unix()), c)
}

// Batch mints n ids that share one timestamp and carry consecutive counter
// values, reserved with a single atomic add. The ids are in ascending order
// unless the counter wraps inside the batch.
//
// Returns nil for n <= 0.
func (g *Generator) Batch(n int) []ID {
	if n <= 0 {
		return nil
	}
	ts := uint32(g.clock().Unix())
	first := g.next(uint32(n))
	ids := make([]ID, n)
	for i := range ids {
		ids[i] = g.assemble(ts, (first+uint32(i))&MaxCounter)
	}
	return ids
}

// NewString mints an ID and returns its text form.
func (g *Generator) NewString() string {
	return g.New().String()
}

// next reserves n counter values and returns the first one.
//
// 2^32 is a multiple of 2^24, so masking the 32-bit atomic keeps the
// sequence modular across the uint32 wrap as well.
func (g *Generator) next(n uint32) uint32 {
	end := g.counter.Add(n)
	first := (end - n + 1) & MaxCounter
	// the reserved range [first, end] crosses zero iff masked end < first
	if end&MaxCounter < first || first == 0 {
		g.rollovers.Add(1)
	}
	g.generated.Add(uint64(n))
	return first
}

func (g *Generator) assemble(ts uint32, counter uint32) ID {
	var id ID
	binary.BigEndian.PutUint32(id[TimestampOffset:], ts)
	m := g.machine()
	copy(id[MachineOffset:PidOffset], m[:])
	binary.BigEndian.PutUint16(id[PidOffset:], g.pid)
	putCounter(id[CounterOffset:], counter)
	g.lastTimestamp.Store(ts)
	return id
}

// machine returns the published machine id, resolving it on first use.
func (g *Generator) machine() *[MachineLen]byte {
	if m := g.machineID.Load(); m != nil {
		return m
	}
	m, err := g.resolve()
	if err != nil {
		m = randomMachineID()
		g.logger.Warn("xid: machine id unavailable, using random bytes",
			slog.String("machine_id", fmt.Sprintf("%x", m[:])),
			slog.Any("error", err))
	}
	if g.machineID.CompareAndSwap(nil, &m) {
		g.logger.Debug("xid: machine id resolved",
			slog.String("machine_id", fmt.Sprintf("%x", m[:])),
			slog.Int("pid", int(g.pid)))
		return &m
	}
	return g.machineID.Load()
}

// MachineID returns the generator's machine id, resolving it if needed.
func (g *Generator) MachineID() [MachineLen]byte {
	return *g.machine()
}

// ProcessID returns the generator's process id.
func (g *Generator) ProcessID() uint16 {
	return g.pid
}

// Metrics returns a snapshot of generator activity.
//
// Counters are read independently, so a snapshot taken during heavy
// generation may be slightly inconsistent between fields.
func (g *Generator) Metrics() Metrics {
	return Metrics{
		Generated:        g.generated.Load(),
		CounterRollovers: g.rollovers.Load(),
		LastTimestamp:    g.lastTimestamp.Load(),
	}
}

// ============================================================================
// Default Generator
// ============================================================================

// defaultGen is created on first use. Racing first callers may each build a
// generator, but only one is published with compare-and-swap.
var defaultGen atomic.Pointer[Generator]

// Default returns the process-wide generator, creating it with default
// options on first use.
func Default() *Generator {
	if g := defaultGen.Load(); g != nil {
		return g
	}
	g := NewGenerator()
	if defaultGen.CompareAndSwap(nil, g) {
		return g
	}
	return defaultGen.Load()
}

// SetDefault replaces the process-wide generator. Call it once at startup,
// before ids are minted. Passing nil restores lazy creation.
func SetDefault(g *Generator) {
	defaultGen.Store(g)
}

// New mints an ID with the default generator.
//
// Example:
//
//	id := xid.New()
//	fmt.Println(id) // "9m4e2mr0ui3e8a215n4g"
func New() ID {
	return Default().New()
}

// NewWithTime mints an ID stamped with t using the default generator.
func NewWithTime(t time.Time) ID {
	return Default().NewWithTime(t)
}

// NewString mints an ID with the default generator and returns its text form.
func NewString() string {
	return Default().New().String()
}

// ============================================================================
// Context
// ============================================================================

type generatorKey struct{}

// NewContext returns a copy of ctx carrying g.
func NewContext(ctx context.Context, g *Generator) context.Context {
	return context.WithValue(ctx, generatorKey{}, g)
}

// FromContext returns the generator carried by ctx, or Default() if none.
func FromContext(ctx context.Context) *Generator {
	if g, ok := ctx.Value(generatorKey{}).(*Generator); ok && g != nil {
		return g
	}
	return Default()
}
