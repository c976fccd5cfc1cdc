package xid

import (
	"log/slog"
	"time"
)

// ============================================================================
// Options
// ============================================================================

// options collects generator settings before construction.
type options struct {
	machineID   MachineIDFunc
	processID   ProcessIDFunc
	clock       func() time.Time
	counterSeed uint32
	seedSet     bool // distinguishes "not passed" from an explicit 0
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*options)

// WithMachineID pins the machine id. Use it with ids leased from a
// coordinator or read from configuration.
func WithMachineID(id [MachineLen]byte) Option {
	return func(o *options) {
		o.machineID = func() ([MachineLen]byte, error) { return id, nil }
	}
}

// WithMachineIDFunc replaces DefaultMachineID. The function runs lazily, on
// the first generated id, and its result is kept for the generator's
// lifetime. If it returns an error the generator uses random bytes.
func WithMachineIDFunc(fn MachineIDFunc) Option {
	return func(o *options) {
		o.machineID = fn
	}
}

// WithProcessID pins the process id.
func WithProcessID(pid uint16) Option {
	return func(o *options) {
		o.processID = func() uint16 { return pid }
	}
}

// WithProcessIDFunc replaces DefaultProcessID.
func WithProcessIDFunc(fn ProcessIDFunc) Option {
	return func(o *options) {
		o.processID = fn
	}
}

// WithClock replaces time.Now. Tests use it to mint ids in a fixed second.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithCounterSeed sets the counter's initial value (masked to 24 bits)
// instead of a random one. The first generated id carries seed+1.
func WithCounterSeed(seed uint32) Option {
	return func(o *options) {
		o.counterSeed = seed & MaxCounter
		o.seedSet = true
	}
}

// WithLogger sets the logger used while resolving the machine id. Nothing
// is logged on the generation path.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
