package lease

import (
	"context"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v5"

	"github.com/sxyafiq/xid"
)

const (
	// DefaultPrefix namespaces the claim keys.
	DefaultPrefix = "xid:machine"

	// DefaultTTL is how long a claim survives without renewal.
	DefaultTTL = 30 * time.Second

	// DefaultMaxProbes bounds how many taken ids Acquire skips.
	DefaultMaxProbes = 1024

	defaultAttempts   = 3
	defaultRetryDelay = 100 * time.Millisecond
)

type options struct {
	prefix     string
	ttl        time.Duration
	maxProbes  int
	start      *[xid.MachineLen]byte
	attempts   uint
	retryDelay time.Duration
	logger     *slog.Logger
}

func defaultOptions() *options {
	return &options{
		prefix:     DefaultPrefix,
		ttl:        DefaultTTL,
		maxProbes:  DefaultMaxProbes,
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
		logger:     slog.New(slog.DiscardHandler),
	}
}

// Option configures Acquire.
type Option func(*options)

// WithPrefix sets the key prefix. Empty values are ignored.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithTTL sets the claim TTL; renewal runs every ttl/3. Values under 3ms
// are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl >= 3*time.Millisecond {
			o.ttl = ttl
		}
	}
}

// WithMaxProbes bounds how many candidates Acquire tries. Values below 1
// are ignored.
func WithMaxProbes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxProbes = n
		}
	}
}

// WithStart sets the first candidate, e.g. a machine id from configuration.
func WithStart(machine [xid.MachineLen]byte) Option {
	return func(o *options) {
		o.start = &machine
	}
}

// WithRetry sets how often a failing Redis call is attempted and the base
// delay between attempts.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.attempts = attempts
		}
		if delay >= 0 {
			o.retryDelay = delay
		}
	}
}

// WithLogger sets the logger for acquisition and renewal events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// startMachine returns the first candidate: the configured start, the
// host's machine id, or, if the host has none, a hash of the token.
func (o *options) startMachine(token string) [xid.MachineLen]byte {
	if o.start != nil {
		return *o.start
	}
	if m, err := xid.DefaultMachineID(); err == nil {
		return m
	}
	return xid.HashMachineID(token)
}

// retrier retries transient Redis errors with exponential backoff.
func (o *options) retrier(ctx context.Context, op, key string) *retry.Retrier {
	return retry.New(
		retry.Context(ctx),
		retry.Attempts(o.attempts),
		retry.Delay(o.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Warn("lease: retrying redis call",
				slog.String("op", op),
				slog.String("key", key),
				slog.Uint64("attempt", uint64(n+1)),
				slog.Any("error", err))
		}),
	)
}
