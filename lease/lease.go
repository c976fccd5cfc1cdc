// Package lease hands out xid machine ids from a shared Redis keyspace.
//
// Hashing the hostname (xid.DefaultMachineID) gives every host a machine id
// without coordination, but two hosts collide with probability ~n²/2^25. A
// fleet that cannot tolerate that claims its machine id instead:
//
//	l, err := lease.Acquire(ctx, rdb)
//	if err != nil {
//	    return err
//	}
//	defer l.Close(context.Background())
//
//	gen := xid.NewGenerator(xid.WithMachineID(l.Machine()))
//
// A claim is the key "<prefix>:<6 hex digits>" written with SET NX and a
// TTL. The holder renews it every TTL/3 until Close. Renewal only extends a
// key whose value is still the holder's token, so a process that stalled past
// its TTL learns through Lost that another process may now own the id.
package lease

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sxyafiq/xid"
)

var (
	// ErrNilClient is returned by Acquire when no Redis client is given.
	ErrNilClient = errors.New("lease: redis client is nil")

	// ErrNoMachineAvailable is returned when every probed machine id is
	// already claimed.
	ErrNoMachineAvailable = errors.New("lease: no machine id available")

	// ErrLeaseLost means the key expired or was taken over by another holder.
	ErrLeaseLost = errors.New("lease: lease lost")
)

// extendScript extends the TTL only while the key still holds our token.
// Returns 1 on success, 0 if the lease is no longer ours.
var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// Lease is a claimed machine id kept alive by a background renewal loop.
type Lease struct {
	client  redis.UniversalClient
	opts    *options
	key     string
	token   string
	machine [xid.MachineLen]byte

	stop chan struct{}
	done chan struct{}
	lost chan struct{}

	mu        sync.Mutex
	err       error
	closeOnce sync.Once
	closeErr  error
}

// Acquire claims the first free machine id, starting at the configured start
// value (by default the host's xid.DefaultMachineID) and probing upward,
// wrapping after ffffff.
//
// Redis errors are retried with backoff; a claim that is simply taken moves
// on to the next candidate. Returns ErrNoMachineAvailable after MaxProbes
// taken candidates.
func Acquire(ctx context.Context, client redis.UniversalClient, opts ...Option) (*Lease, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	token := uuid.NewString()
	start := o.startMachine(token)
	base := uint32(start[0])<<16 | uint32(start[1])<<8 | uint32(start[2])

	for i := 0; i < o.maxProbes; i++ {
		n := (base + uint32(i)) & xid.MaxCounter
		machine := [xid.MachineLen]byte{byte(n >> 16), byte(n >> 8), byte(n)}
		key := keyFor(o.prefix, machine)

		var claimed bool
		err := o.retrier(ctx, "claim", key).Do(func() error {
			var err error
			claimed, err = client.SetNX(ctx, key, token, o.ttl).Result()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("lease: claim %s: %w", key, err)
		}
		if !claimed {
			o.logger.Debug("lease: machine id taken", slog.String("key", key))
			continue
		}

		l := &Lease{
			client:  client,
			opts:    o,
			key:     key,
			token:   token,
			machine: machine,
			stop:    make(chan struct{}),
			done:    make(chan struct{}),
			lost:    make(chan struct{}),
		}
		o.logger.Info("lease: machine id acquired",
			slog.String("key", key),
			slog.Int("probes", i+1),
			slog.Duration("ttl", o.ttl))
		go l.renew()
		return l, nil
	}
	return nil, ErrNoMachineAvailable
}

func keyFor(prefix string, machine [xid.MachineLen]byte) string {
	return prefix + ":" + hex.EncodeToString(machine[:])
}

// Machine returns the claimed machine id, for xid.WithMachineID.
func (l *Lease) Machine() [xid.MachineLen]byte {
	return l.machine
}

// Key returns the Redis key holding the claim.
func (l *Lease) Key() string {
	return l.key
}

// Lost is closed when renewal finds the key no longer holds this lease's
// token. Ids minted after that may collide with the new holder's.
func (l *Lease) Lost() <-chan struct{} {
	return l.lost
}

// Err returns ErrLeaseLost once the lease is lost, nil before.
func (l *Lease) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// renew extends the claim every TTL/3 until Close or loss.
func (l *Lease) renew() {
	defer close(l.done)

	ticker := time.NewTicker(l.opts.ttl / 3)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-l.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}

		var extended int64
		err := l.opts.retrier(ctx, "renew", l.key).Do(func() error {
			var err error
			extended, err = extendScript.Run(ctx, l.client, []string{l.key},
				l.token, l.opts.ttl.Milliseconds()).Int64()
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// the key may still be alive; the next tick tries again
			l.opts.logger.Warn("lease: renewal failed",
				slog.String("key", l.key),
				slog.Any("error", err))
			continue
		}
		if extended == 0 {
			l.opts.logger.Error("lease: machine id lost", slog.String("key", l.key))
			l.mu.Lock()
			l.err = ErrLeaseLost
			l.mu.Unlock()
			close(l.lost)
			return
		}
	}
}

// Close stops renewal and deletes the key if it still holds this lease's
// token. It returns ErrLeaseLost if the claim had already been lost.
//
// Close is idempotent; later calls return the first result.
func (l *Lease) Close(ctx context.Context) error {
	l.closeOnce.Do(func() {
		close(l.stop)
		<-l.done

		released, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int64()
		switch {
		case err != nil:
			l.closeErr = fmt.Errorf("lease: release %s: %w", l.key, err)
		case released == 0:
			l.closeErr = ErrLeaseLost
		default:
			l.opts.logger.Info("lease: machine id released", slog.String("key", l.key))
		}
	})
	return l.closeErr
}
