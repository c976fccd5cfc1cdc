package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sxyafiq/xid"
)

var start = [xid.MachineLen]byte{0x0a, 0x1b, 0x2c}

func setupRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func acquire(t *testing.T, client redis.UniversalClient, opts ...Option) *Lease {
	t.Helper()
	base := []Option{WithStart(start), WithRetry(2, time.Millisecond)}
	l, err := Acquire(context.Background(), client, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close(context.Background()) })
	return l
}

func TestAcquire_ClaimsStartMachine(t *testing.T) {
	mr, client := setupRedis(t)

	l := acquire(t, client)
	assert.Equal(t, start, l.Machine())
	assert.Equal(t, "xid:machine:0a1b2c", l.Key())
	assert.True(t, mr.Exists(l.Key()))
	assert.Equal(t, DefaultTTL, mr.TTL(l.Key()))
	assert.NoError(t, l.Err())
}

func TestAcquire_ProbesPastTakenIDs(t *testing.T) {
	_, client := setupRedis(t)

	first := acquire(t, client)
	second := acquire(t, client)
	third := acquire(t, client)

	assert.Equal(t, start, first.Machine())
	assert.Equal(t, [xid.MachineLen]byte{0x0a, 0x1b, 0x2d}, second.Machine())
	assert.Equal(t, [xid.MachineLen]byte{0x0a, 0x1b, 0x2e}, third.Machine())
}

func TestAcquire_WrapsAfterLastMachine(t *testing.T) {
	_, client := setupRedis(t)
	last := [xid.MachineLen]byte{0xff, 0xff, 0xff}

	acquire(t, client, WithStart(last))
	l := acquire(t, client, WithStart(last))
	assert.Equal(t, [xid.MachineLen]byte{}, l.Machine())
}

func TestAcquire_NoMachineAvailable(t *testing.T) {
	_, client := setupRedis(t)

	acquire(t, client, WithMaxProbes(2))
	acquire(t, client, WithMaxProbes(2))

	_, err := Acquire(context.Background(), client, WithStart(start), WithMaxProbes(2))
	assert.ErrorIs(t, err, ErrNoMachineAvailable)
}

func TestAcquire_CustomPrefixAndTTL(t *testing.T) {
	mr, client := setupRedis(t)

	l := acquire(t, client, WithPrefix("svc:ids"), WithTTL(time.Minute))
	assert.Equal(t, "svc:ids:0a1b2c", l.Key())
	assert.Equal(t, time.Minute, mr.TTL(l.Key()))
}

func TestAcquire_NilClient(t *testing.T) {
	_, err := Acquire(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestAcquire_RedisUnavailable(t *testing.T) {
	mr, client := setupRedis(t)
	mr.Close()

	_, err := Acquire(context.Background(), client, WithStart(start), WithRetry(2, time.Millisecond))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lease: claim xid:machine:0a1b2c")
}

func TestAcquire_RetriesTransientErrors(t *testing.T) {
	mr, client := setupRedis(t)
	mr.SetError("LOADING Redis is loading the dataset in memory")

	go func() {
		time.Sleep(20 * time.Millisecond)
		mr.SetError("")
	}()

	l, err := Acquire(context.Background(), client, WithStart(start), WithRetry(10, 10*time.Millisecond))
	require.NoError(t, err)
	defer l.Close(context.Background())
	assert.Equal(t, start, l.Machine())
}

func TestAcquire_ContextCanceled(t *testing.T) {
	mr, client := setupRedis(t)
	mr.SetError("LOADING")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Acquire(ctx, client, WithStart(start))
	assert.Error(t, err)
}

func TestLease_Renews(t *testing.T) {
	mr, client := setupRedis(t)

	l := acquire(t, client, WithTTL(90*time.Millisecond))
	mr.SetTTL(l.Key(), time.Hour)

	assert.Eventually(t, func() bool {
		return mr.TTL(l.Key()) == 90*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond, "renewal must reset the TTL")
}

func TestLease_DetectsTakeover(t *testing.T) {
	mr, client := setupRedis(t)

	l := acquire(t, client, WithTTL(60*time.Millisecond))
	require.NoError(t, mr.Set(l.Key(), "someone-else"))

	select {
	case <-l.Lost():
	case <-time.After(2 * time.Second):
		t.Fatal("lease loss was not detected")
	}
	assert.ErrorIs(t, l.Err(), ErrLeaseLost)

	// the new holder's key survives our Close
	assert.ErrorIs(t, l.Close(context.Background()), ErrLeaseLost)
	got, err := mr.Get(l.Key())
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLease_DetectsExpiry(t *testing.T) {
	mr, client := setupRedis(t)

	l := acquire(t, client, WithTTL(60*time.Millisecond))
	mr.Del(l.Key())

	select {
	case <-l.Lost():
	case <-time.After(2 * time.Second):
		t.Fatal("lease loss was not detected")
	}
}

func TestLease_CloseReleases(t *testing.T) {
	mr, client := setupRedis(t)

	l, err := Acquire(context.Background(), client, WithStart(start))
	require.NoError(t, err)

	require.NoError(t, l.Close(context.Background()))
	assert.False(t, mr.Exists(l.Key()))
	select {
	case <-l.done:
	default:
		t.Fatal("renewal goroutine still running after Close")
	}
	assert.NoError(t, l.Close(context.Background()), "Close is idempotent")

	// a released id is handed out again
	again := acquire(t, client)
	assert.Equal(t, start, again.Machine())
}

func TestLease_CloseRedisError(t *testing.T) {
	mr, client := setupRedis(t)

	l, err := Acquire(context.Background(), client, WithStart(start))
	require.NoError(t, err)

	mr.SetError("READONLY")
	err = l.Close(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLeaseLost))
}

func TestLease_FeedsGenerator(t *testing.T) {
	_, client := setupRedis(t)

	a := acquire(t, client)
	b := acquire(t, client)

	genA := xid.NewGenerator(xid.WithMachineID(a.Machine()), xid.WithProcessID(1))
	genB := xid.NewGenerator(xid.WithMachineID(b.Machine()), xid.WithProcessID(1))
	assert.NotEqual(t, genA.New().Machine(), genB.New().Machine())
}

func TestOptions_IgnoreInvalid(t *testing.T) {
	o := defaultOptions()
	for _, opt := range []Option{
		WithPrefix(""),
		WithTTL(time.Millisecond),
		WithMaxProbes(0),
		WithRetry(0, -1),
		WithLogger(nil),
	} {
		opt(o)
	}
	assert.Equal(t, defaultOptions().prefix, o.prefix)
	assert.Equal(t, DefaultTTL, o.ttl)
	assert.Equal(t, DefaultMaxProbes, o.maxProbes)
	assert.Equal(t, uint(defaultAttempts), o.attempts)
	assert.Equal(t, defaultRetryDelay, o.retryDelay)
	assert.NotNil(t, o.logger)
}

func TestOptions_StartMachine(t *testing.T) {
	o := defaultOptions()
	WithStart(start)(o)
	assert.Equal(t, start, o.startMachine("token"))
}
