package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderhk/tourism-ai/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCache(ttl time.Duration, maxEntries int) *ResponseCache {
	return New(Config{
		TTLs: map[types.RequestKind]time.Duration{
			types.KindChat: ttl,
		},
		SweepInterval: 50 * time.Millisecond,
		MaxEntries:    maxEntries,
	}, testLogger())
}

func TestGetOrCompute_Idempotent(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	var calls int32

	compute := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "the answer", nil
	}

	v1, hit1, err := c.GetOrCompute(context.Background(), "k", types.KindChat, compute)
	require.NoError(t, err)
	assert.False(t, hit1)
	assert.Equal(t, "the answer", v1)

	v2, hit2, err := c.GetOrCompute(context.Background(), "k", types.KindChat, compute)
	require.NoError(t, err)
	assert.True(t, hit2)
	assert.Equal(t, "the answer", v2)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	var calls int32
	release := make(chan struct{})

	compute := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]any, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.GetOrCompute(context.Background(), "hot", types.KindChat, compute)
		}(i)
	}

	// Give all goroutines a chance to pile onto the flight before the
	// upstream answers.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent identical requests must share one computation")
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", results[i])
	}
}

func TestGetOrCompute_SharedFlightIsNotACacheHit(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	release := make(chan struct{})

	compute := func(ctx context.Context) (any, error) {
		<-release
		return "v", nil
	}

	const n = 5
	var wg sync.WaitGroup
	hits := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, hits[i], _ = c.GetOrCompute(context.Background(), "k", types.KindChat, compute)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, hit := range hits {
		assert.False(t, hit, "caller %d waited on the computation, it never read the cache", i)
	}

	_, hit, err := c.GetOrCompute(context.Background(), "k", types.KindChat, compute)
	require.NoError(t, err)
	assert.True(t, hit, "the next caller reads the stored entry")
}

func TestGetOrCompute_DistinctKeysDoNotBlock(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	slow := make(chan struct{})

	go func() {
		_, _, _ = c.GetOrCompute(context.Background(), "slow", types.KindChat, func(ctx context.Context) (any, error) {
			<-slow
			return "slow", nil
		})
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, _, err := c.GetOrCompute(context.Background(), "fast", types.KindChat, func(ctx context.Context) (any, error) {
			return "fast", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "fast", v)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("request with a distinct fingerprint was blocked by an unrelated in-flight computation")
	}
	close(slow)
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	var calls int32
	boom := errors.New("upstream down")

	_, _, err := c.GetOrCompute(context.Background(), "k", types.KindChat, func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	v, hit, err := c.GetOrCompute(context.Background(), "k", types.KindChat, func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "recovered", v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_TTLExpiry(t *testing.T) {
	c := newTestCache(40*time.Millisecond, 0)
	var calls int32

	compute := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "v", nil
	}

	_, _, err := c.GetOrCompute(context.Background(), "k", types.KindChat, compute)
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)

	_, hit, err := c.GetOrCompute(context.Background(), "k", types.KindChat, compute)
	require.NoError(t, err)
	assert.False(t, hit, "expired entry must be recomputed")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_CallerCancellation(t *testing.T) {
	c := newTestCache(time.Minute, 0)
	started := make(chan struct{})
	finished := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_, _, err := c.GetOrCompute(ctx, "k", types.KindChat, func(ctx context.Context) (any, error) {
			close(started)
			time.Sleep(100 * time.Millisecond)
			close(finished)
			return "late", nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	}()

	<-started
	cancel()

	// The computation keeps running on its detached context and still
	// populates the cache for the next caller.
	<-finished
	time.Sleep(20 * time.Millisecond) // let the flight store the result

	v, hit, err := c.GetOrCompute(context.Background(), "k", types.KindChat, func(ctx context.Context) (any, error) {
		t.Error("compute must not run again, cancelled flight already populated the entry")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "late", v)
}

func TestEnforceLimit_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(time.Minute, 3)

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("k%d", i)
		_, _, err := c.GetOrCompute(context.Background(), key, types.KindChat, func(ctx context.Context) (any, error) {
			return key, nil
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond) // distinct lastUsed stamps
	}

	// Touch k0 so k1 becomes the oldest.
	_, hit, err := c.GetOrCompute(context.Background(), "k0", types.KindChat, nil)
	require.NoError(t, err)
	require.True(t, hit)

	_, _, err = c.GetOrCompute(context.Background(), "k3", types.KindChat, func(ctx context.Context) (any, error) {
		return "k3", nil
	})
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	_, hit, err = c.GetOrCompute(context.Background(), "k1", types.KindChat, func(ctx context.Context) (any, error) {
		return "recomputed", nil
	})
	require.NoError(t, err)
	assert.False(t, hit, "least-recently-used entry should have been evicted")
}
