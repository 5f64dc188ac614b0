package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/integrations/monday"
	"github.com/femibol/propel-command-center/internal/logger"
)

type fakeSource struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (f *fakeSource) fetch(context.Context) (monday.Catalog, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return monday.Catalog{}, errors.New("board API: 502 Bad Gateway")
	}
	return monday.Catalog{
		Boards: 1,
		Tasks:  []domain.Task{{ID: "t1", Name: "AP Setup", ClientShortCode: "WLV"}},
		Errors: []string{},
	}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestCache(t *testing.T, store Store) (*Cache, *fakeSource, *clock) {
	t.Helper()
	src := &fakeSource{}
	clk := &clock{t: time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC)}
	c := New(store, src.fetch, 2*time.Minute, logger.Discard())
	c.now = clk.now
	return c, src, clk
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return client
}

func stores(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"memory": NewMemoryStore,
		"redis":  func() Store { return NewRedisStore(newTestRedis(t), 0) },
	}
}

func TestCacheServesFreshCopy(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c, src, clk := newTestCache(t, mk())
			ctx := context.Background()

			first, err := c.Get(ctx)
			require.NoError(t, err)
			require.False(t, first.Cached)
			require.Len(t, first.Tasks, 1)

			clk.t = clk.t.Add(time.Minute)
			second, err := c.Get(ctx)
			require.NoError(t, err)
			require.True(t, second.Cached)
			require.Equal(t, int64(60000), second.CacheAgeMS)
			require.Equal(t, int32(1), src.calls.Load())

			clk.t = clk.t.Add(2 * time.Minute)
			third, err := c.Get(ctx)
			require.NoError(t, err)
			require.False(t, third.Cached)
			require.Equal(t, int32(2), src.calls.Load())
		})
	}
}

func TestCacheFallsBackToStaleCopy(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c, src, clk := newTestCache(t, mk())
			ctx := context.Background()

			_, err := c.Get(ctx)
			require.NoError(t, err)

			clk.t = clk.t.Add(10 * time.Minute)
			src.fail.Store(true)
			snap, err := c.Get(ctx)
			require.NoError(t, err)
			require.True(t, snap.Stale)
			require.True(t, snap.Cached)
			require.Equal(t, "t1", snap.Tasks[0].ID)
		})
	}
}

func TestCacheErrorWithoutCopy(t *testing.T) {
	c, src, _ := newTestCache(t, NewMemoryStore())
	src.fail.Store(true)

	_, err := c.Get(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestCacheInvalidate(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			c, src, _ := newTestCache(t, mk())
			ctx := context.Background()

			_, err := c.Get(ctx)
			require.NoError(t, err)
			require.NoError(t, c.Invalidate(ctx))

			snap, err := c.Get(ctx)
			require.NoError(t, err)
			require.False(t, snap.Cached)
			require.Equal(t, int32(2), src.calls.Load())
		})
	}
}

func TestCacheSharesConcurrentFetch(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (monday.Catalog, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return monday.Catalog{Boards: 1, Tasks: []domain.Task{{ID: "t1"}}}, nil
	}
	c := New(NewMemoryStore(), fetch, time.Minute, logger.Discard())

	var wg sync.WaitGroup
	results := make([]Snapshot, 5)
	errs := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background())
		}(i)
	}
	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for i, s := range results {
		require.NoError(t, errs[i])
		require.Len(t, s.Tasks, 1)
	}
}

func TestCacheFetchOutlivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetchErr := make(chan error, 1)
	var calls atomic.Int32
	fetch := func(ctx context.Context) (monday.Catalog, error) {
		calls.Add(1)
		close(started)
		<-release
		fetchErr <- ctx.Err()
		return monday.Catalog{Boards: 1, Tasks: []domain.Task{{ID: "t1"}}}, nil
	}
	c := New(NewMemoryStore(), fetch, time.Minute, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx)
		done <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(release)
	require.NoError(t, <-fetchErr)

	require.Eventually(t, func() bool {
		s, err := c.Get(context.Background())
		return err == nil && s.Cached
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}

func TestCacheWithoutFetcher(t *testing.T) {
	c := New(NewMemoryStore(), nil, time.Minute, logger.Discard())
	_, err := c.Get(context.Background())
	require.ErrorIs(t, err, ErrNoFetcher)
	require.ErrorIs(t, c.Refresh(context.Background()), ErrNoFetcher)
}

func TestRefreshStoresCopy(t *testing.T) {
	client := newTestRedis(t)
	c, src, _ := newTestCache(t, NewRedisStore(client, time.Hour))
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))
	ttl, err := client.TTL(ctx, redisKey).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))

	snap, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, snap.Cached)
	require.Equal(t, int32(1), src.calls.Load())
}
