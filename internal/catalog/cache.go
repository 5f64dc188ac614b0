// Package catalog caches the task catalog. A fresh copy is served for the
// TTL, concurrent misses share one fetch, and a failed refresh falls back to
// the last stored copy.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/integrations/monday"
	"github.com/femibol/propel-command-center/internal/schedule"
)

const fetchTimeout = 2 * time.Minute

var ErrNoFetcher = errors.New("task catalog source not configured")

// FetchFunc produces a fresh catalog. It should fail only when nothing
// usable was fetched.
type FetchFunc func(ctx context.Context) (monday.Catalog, error)

// Snapshot is a catalog with its cache provenance.
type Snapshot struct {
	monday.Catalog
	Cached     bool  `json:"cached"`
	Deduped    bool  `json:"deduped,omitempty"`
	Stale      bool  `json:"stale,omitempty"`
	CacheAgeMS int64 `json:"cacheAge,omitempty"`
}

type Cache struct {
	store  Store
	fetch  FetchFunc
	ttl    time.Duration
	logger *log.Logger
	now    func() time.Time
	group  singleflight.Group
}

func New(store Store, fetch FetchFunc, ttl time.Duration, logger *log.Logger) *Cache {
	return &Cache{store: store, fetch: fetch, ttl: ttl, logger: logger, now: time.Now}
}

// Get returns the cached catalog when fresh, else fetches a new one.
func (c *Cache) Get(ctx context.Context) (Snapshot, error) {
	if c.fetch == nil {
		return Snapshot{}, ErrNoFetcher
	}
	if e, ok := c.load(ctx); ok && c.fresh(e) {
		return c.snapshot(e), nil
	}

	ch := c.group.DoChan("catalog", func() (any, error) {
		// Shared fetches ignore any one caller's cancellation.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		if e, ok := c.load(fctx); ok && c.fresh(e) {
			return e, nil
		}
		cat, err := c.fetch(fctx)
		if err != nil {
			return nil, err
		}
		e := Entry{Catalog: cat, StoredAt: c.now()}
		if err := c.store.Save(fctx, e); err != nil {
			c.logger.Warn("catalog store write failed", "err", err)
		}
		return e, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res = <-ch:
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		c.logger.Error("catalog fetch failed", "err", err)
		if e, ok := c.load(ctx); ok {
			s := c.snapshot(e)
			s.Stale = true
			return s, nil
		}
		return Snapshot{}, err
	}

	e := v.(Entry)
	if shared {
		s := c.snapshot(e)
		s.Deduped = true
		return s, nil
	}
	return Snapshot{Catalog: e.Catalog}, nil
}

// Tasks is Get reduced to the task list.
func (c *Cache) Tasks(ctx context.Context) ([]domain.Task, error) {
	s, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Tasks, nil
}

// Refresh fetches unconditionally and stores the result.
func (c *Cache) Refresh(ctx context.Context) error {
	if c.fetch == nil {
		return ErrNoFetcher
	}
	cat, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	return c.store.Save(ctx, Entry{Catalog: cat, StoredAt: c.now()})
}

func (c *Cache) Invalidate(ctx context.Context) error {
	return c.store.Clear(ctx)
}

func (c *Cache) load(ctx context.Context) (Entry, bool) {
	e, ok, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn("catalog store read failed", "err", err)
		return Entry{}, false
	}
	return e, ok
}

func (c *Cache) fresh(e Entry) bool {
	return c.now().Sub(e.StoredAt) < c.ttl
}

func (c *Cache) snapshot(e Entry) Snapshot {
	return Snapshot{
		Catalog:    e.Catalog,
		Cached:     true,
		CacheAgeMS: c.now().Sub(e.StoredAt).Milliseconds(),
	}
}

// StartRefresher warms the cache on a cron schedule so requests rarely pay
// for a board fetch.
func (c *Cache) StartRefresher(ctx context.Context, spec string, loc *time.Location) error {
	return schedule.Start(ctx, "catalog-refresh", spec, loc, c.logger, func(ctx context.Context) {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("catalog refresh failed", "err", err)
			return
		}
		c.logger.Info("catalog refreshed")
	})
}
