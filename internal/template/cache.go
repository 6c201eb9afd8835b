package template

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tahirm09/BulkNotify/pkg/metrics"
)

const fetchPageSize = 100

// Lister is the slice of Repository the cache needs on a miss.
type Lister interface {
	List(ctx context.Context, channel Channel, page, pageSize int) (Page, error)
}

type cacheEntry struct {
	templates []MessageTemplate
	dirty     bool
	gen       uint64
}

// Cache keeps the last-fetched template collection per channel. Misses are
// coalesced: concurrent callers share a single repository fetch. A fetch error
// leaves the entry unpopulated so the next call retries.
type Cache struct {
	repo Lister

	mu      sync.Mutex
	entries map[Channel]*cacheEntry
	group   singleflight.Group
}

func NewCache(repo Lister) *Cache {
	return &Cache{
		repo:    repo,
		entries: make(map[Channel]*cacheEntry),
	}
}

func (c *Cache) GetTemplates(ctx context.Context, channel Channel) ([]MessageTemplate, error) {
	c.mu.Lock()
	if e, ok := c.entries[channel]; ok && !e.dirty {
		tpls := e.templates
		c.mu.Unlock()
		metrics.TemplateCacheHits.Inc()
		return tpls, nil
	}
	c.mu.Unlock()

	metrics.TemplateCacheMisses.Inc()
	v, err, _ := c.group.Do(string(channel), func() (any, error) {
		// A coalesced caller may arrive after the first one already
		// populated the entry.
		c.mu.Lock()
		e, ok := c.entries[channel]
		if ok && !e.dirty {
			tpls := e.templates
			c.mu.Unlock()
			return tpls, nil
		}
		var startGen uint64
		if ok {
			startGen = e.gen
		}
		c.mu.Unlock()

		tpls, err := c.fetchAll(ctx, channel)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		e, ok = c.entries[channel]
		if !ok {
			e = &cacheEntry{}
			c.entries[channel] = e
		}
		e.templates = tpls
		// An Invalidate that landed mid-fetch keeps the entry dirty.
		e.dirty = e.gen != startGen
		c.mu.Unlock()
		return tpls, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch templates %s: %w", channel, err)
	}
	return v.([]MessageTemplate), nil
}

// Invalidate marks the channel's entry dirty so the next read refetches.
// Calling it for a channel never read before is a no-op beyond recording the
// generation bump.
func (c *Cache) Invalidate(channel Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[channel]
	if !ok {
		e = &cacheEntry{dirty: true}
		c.entries[channel] = e
	}
	e.dirty = true
	e.gen++
}

func (c *Cache) fetchAll(ctx context.Context, channel Channel) ([]MessageTemplate, error) {
	var all []MessageTemplate
	for page := 1; ; page++ {
		p, err := c.repo.List(ctx, channel, page, fetchPageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Templates...)
		if p.IsLast || len(p.Templates) == 0 {
			return all, nil
		}
	}
}
