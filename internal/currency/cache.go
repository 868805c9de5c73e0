// Package currency converts USD prices into the user's preferred currency.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gunta/skypilot/internal/client"
	"github.com/gunta/skypilot/internal/model"
	"github.com/gunta/skypilot/internal/store"
)

// DefaultTTL is how long a fetched rate table stays fresh.
const DefaultTTL = 24 * time.Hour

func ratesKey(base string) string {
	return "exchange_rates:" + base
}

// Cache serves rate tables from memory, then the durable store, then the
// remote service. Memory entries are only ever replaced whole.
type Cache struct {
	fetcher client.RatesFetcher
	kv      store.KV
	ttl     time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	memory map[string]model.CurrencyRates
}

func NewCache(fetcher client.RatesFetcher, kv store.KV, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		fetcher: fetcher,
		kv:      kv,
		ttl:     ttl,
		now:     time.Now,
		memory:  make(map[string]model.CurrencyRates),
	}
}

// WithClock replaces the time source.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) fresh(r model.CurrencyRates) bool {
	return c.now().Sub(r.FetchedAt) < c.ttl
}

// Rates returns the table for base, fetching it when nothing fresh is cached.
// A stale persisted table is served when the fetch fails.
func (c *Cache) Rates(ctx context.Context, base string) (*model.CurrencyRates, error) {
	base = strings.ToUpper(base)

	c.mu.RLock()
	cached, ok := c.memory[base]
	c.mu.RUnlock()
	if ok && c.fresh(cached) {
		return &cached, nil
	}

	stored, err := c.load(ctx, base)
	if err != nil {
		log.Printf("[Currency] failed to read persisted rates for %s: %v", base, err)
	}
	if stored != nil && c.fresh(*stored) {
		c.remember(*stored)
		return stored, nil
	}

	fetched, fetchErr := c.Refresh(ctx, base)
	if fetchErr == nil {
		return fetched, nil
	}
	if stored != nil {
		log.Printf("[Currency] serving stale %s rates from %s: %v", base, stored.FetchedAt.Format(time.RFC3339), fetchErr)
		return stored, nil
	}
	return nil, fetchErr
}

// Refresh fetches base unconditionally and stores the result in both tiers.
func (c *Cache) Refresh(ctx context.Context, base string) (*model.CurrencyRates, error) {
	base = strings.ToUpper(base)
	fetched, err := c.fetcher.FetchRates(ctx, base)
	if err != nil {
		return nil, err
	}
	c.remember(*fetched)
	if err := c.persist(ctx, *fetched); err != nil {
		log.Printf("[Currency] failed to persist %s rates: %v", base, err)
	}
	return fetched, nil
}

func (c *Cache) remember(r model.CurrencyRates) {
	c.mu.Lock()
	c.memory[r.Base] = r
	c.mu.Unlock()
}

func (c *Cache) load(ctx context.Context, base string) (*model.CurrencyRates, error) {
	raw, ok, err := c.kv.Get(ctx, ratesKey(base))
	if err != nil || !ok {
		return nil, err
	}
	var r model.CurrencyRates
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode rates: %w", err)
	}
	if r.Rates == nil {
		r.Rates = map[string]float64{}
	}
	return &r, nil
}

func (c *Cache) persist(ctx context.Context, r model.CurrencyRates) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode rates: %w", err)
	}
	return c.kv.Set(ctx, ratesKey(r.Base), string(data))
}
