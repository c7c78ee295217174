package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/OpenNSW/duty/internal/hts"
)

const (
	DefaultCacheExpiration = 10 * time.Minute
	DefaultCacheCleanup    = 15 * time.Minute
	DefaultCacheMaxEntries = 10000
)

// CachedLookup decorates a RecordLookup with a TTL cache. Misses are cached too, so a
// code that is not in the schedule does not hit the store on every request. Errors are
// never cached.
type CachedLookup struct {
	next       hts.RecordLookup
	cache      *cache.Cache
	maxEntries int
}

type codeEntry struct {
	record *hts.TariffRecord
}

// NewCachedLookup wraps next. Non-positive arguments fall back to the defaults.
func NewCachedLookup(next hts.RecordLookup, expiration, cleanup time.Duration, maxEntries int) *CachedLookup {
	if expiration <= 0 {
		expiration = DefaultCacheExpiration
	}
	if cleanup <= 0 {
		cleanup = DefaultCacheCleanup
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &CachedLookup{
		next:       next,
		cache:      cache.New(expiration, cleanup),
		maxEntries: maxEntries,
	}
}

func (c *CachedLookup) FindByCode(ctx context.Context, code string) (*hts.TariffRecord, error) {
	key := "code:" + code
	if cached, found := c.cache.Get(key); found {
		return cloneRecord(cached.(codeEntry).record), nil
	}

	rec, err := c.next.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, codeEntry{record: cloneRecord(rec)})
	return rec, nil
}

func (c *CachedLookup) FindByPrefix(ctx context.Context, prefix string) ([]hts.TariffRecord, error) {
	key := "prefix:" + prefix
	if cached, found := c.cache.Get(key); found {
		return cloneRecords(cached.([]hts.TariffRecord)), nil
	}

	recs, err := c.next.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, cloneRecords(recs))
	return recs, nil
}

// Flush drops every cached entry, for use after the schedule has been reloaded
func (c *CachedLookup) Flush() {
	c.cache.Flush()
}

// Len returns the number of cached entries, including expired ones not yet cleaned up
func (c *CachedLookup) Len() int {
	return c.cache.ItemCount()
}

func (c *CachedLookup) set(ctx context.Context, key string, value any) {
	if c.cache.ItemCount() >= c.maxEntries {
		slog.DebugContext(ctx, "tariff lookup cache full, flushing", "entries", c.cache.ItemCount())
		c.cache.Flush()
	}
	c.cache.SetDefault(key, value)
}

func cloneRecord(rec *hts.TariffRecord) *hts.TariffRecord {
	if rec == nil {
		return nil
	}
	out := *rec
	out.GeneralRate = cloneString(rec.GeneralRate)
	out.SpecialRate = cloneString(rec.SpecialRate)
	out.Column2Rate = cloneString(rec.Column2Rate)
	out.AdditionalDuties = cloneString(rec.AdditionalDuties)
	if rec.UnitOfQuantity != nil {
		out.UnitOfQuantity = append([]string(nil), rec.UnitOfQuantity...)
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneRecords(recs []hts.TariffRecord) []hts.TariffRecord {
	if recs == nil {
		return nil
	}
	out := make([]hts.TariffRecord, len(recs))
	for i := range recs {
		out[i] = *cloneRecord(&recs[i])
	}
	return out
}
