// internal/champion/cache.go
package champion

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/cache"
)

const (
	cacheKey     = "champions"
	cacheVersion = 1

	// DefaultCacheTTL matches how long the browser client trusts its copy.
	DefaultCacheTTL = 24 * time.Hour
)

// Cache is the subset of cache.JSON the roster needs.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type cachedRoster struct {
	Version   int        `json:"version"`
	Timestamp int64      `json:"timestamp"`
	Champions []Champion `json:"champions"`
}

// CachedSource serves champions from Cache while fresh and falls back to
// the wrapped Source otherwise.
type CachedSource struct {
	Source Source
	Cache  Cache
	TTL    time.Duration
	Logger *logrus.Logger

	now func() time.Time
}

// NewCachedSource wraps src with cache c.
func NewCachedSource(src Source, c Cache, ttl time.Duration, logger *logrus.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{Source: src, Cache: c, TTL: ttl, Logger: logger, now: time.Now}
}

// Fetch returns cached champions if valid, otherwise fetches and stores them.
func (s *CachedSource) Fetch(ctx context.Context) ([]Champion, error) {
	if champs, ok := s.load(ctx); ok {
		return champs, nil
	}

	champs, err := s.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	entry := cachedRoster{Version: cacheVersion, Timestamp: s.now().UnixMilli(), Champions: champs}
	if err := s.Cache.SetJSON(ctx, cacheKey, entry, s.TTL); err != nil && s.Logger != nil {
		s.Logger.Warnf("Unable to save champions to cache: %v", err)
	}
	return champs, nil
}

func (s *CachedSource) load(ctx context.Context) ([]Champion, bool) {
	var entry cachedRoster
	err := s.Cache.GetJSON(ctx, cacheKey, &entry)
	if errors.Is(err, cache.ErrMiss) {
		return nil, false
	}
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warnf("Unable to load champions from cache: %v", err)
		}
		return nil, false
	}

	age := s.now().Sub(time.UnixMilli(entry.Timestamp))
	if entry.Version != cacheVersion || age > s.TTL || len(entry.Champions) == 0 {
		_ = s.Cache.Delete(ctx, cacheKey)
		return nil, false
	}
	return entry.Champions, true
}
