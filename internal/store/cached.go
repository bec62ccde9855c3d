package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/popcornguide/internal/cache"
	"github.com/voyagen/popcornguide/internal/models"
)

const (
	settingsKey = "popcornguide:settings"
	ttlSettings = 5 * time.Minute
)

// CachedStore wraps a Store with a Redis read-through cache.
// Save writes through to the inner store and invalidates the cached copy.
type CachedStore struct {
	inner Store
	cache *cache.Redis
	log   *logrus.Entry
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis, log *logrus.Entry) *CachedStore {
	return &CachedStore{inner: inner, cache: c, log: log}
}

func (c *CachedStore) Load(ctx context.Context) (*models.Settings, error) {
	v, ok, err := cache.Get[models.Settings](ctx, c.cache, settingsKey)
	if err != nil {
		c.log.WithError(err).Warn("cache: get settings")
	}
	if ok {
		return &v, nil
	}
	s, err := c.inner.Load(ctx)
	if err != nil {
		// Corrupt payloads are not cached so a repaired store is picked up.
		return s, err
	}
	if err := cache.Set(ctx, c.cache, settingsKey, s, ttlSettings); err != nil {
		c.log.WithError(err).Warn("cache: set settings")
	}
	return s, nil
}

func (c *CachedStore) Save(ctx context.Context, s *models.Settings) error {
	if err := c.inner.Save(ctx, s); err != nil {
		return err
	}
	if err := cache.Del(ctx, c.cache, settingsKey); err != nil {
		c.log.WithError(err).Warn("cache: del settings")
	}
	return nil
}
