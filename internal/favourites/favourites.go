// Package favourites keeps the user's favourite channel keys and the view of
// current-catalog channels they select.
package favourites

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/popcornguide/internal/catalog"
	"github.com/voyagen/popcornguide/internal/models"
)

// Outcome reports what a favourites operation did.
type Outcome string

const (
	Added          Outcome = "added"
	AlreadyPresent Outcome = "already_present"
	Removed        Outcome = "removed"
	NotPresent     Outcome = "not_present"
)

// Changed reports whether the key set was modified.
func (o Outcome) Changed() bool {
	return o == Added || o == Removed
}

// Persister saves the key set. The Reconciler decides when; the Persister
// owns the format.
type Persister interface {
	PersistFavourites(ctx context.Context, keys []models.FavouriteKey) error
}

// Reconciler holds the favourite key set and the materialized view built
// from the most recent catalog. Keys with no channel in that catalog stay in
// the set and reappear once a later catalog carries them again.
type Reconciler struct {
	mu      sync.Mutex
	keys    map[models.FavouriteKey]struct{}
	view    map[string][]models.Channel
	catalog *catalog.Catalog
	persist Persister
	log     *logrus.Entry
}

// New creates a Reconciler seeded with keys. persist may be nil.
func New(keys []models.FavouriteKey, persist Persister, log *logrus.Entry) *Reconciler {
	r := &Reconciler{
		keys:    make(map[models.FavouriteKey]struct{}, len(keys)),
		view:    make(map[string][]models.Channel),
		persist: persist,
		log:     log,
	}
	for _, k := range keys {
		r.keys[k] = struct{}{}
	}
	return r
}

// Toggle removes ch's key when present and adds it otherwise.
func (r *Reconciler) Toggle(ctx context.Context, ch models.Channel) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[ch.Key()]; ok {
		return r.removeLocked(ctx, ch)
	}
	return r.addLocked(ctx, ch)
}

// Add puts ch's key in the set.
func (r *Reconciler) Add(ctx context.Context, ch models.Channel) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[ch.Key()]; ok {
		return AlreadyPresent, nil
	}
	return r.addLocked(ctx, ch)
}

// Remove takes ch's key out of the set.
func (r *Reconciler) Remove(ctx context.Context, ch models.Channel) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[ch.Key()]; !ok {
		return NotPresent, nil
	}
	return r.removeLocked(ctx, ch)
}

func (r *Reconciler) addLocked(ctx context.Context, ch models.Channel) (Outcome, error) {
	key := ch.Key()
	r.keys[key] = struct{}{}

	// Every channel sharing the key is a favourite, as Rebuild would find.
	matches := r.catalog.Lookup(key)
	if len(matches) == 0 {
		matches = []models.Channel{ch}
	}
	r.view[key.Category] = append(r.view[key.Category], matches...)

	r.log.WithFields(logrus.Fields{"name": key.Name, "category": key.Category}).Info("favourite added")
	return Added, r.persistLocked(ctx)
}

func (r *Reconciler) removeLocked(ctx context.Context, ch models.Channel) (Outcome, error) {
	key := ch.Key()
	delete(r.keys, key)

	bucket := r.view[key.Category][:0:0]
	for _, c := range r.view[key.Category] {
		if c.Name != key.Name {
			bucket = append(bucket, c)
		}
	}
	if len(bucket) == 0 {
		delete(r.view, key.Category)
	} else {
		r.view[key.Category] = bucket
	}

	r.log.WithFields(logrus.Fields{"name": key.Name, "category": key.Category}).Info("favourite removed")
	return Removed, r.persistLocked(ctx)
}

// Rebuild recomputes the view from cat. It must run whenever the active
// catalog is replaced.
func (r *Reconciler) Rebuild(ctx context.Context, cat *catalog.Catalog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.catalog = cat
	r.view = make(map[string][]models.Channel)
	matched := 0
	cat.Each(func(ch models.Channel) {
		if _, ok := r.keys[ch.Key()]; ok {
			r.view[ch.Category] = append(r.view[ch.Category], ch)
			matched++
		}
	})

	r.log.WithFields(logrus.Fields{
		"keys":     len(r.keys),
		"channels": matched,
	}).Debug("favourites rebuilt")
	return r.persistLocked(ctx)
}

// Contains reports whether ch's key is a favourite.
func (r *Reconciler) Contains(ch models.Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.keys[ch.Key()]
	return ok
}

// Keys returns the key set in stable order.
func (r *Reconciler) Keys() []models.FavouriteKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.keysLocked()
}

// Len returns the size of the key set.
func (r *Reconciler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}

// View returns a copy of the favourites view with categories sorted.
func (r *Reconciler) View() []models.Category {
	r.mu.Lock()
	defer r.mu.Unlock()

	cat := catalog.New()
	for _, chans := range r.view {
		for _, ch := range chans {
			cat.Add(ch)
		}
	}
	return cat.View()
}

func (r *Reconciler) keysLocked() []models.FavouriteKey {
	keys := make([]models.FavouriteKey, 0, len(r.keys))
	for k := range r.keys {
		keys = append(keys, k)
	}
	models.SortKeys(keys)
	return keys
}

func (r *Reconciler) persistLocked(ctx context.Context) error {
	if r.persist == nil {
		return nil
	}
	if err := r.persist.PersistFavourites(ctx, r.keysLocked()); err != nil {
		r.log.WithError(err).Warn("persist favourites failed")
		return fmt.Errorf("persist favourites: %w", err)
	}
	return nil
}
