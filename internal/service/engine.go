package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/popcornguide/internal/cache"
	"github.com/voyagen/popcornguide/internal/catalog"
	"github.com/voyagen/popcornguide/internal/epg"
	"github.com/voyagen/popcornguide/internal/favourites"
	"github.com/voyagen/popcornguide/internal/metrics"
	"github.com/voyagen/popcornguide/internal/models"
	"github.com/voyagen/popcornguide/internal/store"
)

// ErrChannelNotFound is returned when a channel key matches nothing in the active catalog.
var ErrChannelNotFound = errors.New("channel not found")

// Snapshot is one committed catalog and guide pair. It is never modified
// after it is published.
type Snapshot struct {
	Catalog     *catalog.Catalog
	Guide       *epg.Guide
	PlaylistURL string
	GuideURL    string
	LoadedAt    time.Time
}

// Report describes the outcome of one reload.
type Report struct {
	ID            string    `json:"id"`
	State         State     `json:"state"`
	PlaylistURL   string    `json:"playlist_url"`
	GuideURL      string    `json:"guide_url,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	DurationMS    int64     `json:"duration_ms"`
	Channels      int       `json:"channels"`
	Categories    int       `json:"categories"`
	GuideChannels int       `json:"guide_channels"`
	Programmes    int       `json:"programmes"`
	Error         string    `json:"error,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`

	err error
}

// Err returns the failure of a failed reload.
func (r Report) Err() error {
	return r.err
}

// Status summarizes the engine for the presentation layer.
type Status struct {
	State         State     `json:"state"`
	PlaylistURL   string    `json:"playlist_url"`
	GuideURL      string    `json:"guide_url"`
	LoadedAt      time.Time `json:"loaded_at,omitzero"`
	Channels      int       `json:"channels"`
	Categories    int       `json:"categories"`
	GuideChannels int       `json:"guide_channels"`
	Programmes    int       `json:"programmes"`
	FavouriteKeys int       `json:"favourite_keys"`
	LastReload    *Report   `json:"last_reload,omitempty"`
}

// Deps are the collaborators of an Engine. Metrics and Redis are optional.
type Deps struct {
	Store        store.Store
	Orchestrator *Orchestrator
	Metrics      *metrics.Metrics
	Redis        *cache.Redis
	Log          *logrus.Entry
}

// Engine owns the active snapshot, the favourites and the stored settings.
// Queries read the snapshot without locking; commits are serialized.
type Engine struct {
	store   store.Store
	orch    *Orchestrator
	metrics *metrics.Metrics
	redis   *cache.Redis
	log     *logrus.Entry
	now     func() time.Time

	snap atomic.Pointer[Snapshot]
	last atomic.Pointer[Report]
	fav  *favourites.Reconciler

	// commitMu serializes commits. settingsMu guards settings and store
	// writes and is always taken last.
	commitMu   sync.Mutex
	settingsMu sync.Mutex
	settings   models.Settings
}

// NewEngine creates an engine with an empty snapshot and no favourites.
// Call Restore before serving.
func NewEngine(d Deps) *Engine {
	e := &Engine{
		store:   d.Store,
		orch:    d.Orchestrator,
		metrics: d.Metrics,
		redis:   d.Redis,
		log:     d.Log,
		now:     time.Now,
	}
	e.snap.Store(&Snapshot{Catalog: catalog.New(), Guide: epg.NewGuide()})
	e.fav = favourites.New(nil, e, d.Log.WithField("component", "favourites"))
	return e
}

// Restore loads the stored settings and seeds the favourite set. A corrupt
// favourites payload is logged and leaves the set empty.
func (e *Engine) Restore(ctx context.Context) error {
	s, err := e.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrConfigCorrupt) {
			return fmt.Errorf("load settings: %w", err)
		}
		e.log.WithError(err).Warn("favourites reset to empty")
	}
	if s == nil {
		s = &models.Settings{}
	}

	e.settingsMu.Lock()
	e.settings = *s
	e.settingsMu.Unlock()

	e.fav = favourites.New(s.Favourites, e, e.log.WithField("component", "favourites"))
	if e.metrics != nil {
		e.metrics.FavouriteKeys.Set(float64(len(s.Favourites)))
	}
	e.log.WithFields(logrus.Fields{
		"playlist":   s.PlaylistURL,
		"guide":      s.GuideURL,
		"favourites": len(s.Favourites),
	}).Info("settings restored")
	return nil
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() models.Settings {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()
	s := e.settings
	s.Favourites = append([]models.FavouriteKey(nil), e.settings.Favourites...)
	return s
}

// Snapshot returns the active catalog and guide.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// ReloadAsync starts a reload and returns a channel that receives its
// report once the reload has been committed or has failed. An empty
// playlist URL reuses the stored URLs.
func (e *Engine) ReloadAsync(ctx context.Context, req Request) (<-chan Report, error) {
	if req.PlaylistURL == "" {
		s := e.Settings()
		req = Request{PlaylistURL: s.PlaylistURL, GuideURL: s.GuideURL}
	}
	var rep Report
	done, err := e.orch.Start(ctx, req, func(ctx context.Context, res *Result) {
		rep = e.commit(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	reports := make(chan Report, 1)
	go func() {
		<-done
		reports <- rep
	}()
	return reports, nil
}

// Reload runs a reload and waits for its report. The returned error is the
// reload failure, if any. Cancelling ctx stops the wait but not the reload.
func (e *Engine) Reload(ctx context.Context, req Request) (Report, error) {
	reports, err := e.ReloadAsync(ctx, req)
	if err != nil {
		return Report{}, err
	}
	select {
	case rep := <-reports:
		return rep, rep.Err()
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// commit applies a finished load. On failure everything stays as it was.
func (e *Engine) commit(ctx context.Context, res *Result) Report {
	rep := Report{
		ID:          res.ID,
		PlaylistURL: res.Request.PlaylistURL,
		GuideURL:    res.Request.GuideURL,
		StartedAt:   res.StartedAt,
		DurationMS:  res.Duration.Milliseconds(),
	}
	if e.metrics != nil {
		e.metrics.ReloadDuration.Observe(res.Duration.Seconds())
	}
	log := e.log.WithField("reload", res.ID)

	if res.Err != nil {
		rep.State = StateFailed
		rep.Error = res.Err.Error()
		rep.err = res.Err
		e.countReload(StateFailed)
		log.WithError(res.Err).Error("reload failed, keeping previous catalog")
		e.record(ctx, rep)
		return rep
	}

	e.commitMu.Lock()
	defer e.commitMu.Unlock()

	prev := e.snap.Load()
	guide := res.Guide
	if res.GuideErr != nil {
		if res.Request.GuideURL == prev.GuideURL {
			guide = prev.Guide
			rep.Warnings = append(rep.Warnings, res.GuideErr.Error()+" (previous guide kept)")
		} else {
			rep.Warnings = append(rep.Warnings, res.GuideErr.Error())
		}
	}
	if guide == nil {
		guide = epg.NewGuide()
	}

	next := &Snapshot{
		Catalog:     res.Catalog,
		Guide:       guide,
		PlaylistURL: res.Request.PlaylistURL,
		GuideURL:    res.Request.GuideURL,
		LoadedAt:    e.now(),
	}

	e.settingsMu.Lock()
	e.settings.PlaylistURL = next.PlaylistURL
	e.settings.GuideURL = next.GuideURL
	e.settingsMu.Unlock()

	// The view is rebuilt against the new catalog before it is published.
	// Rebuild persists URLs and favourites in one save.
	if err := e.fav.Rebuild(ctx, next.Catalog); err != nil {
		rep.Warnings = append(rep.Warnings, err.Error())
	}
	e.snap.Store(next)

	rep.State = StateCommitted
	rep.Channels = next.Catalog.Len()
	rep.Categories = len(next.Catalog.Categories())
	rep.GuideChannels = guide.Len()
	rep.Programmes = guide.ProgrammeCount()
	e.countReload(StateCommitted)
	if e.metrics != nil {
		e.metrics.CatalogChannels.Set(float64(rep.Channels))
		e.metrics.GuideProgrammes.Set(float64(rep.Programmes))
	}
	log.WithFields(logrus.Fields{
		"channels":   rep.Channels,
		"programmes": rep.Programmes,
		"favourites": e.fav.Len(),
		"warnings":   len(rep.Warnings),
	}).Info("reload committed")
	e.record(ctx, rep)
	return rep
}

func (e *Engine) countReload(s State) {
	if e.metrics != nil {
		e.metrics.Reloads.WithLabelValues(string(s)).Inc()
	}
}

// record keeps rep as the latest report and appends it to the Redis history.
func (e *Engine) record(ctx context.Context, rep Report) {
	e.last.Store(&rep)
	if e.redis == nil {
		return
	}
	if err := cache.PushHistory(ctx, e.redis, cache.HistoryKey, rep); err != nil {
		e.log.WithError(err).Warn("reload history not recorded")
	}
}

// History returns up to n recent reports, newest first. Without Redis only
// the latest report is known.
func (e *Engine) History(ctx context.Context, n int) ([]Report, error) {
	if e.redis != nil {
		return cache.History[Report](ctx, e.redis, cache.HistoryKey, n)
	}
	if last := e.last.Load(); last != nil {
		return []Report{*last}, nil
	}
	return []Report{}, nil
}

// PersistFavourites saves keys together with the current URLs. It
// implements favourites.Persister.
func (e *Engine) PersistFavourites(ctx context.Context, keys []models.FavouriteKey) error {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()

	e.settings.Favourites = keys
	if e.metrics != nil {
		e.metrics.FavouriteKeys.Set(float64(len(keys)))
	}
	s := e.settings
	if err := e.store.Save(ctx, &s); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Search returns the categories of the active catalog whose channel names
// contain text, case-insensitively. Blank text returns everything.
func (e *Engine) Search(text string) []models.Category {
	return e.Snapshot().Catalog.Search(text).View()
}

// Channel finds the first channel of the active catalog with key.
func (e *Engine) Channel(key models.FavouriteKey) (models.Channel, bool) {
	matches := e.Snapshot().Catalog.Lookup(key)
	if len(matches) == 0 {
		return models.Channel{}, false
	}
	return matches[0], true
}

// Schedule resolves ch's now-and-upcoming programmes against the active guide.
func (e *Engine) Schedule(ch models.Channel) epg.Schedule {
	return epg.Resolve(e.Snapshot().Guide, ch.TvgID, e.now())
}

// Favourites returns the favourite channels of the active catalog.
func (e *Engine) Favourites() []models.Category {
	return e.fav.View()
}

// FavouriteKeys returns every favourite key, including keys with no channel
// in the active catalog.
func (e *Engine) FavouriteKeys() []models.FavouriteKey {
	return e.fav.Keys()
}

// ToggleFavourite flips the favourite state of key.
func (e *Engine) ToggleFavourite(ctx context.Context, key models.FavouriteKey) (favourites.Outcome, error) {
	ch, ok := e.Channel(key)
	if !ok {
		if !e.fav.Contains(keyChannel(key)) {
			return "", ErrChannelNotFound
		}
		ch = keyChannel(key)
	}
	return e.fav.Toggle(ctx, ch)
}

// AddFavourite marks key as a favourite. The key must match a channel of
// the active catalog.
func (e *Engine) AddFavourite(ctx context.Context, key models.FavouriteKey) (favourites.Outcome, error) {
	ch, ok := e.Channel(key)
	if !ok {
		return "", ErrChannelNotFound
	}
	return e.fav.Add(ctx, ch)
}

// RemoveFavourite drops key from the favourites, whether or not the active
// catalog still carries it.
func (e *Engine) RemoveFavourite(ctx context.Context, key models.FavouriteKey) (favourites.Outcome, error) {
	return e.fav.Remove(ctx, keyChannel(key))
}

// Status reports the reload state and the size of the active snapshot.
func (e *Engine) Status() Status {
	snap := e.Snapshot()
	s := e.Settings()
	st := Status{
		State:         e.orch.State(),
		PlaylistURL:   s.PlaylistURL,
		GuideURL:      s.GuideURL,
		LoadedAt:      snap.LoadedAt,
		Channels:      snap.Catalog.Len(),
		Categories:    len(snap.Catalog.Categories()),
		GuideChannels: snap.Guide.Len(),
		Programmes:    snap.Guide.ProgrammeCount(),
		FavouriteKeys: e.fav.Len(),
	}
	if last := e.last.Load(); last != nil {
		rep := *last
		st.LastReload = &rep
	}
	return st
}

func keyChannel(key models.FavouriteKey) models.Channel {
	return models.Channel{Name: key.Name, Category: key.Category}
}
