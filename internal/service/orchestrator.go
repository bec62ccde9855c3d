// Package service runs playlist reloads and owns the active catalog and guide.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/voyagen/popcornguide/internal/cache"
	"github.com/voyagen/popcornguide/internal/catalog"
	"github.com/voyagen/popcornguide/internal/epg"
	"github.com/voyagen/popcornguide/internal/fetcher"
)

var (
	// ErrReloadInProgress is returned when a reload is requested while another one is loading.
	ErrReloadInProgress = errors.New("reload already in progress")
	// ErrNoPlaylist is returned when a reload has no playlist URL to fetch.
	ErrNoPlaylist = errors.New("playlist URL is required")
)

// State is the reload state machine: Idle, then Loading, then Committed or Failed.
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateCommitted State = "committed"
	StateFailed    State = "failed"
)

// Fetcher downloads one document. fetcher.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Request names the documents of one reload. GuideURL may be empty.
type Request struct {
	PlaylistURL string `json:"playlist_url"`
	GuideURL    string `json:"guide_url"`
}

// Result is what a background load hands back. Err set means the playlist
// could not be loaded and nothing may be committed. GuideErr set means the
// catalog is usable but the guide is not.
type Result struct {
	ID        string
	Request   Request
	Catalog   *catalog.Catalog
	Guide     *epg.Guide
	GuideErr  error
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Handler applies a finished load. It runs on the reload goroutine before
// the orchestrator leaves Loading, so no other reload can start until it returns.
type Handler func(ctx context.Context, res *Result)

// reloadLocker takes the cross-process reload lock. Acquire returns
// cache.ErrLocked when another process holds it.
type reloadLocker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

type redisLocker struct {
	r   *cache.Redis
	ttl time.Duration
}

func (l redisLocker) Acquire(ctx context.Context) (func(context.Context) error, error) {
	lock, err := cache.Acquire(ctx, l.r, cache.ReloadLockKey, l.ttl)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// Orchestrator allows at most one reload at a time.
type Orchestrator struct {
	fetch Fetcher
	log   *logrus.Entry

	mu     sync.Mutex
	state  State
	locker reloadLocker
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(f Fetcher, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{fetch: f, log: log, state: StateIdle}
}

// UseLock makes every reload also hold cache.ReloadLockKey in Redis for at
// most ttl, so processes sharing one settings backend never reload together.
func (o *Orchestrator) UseLock(r *cache.Redis, ttl time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.locker = redisLocker{r: r, ttl: ttl}
}

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start begins a reload in the background. The returned channel is closed
// once handle has returned and the orchestrator has left Loading. A request
// made while another reload is loading is rejected with ErrReloadInProgress.
// The reload is not tied to ctx cancellation; the fetch timeout bounds it.
func (o *Orchestrator) Start(ctx context.Context, req Request, handle Handler) (<-chan struct{}, error) {
	if req.PlaylistURL == "" {
		return nil, ErrNoPlaylist
	}

	o.mu.Lock()
	if o.state == StateLoading {
		o.mu.Unlock()
		return nil, ErrReloadInProgress
	}
	prev := o.state
	o.state = StateLoading
	locker := o.locker
	o.mu.Unlock()

	// The state already reads Loading, so the lock round trip runs unlocked.
	var release func(context.Context) error
	if locker != nil {
		rel, err := locker.Acquire(ctx)
		switch {
		case errors.Is(err, cache.ErrLocked):
			o.mu.Lock()
			o.state = prev
			o.mu.Unlock()
			return nil, ErrReloadInProgress
		case err != nil:
			o.log.WithError(err).Warn("reload lock unavailable, continuing without it")
		default:
			release = rel
		}
	}

	id := uuid.NewString()
	bg := context.WithoutCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		res := o.load(bg, id, req)
		if handle != nil {
			handle(bg, res)
		}
		o.mu.Lock()
		if res.Err != nil {
			o.state = StateFailed
		} else {
			o.state = StateCommitted
		}
		o.mu.Unlock()
		if release != nil {
			if err := release(bg); err != nil {
				o.log.WithError(err).Warn("reload lock not released")
			}
		}
	}()
	return done, nil
}

// load fetches and parses the playlist, then the guide when one is configured.
func (o *Orchestrator) load(ctx context.Context, id string, req Request) *Result {
	res := &Result{ID: id, Request: req, StartedAt: time.Now()}
	log := o.log.WithFields(logrus.Fields{"reload": id, "playlist": req.PlaylistURL})
	log.Info("reload started")
	defer func() { res.Duration = time.Since(res.StartedAt) }()

	body, err := o.fetch.Fetch(ctx, req.PlaylistURL)
	if err != nil {
		res.Err = fmt.Errorf("playlist: %w", err)
		log.WithError(err).Warn("playlist fetch failed")
		return res
	}
	cat, err := fetcher.ParseM3U(bytes.NewReader(body))
	if err == nil && cat.Len() == 0 {
		err = fetcher.ErrEmptyPlaylist
	}
	if err != nil {
		res.Err = fmt.Errorf("playlist: %w", err)
		log.WithError(err).Warn("playlist rejected")
		return res
	}
	res.Catalog = cat
	log.WithFields(logrus.Fields{
		"channels":   cat.Len(),
		"categories": len(cat.Categories()),
	}).Info("playlist parsed")

	if req.GuideURL == "" {
		return res
	}
	glog := log.WithField("guide", req.GuideURL)
	body, err = o.fetch.Fetch(ctx, req.GuideURL)
	if err != nil {
		res.GuideErr = fmt.Errorf("guide: %w", err)
		glog.WithError(err).Warn("guide fetch failed")
		return res
	}
	guide, err := epg.Parse(bytes.NewReader(body))
	if err != nil {
		res.GuideErr = fmt.Errorf("guide: %w", err)
		glog.WithError(err).Warn("guide rejected")
		return res
	}
	res.Guide = guide
	glog.WithFields(logrus.Fields{
		"guide_channels": guide.Len(),
		"programmes":     guide.ProgrammeCount(),
	}).Info("guide parsed")
	return res
}
