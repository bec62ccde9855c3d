package service

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/popcornguide/internal/epg"
	"github.com/voyagen/popcornguide/internal/metrics"
	"github.com/voyagen/popcornguide/internal/models"
	"github.com/voyagen/popcornguide/internal/player"
)

// ErrNoPlayer is returned by Play when no player is configured.
var ErrNoPlayer = errors.New("no player configured")

// Selection is the channel the user last picked and its schedule.
// Schedule and NowPlaying are nil once playback of the channel has failed.
type Selection struct {
	Channel    models.Channel `json:"channel"`
	Schedule   *epg.Schedule  `json:"schedule"`
	NowPlaying *epg.Entry     `json:"now_playing,omitempty"`
	Playing    bool           `json:"playing"`
}

func newSelection(ch models.Channel, sched epg.Schedule, playing bool) *Selection {
	sel := &Selection{Channel: ch, Schedule: &sched, Playing: playing}
	if cur, ok := sched.Now(); ok {
		sel.NowPlaying = &cur
	}
	return sel
}

// Session tracks the selected channel and drives the player.
type Session struct {
	engine  *Engine
	player  player.Player
	metrics *metrics.Metrics
	log     *logrus.Entry

	mu       sync.Mutex
	selected *Selection
}

// NewSession creates a session. p and m may be nil.
func NewSession(e *Engine, p player.Player, m *metrics.Metrics, log *logrus.Entry) *Session {
	return &Session{engine: e, player: p, metrics: m, log: log}
}

// Select makes the channel with key the selection and resolves its schedule.
func (s *Session) Select(key models.FavouriteKey) (Selection, error) {
	ch, ok := s.engine.Channel(key)
	if !ok {
		return Selection{}, ErrChannelNotFound
	}
	sched := s.engine.Schedule(ch)

	s.mu.Lock()
	defer s.mu.Unlock()
	playing := s.selected != nil && s.selected.Playing && s.selected.Channel == ch
	s.selected = newSelection(ch, sched, playing)
	return *s.selected, nil
}

// Play selects the channel with key and tells the player to stop, then play it.
func (s *Session) Play(key models.FavouriteKey) (Selection, error) {
	if s.player == nil {
		return Selection{}, ErrNoPlayer
	}
	ch, ok := s.engine.Channel(key)
	if !ok {
		return Selection{}, ErrChannelNotFound
	}
	sched := s.engine.Schedule(ch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.player.Stop(); err != nil {
		return Selection{}, fmt.Errorf("stop player: %w", err)
	}
	if err := s.player.Play(ch.URL); err != nil {
		return Selection{}, fmt.Errorf("play %s: %w", ch.Name, err)
	}
	s.selected = newSelection(ch, sched, true)
	s.log.WithFields(logrus.Fields{"channel": ch.Name, "category": ch.Category}).Info("playing")
	return *s.selected, nil
}

// PlaybackFailed handles an asynchronous error of the stream at url: the
// player is stopped and the schedule of the selected channel is cleared.
// An empty url means the selected channel. Errors for a stream that is no
// longer the one playing are ignored. Catalog, guide and favourites are
// left alone.
func (s *Session) PlaybackFailed(url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if url != "" && (s.selected == nil || !s.selected.Playing || s.selected.Channel.URL != url) {
		s.log.WithError(err).WithField("url", url).Debug("ignoring error of a replaced stream")
		return
	}
	if s.metrics != nil {
		s.metrics.PlaybackFailures.Inc()
	}

	entry := s.log.WithError(err)
	if s.selected != nil {
		entry = entry.WithField("channel", s.selected.Channel.Name)
		s.selected.Schedule = nil
		s.selected.NowPlaying = nil
		s.selected.Playing = false
	}
	entry.Warn("stream failed")

	if s.player != nil {
		if stopErr := s.player.Stop(); stopErr != nil {
			s.log.WithError(stopErr).Warn("stop player after failure")
		}
	}
}

// Current returns the selection, if any.
func (s *Session) Current() (Selection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return Selection{}, false
	}
	return *s.selected, true
}
