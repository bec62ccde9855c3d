package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voyagen/popcornguide/internal/logging"
	"github.com/voyagen/popcornguide/internal/metrics"
)

type fakePlayer struct {
	calls   []string
	playErr error
}

func (p *fakePlayer) Play(url string) error {
	p.calls = append(p.calls, "play "+url)
	return p.playErr
}

func (p *fakePlayer) Stop() error {
	p.calls = append(p.calls, "stop")
	return nil
}

func loadedEngine(t *testing.T) *Engine {
	t.Helper()
	f := newFakeFetcher()
	f.set(playlistURL, playlistDoc)
	f.set(guideURL, guideDoc)
	e := newTestEngine(f, &memStore{})
	e.now = func() time.Time { return resolveAt }
	if err := e.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}
	mustReload(t, e, Request{PlaylistURL: playlistURL, GuideURL: guideURL})
	return e
}

func TestSessionPlayStopsFirst(t *testing.T) {
	p := &fakePlayer{}
	s := NewSession(loadedEngine(t), p, nil, logging.Discard())

	sel, err := s.Play(bbcKey)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if len(p.calls) != 2 || p.calls[0] != "stop" || p.calls[1] != "play http://x/bbc1" {
		t.Errorf("unexpected player calls: %v", p.calls)
	}
	if !sel.Playing || sel.Schedule == nil || len(sel.Schedule.Entries) != 2 {
		t.Errorf("unexpected selection: %+v", sel)
	}
	if sel.NowPlaying == nil || sel.NowPlaying.Title != "News at Six" || sel.NowPlaying.Span != "18:00 - 19:00" {
		t.Errorf("Expected 'News at Six' airing 18:00 - 19:00, got %+v", sel.NowPlaying)
	}
}

func TestSessionPlayErrors(t *testing.T) {
	e := loadedEngine(t)

	if _, err := NewSession(e, nil, nil, logging.Discard()).Play(bbcKey); !errors.Is(err, ErrNoPlayer) {
		t.Errorf("Expected ErrNoPlayer, got %v", err)
	}
	s := NewSession(e, &fakePlayer{}, nil, logging.Discard())
	if _, err := s.Play(goneKey); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("Expected ErrChannelNotFound, got %v", err)
	}
	s = NewSession(e, &fakePlayer{playErr: errBoom}, nil, logging.Discard())
	if _, err := s.Play(bbcKey); !errors.Is(err, errBoom) {
		t.Errorf("Expected the player error, got %v", err)
	}
	if _, ok := s.Current(); ok {
		t.Error("Expected no selection after a failed play")
	}
}

func TestSessionSelect(t *testing.T) {
	s := NewSession(loadedEngine(t), nil, nil, logging.Discard())

	sel, err := s.Select(bbcKey)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if sel.Playing || sel.Schedule.DisplayName != "BBC One HD" {
		t.Errorf("unexpected selection: %+v", sel)
	}
	cur, ok := s.Current()
	if !ok || cur.Channel.Name != "BBC One" {
		t.Errorf("unexpected current selection: %+v", cur)
	}
	if _, err := s.Select(goneKey); !errors.Is(err, ErrChannelNotFound) {
		t.Errorf("Expected ErrChannelNotFound, got %v", err)
	}
}

func TestSessionPlaybackFailed(t *testing.T) {
	e := loadedEngine(t)
	p := &fakePlayer{}
	s := NewSession(e, p, metrics.New(), logging.Discard())
	if _, err := s.Play(bbcKey); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddFavourite(context.Background(), bbcKey); err != nil {
		t.Fatal(err)
	}
	before := e.Snapshot()

	s.PlaybackFailed("http://x/bbc1", errBoom)

	cur, ok := s.Current()
	if !ok || cur.Schedule != nil || cur.NowPlaying != nil || cur.Playing {
		t.Errorf("Expected schedule cleared, got %+v", cur)
	}
	if p.calls[len(p.calls)-1] != "stop" {
		t.Errorf("Expected the player to be stopped, got %v", p.calls)
	}
	if e.Snapshot() != before || len(e.FavouriteKeys()) != 1 {
		t.Error("Expected catalog, guide and favourites untouched")
	}
}

func TestSessionIgnoresReplacedStreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		cleared bool
	}{
		{name: "earlier stream", url: "http://x/bbc1", cleared: false},
		{name: "unknown stream", url: "http://x/other", cleared: false},
		{name: "current stream", url: "http://x/sky", cleared: true},
		{name: "unspecified stream", url: "", cleared: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlayer{}
			s := NewSession(loadedEngine(t), p, nil, logging.Discard())
			if _, err := s.Play(bbcKey); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Play(skyKey); err != nil {
				t.Fatal(err)
			}
			calls := len(p.calls)

			s.PlaybackFailed(tt.url, errBoom)

			cur, _ := s.Current()
			if cur.Channel.Name != "Sky Sports" {
				t.Fatalf("Expected Sky Sports selected, got %+v", cur.Channel)
			}
			if cleared := !cur.Playing && cur.Schedule == nil; cleared != tt.cleared {
				t.Errorf("cleared = %v, want %v (%+v)", cleared, tt.cleared, cur)
			}
			if stopped := len(p.calls) > calls; stopped != tt.cleared {
				t.Errorf("player stopped = %v, want %v (%v)", stopped, tt.cleared, p.calls)
			}
		})
	}
}
