package service

import (
	"context"
	"errors"
	"sync"

	"github.com/voyagen/popcornguide/internal/fetcher"
	"github.com/voyagen/popcornguide/internal/logging"
	"github.com/voyagen/popcornguide/internal/models"
)

// fakeFetcher serves documents from memory. When gate is set every fetch
// waits for it to be closed.
type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]string
	errs  map[string]error
	gate  chan struct{}
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{docs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeFetcher) set(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[url] = body
	delete(f.errs, url)
}

func (f *fakeFetcher) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	gate := f.gate
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	body, ok := f.docs[url]
	if !ok {
		return nil, &fetcher.FetchError{URL: url, StatusCode: 404}
	}
	return []byte(body), nil
}

// memStore keeps settings in memory. onSave, when set, runs at the start
// of every Save.
type memStore struct {
	mu       sync.Mutex
	settings models.Settings
	loadErr  error
	saveErr  error
	saves    int
	onSave   func()
}

func (m *memStore) Load(context.Context) (*models.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.settings
	return &s, m.loadErr
}

func (m *memStore) Save(_ context.Context, s *models.Settings) error {
	if m.onSave != nil {
		m.onSave()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.settings = *s
	m.settings.Favourites = append([]models.FavouriteKey(nil), s.Favourites...)
	m.saves++
	return nil
}

func (m *memStore) snapshot() models.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

var errBoom = errors.New("boom")

const (
	playlistURL = "http://iptv.test/list.m3u"
	guideURL    = "http://iptv.test/guide.xml"

	playlistDoc = `#EXTM3U
#EXTINF:-1 tvg-id="bbc1" group-title="News",BBC One
http://x/bbc1
#EXTINF:-1 tvg-id="cnn" group-title="News",CNN
http://x/cnn
#EXTINF:-1 group-title="Sports",Sky Sports
http://x/sky
`
	guideDoc = `<tv>
  <channel id="bbc1"><display-name>BBC One HD</display-name></channel>
  <programme channel="bbc1" start="20240101170000 +0000" stop="20240101180000 +0000"><title>Earlier</title></programme>
  <programme channel="bbc1" start="20240101190000 +0000" stop="20240101200000 +0000"><title>Later</title></programme>
  <programme channel="bbc1" start="20240101180000 +0000" stop="20240101190000 +0000"><title>News at Six</title></programme>
</tv>`
)

func newTestEngine(f *fakeFetcher, st *memStore) *Engine {
	log := logging.Discard()
	return NewEngine(Deps{
		Store:        st,
		Orchestrator: NewOrchestrator(f, log),
		Log:          log,
	})
}
