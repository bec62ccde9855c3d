package favourites

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/popcornguide/internal/catalog"
	"github.com/voyagen/popcornguide/internal/models"
)

type recordingPersister struct {
	calls [][]models.FavouriteKey
	err   error
}

func (p *recordingPersister) PersistFavourites(_ context.Context, keys []models.FavouriteKey) error {
	p.calls = append(p.calls, keys)
	return p.err
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

var (
	bbc1    = models.Channel{Name: "BBC One", URL: "http://x/bbc1", TvgID: "bbc1", Category: "News"}
	bbc1Alt = models.Channel{Name: "BBC One", URL: "http://y/bbc1", TvgID: "bbc1.alt", Category: "News"}
	bbc1Ent = models.Channel{Name: "BBC One", URL: "http://x/bbc1e", Category: "Entertainment"}
	sky     = models.Channel{Name: "Sky Sports", URL: "http://x/sky", Category: "Sports"}
)

func catalogOf(chans ...models.Channel) *catalog.Catalog {
	c := catalog.New()
	for _, ch := range chans {
		c.Add(ch)
	}
	return c
}

func viewCount(view []models.Category) int {
	n := 0
	for _, c := range view {
		n += len(c.Channels)
	}
	return n
}

func TestToggle(t *testing.T) {
	ctx := context.Background()
	p := &recordingPersister{}
	r := New(nil, p, testLogger())
	if err := r.Rebuild(ctx, catalogOf(bbc1, sky)); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	out, err := r.Toggle(ctx, bbc1)
	if err != nil || out != Added {
		t.Fatalf("Toggle() = %v, %v; want added", out, err)
	}
	if !r.Contains(bbc1) {
		t.Error("Expected bbc1 to be a favourite")
	}
	view := r.View()
	if len(view) != 1 || view[0].Name != "News" || len(view[0].Channels) != 1 {
		t.Fatalf("unexpected view after add: %+v", view)
	}

	out, err = r.Toggle(ctx, bbc1)
	if err != nil || out != Removed {
		t.Fatalf("Toggle() = %v, %v; want removed", out, err)
	}
	if len(r.View()) != 0 {
		t.Errorf("Expected empty bucket to be pruned, got %+v", r.View())
	}

	// Rebuild + add + remove each persist once.
	if len(p.calls) != 3 {
		t.Errorf("Expected 3 persist calls, got %d", len(p.calls))
	}
	if last := p.calls[len(p.calls)-1]; len(last) != 0 {
		t.Errorf("Expected last persisted set to be empty, got %v", last)
	}
}

func TestAddRemoveOutcomes(t *testing.T) {
	ctx := context.Background()
	p := &recordingPersister{}
	r := New(nil, p, testLogger())

	tests := []struct {
		name string
		op   func(context.Context, models.Channel) (Outcome, error)
		want Outcome
	}{
		{name: "add new", op: r.Add, want: Added},
		{name: "add again", op: r.Add, want: AlreadyPresent},
		{name: "remove present", op: r.Remove, want: Removed},
		{name: "remove again", op: r.Remove, want: NotPresent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op(ctx, sky)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("outcome = %q, want %q", got, tt.want)
			}
		})
	}
	if len(p.calls) != 2 {
		t.Errorf("Expected only changing operations to persist, got %d calls", len(p.calls))
	}
}

func TestIdentityIsNameAndCategory(t *testing.T) {
	ctx := context.Background()
	r := New(nil, nil, testLogger())
	if err := r.Rebuild(ctx, catalogOf(bbc1, bbc1Alt, bbc1Ent, sky)); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if _, err := r.Toggle(ctx, bbc1); err != nil {
		t.Fatal(err)
	}
	if !r.Contains(bbc1Alt) {
		t.Error("channel with same name and category but different url/tvg-id should share the favourite")
	}
	if r.Contains(bbc1Ent) {
		t.Error("same name in another category must not be a favourite")
	}
	view := r.View()
	if viewCount(view) != 2 {
		t.Errorf("Expected both aliasing channels in the view, got %+v", view)
	}

	out, err := r.Toggle(ctx, bbc1Alt)
	if err != nil || out != Removed {
		t.Fatalf("toggling the alias should remove the shared key, got %v, %v", out, err)
	}
	if r.Contains(bbc1) || viewCount(r.View()) != 0 {
		t.Error("Expected both aliasing channels to leave the favourites")
	}
}

func TestRebuildKeepsUnmatchedKeys(t *testing.T) {
	ctx := context.Background()
	r := New([]models.FavouriteKey{bbc1.Key(), sky.Key()}, nil, testLogger())

	if err := r.Rebuild(ctx, catalogOf(bbc1, sky)); err != nil {
		t.Fatal(err)
	}
	if viewCount(r.View()) != 2 {
		t.Fatalf("Expected 2 favourites in view, got %+v", r.View())
	}

	// Sky disappears from the playlist.
	if err := r.Rebuild(ctx, catalogOf(bbc1)); err != nil {
		t.Fatal(err)
	}
	view := r.View()
	if viewCount(view) != 1 || view[0].Channels[0].Name != "BBC One" {
		t.Errorf("Expected only BBC One in view, got %+v", view)
	}
	if r.Len() != 2 {
		t.Errorf("Expected key set to keep 2 keys, got %d", r.Len())
	}

	// Sky comes back without being re-added.
	if err := r.Rebuild(ctx, catalogOf(bbc1, sky)); err != nil {
		t.Fatal(err)
	}
	if viewCount(r.View()) != 2 {
		t.Errorf("Expected Sky Sports to reappear, got %+v", r.View())
	}
}

func TestRebuildUsesCurrentChannelValues(t *testing.T) {
	ctx := context.Background()
	r := New([]models.FavouriteKey{bbc1.Key()}, nil, testLogger())

	moved := bbc1
	moved.URL = "http://new/bbc1"
	if err := r.Rebuild(ctx, catalogOf(moved)); err != nil {
		t.Fatal(err)
	}
	view := r.View()
	if viewCount(view) != 1 || view[0].Channels[0].URL != "http://new/bbc1" {
		t.Errorf("Expected view to carry the reloaded URL, got %+v", view)
	}
}

func TestPersistFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	r := New(nil, &recordingPersister{err: boom}, testLogger())

	out, err := r.Add(ctx, sky)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected persist error, got %v", err)
	}
	if out != Added || !r.Contains(sky) {
		t.Error("membership change should stand when persistence fails")
	}
}

func TestKeysSorted(t *testing.T) {
	r := New([]models.FavouriteKey{sky.Key(), bbc1Ent.Key(), bbc1.Key(), bbc1.Key()}, nil, testLogger())
	keys := r.Keys()
	if len(keys) != 3 {
		t.Fatalf("Expected duplicates to collapse, got %v", keys)
	}
	if keys[0].Category != "Entertainment" || keys[1].Category != "News" || keys[2].Category != "Sports" {
		t.Errorf("Expected keys sorted by category, got %v", keys)
	}
}
