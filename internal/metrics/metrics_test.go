package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// Two instances must not collide: each owns its registry.
func TestNewIndependentRegistries(t *testing.T) {
	a := New()
	b := New()
	a.Reloads.WithLabelValues("committed").Inc()
	b.CatalogChannels.Set(3)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Reloads.WithLabelValues("failed").Inc()
	m.CatalogChannels.Set(42)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`popcornguide_reloads_total{result="failed"} 1`,
		"popcornguide_catalog_channels 42",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected %q in scrape output", want)
		}
	}
}
