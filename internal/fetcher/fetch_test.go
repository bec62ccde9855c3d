package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if ua := r.Header.Get("User-Agent"); ua != "popcornguide-test" {
				t.Errorf("Expected user agent header, got %q", ua)
			}
			_, _ = w.Write([]byte("#EXTM3U"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient("popcornguide-test", 50*time.Millisecond, testLogger())

	t.Run("success", func(t *testing.T) {
		body, err := c.Fetch(context.Background(), srv.URL+"/ok")
		if err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
		if string(body) != "#EXTM3U" {
			t.Errorf("Expected body '#EXTM3U', got %q", body)
		}
	})

	t.Run("bad status", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), srv.URL+"/missing")
		if !errors.Is(err, ErrFetch) || !errors.Is(err, ErrUnexpectedStatus) {
			t.Fatalf("Expected fetch status error, got %v", err)
		}
		if errors.Is(err, ErrTimeout) {
			t.Error("status failure must not match ErrTimeout")
		}
		var fe *FetchError
		if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
			t.Errorf("Expected *FetchError with 404, got %#v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), srv.URL+"/slow")
		if !errors.Is(err, ErrFetch) || !errors.Is(err, ErrTimeout) {
			t.Fatalf("Expected timeout error, got %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("Expected ErrFetch, got %v", err)
		}
		if errors.Is(err, ErrTimeout) {
			t.Errorf("connection refused reported as timeout: %v", err)
		}
	})
}
