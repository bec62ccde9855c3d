package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/voyagen/popcornguide/internal/config"
	"github.com/voyagen/popcornguide/internal/epg"
	"github.com/voyagen/popcornguide/internal/favourites"
	"github.com/voyagen/popcornguide/internal/fetcher"
	"github.com/voyagen/popcornguide/internal/metrics"
	"github.com/voyagen/popcornguide/internal/models"
	"github.com/voyagen/popcornguide/internal/service"
)

// Server holds dependencies for the HTTP API.
type Server struct {
	engine  *service.Engine
	session *service.Session
	metrics *metrics.Metrics // nil disables /metrics
	cfg     *config.Config
	log     *logrus.Entry
	mux     *http.ServeMux
}

// New creates a Server and registers routes.
func New(e *service.Engine, s *service.Session, m *metrics.Metrics, cfg *config.Config, log *logrus.Entry) *Server {
	srv := &Server{engine: e, session: s, metrics: m, cfg: cfg, log: log, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Catalog
	s.mux.HandleFunc("GET /api/channels", s.handleListChannels)
	s.mux.HandleFunc("POST /api/select", s.handleSelect)

	// Favourites
	s.mux.HandleFunc("GET /api/favourites", s.handleListFavourites)
	s.mux.HandleFunc("POST /api/favourites", s.handleAddFavourite)
	s.mux.HandleFunc("DELETE /api/favourites", s.handleRemoveFavourite)
	s.mux.HandleFunc("POST /api/favourites/toggle", s.handleToggleFavourite)

	// Playback
	s.mux.HandleFunc("POST /api/play", s.handlePlay)
	s.mux.HandleFunc("POST /api/playback/error", s.handlePlaybackError)

	// Reload
	s.mux.HandleFunc("POST /api/reload", s.handleReload)
	s.mux.HandleFunc("GET /api/reload", s.handleReloadStatus)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Docs
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      withCORS(withLogging(s.log, s)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Error("server shutdown")
		}
	}()

	s.log.WithField("addr", addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"reload": string(s.engine.Status().State),
	})
}

// --- catalog handlers ---

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	categories := s.engine.Search(r.URL.Query().Get("search"))
	total := 0
	for _, c := range categories {
		total += len(c.Channels)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": categories,
		"total":      total,
	})
}

// channelRequest names a channel by its favourite identity.
type channelRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

func (c channelRequest) key() models.FavouriteKey {
	category := c.Category
	if category == "" {
		category = models.DefaultCategory
	}
	return models.FavouriteKey{Name: c.Name, Category: category}
}

func decodeChannel(r *http.Request) (models.FavouriteKey, error) {
	var req channelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return models.FavouriteKey{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if req.Name == "" {
		return models.FavouriteKey{}, fmt.Errorf("name is required")
	}
	return req.key(), nil
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	key, err := decodeChannel(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sel, err := s.session.Select(key)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// --- favourite handlers ---

func (s *Server) handleListFavourites(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": s.engine.Favourites(),
		"keys":       s.engine.FavouriteKeys(),
	})
}

func (s *Server) handleAddFavourite(w http.ResponseWriter, r *http.Request) {
	s.favouriteOp(w, r, s.engine.AddFavourite)
}

func (s *Server) handleRemoveFavourite(w http.ResponseWriter, r *http.Request) {
	s.favouriteOp(w, r, s.engine.RemoveFavourite)
}

func (s *Server) handleToggleFavourite(w http.ResponseWriter, r *http.Request) {
	s.favouriteOp(w, r, s.engine.ToggleFavourite)
}

func (s *Server) favouriteOp(w http.ResponseWriter, r *http.Request, op func(context.Context, models.FavouriteKey) (favourites.Outcome, error)) {
	key, err := decodeChannel(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	outcome, err := op(r.Context(), key)
	if errors.Is(err, service.ErrChannelNotFound) {
		writeErr(w, http.StatusNotFound, fmt.Errorf("channel %q in %q not found", key.Name, key.Category))
		return
	}
	resp := map[string]any{
		"name":     key.Name,
		"category": key.Category,
		"outcome":  outcome,
	}
	if err != nil {
		// The membership change stands; only saving it failed.
		s.log.WithError(err).Warn("favourites not saved")
		resp["warning"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- playback handlers ---

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	key, err := decodeChannel(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	sel, err := s.session.Play(key)
	if err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// URL names the stream that failed; empty means the selected channel.
type playbackErrorRequest struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

func (s *Server) handlePlaybackError(w http.ResponseWriter, r *http.Request) {
	var req playbackErrorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if req.Error == "" {
		req.Error = "stream failed"
	}
	s.session.PlaybackFailed(req.URL, errors.New(req.Error))
	writeNoContent(w)
}

// --- reload handlers ---

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	// An empty body reloads the stored URLs.
	var req service.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	for _, u := range []string{req.PlaylistURL, req.GuideURL} {
		if u == "" {
			continue
		}
		if !validHTTPURL(u) {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("%q must be a valid http or https URL", u))
			return
		}
	}
	if req.PlaylistURL == "" && req.GuideURL != "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("playlist_url is required with guide_url"))
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		rep, err := s.engine.Reload(r.Context(), req)
		if err != nil {
			if rep.ID == "" {
				s.writeServiceErr(w, err)
				return
			}
			writeJSON(w, reloadFailureStatus(err), rep)
			return
		}
		writeJSON(w, http.StatusOK, rep)
		return
	}

	if _, err := s.engine.ReloadAsync(r.Context(), req); err != nil {
		s.writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"state": service.StateLoading,
	})
}

func (s *Server) handleReloadStatus(w http.ResponseWriter, r *http.Request) {
	history, err := s.engine.History(r.Context(), 10)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  s.engine.Status(),
		"history": history,
	})
}

func validHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// reloadFailureStatus maps a failed reload to a status code.
func reloadFailureStatus(err error) int {
	switch {
	case errors.Is(err, fetcher.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, fetcher.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, fetcher.ErrEmptyPlaylist), errors.Is(err, epg.ErrGuideSyntax):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrChannelNotFound):
		writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, service.ErrReloadInProgress):
		writeErr(w, http.StatusConflict, err)
	case errors.Is(err, service.ErrNoPlaylist):
		writeErr(w, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrNoPlayer):
		writeErr(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeErr(w, http.StatusServiceUnavailable, err)
	default:
		s.log.WithError(err).Error("request failed")
		writeErr(w, http.StatusInternalServerError, err)
	}
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}
