// Package web is the local HTTP surface: the JSON API the embedded UI talks
// to, the ICS export, the preview image, and the static page itself.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"weekcal/internal/api"
	"weekcal/internal/config"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
	"weekcal/internal/view"
)

// Calendar is the slice of the view controller the server needs.
type Calendar interface {
	Load(ctx context.Context) error
	GoTo(ctx context.Context, date time.Time) error
	Reload(ctx context.Context) error
	Snapshot() view.Snapshot
}

// Backend is the slice of the API client that mutates events.
type Backend interface {
	CreateEvent(ctx context.Context, in model.EventInput) (model.Event, error)
	UpdateEvent(ctx context.Context, id string, in model.EventInput) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Server serves the week view API and the embedded UI.
type Server struct {
	cfg     *config.Config
	cal     Calendar
	backend Backend
	mux     *http.ServeMux

	authExpired func()
}

// embeddedStatic holds the single-page UI served at /. The page fetches
// /api/week and sets data-ready="true" once the grid is rendered, which is
// also the signal the preview capture waits on.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a server over a view controller and a backend client.
func NewServer(cfg *config.Config, cal Calendar, backend Backend) *Server {
	s := &Server{
		cfg:     cfg,
		cal:     cal,
		backend: backend,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// OnAuthExpired registers a callback invoked when the backend rejects the
// session token; the caller uses it to discard the stored token so the next
// start demands a fresh login instead of retrying a dead session.
func (s *Server) OnAuthExpired(fn func()) {
	s.authExpired = fn
}

// Handler returns the http.Handler for this server, with basic auth wrapped
// around it when credentials are configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable without credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="WeekCal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("GET /api/week/ics", s.handleWeekICS)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("PUT /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)

	// All non-/api/* paths fall back to the embedded UI.
	s.mux.Handle("/", s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleWeek returns the laid-out week view. Without a date parameter it
// serves the currently loaded week, loading the current week first if
// nothing is loaded yet. With ?date=YYYY-MM-DD it navigates to the week
// containing that date.
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := time.ParseInLocation("2006-01-02", raw, s.cfg.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		if err := s.cal.GoTo(ctx, date); err != nil && !errors.Is(err, view.ErrSuperseded) {
			s.writeBackendError(w, err)
			return
		}
	} else if s.cal.Snapshot().State == view.StateIdle {
		if err := s.cal.Load(ctx); err != nil && !errors.Is(err, view.ErrSuperseded) {
			s.writeBackendError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.cal.Snapshot())
}

// handleWeekICS exports the visible week as an iCalendar feed, one VEVENT
// per laid-out event.
func (s *Server) handleWeekICS(w http.ResponseWriter, r *http.Request) {
	snap := s.cal.Snapshot()
	if snap.Week == nil {
		if err := s.cal.Load(r.Context()); err != nil && !errors.Is(err, view.ErrSuperseded) {
			s.writeBackendError(w, err)
			return
		}
		snap = s.cal.Snapshot()
	}
	if snap.Week == nil {
		writeError(w, http.StatusNotFound, "no week loaded")
		return
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//weekcal//weekly view//EN")

	now := time.Now()
	for _, day := range snap.Week.Days {
		for _, ev := range day.Events {
			ve := cal.AddEvent(ev.ID)
			ve.SetDtStampTime(now)
			ve.SetStartAt(ev.Start)
			ve.SetEndAt(ev.End)
			ve.SetSummary(ev.Title)
			if ev.Description != "" {
				ve.SetDescription(ev.Description)
			}
			if ev.Location != "" {
				ve.SetLocation(ev.Location)
			}
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="week.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(cal.Serialize())); err != nil {
		appLog.Error("failed to write ICS response", err)
	}
}

// handleCreateEvent validates the submitted event, forwards it to the
// backend, and refreshes the visible week so the new event shows up.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}

	created, err := s.backend.CreateEvent(r.Context(), in)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	s.reloadAfterWrite(r.Context())
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "event id is required")
		return
	}

	in, ok := s.decodeInput(w, r)
	if !ok {
		return
	}

	updated, err := s.backend.UpdateEvent(r.Context(), id, in)
	if err != nil {
		s.writeBackendError(w, err)
		return
	}
	s.reloadAfterWrite(r.Context())
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "event id is required")
		return
	}

	if err := s.backend.DeleteEvent(r.Context(), id); err != nil {
		s.writeBackendError(w, err)
		return
	}
	s.reloadAfterWrite(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// decodeInput parses and validates an event body. A validation failure is
// answered with 422 and a per-field error map, matching what the form in the
// UI expects.
func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (model.EventInput, bool) {
	var in model.EventInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return in, false
	}

	if errs := in.Validate(); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			Error  string                 `json:"error"`
			Fields model.ValidationErrors `json:"fields"`
		}{Error: "validation failed", Fields: errs})
		return in, false
	}
	return in, true
}

// reloadAfterWrite refetches the visible week after a successful mutation.
// The write already succeeded, so a refresh failure is only logged; the next
// cron refresh or navigation will catch up.
func (s *Server) reloadAfterWrite(ctx context.Context) {
	if err := s.cal.Reload(ctx); err != nil && !errors.Is(err, view.ErrSuperseded) {
		appLog.Error("week refresh after write failed", err)
	}
}

// writeBackendError maps a backend failure onto the local response. A 401
// means the stored session token is no longer accepted and the user has to
// log in again with `weekcal -login`.
func (s *Server) writeBackendError(w http.ResponseWriter, err error) {
	if api.IsUnauthorized(err) {
		if s.authExpired != nil {
			s.authExpired()
		}
		writeError(w, http.StatusUnauthorized, "session expired; run weekcal -login")
		return
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		writeError(w, http.StatusBadGateway, apiErr.Error())
		return
	}

	var decErr *api.DecodeError
	if errors.As(err, &decErr) {
		writeError(w, http.StatusBadGateway, decErr.Error())
		return
	}

	writeError(w, http.StatusBadGateway, "backend request failed: "+err.Error())
}

// handlePreview serves the last captured PNG preview from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.cfg.PreviewPath == "" {
		writeError(w, http.StatusNotFound, "preview capture is not configured")
		return
	}
	// http.ServeFile returns 404 for a missing file on its own.
	http.ServeFile(w, r, s.cfg.PreviewPath)
}

// staticFileServer serves the embedded UI from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /api/* must never fall through to the static UI; a missing API
		// route gets a 404, not HTML.
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
