package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tempex/internal/config"
	"tempex/internal/dates"
	"tempex/internal/ics"
	appLog "tempex/internal/log"
	"tempex/internal/model"
	"tempex/internal/texpr"
)

// Server provides the HTTP API over the configured schedules.
type Server struct {
	cfg       *config.Config
	schedules []config.Compiled
	byName    map[string]config.Compiled
	mux       *http.ServeMux

	// now is replaced in tests.
	now func() time.Time

	// Occurrences of every schedule over the configured horizon,
	// refreshed by the cron job in cmd/tempex or on first use.
	occMu    sync.RWMutex
	occCache *occurrenceCache
}

type occurrenceCache struct {
	rangeStart  time.Time
	rangeEnd    time.Time
	occurrences []model.Occurrence
	updatedAt   time.Time
}

// NewServer compiles the configured schedules and constructs a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	compiled, err := cfg.Compile()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		schedules: compiled,
		byName:    make(map[string]config.Compiled, len(compiled)),
		mux:       http.NewServeMux(),
		now:       time.Now,
	}
	for _, c := range compiled {
		s.byName[c.Name] = c
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler for this server.
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
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="tempex", charset="UTF-8"`)
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

// ListenAndServe serves the API on cfg.Listen until ctx is canceled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedules", s.handleSchedules)
	s.mux.HandleFunc("GET /api/schedules/{file}", s.handleScheduleICS)
	s.mux.HandleFunc("GET /api/match", s.handleMatch)
	s.mux.HandleFunc("GET /api/dates", s.handleDates)
	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// scheduleDTO is a JSON-friendly view of a compiled schedule.
type scheduleDTO struct {
	Name       string `json:"name"`
	Summary    string `json:"summary"`
	Expression string `json:"expression"`
}

func (s *Server) handleSchedules(w http.ResponseWriter, _ *http.Request) {
	out := make([]scheduleDTO, 0, len(s.schedules))
	for _, c := range s.schedules {
		out = append(out, scheduleDTO{
			Name:       c.Name,
			Summary:    c.Summary,
			Expression: fmt.Sprint(c.Expr),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type matchResponse struct {
	Schedule string    `json:"schedule"`
	Date     time.Time `json:"date"`
	Match    bool      `json:"match"`
}

// handleMatch reports whether a schedule includes a date.
//
// GET /api/match?schedule=weekdays&date=2015-03-02
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sched, ok := s.lookup(w, q.Get("schedule"))
	if !ok {
		return
	}
	date, ok := parseDayParam(w, "date", q.Get("date"))
	if !ok {
		return
	}

	match, err := sched.Expr.Includes(date)
	if err != nil {
		appLog.Error("api match: evaluation failed", err, "schedule", sched.Name, "date", q.Get("date"))
		writeError(w, http.StatusInternalServerError, "failed to evaluate schedule")
		return
	}

	writeJSON(w, http.StatusOK, matchResponse{Schedule: sched.Name, Date: date, Match: match})
}

type datesResponse struct {
	Schedule string      `json:"schedule"`
	From     time.Time   `json:"from"`
	To       time.Time   `json:"to"`
	Dates    []time.Time `json:"dates"`
}

// handleDates lists matching dates in [from, to).
//
// GET /api/dates?schedule=weekdays&from=2015-03-01&to=2015-04-01
func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sched, ok := s.lookup(w, q.Get("schedule"))
	if !ok {
		return
	}
	from, ok := parseDayParam(w, "from", q.Get("from"))
	if !ok {
		return
	}
	to, ok := parseDayParam(w, "to", q.Get("to"))
	if !ok {
		return
	}

	if n := dates.Days(from, to); n > s.maxSpanDays() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("range of %d days exceeds limit of %d", n, s.maxSpanDays()))
		return
	}

	got, err := texpr.Occurrences(sched.Expr, from, to)
	if err != nil {
		appLog.Error("api dates: evaluation failed", err, "schedule", sched.Name)
		writeError(w, http.StatusInternalServerError, "failed to evaluate schedule")
		return
	}
	if got == nil {
		got = []time.Time{}
	}

	writeJSON(w, http.StatusOK, datesResponse{Schedule: sched.Name, From: from, To: to, Dates: got})
}

// maxSpanDays bounds /api/dates requests to a year, or to twelve
// horizons when the horizon is longer.
func (s *Server) maxSpanDays() int {
	return max(minSpanDays, spanHorizons*s.cfg.HorizonDays)
}

const (
	minSpanDays  = 366
	spanHorizons = 12
)

type occurrencesResponse struct {
	Occurrences []model.Occurrence `json:"occurrences"`
	RangeStart  time.Time          `json:"range_start"`
	RangeEnd    time.Time          `json:"range_end"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// handleOccurrences returns cached occurrences of every schedule over
// the configured horizon.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	oc, err := s.cached(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute occurrences")
		return
	}

	writeJSON(w, http.StatusOK, occurrencesResponse{
		Occurrences: oc.occurrences,
		RangeStart:  oc.rangeStart,
		RangeEnd:    oc.rangeEnd,
		UpdatedAt:   oc.updatedAt,
	})
}

// handleScheduleICS serves one schedule's horizon as an ICS feed.
//
// GET /api/schedules/weekdays.ics
func (s *Server) handleScheduleICS(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(r.PathValue("file"), ".ics")
	if !ok {
		writeError(w, http.StatusNotFound, "unknown resource")
		return
	}
	sched, ok := s.lookup(w, name)
	if !ok {
		return
	}

	oc, err := s.cached(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute occurrences")
		return
	}

	var occs []model.Occurrence
	for _, o := range oc.occurrences {
		if o.Schedule == sched.Name {
			occs = append(occs, o)
		}
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.Export(sched.Summary, occs, oc.updatedAt)))
}

// Refresh recomputes the occurrence cache over [today, today+horizon).
func (s *Server) Refresh(_ context.Context) error {
	start := dates.Midnight(s.now().UTC())
	end := start.AddDate(0, 0, s.cfg.HorizonDays)

	var all []model.Occurrence
	for _, c := range s.schedules {
		got, err := texpr.Occurrences(c.Expr, start, end)
		if err != nil {
			appLog.Error("refresh: evaluation failed", err, "schedule", c.Name)
			return err
		}
		for _, d := range got {
			all = append(all, model.Occurrence{Schedule: c.Name, Summary: c.Summary, Date: d})
		}
	}
	if all == nil {
		all = []model.Occurrence{}
	}

	s.occMu.Lock()
	s.occCache = &occurrenceCache{
		rangeStart:  start,
		rangeEnd:    end,
		occurrences: all,
		updatedAt:   s.now().UTC(),
	}
	s.occMu.Unlock()

	appLog.Info("occurrences refreshed",
		"schedules", len(s.schedules),
		"occurrences", len(all),
		"range_start", start.Format(time.DateOnly),
		"range_end", end.Format(time.DateOnly),
	)
	return nil
}

// cached returns the occurrence cache, filling it if it is empty or if
// its range no longer starts today.
func (s *Server) cached(ctx context.Context) (*occurrenceCache, error) {
	today := dates.Midnight(s.now().UTC())

	s.occMu.RLock()
	oc := s.occCache
	s.occMu.RUnlock()
	if oc != nil && oc.rangeStart.Equal(today) {
		return oc, nil
	}

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	s.occMu.RLock()
	defer s.occMu.RUnlock()
	return s.occCache, nil
}

func (s *Server) lookup(w http.ResponseWriter, name string) (config.Compiled, bool) {
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing schedule")
		return config.Compiled{}, false
	}
	c, ok := s.byName[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown schedule")
		return config.Compiled{}, false
	}
	return c, true
}

func parseDayParam(w http.ResponseWriter, name, value string) (time.Time, bool) {
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing "+name)
		return time.Time{}, false
	}
	d, err := dates.ParseDay(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+": expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
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
