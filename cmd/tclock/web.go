package main

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pcdogyu/trader-clock/internal/alerts"
	"github.com/pcdogyu/trader-clock/internal/calendar"
	"github.com/pcdogyu/trader-clock/internal/config"
	"github.com/pcdogyu/trader-clock/internal/export"
	"github.com/pcdogyu/trader-clock/internal/market"
	"github.com/pcdogyu/trader-clock/internal/memstore"
	"github.com/pcdogyu/trader-clock/internal/metrics"
	"github.com/pcdogyu/trader-clock/internal/prefs"
	"github.com/pcdogyu/trader-clock/internal/store/sqlite"
)

//go:embed web/static/*
var webFS embed.FS

type webDeps struct {
	cfg      config.Config
	engine   *market.Engine
	prefs    *prefs.Manager
	alerts   *alerts.Service
	store    *sqlite.Store
	mem      *memstore.Store
	gatherer prometheus.Gatherer
	log      *zap.Logger
	now      func() time.Time
}

type stateView struct {
	market.DisplayState
	PollIntervalMS int    `json:"poll_interval_ms"`
	LastSeq        uint64 `json:"last_seq"`
	Theme          string `json:"theme"`
}

type prefsView struct {
	Preferences prefs.Preferences `json:"preferences"`
	Warning     string            `json:"warning,omitempty"`
}

func newWebServer(d webDeps) http.Handler {
	if d.mem == nil {
		d.mem = memstore.New(0)
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	perMinute := rate.Limit(float64(d.cfg.Alerts.CreatePerMinute) / 60.0)
	createLimiter := rate.NewLimiter(perMinute, d.cfg.Alerts.Burst)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(logRequests(d.log))

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Get("/api/state", func(w http.ResponseWriter, r *http.Request) {
		st, ok := d.mem.State()
		if !ok {
			st = d.engine.Evaluate(d.now())
		}
		p := d.prefs.Get()
		writeJSON(w, http.StatusOK, stateView{
			DisplayState:   p.Apply(st),
			PollIntervalMS: pollInterval(d.cfg, r.UserAgent()),
			LastSeq:        d.mem.LastSeq(),
			Theme:          p.Theme,
		})
	})

	r.Route("/api/preferences", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, prefsView{Preferences: d.prefs.Get()})
		})
		r.Put("/", func(w http.ResponseWriter, r *http.Request) {
			var patch prefs.Patch
			if err := decodeBody(r, &patch); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
				return
			}
			p, err := d.prefs.Update(r.Context(), patch)
			writePrefs(w, p, err)
		})
		r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
			p, err := d.prefs.Reset(r.Context())
			writePrefs(w, p, err)
		})
		r.Post("/theme", func(w http.ResponseWriter, r *http.Request) {
			p, err := d.prefs.ToggleTheme(r.Context())
			writePrefs(w, p, err)
		})
	})

	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			rules, err := d.alerts.List(r.Context(), alerts.Filter{Category: q.Get("category"), Priority: q.Get("priority")})
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusOK, rules)
		})
		r.With(limitWith(createLimiter, d.log)).Post("/", func(w http.ResponseWriter, r *http.Request) {
			var in alerts.Input
			if err := decodeBody(r, &in); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
				return
			}
			rule, err := d.alerts.Create(r.Context(), in, d.now())
			switch {
			case alerts.IsValidation(err):
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			case err != nil:
				writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			default:
				writeJSON(w, http.StatusCreated, rule)
			}
		})
		r.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
			err := d.alerts.Delete(r.Context(), chi.URLParam(r, "id"))
			switch {
			case errors.Is(err, alerts.ErrNotFound):
				writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
			case err != nil:
				writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			default:
				w.WriteHeader(http.StatusNoContent)
			}
		})
	})

	// Browser feed for notification popups and sounds:
	// GET /api/events?since=42
	r.Get("/api/events", func(w http.ResponseWriter, r *http.Request) {
		since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
		writeJSON(w, http.StatusOK, map[string]any{
			"events":   d.mem.EventsSince(since),
			"last_seq": d.mem.LastSeq(),
		})
	})

	r.Get("/api/history", func(w http.ResponseWriter, r *http.Request) {
		limit := parseLimit(r.URL.Query().Get("limit"), 200, 2000)
		rows, err := d.store.QueryHistory(r.Context(), limit)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, rows)
	})

	r.Get("/api/calendar.ics", func(w http.ResponseWriter, r *http.Request) {
		days := parseLimit(r.URL.Query().Get("days"), 7, calendar.MaxDays)
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `inline; filename="sessions.ics"`)
		if err := calendar.Write(w, calendar.Build(d.engine, d.now(), days)); err != nil {
			d.log.Error("write calendar", zap.Error(err))
		}
	})

	r.Get("/api/export/alerts.xlsx", func(w http.ResponseWriter, r *http.Request) {
		rules, err := d.alerts.List(r.Context(), alerts.Filter{})
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		history, err := d.store.QueryHistory(r.Context(), 2000)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
		if err := export.WriteAlerts(w, rules, history); err != nil {
			d.log.Error("write xlsx", zap.Error(err))
		}
	})

	if d.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(d.gatherer))
	}

	// Static UI.
	sub, _ := fs.Sub(webFS, "web/static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		b, err := webFS.ReadFile("web/static/index.html")
		if err != nil {
			http.Error(w, "ui not found", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(b)
	})

	return r
}

// pollInterval slows the dashboard down on WebKit browsers, which throttle frequent
// timers and were the reason for a separate compatibility script.
func pollInterval(cfg config.Config, ua string) int {
	if isCompatBrowser(ua) {
		return cfg.Poll.CompatIntervalMS
	}
	return cfg.Poll.IntervalMS
}

func isCompatBrowser(ua string) bool {
	if strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") || strings.Contains(ua, "iPod") {
		return true
	}
	return strings.Contains(ua, "Safari/") &&
		!strings.Contains(ua, "Chrome/") &&
		!strings.Contains(ua, "Chromium/") &&
		!strings.Contains(ua, "Android")
}

func writePrefs(w http.ResponseWriter, p prefs.Preferences, err error) {
	var pe *prefs.PersistError
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusOK, prefsView{Preferences: p, Warning: pe.Error()})
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, prefsView{Preferences: p})
	}
}

func limitWith(l *rate.Limiter, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				log.Warn("rate limit exceeded", zap.String("path", r.URL.Path))
				retry := 60
				if lim := float64(l.Limit()); lim > 0 {
					retry = int(1/lim) + 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func logRequests(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parseLimit(s string, def, max int) int {
	if s == "" {
		return def
	}
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
