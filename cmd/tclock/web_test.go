package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcdogyu/trader-clock/internal/alerts"
	"github.com/pcdogyu/trader-clock/internal/config"
	"github.com/pcdogyu/trader-clock/internal/market"
	"github.com/pcdogyu/trader-clock/internal/memstore"
	"github.com/pcdogyu/trader-clock/internal/metrics"
	"github.com/pcdogyu/trader-clock/internal/notify"
	"github.com/pcdogyu/trader-clock/internal/prefs"
	"github.com/pcdogyu/trader-clock/internal/store/sqlite"
)

const (
	safariUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15"
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

var testNow = time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)

type testEnv struct {
	h     http.Handler
	store *sqlite.Store
	mem   *memstore.Store
	prefs *prefs.Manager
}

func newTestEnv(t *testing.T, tweak func(*config.Config)) *testEnv {
	t.Helper()
	var cfg config.Config
	if tweak != nil {
		tweak(&cfg)
	}
	require.NoError(t, config.NormalizeAndValidate(&cfg))

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	store := sqlite.New(db)

	engine, err := market.NewEngine(cfg.Market())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)
	mgr := prefs.Load(context.Background(), store, nil)
	mem := memstore.New(0)
	knownZone := func(k string) bool {
		_, ok := engine.Zone(k)
		return ok
	}
	svc := alerts.NewService(store, engine.OffsetFor, knownZone, nil, rec)

	h := newWebServer(webDeps{
		cfg:      cfg,
		engine:   engine,
		prefs:    mgr,
		alerts:   svc,
		store:    store,
		mem:      mem,
		gatherer: reg,
		now:      func() time.Time { return testNow },
	})
	return &testEnv{h: h, store: store, mem: mem, prefs: mgr}
}

func (e *testEnv) do(t *testing.T, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rr := httptest.NewRecorder()
	e.h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

type stateResp struct {
	Clocks         []market.ClockSlot   `json:"clocks"`
	Sessions       []market.SessionSlot `json:"sessions"`
	Overlaps       []market.OverlapSlot `json:"overlaps"`
	PollIntervalMS int                  `json:"poll_interval_ms"`
	LastSeq        uint64               `json:"last_seq"`
	Theme          string               `json:"theme"`
}

type prefsResp struct {
	Preferences prefs.Preferences `json:"preferences"`
	Warning     string            `json:"warning"`
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)
	rr := e.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestStateFallsBackToEvaluate(t *testing.T) {
	e := newTestEnv(t, nil)
	rr := e.do(t, http.MethodGet, "/api/state", "", "User-Agent", chromeUA)
	require.Equal(t, http.StatusOK, rr.Code)

	st := decode[stateResp](t, rr)
	assert.Equal(t, 1000, st.PollIntervalMS)
	assert.Equal(t, prefs.ThemeSystem, st.Theme)
	require.Len(t, st.Clocks, 3)
	assert.Equal(t, "17:00:00", st.Clocks[1].Time, "server clock is UTC+3 in June")
	require.Len(t, st.Overlaps, 1)
	assert.True(t, st.Overlaps[0].Active)
}

func TestStateUsesPublishedState(t *testing.T) {
	e := newTestEnv(t, nil)
	e.mem.SetState(market.DisplayState{Clocks: []market.ClockSlot{{Key: "server", Name: "Server", Time: "01:02:03"}}})

	st := decode[stateResp](t, e.do(t, http.MethodGet, "/api/state", ""))
	require.Len(t, st.Clocks, 1)
	assert.Equal(t, "01:02:03", st.Clocks[0].Time)
}

func TestStateCompatPollInterval(t *testing.T) {
	e := newTestEnv(t, nil)
	st := decode[stateResp](t, e.do(t, http.MethodGet, "/api/state", "", "User-Agent", safariUA))
	assert.Equal(t, 2000, st.PollIntervalMS)
}

func TestIsCompatBrowser(t *testing.T) {
	compat := []string{
		safariUA,
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/124.0 Mobile/15E148 Safari/604.1",
	}
	for _, ua := range compat {
		assert.True(t, isCompatBrowser(ua), ua)
	}

	regular := []string{
		chromeUA,
		"Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
		"",
	}
	for _, ua := range regular {
		assert.False(t, isCompatBrowser(ua), ua)
	}
}

func TestPreferencesUpdateHidesClock(t *testing.T) {
	e := newTestEnv(t, nil)

	rr := e.do(t, http.MethodPut, "/api/preferences", `{"timezones":{"nigeria":false},"theme":"dark"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	p := decode[prefsResp](t, rr)
	assert.Equal(t, prefs.ThemeDark, p.Preferences.Theme)
	assert.Empty(t, p.Warning)

	st := decode[stateResp](t, e.do(t, http.MethodGet, "/api/state", ""))
	require.Len(t, st.Clocks, 2)
	assert.Equal(t, "server", st.Clocks[0].Key)
	assert.Equal(t, prefs.ThemeDark, st.Theme)

	v, ok, err := e.store.GetKV(context.Background(), prefs.Key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, v, `"nigeria":false`)
}

func TestPreferencesRejectsInvalid(t *testing.T) {
	e := newTestEnv(t, nil)

	rr := e.do(t, http.MethodPut, "/api/preferences", `{"alertVolume":2}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = e.do(t, http.MethodPut, "/api/preferences", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	p := decode[prefsResp](t, e.do(t, http.MethodGet, "/api/preferences", ""))
	assert.Equal(t, prefs.Default(), p.Preferences)
}

func TestPreferencesThemeAndReset(t *testing.T) {
	e := newTestEnv(t, nil)

	p := decode[prefsResp](t, e.do(t, http.MethodPost, "/api/preferences/theme", ""))
	assert.Equal(t, prefs.ThemeDark, p.Preferences.Theme)
	p = decode[prefsResp](t, e.do(t, http.MethodPost, "/api/preferences/theme", ""))
	assert.Equal(t, prefs.ThemeLight, p.Preferences.Theme)

	p = decode[prefsResp](t, e.do(t, http.MethodPost, "/api/preferences/reset", ""))
	assert.Equal(t, prefs.Default(), p.Preferences)
}

func TestAlertsCreateListDelete(t *testing.T) {
	e := newTestEnv(t, nil)

	rr := e.do(t, http.MethodPost, "/api/alerts", `{"time":"9:30","timezone":"newyork","category":"Open","priority":"high","message":"<b>cash</b> open"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[alerts.Rule](t, rr)
	assert.Equal(t, "09:30", created.Time)
	assert.Equal(t, "cash open", created.Message)
	assert.Equal(t, "bell", created.Sound)

	rr = e.do(t, http.MethodPost, "/api/alerts", `{"time":"12:00","timezone":"server"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	all := decode[[]alerts.Rule](t, e.do(t, http.MethodGet, "/api/alerts", ""))
	assert.Len(t, all, 2)
	high := decode[[]alerts.Rule](t, e.do(t, http.MethodGet, "/api/alerts?priority=high&category=all", ""))
	require.Len(t, high, 1)
	assert.Equal(t, created.ID, high[0].ID)

	rr = e.do(t, http.MethodDelete, "/api/alerts/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = e.do(t, http.MethodDelete, "/api/alerts/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAlertsValidation(t *testing.T) {
	e := newTestEnv(t, nil)

	for _, body := range []string{
		`{"time":"25:00","timezone":"server"}`,
		`{"time":"10:00","timezone":"mars"}`,
		`{"time":"10:00","timezone":"server","priority":"urgent"}`,
		`{"time":"10:00","timezone":"server","sound":"gong"}`,
		`{"time":"10:00","timezone":"server","message":"` + strings.Repeat("x", alerts.MaxMessageLen+1) + `"}`,
		`[`,
	} {
		rr := e.do(t, http.MethodPost, "/api/alerts", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	assert.Empty(t, decode[[]alerts.Rule](t, e.do(t, http.MethodGet, "/api/alerts", "")))
}

func TestAlertsCreateRateLimited(t *testing.T) {
	e := newTestEnv(t, func(c *config.Config) {
		c.Alerts.CreatePerMinute = 1
		c.Alerts.Burst = 1
	})

	rr := e.do(t, http.MethodPost, "/api/alerts", `{"time":"10:00","timezone":"server"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = e.do(t, http.MethodPost, "/api/alerts", `{"time":"10:01","timezone":"server"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/alerts", "").Code)
}

func TestEventsFeed(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, e.mem.Notify(ctx, notify.Event{Kind: notify.KindSessionStart, Title: "London session open", At: testNow}))
	require.NoError(t, e.mem.Notify(ctx, notify.Event{Kind: notify.KindCustomAlert, Title: "Trading Alert", At: testNow}))

	type feed struct {
		Events  []notify.Event `json:"events"`
		LastSeq uint64         `json:"last_seq"`
	}
	f := decode[feed](t, e.do(t, http.MethodGet, "/api/events?since=1", ""))
	assert.Equal(t, uint64(2), f.LastSeq)
	require.Len(t, f.Events, 1)
	assert.Equal(t, "Trading Alert", f.Events[0].Title)

	f = decode[feed](t, e.do(t, http.MethodGet, "/api/events", ""))
	assert.Len(t, f.Events, 2)
}

func TestHistory(t *testing.T) {
	e := newTestEnv(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, e.store.RecordEvent(ctx, notify.Event{
			Kind:  notify.KindDailyCandle,
			Title: "Daily candle closed",
			At:    testNow.Add(time.Duration(i) * time.Minute),
		}))
	}
	rows := decode[[]notify.Event](t, e.do(t, http.MethodGet, "/api/history?limit=2", ""))
	require.Len(t, rows, 2)
	assert.True(t, rows[1].At.Equal(testNow.Add(2*time.Minute)))
}

func TestCalendarFeed(t *testing.T) {
	e := newTestEnv(t, nil)
	rr := e.do(t, http.MethodGet, "/api/calendar.ics?days=2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/calendar"))
	body := rr.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "London session")
}

func TestExportXLSX(t *testing.T) {
	e := newTestEnv(t, nil)
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, "/api/alerts", `{"time":"10:00","timezone":"server"}`).Code)

	rr := e.do(t, http.MethodGet, "/api/export/alerts.xlsx", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "alerts.xlsx")
	assert.True(t, strings.HasPrefix(rr.Body.String(), "PK"), "xlsx is a zip container")
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t, nil)
	e.do(t, http.MethodGet, "/api/alerts", "")

	rr := e.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tclock_alert_rules 0")
}

func TestStaticUI(t *testing.T) {
	e := newTestEnv(t, nil)

	rr := e.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Trader Clock")

	rr = e.do(t, http.MethodGet, "/static/app.js", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestParseLimit(t *testing.T) {
	assert.Equal(t, 7, parseLimit("", 7, 62))
	assert.Equal(t, 7, parseLimit("abc", 7, 62))
	assert.Equal(t, 7, parseLimit("-3", 7, 62))
	assert.Equal(t, 14, parseLimit("14", 7, 62))
	assert.Equal(t, 62, parseLimit("900", 7, 62))
}
