package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/itemhistory/internal/database"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/models"
	"github.com/tejusbharadwaj/itemhistory/internal/persistence"
	"github.com/tejusbharadwaj/itemhistory/internal/state"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

type fixture struct {
	router http.Handler
	store  *database.MemoryStore
	now    time.Time
	ready  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{now: time.Now().UTC().Truncate(time.Second), ready: true}

	items := item.NewRegistry()
	sw := item.NewGenericItem("Heater", units.Unit{})
	sw.SetState(state.On, f.now)
	require.NoError(t, items.Add(sw))

	f.store = database.NewMemoryStore()
	require.NoError(t, f.store.Persist(context.Background(), "Heater",
		models.HistoricState{Time: f.now.Add(-4 * time.Hour), State: state.Off},
		models.HistoricState{Time: f.now.Add(-2 * time.Hour), State: state.On},
	))
	reg := database.NewRegistry()
	reg.Register("memory", f.store)
	require.NoError(t, reg.SetDefault("memory"))

	logger, _ := test.NewNullLogger()
	h := NewHandler(items, persistence.New(reg, persistence.WithLogger(logger)), func() bool { return f.ready }, logger)
	f.router = Wrap(NewRouter(h, http.NotFoundHandler()), &bytes.Buffer{})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, query url.Values) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	target := path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	body := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func (f *fixture) ts(d time.Duration) string {
	return f.now.Add(d).Format(time.RFC3339)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	f.ready = false
	rec, _ = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestQueryEndpoint(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		path   string
		query  url.Values
		status int
		check  func(t *testing.T, body map[string]interface{})
	}{
		{
			name:   "duty cycle between",
			path:   "/api/items/Heater/average",
			query:  url.Values{"start": {f.ts(-4 * time.Hour)}, "end": {f.ts(-time.Hour)}},
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "scalar", body["kind"])
				// off for 2h, on for 1h
				assert.InDelta(t, 1.0/3, body["value"], 1e-9)
			},
		},
		{
			name:   "count state changes since",
			path:   "/api/items/Heater/count_state_changes",
			query:  url.Values{"since": {f.ts(-5 * time.Hour)}},
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "count", body["kind"])
				assert.Equal(t, 1.0, body["count"])
			},
		},
		{
			name:   "changed until",
			path:   "/api/items/Heater/changed",
			query:  url.Values{"until": {f.ts(time.Hour)}},
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "boolean", body["kind"])
				assert.Equal(t, false, body["bool"])
			},
		},
		{
			name:   "persisted state at",
			path:   "/api/items/Heater/persisted_state",
			query:  url.Values{"at": {f.ts(-3 * time.Hour)}},
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "point_in_time", body["kind"])
				assert.Equal(t, 0.0, body["value"])
				assert.Equal(t, f.now.Add(-4*time.Hour).Format(time.RFC3339Nano), body["time"])
			},
		},
		{
			name:   "previous state skipping equal",
			path:   "/api/items/Heater/previous_state",
			query:  url.Values{"skip_equal": {"true"}},
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, 0.0, body["value"])
			},
		},
		{
			name:   "absent for unknown service",
			path:   "/api/items/Heater/maximum",
			query:  url.Values{"since": {f.ts(-time.Hour)}, "service": {"influx"}},
			status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "absent", body["kind"])
			},
		},
		{
			name:   "unknown metric",
			path:   "/api/items/Heater/mode",
			status: http.StatusBadRequest,
		},
		{
			name:   "missing selector",
			path:   "/api/items/Heater/sum",
			status: http.StatusBadRequest,
		},
		{
			name:   "bad skip_equal",
			path:   "/api/items/Heater/next_state",
			query:  url.Values{"skip_equal": {"maybe"}},
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown item",
			path:   "/api/items/Boiler/last_update",
			status: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, http.MethodGet, tt.path, tt.query)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.check != nil {
				tt.check(t, body)
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestRemoveStatesEndpoint(t *testing.T) {
	f := newFixture(t)

	rec, _ := f.do(t, http.MethodDelete, "/api/items/Heater/states", url.Values{"until": {f.ts(-3 * time.Hour)}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rows, err := f.store.Query(context.Background(), database.FilterCriteria{ItemName: "Heater"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rec, _ = f.do(t, http.MethodDelete, "/api/items/Heater/states", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodDelete, "/api/items/Heater/states", url.Values{"since": {f.ts(-time.Hour)}, "service": {"rrd"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMetrics(t *testing.T) {
	f := newFixture(t)
	rec, body := f.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["metrics"], "riemann_sum")
	assert.Contains(t, body["metrics"], "next_change")
}
