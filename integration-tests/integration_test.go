//go:build integration
// +build integration

package integration_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/tejusbharadwaj/itemhistory/internal/database"
	server "github.com/tejusbharadwaj/itemhistory/internal/grpc"
	"github.com/tejusbharadwaj/itemhistory/internal/ingest"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/models"
	"github.com/tejusbharadwaj/itemhistory/internal/persistence"
	"github.com/tejusbharadwaj/itemhistory/internal/state"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

const (
	bufSize   = 1024 * 1024
	testTable = "item_states_it"
	testItem  = "Outdoor_Temperature"
)

// Helper function to get environment variables with defaults
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupTestDB(t *testing.T) *database.PostgresRepo {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnvOrDefault("DB_HOST", "db"),
		getEnvOrDefault("DB_PORT", "5432"),
		getEnvOrDefault("DB_USER", "itemhistory"),
		getEnvOrDefault("DB_PASSWORD", "itemhistory"),
		getEnvOrDefault("DB_NAME", "itemhistory"),
	)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	if err := db.Ping(); err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS ` + testTable + ` (
		item  TEXT        NOT NULL,
		time  TIMESTAMPTZ NOT NULL,
		state TEXT        NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec("TRUNCATE TABLE " + testTable)
	require.NoError(t, err)

	repo, err := database.NewPostgresRepoFromDB(db, testTable)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// setupMockAPIServer serves a reading every 15 minutes, alternating
// between 10 and 20.
func setupMockAPIServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
		require.NoError(t, err)
		end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
		require.NoError(t, err)

		var resp models.APIResponse
		for i, cur := 0, start; cur.Before(end); i, cur = i+1, cur.Add(15*time.Minute) {
			resp.Result = append(resp.Result, struct {
				Time  int64  `json:"time"`
				State string `json:"state"`
			}{Time: cur.UnixMilli(), State: strconv.Itoa(10 + 10*(i%2))})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func setupTestEnvironment(t *testing.T) (*server.Client, *database.PostgresRepo, *logrus.Logger) {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	repo := setupTestDB(t)
	stores := database.NewRegistry()
	stores.Register("timescale", repo)
	require.NoError(t, stores.SetDefault("timescale"))

	items := item.NewRegistry()
	require.NoError(t, items.Add(item.NewGenericItem(testItem, units.Unit{})))

	svc := server.NewPersistenceQueryService(items, persistence.New(stores, persistence.WithLogger(logger)), logger)
	srv, err := server.SetupServer(svc, server.ServerConfig{CacheSize: 100, RateLimit: 1000, RateLimitBurst: 1000}, nil, logger)
	require.NoError(t, err)

	lis := bufconn.Listen(bufSize)
	go func() {
		if err := srv.Serve(lis); err != nil {
			logger.Errorf("Error serving: %v", err)
		}
	}()
	t.Cleanup(func() {
		srv.Stop()
		lis.Close()
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return server.NewClient(conn), repo, logger
}

func TestImportAndQuery(t *testing.T) {
	client, repo, logger := setupTestEnvironment(t)
	mockAPI := setupMockAPIServer(t)
	defer mockAPI.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	end := time.Now().UTC().Truncate(time.Hour)
	start := end.Add(-6 * time.Hour)
	n, err := ingest.NewImporter(mockAPI.URL, repo, logger).FetchData(ctx, testItem, start, end)
	require.NoError(t, err)
	require.Equal(t, 24, n)

	between := server.QueryParams{
		Item:     testItem,
		Selector: "between",
		Start:    start.Format(time.RFC3339),
		End:      end.Format(time.RFC3339),
	}

	tests := []struct {
		metric string
		key    string
		want   interface{}
	}{
		{metric: "count", key: "count", want: 24.0},
		{metric: "maximum", key: "value", want: 20.0},
		{metric: "minimum", key: "value", want: 10.0},
		{metric: "average", key: "value", want: 15.0},
		{metric: "changed", key: "bool", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			p := between
			p.Metric = tt.metric
			resp, err := client.Query(ctx, p)
			require.NoError(t, err)
			if f, ok := tt.want.(float64); ok {
				assert.InDelta(t, f, resp[tt.key], 1e-9)
			} else {
				assert.Equal(t, tt.want, resp[tt.key])
			}
		})
	}
}

func TestRemoveStates(t *testing.T) {
	client, repo, _ := setupTestEnvironment(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, persistEvery(ctx, repo, now.Add(-4*time.Hour), 4, time.Hour))

	_, err := client.RemoveStates(ctx, server.QueryParams{Item: testItem, Selector: "until", End: now.Add(-150 * time.Minute).Format(time.RFC3339)})
	require.NoError(t, err)

	resp, err := client.Query(ctx, server.QueryParams{Item: testItem, Metric: "count", Selector: "until", End: now.Format(time.RFC3339)})
	require.NoError(t, err)
	assert.Equal(t, 2.0, resp["count"])
}

func TestQueryErrors(t *testing.T) {
	client, _, _ := setupTestEnvironment(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tests := []struct {
		name   string
		params server.QueryParams
		code   codes.Code
	}{
		{"unknown metric", server.QueryParams{Item: testItem, Metric: "mode", Selector: "since", Start: time.Now().Add(-time.Hour).Format(time.RFC3339)}, codes.InvalidArgument},
		{"missing selector", server.QueryParams{Item: testItem, Metric: "average"}, codes.InvalidArgument},
		{"unknown item", server.QueryParams{Item: "Nope", Metric: "last_update"}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Query(ctx, tt.params)
			assert.Equal(t, tt.code, status.Code(err))
		})
	}

	resp, err := client.Query(ctx, server.QueryParams{Item: testItem, Metric: "average", Selector: "since", Start: time.Now().Add(-time.Hour).Format(time.RFC3339), Service: "influx"})
	require.NoError(t, err)
	assert.Equal(t, "absent", resp["kind"])
}

func persistEvery(ctx context.Context, repo database.Store, from time.Time, n int, step time.Duration) error {
	states := make([]models.HistoricState, 0, n)
	for i := 0; i < n; i++ {
		states = append(states, models.HistoricState{Time: from.Add(time.Duration(i) * step), State: state.Decimal(i)})
	}
	return repo.Persist(ctx, testItem, states...)
}
