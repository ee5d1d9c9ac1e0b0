package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/itemhistory/internal/database"
	"github.com/tejusbharadwaj/itemhistory/internal/database/mocks"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/models"
	"github.com/tejusbharadwaj/itemhistory/internal/state"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

func newRecorder(t *testing.T, strategy Strategy) (*Recorder, *item.Registry, *database.MemoryStore) {
	t.Helper()
	items := item.NewRegistry()
	require.NoError(t, items.Add(item.NewGenericItem("Light", units.Unit{})))

	mem := database.NewMemoryStore()
	stores := database.NewRegistry()
	stores.Register("memory", mem)

	logger, _ := test.NewNullLogger()
	r := NewRecorder(items, stores, strategy, logger)
	r.now = func() time.Time { return now }
	return r, items, mem
}

func stored(t *testing.T, mem *database.MemoryStore, name string) []models.HistoricState {
	t.Helper()
	rows, err := mem.Query(context.Background(), database.FilterCriteria{ItemName: name})
	require.NoError(t, err)
	return rows
}

func TestRecorderEveryChange(t *testing.T) {
	r, items, mem := newRecorder(t, EveryChange)
	ctx := context.Background()

	require.NoError(t, r.Apply(ctx, models.StateUpdate{Item: "Light", State: state.On, Time: now}))
	require.NoError(t, r.Apply(ctx, models.StateUpdate{Item: "Light", State: state.On, Time: now.Add(time.Minute)}))
	require.NoError(t, r.Apply(ctx, models.StateUpdate{Item: "Light", State: state.Off, Time: now.Add(2 * time.Minute)}))

	rows := stored(t, mem, "Light")
	require.Len(t, rows, 2)
	assert.Equal(t, state.On, rows[0].State)
	assert.Equal(t, now.Add(2*time.Minute), rows[1].Time)

	it, err := items.Get("Light")
	require.NoError(t, err)
	assert.Equal(t, state.Off, it.State())
}

func TestRecorderEveryUpdate(t *testing.T) {
	r, _, mem := newRecorder(t, EveryUpdate)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Apply(ctx, models.StateUpdate{Item: "Light", State: state.On}))
	}
	rows := stored(t, mem, "Light")
	require.Len(t, rows, 3)
	assert.Equal(t, now, rows[0].Time)
}

func TestRecorderUnknownItem(t *testing.T) {
	r, _, _ := newRecorder(t, EveryUpdate)
	before := testutil.ToFloat64(Updates.WithLabelValues("rejected"))

	err := r.Apply(context.Background(), models.StateUpdate{Item: "Ghost", State: state.On})
	assert.ErrorIs(t, err, item.ErrNotFound)
	assert.Equal(t, before+1, testutil.ToFloat64(Updates.WithLabelValues("rejected")))
}

func TestRecorderSnapshot(t *testing.T) {
	r, items, mem := newRecorder(t, EveryChange)
	require.NoError(t, items.Add(item.NewGenericItem("Unset", units.Unit{})))
	_, err := items.Update("Light", state.On, now.Add(-time.Hour))
	require.NoError(t, err)

	require.NoError(t, r.Snapshot(context.Background()))

	rows := stored(t, mem, "Light")
	require.Len(t, rows, 1)
	assert.Equal(t, now, rows[0].Time)
	assert.Empty(t, stored(t, mem, "Unset"))
}

func TestRecorderSnapshotReportsBrokenGroup(t *testing.T) {
	r, items, mem := newRecorder(t, EveryChange)
	celsius := units.MustParse("°C")
	sensor := item.NewGenericItem("Sensor", units.Unit{})
	sensor.SetState(state.Quantity{Value: 5, Unit: units.MustParse("m")}, now)
	require.NoError(t, items.Add(sensor))
	fn, err := item.LookupFunc("SUM")
	require.NoError(t, err)
	require.NoError(t, items.Add(item.NewGroupItem("Temps", celsius, fn, sensor)))

	err = r.Snapshot(context.Background())
	assert.ErrorIs(t, err, units.ErrIncompatible)
	assert.Empty(t, stored(t, mem, "Temps"))
	assert.Len(t, stored(t, mem, "Sensor"), 1)
}

func TestRecorderPersistFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	failing := mocks.NewMockStore(ctrl)
	failing.EXPECT().Persist(gomock.Any(), "Light", gomock.Any()).Return(errors.New("disk full"))

	items := item.NewRegistry()
	require.NoError(t, items.Add(item.NewGenericItem("Light", units.Unit{})))
	mem := database.NewMemoryStore()
	stores := database.NewRegistry()
	stores.Register("a-memory", mem)
	stores.Register("b-broken", failing)

	logger, _ := test.NewNullLogger()
	r := NewRecorder(items, stores, EveryUpdate, logger)

	err := r.Apply(context.Background(), models.StateUpdate{Item: "Light", State: state.On, Time: now})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	// the healthy store still got the state
	assert.Len(t, stored(t, mem, "Light"), 1)
}

func TestRecorderRun(t *testing.T) {
	r, _, mem := newRecorder(t, EveryUpdate)
	updates := make(chan models.StateUpdate, 3)
	updates <- models.StateUpdate{Item: "Light", State: state.On, Time: now}
	updates <- models.StateUpdate{Item: "Ghost", State: state.On, Time: now}
	updates <- models.StateUpdate{Item: "Light", State: state.Off, Time: now.Add(time.Second)}
	close(updates)

	r.Run(context.Background(), updates)
	assert.Len(t, stored(t, mem, "Light"), 2)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("everyUpdate")
	require.NoError(t, err)
	assert.Equal(t, EveryUpdate, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, EveryChange, s)

	_, err = ParseStrategy("everyMinute")
	assert.Error(t, err)
}
