package main

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/itemhistory/internal/config"
	"github.com/tejusbharadwaj/itemhistory/internal/database"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

func TestBuildItems(t *testing.T) {
	reg, err := buildItems([]config.ItemConfig{
		{Name: "Total_Power", Type: "group", Unit: "W", Function: "SUM", Members: []string{"Oven_Power", "Fridge_Power"}},
		{Name: "Oven_Power", Type: "number", Unit: "W"},
		{Name: "Fridge_Power", Type: "number", Unit: "W"},
		{Name: "Heater", Type: "switch"},
	})
	require.NoError(t, err)

	total, err := reg.Get("Total_Power")
	require.NoError(t, err)
	group, ok := total.(*item.GroupItem)
	require.True(t, ok)
	assert.Len(t, group.Members(), 2)
	assert.Equal(t, "W", group.Unit().Symbol)

	heater, err := reg.Get("Heater")
	require.NoError(t, err)
	assert.Equal(t, units.Unit{}, heater.Unit())

	assert.ElementsMatch(t, []string{"Total_Power", "Oven_Power", "Fridge_Power", "Heater"}, itemNames(reg))
}

func TestBuildItemsErrors(t *testing.T) {
	_, err := buildItems([]config.ItemConfig{
		{Name: "All", Type: "group", Members: []string{"Missing"}},
	})
	assert.ErrorIs(t, err, item.ErrUnknownMember)

	_, err = buildItems([]config.ItemConfig{{Name: "Temp", Unit: "furlong"}})
	assert.ErrorIs(t, err, units.ErrUnknownUnit)

	_, err = buildItems([]config.ItemConfig{
		{Name: "A"},
		{Name: "All", Type: "group", Function: "MODE", Members: []string{"A"}},
	})
	assert.ErrorIs(t, err, item.ErrUnknownFunc)

	_, err = buildItems([]config.ItemConfig{
		{Name: "Length", Unit: "m"},
		{Name: "Temps", Type: "group", Unit: "°C", Function: "SUM", Members: []string{"Length"}},
	})
	assert.ErrorIs(t, err, units.ErrIncompatible)

	_, err = buildItems([]config.ItemConfig{{Name: "A"}, {Name: "A"}})
	assert.ErrorIs(t, err, item.ErrDuplicate)
}

func TestBuildStores(t *testing.T) {
	reg, err := buildStores(config.PersistenceConfig{
		Default: "local",
		Services: []config.ServiceConfig{
			{ID: "memory", Type: "memory"},
			{ID: "local", Type: "sqlite", DSN: filepath.Join(t.TempDir(), "history.db")},
		},
	}, nil)
	require.NoError(t, err)
	defer reg.Close()

	assert.Equal(t, []string{"local", "memory"}, reg.IDs())
	id, ok := reg.DefaultID()
	require.True(t, ok)
	assert.Equal(t, "local", id)
	store, ok := reg.Default()
	require.True(t, ok)
	assert.IsType(t, &database.SQLiteRepo{}, store)
}

func TestBuildStoresUnknownDefault(t *testing.T) {
	_, err := buildStores(config.PersistenceConfig{
		Default:  "influx",
		Services: []config.ServiceConfig{{ID: "memory", Type: "memory"}},
	}, nil)
	assert.ErrorIs(t, err, database.ErrUnknownService)

	_, err = buildStores(config.PersistenceConfig{
		Services: []config.ServiceConfig{{ID: "rrd", Type: "rrd4j"}},
	}, nil)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LoggingConfig{Level: "debug", Format: "text"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger, err = newLogger(config.LoggingConfig{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = newLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestQueryFlagsParams(t *testing.T) {
	f := &queryFlags{item: "Temp", metric: "historic_state", at: "2024-05-01T10:00:00Z"}
	p := f.params()
	assert.Equal(t, "2024-05-01T10:00:00Z", p.Start)
	assert.Empty(t, p.Selector)

	f = &queryFlags{item: "Temp", metric: "average", start: "2024-05-01T00:00:00Z", end: "2024-05-02T00:00:00Z"}
	p = f.params()
	assert.Equal(t, "between", p.Selector)
	assert.Equal(t, "2024-05-02T00:00:00Z", p.End)

	f = &queryFlags{item: "Temp", metric: "count", until: "2024-05-02T00:00:00Z"}
	p = f.params()
	assert.Equal(t, "until", p.Selector)
	assert.Equal(t, "2024-05-02T00:00:00Z", p.End)
}
