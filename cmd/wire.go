package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/itemhistory/internal/config"
	"github.com/tejusbharadwaj/itemhistory/internal/database"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

func newLogger(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		logger.SetLevel(level)
	}
	return logger, nil
}

// buildStores opens every configured persistence service and reports their
// writes to hook when set. Already opened stores are closed again when a
// later one fails.
func buildStores(cfg config.PersistenceConfig, hook database.WriteHook) (*database.Registry, error) {
	reg := database.NewRegistry()
	for _, svc := range cfg.Services {
		store, err := openStore(svc)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("persistence service %s: %w", svc.ID, err)
		}
		if hook != nil {
			store = database.Observe(store, hook)
		}
		reg.Register(svc.ID, store)
	}
	if cfg.Default != "" {
		if err := reg.SetDefault(cfg.Default); err != nil {
			reg.Close()
			return nil, err
		}
	}
	return reg, nil
}

func openStore(svc config.ServiceConfig) (database.Store, error) {
	switch svc.Type {
	case "memory":
		return database.NewMemoryStore(), nil
	case "postgres":
		return database.NewPostgresRepo(svc.DSN, svc.Table)
	case "sqlite":
		return database.NewSQLiteRepo(svc.DSN, svc.Table)
	}
	return nil, fmt.Errorf("unknown service type %q", svc.Type)
}

// buildItems registers plain items first and groups afterwards, in
// declaration order, so a group may contain earlier groups.
func buildItems(cfgs []config.ItemConfig) (*item.Registry, error) {
	reg := item.NewRegistry()
	for _, c := range cfgs {
		if c.Type == "group" {
			continue
		}
		unit, err := parseUnit(c)
		if err != nil {
			return nil, err
		}
		if err := reg.Add(item.NewGenericItem(c.Name, unit)); err != nil {
			return nil, err
		}
	}

	for _, c := range cfgs {
		if c.Type != "group" {
			continue
		}
		unit, err := parseUnit(c)
		if err != nil {
			return nil, err
		}
		fnName := c.Function
		if fnName == "" {
			fnName = "AVG"
		}
		fn, err := item.LookupFunc(fnName)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", c.Name, err)
		}
		members := make([]item.Item, 0, len(c.Members))
		for _, m := range c.Members {
			it, err := reg.Get(m)
			if err != nil {
				return nil, fmt.Errorf("group %s: %w: %s", c.Name, item.ErrUnknownMember, m)
			}
			if !unit.IsZero() && !it.Unit().IsZero() && !it.Unit().Compatible(unit) {
				return nil, fmt.Errorf("group %s member %s: %w: %s and %s", c.Name, m, units.ErrIncompatible, it.Unit(), unit)
			}
			members = append(members, it)
		}
		if err := reg.Add(item.NewGroupItem(c.Name, unit, fn, members...)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func parseUnit(c config.ItemConfig) (units.Unit, error) {
	if c.Unit == "" {
		return units.Unit{}, nil
	}
	u, err := units.Parse(c.Unit)
	if err != nil {
		return units.Unit{}, fmt.Errorf("item %s: %w", c.Name, err)
	}
	return u, nil
}

// itemNames lists the names of registered items.
func itemNames(reg *item.Registry) []string {
	items := reg.Items()
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name()
	}
	return names
}
