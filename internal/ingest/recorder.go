package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/itemhistory/internal/database"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/models"
	"github.com/tejusbharadwaj/itemhistory/internal/state"
)

// Strategy decides which live updates are persisted.
type Strategy int

const (
	// EveryChange persists an update only when the value changed.
	EveryChange Strategy = iota
	// EveryUpdate persists every update.
	EveryUpdate
)

func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "everyChange":
		return EveryChange, nil
	case "everyUpdate":
		return EveryUpdate, nil
	}
	return EveryChange, fmt.Errorf("unknown strategy %q", s)
}

var (
	Updates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemhistory",
			Subsystem: "recorder",
			Name:      "updates_total",
			Help:      "Live state updates by outcome.",
		},
		[]string{"result"},
	)
	Persisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "itemhistory",
			Subsystem: "recorder",
			Name:      "persisted_total",
			Help:      "States written by persistence service.",
		},
		[]string{"service"},
	)
)

// Stores lists the persistence services states are written to.
type Stores interface {
	IDs() []string
	Get(id string) (database.Store, bool)
}

// Recorder applies live updates to the item registry and persists them.
type Recorder struct {
	items    *item.Registry
	stores   Stores
	strategy Strategy
	now      func() time.Time
	logger   *logrus.Entry
}

func NewRecorder(items *item.Registry, stores Stores, strategy Strategy, logger *logrus.Logger) *Recorder {
	return &Recorder{
		items:    items,
		stores:   stores,
		strategy: strategy,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.WithField("component", "recorder"),
	}
}

// Apply sets the live state of u.Item and persists it when the strategy
// asks for it.
func (r *Recorder) Apply(ctx context.Context, u models.StateUpdate) error {
	at := u.Time
	if at.IsZero() {
		at = r.now()
	}
	changed, err := r.items.Update(u.Item, u.State, at)
	if err != nil {
		Updates.WithLabelValues("rejected").Inc()
		return err
	}
	if r.strategy == EveryChange && !changed {
		Updates.WithLabelValues("unchanged").Inc()
		return nil
	}
	Updates.WithLabelValues("persisted").Inc()
	return r.persist(ctx, u.Item, models.HistoricState{Time: at, State: u.State})
}

// Snapshot persists the current state of every item, groups included.
// Undefined states are skipped.
func (r *Recorder) Snapshot(ctx context.Context) error {
	at := r.now()
	var errs []error
	for _, it := range r.items.Items() {
		s, err := item.Current(it)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, undef := s.(state.Undefined); undef || s == nil {
			continue
		}
		if err := r.persist(ctx, it.Name(), models.HistoricState{Time: at, State: s}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Recorder) persist(ctx context.Context, name string, hs models.HistoricState) error {
	var errs []error
	for _, id := range r.stores.IDs() {
		s, ok := r.stores.Get(id)
		if !ok {
			continue
		}
		if err := s.Persist(ctx, name, hs); err != nil {
			errs = append(errs, fmt.Errorf("persist %s to %s: %w", name, id, err))
			continue
		}
		Persisted.WithLabelValues(id).Inc()
	}
	return errors.Join(errs...)
}

// Run applies updates until ctx is done or the channel is closed. Failed
// updates are logged and skipped.
func (r *Recorder) Run(ctx context.Context, updates <-chan models.StateUpdate) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := r.Apply(ctx, u); err != nil {
				r.logger.WithField("item", u.Item).WithError(err).Warn("failed to record state")
			}
		}
	}
}
