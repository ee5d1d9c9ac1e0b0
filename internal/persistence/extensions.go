// Package persistence answers temporal questions about items from their
// persisted history: values at a point in time, extrema, counts, time
// weighted statistics, differences, Riemann integrals and change points.
//
// Every query stitches the sparse persisted samples together with the value
// known at the window start and with the item's live state, so results are
// defined even when no sample sits exactly on a window edge.
//
// Example usage:
//
//	ext := persistence.New(registry, persistence.WithLogger(logger))
//	res, err := ext.AverageSince(ctx, kitchenTemp, time.Now().Add(-24*time.Hour), "")
//	if err != nil {
//	    return err
//	}
//	switch r := res.(type) {
//	case persistence.Scalar:
//	    fmt.Println(r.Value, r.Unit)
//	case persistence.Absent:
//	    fmt.Println("no data")
//	}
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/itemhistory/internal/database"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

const defaultPageSize = 100

var (
	ErrUnknownMetric      = errors.New("unknown metric")
	ErrUnknownRiemannType = errors.New("unknown riemann type")
	ErrNoService          = errors.New("no persistence service available")
	ErrMissingSelector    = errors.New("metric requires a time selector")
)

// ServiceRegistry resolves persistence services by id.
type ServiceRegistry interface {
	Get(id string) (database.Store, bool)
	Default() (database.Store, bool)
	DefaultID() (string, bool)
}

// Extensions is the query entry point. It holds no state besides its
// collaborators and is safe for concurrent use.
type Extensions struct {
	services ServiceRegistry
	clock    Clock
	logger   *logrus.Entry
	pageSize int
}

type Option func(*Extensions)

// WithClock replaces the system clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(e *Extensions) { e.clock = c }
}

func WithLogger(l *logrus.Logger) Option {
	return func(e *Extensions) { e.logger = l.WithField("component", "persistence") }
}

// WithPageSize sets the page size used when walking history.
func WithPageSize(n int) Option {
	return func(e *Extensions) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

func New(services ServiceRegistry, opts ...Option) *Extensions {
	e := &Extensions{
		services: services,
		clock:    SystemClock{},
		logger:   logrus.StandardLogger().WithField("component", "persistence"),
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// store resolves serviceID, the default service when empty.
func (e *Extensions) store(serviceID string) (database.Store, bool) {
	if serviceID == "" {
		s, ok := e.services.Default()
		if !ok {
			e.logger.Warn("no default persistence service configured")
		}
		return s, ok
	}
	s, ok := e.services.Get(serviceID)
	if !ok {
		e.logger.WithField("service", serviceID).Warn("persistence service not found")
	}
	return s, ok
}

// begin prepares the per call state. It returns false when no service can
// be resolved, in which case the caller answers Absent.
func (e *Extensions) begin(ctx context.Context, it item.Item, serviceID string) (*query, bool) {
	s, ok := e.store(serviceID)
	if !ok {
		return nil, false
	}
	return &query{
		ctx:      ctx,
		store:    s,
		item:     it,
		now:      e.clock.Now(),
		norm:     newNormalizer(it),
		pageSize: e.pageSize,
	}, true
}

// finish logs configuration errors loudly before handing them back.
func (e *Extensions) finish(op string, it item.Item, res Result, err error) (Result, error) {
	if err != nil {
		entry := e.logger.WithFields(logrus.Fields{"op": op, "item": it.Name()}).WithError(err)
		if errors.Is(err, units.ErrIncompatible) {
			entry.Error("unit configuration error")
		} else {
			entry.Debug("query failed")
		}
		return nil, fmt.Errorf("%s %s: %w", op, it.Name(), err)
	}
	return res, nil
}

// windowed builds the series of sel and applies fn to it.
func (e *Extensions) windowed(ctx context.Context, op string, it item.Item, sel Selector, serviceID string, fn func(*series) Result) (Result, error) {
	q, ok := e.begin(ctx, it, serviceID)
	if !ok {
		return Absent{}, nil
	}
	s, err := q.series(sel.Window(q.now))
	if err != nil {
		return e.finish(op, it, nil, err)
	}
	return fn(s), nil
}

// pointwise evaluates fn on the two instants of sel.
func (e *Extensions) pointwise(ctx context.Context, op string, it item.Item, sel Selector, serviceID string, fn func(q *query, a, b time.Time) (Result, error)) (Result, error) {
	q, ok := e.begin(ctx, it, serviceID)
	if !ok {
		return Absent{}, nil
	}
	a, b := sel.Points(q.now)
	res, err := fn(q, a, b)
	return e.finish(op, it, res, err)
}

// current evaluates fn relative to now.
func (e *Extensions) current(ctx context.Context, op string, it item.Item, serviceID string, fn func(q *query) (Result, error)) (Result, error) {
	q, ok := e.begin(ctx, it, serviceID)
	if !ok {
		return Absent{}, nil
	}
	res, err := fn(q)
	return e.finish(op, it, res, err)
}

func (e *Extensions) Maximum(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.windowed(ctx, "maximum", it, sel, serviceID, func(s *series) Result { return s.extremum(true) })
}

func (e *Extensions) Minimum(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.windowed(ctx, "minimum", it, sel, serviceID, func(s *series) Result { return s.extremum(false) })
}

// Count counts the persisted states inside the window.
func (e *Extensions) Count(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.windowed(ctx, "count", it, sel, serviceID, (*series).count)
}

// CountStateChanges counts value transitions between persisted states
// inside the window.
func (e *Extensions) CountStateChanges(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.windowed(ctx, "count_state_changes", it, sel, serviceID, (*series).countStateChanges)
}

// Sum adds up the persisted values inside the window, without time weights.
func (e *Extensions) Sum(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.windowed(ctx, "sum", it, sel, serviceID, (*series).sum)
}

// Average is the time weighted average.
func (e *Extensions) Average(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.windowed(ctx, "average", it, sel, serviceID, (*series).average)
}

// Variance is the time weighted variance; its unit is the item unit squared.
func (e *Extensions) Variance(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.windowed(ctx, "variance", it, sel, serviceID, (*series).varianceResult)
}

// Deviation is the square root of Variance.
func (e *Extensions) Deviation(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.windowed(ctx, "deviation", it, sel, serviceID, (*series).deviation)
}

// Median is the median of the persisted values inside the window.
func (e *Extensions) Median(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.windowed(ctx, "median", it, sel, serviceID, (*series).median)
}

// RiemannSum integrates the item over the window; the result unit is the
// item unit times seconds.
func (e *Extensions) RiemannSum(ctx context.Context, it item.Item, sel Selector, rule RiemannType, serviceID string) (Result, error) {
	return e.windowed(ctx, "riemann_sum", it, sel, serviceID, func(s *series) Result { return s.riemann(rule) })
}

func (e *Extensions) Delta(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.pointwise(ctx, "delta", it, sel, serviceID, (*query).delta)
}

func (e *Extensions) EvolutionRate(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.pointwise(ctx, "evolution_rate", it, sel, serviceID, (*query).evolutionRate)
}

func (e *Extensions) Changed(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.pointwise(ctx, "changed", it, sel, serviceID, (*query).changed)
}

func (e *Extensions) Updated(ctx context.Context, it item.Item, sel Selector, serviceID string) (Result, error) {
	return e.pointwise(ctx, "updated", it, sel, serviceID, (*query).updated)
}

// HistoricState is the value the item held at t.
func (e *Extensions) HistoricState(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.current(ctx, "historic_state", it, serviceID, func(q *query) (Result, error) { return q.historicAt(t) })
}

// PersistedState is the last persisted state at or before t.
func (e *Extensions) PersistedState(ctx context.Context, it item.Item, t time.Time, serviceID string) (Result, error) {
	return e.current(ctx, "persisted_state", it, serviceID, func(q *query) (Result, error) { return q.persistedAt(t) })
}

func (e *Extensions) PreviousState(ctx context.Context, it item.Item, skipEqual bool, serviceID string) (Result, error) {
	return e.current(ctx, "previous_state", it, serviceID, func(q *query) (Result, error) { return q.neighbour(false, skipEqual) })
}

func (e *Extensions) NextState(ctx context.Context, it item.Item, skipEqual bool, serviceID string) (Result, error) {
	return e.current(ctx, "next_state", it, serviceID, func(q *query) (Result, error) { return q.neighbour(true, skipEqual) })
}

func (e *Extensions) LastUpdate(ctx context.Context, it item.Item, serviceID string) (Result, error) {
	return e.current(ctx, "last_update", it, serviceID, func(q *query) (Result, error) { return q.update(false) })
}

func (e *Extensions) NextUpdate(ctx context.Context, it item.Item, serviceID string) (Result, error) {
	return e.current(ctx, "next_update", it, serviceID, func(q *query) (Result, error) { return q.update(true) })
}

func (e *Extensions) LastChange(ctx context.Context, it item.Item, serviceID string) (Result, error) {
	return e.current(ctx, "last_change", it, serviceID, (*query).lastChange)
}

func (e *Extensions) NextChange(ctx context.Context, it item.Item, serviceID string) (Result, error) {
	return e.current(ctx, "next_change", it, serviceID, (*query).nextChange)
}

// RemoveAllStates deletes the persisted states inside the window of sel.
func (e *Extensions) RemoveAllStates(ctx context.Context, it item.Item, sel Selector, serviceID string) error {
	s, ok := e.store(serviceID)
	if !ok {
		return ErrNoService
	}
	w := sel.Window(e.clock.Now())
	filter := database.FilterCriteria{ItemName: it.Name(), End: &w.End}
	if !w.OpenBegin {
		filter.Begin = &w.Begin
	}
	if err := s.Remove(ctx, filter); err != nil {
		return fmt.Errorf("remove states of %s: %w", it.Name(), err)
	}
	e.logger.WithFields(logrus.Fields{
		"item":     it.Name(),
		"selector": sel.Kind.String(),
	}).Info("removed persisted states")
	return nil
}
