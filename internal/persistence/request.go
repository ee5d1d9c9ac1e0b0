package persistence

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/item"
)

// Request names a metric for transports that receive queries as data.
type Request struct {
	Metric string
	// Selector is required by windowed and pointwise metrics.
	Selector *Selector
	// At is the instant of historic_state and persisted_state.
	At        time.Time
	Riemann   RiemannType
	SkipEqual bool
	ServiceID string
}

type selectorMetric func(e *Extensions, ctx context.Context, it item.Item, sel Selector, req Request) (Result, error)

type instantMetric func(e *Extensions, ctx context.Context, it item.Item, req Request) (Result, error)

var selectorMetrics = map[string]selectorMetric{
	"maximum":             bind((*Extensions).Maximum),
	"minimum":             bind((*Extensions).Minimum),
	"count":               bind((*Extensions).Count),
	"count_state_changes": bind((*Extensions).CountStateChanges),
	"sum":                 bind((*Extensions).Sum),
	"average":             bind((*Extensions).Average),
	"variance":            bind((*Extensions).Variance),
	"deviation":           bind((*Extensions).Deviation),
	"median":              bind((*Extensions).Median),
	"delta":               bind((*Extensions).Delta),
	"evolution_rate":      bind((*Extensions).EvolutionRate),
	"changed":             bind((*Extensions).Changed),
	"updated":             bind((*Extensions).Updated),
	"riemann_sum": func(e *Extensions, ctx context.Context, it item.Item, sel Selector, req Request) (Result, error) {
		return e.RiemannSum(ctx, it, sel, req.Riemann, req.ServiceID)
	},
}

var instantMetrics = map[string]instantMetric{
	"historic_state": func(e *Extensions, ctx context.Context, it item.Item, req Request) (Result, error) {
		return e.HistoricState(ctx, it, req.At, req.ServiceID)
	},
	"persisted_state": func(e *Extensions, ctx context.Context, it item.Item, req Request) (Result, error) {
		return e.PersistedState(ctx, it, req.At, req.ServiceID)
	},
	"previous_state": func(e *Extensions, ctx context.Context, it item.Item, req Request) (Result, error) {
		return e.PreviousState(ctx, it, req.SkipEqual, req.ServiceID)
	},
	"next_state": func(e *Extensions, ctx context.Context, it item.Item, req Request) (Result, error) {
		return e.NextState(ctx, it, req.SkipEqual, req.ServiceID)
	},
	"last_update": func(e *Extensions, ctx context.Context, it item.Item, req Request) (Result, error) {
		return e.LastUpdate(ctx, it, req.ServiceID)
	},
	"next_update": func(e *Extensions, ctx context.Context, it item.Item, req Request) (Result, error) {
		return e.NextUpdate(ctx, it, req.ServiceID)
	},
	"last_change": func(e *Extensions, ctx context.Context, it item.Item, req Request) (Result, error) {
		return e.LastChange(ctx, it, req.ServiceID)
	},
	"next_change": func(e *Extensions, ctx context.Context, it item.Item, req Request) (Result, error) {
		return e.NextChange(ctx, it, req.ServiceID)
	},
}

func bind(fn func(*Extensions, context.Context, item.Item, Selector, string) (Result, error)) selectorMetric {
	return func(e *Extensions, ctx context.Context, it item.Item, sel Selector, req Request) (Result, error) {
		return fn(e, ctx, it, sel, req.ServiceID)
	}
}

// Metrics lists the metric names Execute understands.
func Metrics() []string {
	names := make([]string, 0, len(selectorMetrics)+len(instantMetrics))
	for n := range selectorMetrics {
		names = append(names, n)
	}
	for n := range instantMetrics {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NeedsSelector reports whether metric is evaluated over a time selector.
func NeedsSelector(metric string) bool {
	_, ok := selectorMetrics[metric]
	return ok
}

// IsMetric reports whether metric is known.
func IsMetric(metric string) bool {
	_, ok := selectorMetrics[metric]
	if !ok {
		_, ok = instantMetrics[metric]
	}
	return ok
}

// Execute runs the metric named in req.
func (e *Extensions) Execute(ctx context.Context, it item.Item, req Request) (Result, error) {
	if fn, ok := selectorMetrics[req.Metric]; ok {
		if req.Selector == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingSelector, req.Metric)
		}
		return fn(e, ctx, it, *req.Selector, req)
	}
	if fn, ok := instantMetrics[req.Metric]; ok {
		return fn(e, ctx, it, req)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, req.Metric)
}
