package persistence

import (
	"context"
	"sort"
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/database"
	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/models"
)

// Sample is a numeric value at a point in time, either persisted or
// synthesized at a window edge.
type Sample struct {
	Time  time.Time
	Value float64
}

// query carries everything one public call needs: the resolved store, the
// item and a single "now" used for every decision of the call.
type query struct {
	ctx      context.Context
	store    database.Store
	item     item.Item
	now      time.Time
	norm     *normalizer
	pageSize int
}

// fetch runs filter and returns the numeric samples in ascending order
// together with the raw rows. Undefined states are dropped from samples.
func (q *query) fetch(filter database.FilterCriteria) ([]Sample, []models.HistoricState, error) {
	filter.ItemName = q.item.Name()
	raw, err := q.store.Query(q.ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	samples := make([]Sample, 0, len(raw))
	for _, r := range raw {
		v, ok, err := q.norm.value(r.State)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			samples = append(samples, Sample{Time: r.Time, Value: v})
		}
	}
	if filter.Ordering == database.Descending {
		sort.SliceStable(samples, func(a, b int) bool { return samples[a].Time.After(samples[b].Time) })
	} else {
		sort.SliceStable(samples, func(a, b int) bool { return samples[a].Time.Before(samples[b].Time) })
	}
	return samples, raw, nil
}

// live is the item's current state as a number.
func (q *query) live() (float64, bool, error) {
	s, err := item.Current(q.item)
	if err != nil {
		return 0, false, err
	}
	return q.norm.value(s)
}

// valueAt is the value the item held at t: the last persisted state at or
// before t. From now on, the live state replaces persisted states that are
// not forecasts, i.e. not later than now.
func (q *query) valueAt(t time.Time) (float64, bool, error) {
	rows, _, err := q.fetch(database.FilterCriteria{End: &t, Ordering: database.Descending, PageSize: 1})
	if err != nil {
		return 0, false, err
	}
	if !t.Before(q.now) && (len(rows) == 0 || !rows[0].Time.After(q.now)) {
		return q.live()
	}
	if len(rows) == 0 {
		return 0, false, nil
	}
	return rows[0].Value, true, nil
}

// walk visits persisted samples page by page in the given order, starting
// from the bound set in filter, until fn returns false.
func (q *query) walk(filter database.FilterCriteria, fn func(Sample) bool) error {
	size := q.pageSize
	if size <= 0 {
		size = defaultPageSize
	}
	filter.PageSize = size
	for page := 0; ; page++ {
		filter.PageNumber = page
		samples, raw, err := q.fetch(filter)
		if err != nil {
			return err
		}
		for _, s := range samples {
			if !fn(s) {
				return nil
			}
		}
		if len(raw) < size {
			return nil
		}
	}
}

// series is the ascending sample sequence of a window. Consecutive samples
// form buckets: samples[i].Value held for samples[i+1].Time-samples[i].Time.
type series struct {
	window Window
	unit   string

	// samples holds the boundary sample, persisted samples, the live
	// sample and a closing sample at the window end.
	samples []Sample

	// persisted are the stored samples inside (Begin, End].
	persisted []Sample

	// boundary is set when a value was known at Begin.
	boundary bool
}

// series builds the sequence for w:
//  1. persisted samples inside (Begin, End]
//  2. a boundary sample at Begin carrying the value known at Begin
//  3. the live state at now when now lies inside the window; forecast
//     samples after now follow it
//  4. a closing sample at End repeating the last value
func (q *query) series(w Window) (*series, error) {
	filter := database.FilterCriteria{End: &w.End, Ordering: database.Ascending}
	if !w.OpenBegin {
		filter.Begin = &w.Begin
	}
	rows, _, err := q.fetch(filter)
	if err != nil {
		return nil, err
	}

	s := &series{window: w}
	for _, r := range rows {
		if !w.OpenBegin && !r.Time.After(w.Begin) {
			continue
		}
		s.persisted = append(s.persisted, r)
	}

	if !w.OpenBegin {
		v, ok, err := q.valueAt(w.Begin)
		if err != nil {
			return nil, err
		}
		if ok {
			s.samples = append(s.samples, Sample{Time: w.Begin, Value: v})
			s.boundary = true
		}
	}

	pending := false
	var live Sample
	if w.Contains(q.now) {
		v, ok, err := q.live()
		if err != nil {
			return nil, err
		}
		live, pending = Sample{Time: q.now, Value: v}, ok
	}
	for _, p := range s.persisted {
		if pending && p.Time.After(q.now) {
			s.samples = append(s.samples, live)
			pending = false
		}
		s.samples = append(s.samples, p)
	}
	if pending {
		s.samples = append(s.samples, live)
	}

	if n := len(s.samples); n > 0 && s.samples[n-1].Time.Before(w.End) {
		s.samples = append(s.samples, Sample{Time: w.End, Value: s.samples[n-1].Value})
	}

	s.unit = q.norm.symbol()
	return s, nil
}

// hasData reports whether the window holds a boundary or a persisted sample.
func (s *series) hasData() bool {
	return s.boundary || len(s.persisted) > 0
}

// instant reports a zero length window.
func (s *series) instant() bool {
	return !s.window.OpenBegin && s.window.Begin.Equal(s.window.End)
}

// duration is the divisor of time weighted statistics: end - begin, or the
// span from the earliest sample when the window has an open begin.
func (s *series) duration() time.Duration {
	if s.window.OpenBegin {
		return s.span()
	}
	return s.window.Duration()
}

// span is the time covered by the sequence.
func (s *series) span() time.Duration {
	if len(s.samples) < 2 {
		return 0
	}
	return s.samples[len(s.samples)-1].Time.Sub(s.samples[0].Time)
}
