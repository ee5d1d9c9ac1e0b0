package persistence

import (
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/database"
)

// delta is value(b) - value(a).
func (q *query) delta(a, b time.Time) (Result, error) {
	va, okA, err := q.valueAt(a)
	if err != nil {
		return nil, err
	}
	vb, okB, err := q.valueAt(b)
	if err != nil {
		return nil, err
	}
	if !okA || !okB {
		return Absent{}, nil
	}
	return Scalar{Value: vb - va, Unit: q.norm.symbol()}, nil
}

// evolutionRate is delta(a, b) in percent of the value held at the earlier
// of a and b.
func (q *query) evolutionRate(a, b time.Time) (Result, error) {
	va, okA, err := q.valueAt(a)
	if err != nil {
		return nil, err
	}
	vb, okB, err := q.valueAt(b)
	if err != nil {
		return nil, err
	}
	base := va
	if b.Before(a) {
		base = vb
	}
	if !okA || !okB || base == 0 {
		return Absent{}, nil
	}
	return Scalar{Value: 100 * (vb - va) / base, Unit: "%"}, nil
}

// changed compares the values held at a and b.
func (q *query) changed(a, b time.Time) (Result, error) {
	va, okA, err := q.valueAt(a)
	if err != nil {
		return nil, err
	}
	vb, okB, err := q.valueAt(b)
	if err != nil {
		return nil, err
	}
	if !okA || !okB {
		return Absent{}, nil
	}
	return Boolean{Value: va != vb}, nil
}

// updated reports a persisted state strictly between a and b.
func (q *query) updated(a, b time.Time) (Result, error) {
	w := ordered(a, b)
	_, raw, err := q.fetch(database.FilterCriteria{Begin: &w.Begin, End: &w.End})
	if err != nil {
		return nil, err
	}
	for _, r := range raw {
		if r.Time.After(w.Begin) && r.Time.Before(w.End) {
			return Boolean{Value: true}, nil
		}
	}
	return Boolean{Value: false}, nil
}

// persistedAt is the last persisted sample at or before t, with its own
// timestamp.
func (q *query) persistedAt(t time.Time) (Result, error) {
	rows, _, err := q.fetch(database.FilterCriteria{End: &t, Ordering: database.Descending, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return Absent{}, nil
	}
	return PointInTime{Value: rows[0].Value, Unit: q.norm.symbol(), Time: rows[0].Time}, nil
}

// historicAt is the value held at t. From now on the live state stands in
// for missing forecasts and is reported at now.
func (q *query) historicAt(t time.Time) (Result, error) {
	if t.Before(q.now) {
		return q.persistedAt(t)
	}
	res, err := q.persistedAt(t)
	if err != nil {
		return nil, err
	}
	if p, ok := res.(PointInTime); ok && p.Time.After(q.now) {
		return p, nil
	}
	v, ok, err := q.live()
	if err != nil || !ok {
		return Absent{}, err
	}
	return PointInTime{Value: v, Unit: q.norm.symbol(), Time: q.now}, nil
}

// neighbour finds the closest persisted sample strictly before (previous) or
// after (next) now. With skipEqual, samples equal to the live value are
// passed over.
func (q *query) neighbour(next, skipEqual bool) (Result, error) {
	ref, refOK, err := q.live()
	if err != nil {
		return nil, err
	}
	filter := database.FilterCriteria{End: &q.now, Ordering: database.Descending}
	if next {
		filter = database.FilterCriteria{Begin: &q.now, Ordering: database.Ascending}
	}

	var found *Sample
	err = q.walk(filter, func(s Sample) bool {
		if s.Time.Equal(q.now) {
			return true
		}
		if skipEqual && refOK && s.Value == ref {
			return true
		}
		found = &s
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return Absent{}, nil
	}
	return PointInTime{Value: found.Value, Unit: q.norm.symbol(), Time: found.Time}, nil
}

// lastUpdate is the time of the latest persisted state at or before now,
// nextUpdate the first one after now.
func (q *query) update(next bool) (Result, error) {
	filter := database.FilterCriteria{End: &q.now, Ordering: database.Descending}
	if next {
		filter = database.FilterCriteria{Begin: &q.now, Ordering: database.Ascending}
	}

	var found *Sample
	err := q.walk(filter, func(s Sample) bool {
		if next && !s.Time.After(q.now) {
			return true
		}
		found = &s
		return false
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return Absent{}, nil
	}
	return Timestamp{Time: found.Time}, nil
}

// lastChange walks back from now over the run of equal values ending at
// the latest persisted sample and returns when that run started. When the
// whole history is one run, the first recorded sample is the change.
func (q *query) lastChange() (Result, error) {
	var run *Sample
	err := q.walk(database.FilterCriteria{End: &q.now, Ordering: database.Descending}, func(s Sample) bool {
		if run != nil && s.Value != run.Value {
			return false
		}
		run = &s
		return true
	})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return Absent{}, nil
	}
	return Timestamp{Time: run.Time}, nil
}

// nextChange is the first persisted sample after now whose value differs
// from its predecessor; the live value precedes the first forecast.
func (q *query) nextChange() (Result, error) {
	prev, havePrev, err := q.live()
	if err != nil {
		return nil, err
	}

	var found *Sample
	err = q.walk(database.FilterCriteria{Begin: &q.now, Ordering: database.Ascending}, func(s Sample) bool {
		if !s.Time.After(q.now) {
			return true
		}
		if havePrev && s.Value != prev {
			found = &s
			return false
		}
		prev, havePrev = s.Value, true
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return Absent{}, nil
	}
	return Timestamp{Time: found.Time}, nil
}
