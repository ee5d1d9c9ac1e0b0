package persistence

import (
	"math"
	"sort"

	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

// extremum returns the first sample holding the largest (max) or smallest
// value of the sequence, boundary and live sample included.
func (s *series) extremum(max bool) Result {
	if !s.hasData() {
		return Absent{}
	}
	best := s.samples[0]
	for _, x := range s.samples[1:] {
		if (max && x.Value > best.Value) || (!max && x.Value < best.Value) {
			best = x
		}
	}
	return PointInTime{Value: best.Value, Unit: s.unit, Time: best.Time}
}

func (s *series) count() Result {
	return Count{N: int64(len(s.persisted))}
}

// countStateChanges counts value transitions between consecutive persisted
// samples.
func (s *series) countStateChanges() Result {
	var n int64
	for i := 1; i < len(s.persisted); i++ {
		if s.persisted[i].Value != s.persisted[i-1].Value {
			n++
		}
	}
	return Count{N: n}
}

func (s *series) sum() Result {
	var total float64
	for _, p := range s.persisted {
		total += p.Value
	}
	return Scalar{Value: total, Unit: s.unit}
}

// mean is the time weighted average over the window duration. A zero length
// window yields the value held at that instant.
func (s *series) mean() (float64, bool) {
	if s.instant() {
		if len(s.samples) == 0 {
			return 0, false
		}
		return s.samples[0].Value, true
	}
	if !s.hasData() {
		return 0, false
	}
	d := s.duration().Seconds()
	if d <= 0 {
		return s.samples[0].Value, true
	}
	return riemannSum(s.samples, Left) / d, true
}

func (s *series) average() Result {
	avg, ok := s.mean()
	if !ok {
		return Absent{}
	}
	return Scalar{Value: avg, Unit: s.unit}
}

// variance is the time weighted population variance around mean.
func (s *series) variance() (float64, bool) {
	avg, ok := s.mean()
	if !ok {
		return 0, false
	}
	d := s.duration().Seconds()
	if s.instant() || d <= 0 {
		return 0, true
	}
	var acc float64
	for i := 0; i < len(s.samples)-1; i++ {
		dur := s.samples[i+1].Time.Sub(s.samples[i].Time).Seconds()
		diff := s.samples[i].Value - avg
		acc += dur * diff * diff
	}
	return acc / d, true
}

func (s *series) varianceResult() Result {
	v, ok := s.variance()
	if !ok {
		return Absent{}
	}
	return Scalar{Value: v, Unit: units.Squared(units.Unit{Symbol: s.unit})}
}

func (s *series) deviation() Result {
	v, ok := s.variance()
	if !ok {
		return Absent{}
	}
	return Scalar{Value: math.Sqrt(v), Unit: s.unit}
}

// median is the order statistic of the distinct persisted values, not time
// weighted.
func (s *series) median() Result {
	if len(s.persisted) == 0 {
		return Absent{}
	}
	seen := make(map[float64]bool, len(s.persisted))
	values := make([]float64, 0, len(s.persisted))
	for _, p := range s.persisted {
		if !seen[p.Value] {
			seen[p.Value] = true
			values = append(values, p.Value)
		}
	}
	sort.Float64s(values)
	n := len(values)
	m := values[n/2]
	if n%2 == 0 {
		m = (values[n/2-1] + values[n/2]) / 2
	}
	return Scalar{Value: m, Unit: s.unit}
}

// riemann integrates the sequence; the unit is the item unit times seconds.
func (s *series) riemann(rule RiemannType) Result {
	unit := units.Product(units.Unit{Symbol: s.unit}, units.Second)
	if s.instant() {
		if len(s.samples) == 0 {
			return Absent{}
		}
		return Scalar{Value: 0, Unit: unit}
	}
	if !s.hasData() {
		return Absent{}
	}
	return Scalar{Value: riemannSum(s.samples, rule), Unit: unit}
}
