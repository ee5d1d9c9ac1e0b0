package item

import (
	"fmt"
	"math"
	"strings"

	"github.com/tejusbharadwaj/itemhistory/internal/state"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

// AggregateFunc combines member values into the group value. It returns
// false when no value can be produced.
type AggregateFunc func(values []float64) (float64, bool)

// Functions holds the group functions available by name.
var Functions = map[string]AggregateFunc{
	"SUM":   sum,
	"AVG":   avg,
	"MIN":   minimum,
	"MAX":   maximum,
	"COUNT": count,
}

// LookupFunc resolves a group function name case-insensitively.
func LookupFunc(name string) (AggregateFunc, error) {
	fn, ok := Functions[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunc, name)
	}
	return fn, nil
}

func sum(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	var s float64
	for _, v := range values {
		s += v
	}
	return s, true
}

func avg(values []float64) (float64, bool) {
	s, ok := sum(values)
	if !ok {
		return 0, false
	}
	return s / float64(len(values)), true
}

func minimum(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	m := math.Inf(1)
	for _, v := range values {
		m = math.Min(m, v)
	}
	return m, true
}

func maximum(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return m, true
}

// count counts members holding a non-zero (active) value.
func count(values []float64) (float64, bool) {
	var n float64
	for _, v := range values {
		if v != 0 {
			n++
		}
	}
	return n, true
}

// GroupItem derives its live state from its members through fn. Its
// persisted history is whatever was recorded for the group itself.
type GroupItem struct {
	name    string
	unit    units.Unit
	members []Item
	fn      AggregateFunc
}

func NewGroupItem(name string, unit units.Unit, fn AggregateFunc, members ...Item) *GroupItem {
	return &GroupItem{name: name, unit: unit, fn: fn, members: members}
}

func (g *GroupItem) Name() string     { return g.name }
func (g *GroupItem) Unit() units.Unit { return g.unit }
func (g *GroupItem) Members() []Item  { return g.members }

// State combines the live member states; see Value. A group whose members
// cannot be combined is Undefined.
func (g *GroupItem) State() state.State {
	s, err := g.Value()
	if err != nil {
		return state.Undef
	}
	return s
}

// Value combines the live member states. Members are converted into the
// group unit first and members without a value do not take part. A member
// quantity that cannot be converted fails with units.ErrIncompatible.
func (g *GroupItem) Value() (state.State, error) {
	values := make([]float64, 0, len(g.members))
	for _, m := range g.members {
		v, ok, err := memberValue(m.State(), g.unit)
		if err != nil {
			return state.Undef, fmt.Errorf("group %s member %s: %w", g.name, m.Name(), err)
		}
		if ok {
			values = append(values, v)
		}
	}
	v, ok := g.fn(values)
	if !ok {
		return state.Undef, nil
	}
	if g.unit.IsZero() {
		return state.Decimal(v), nil
	}
	return state.Quantity{Value: v, Unit: g.unit}, nil
}

func memberValue(s state.State, target units.Unit) (float64, bool, error) {
	switch v := s.(type) {
	case state.Decimal:
		return float64(v), true, nil
	case state.Binary:
		if v.Active() {
			return 1, true, nil
		}
		return 0, true, nil
	case state.Quantity:
		if target.IsZero() {
			return v.Value, true, nil
		}
		c, err := units.Convert(v.Value, v.Unit, target)
		if err != nil {
			return 0, false, err
		}
		return c, true, nil
	}
	return 0, false, nil
}
