package persistence

import "time"

// Result is the outcome of a query. It is one of Absent, Scalar, Boolean,
// Count, Timestamp or PointInTime; callers switch on the concrete type.
type Result interface {
	Kind() string
	isResult()
}

// Absent means there is no answer: no service resolved or no data in range.
type Absent struct{}

// Scalar is a number with an optional unit symbol.
type Scalar struct {
	Value float64
	Unit  string
}

type Boolean struct {
	Value bool
}

type Count struct {
	N int64
}

type Timestamp struct {
	Time time.Time
}

// PointInTime is a value together with the moment it was recorded.
type PointInTime struct {
	Value float64
	Unit  string
	Time  time.Time
}

func (Absent) Kind() string      { return "absent" }
func (Scalar) Kind() string      { return "scalar" }
func (Boolean) Kind() string     { return "boolean" }
func (Count) Kind() string       { return "count" }
func (Timestamp) Kind() string   { return "timestamp" }
func (PointInTime) Kind() string { return "point_in_time" }

func (Absent) isResult()      {}
func (Scalar) isResult()      {}
func (Boolean) isResult()     {}
func (Count) isResult()       {}
func (Timestamp) isResult()   {}
func (PointInTime) isResult() {}

// IsAbsent reports whether r carries no value.
func IsAbsent(r Result) bool {
	_, ok := r.(Absent)
	return ok
}
