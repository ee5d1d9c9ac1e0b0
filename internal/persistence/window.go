package persistence

import (
	"fmt"
	"time"
)

// Clock supplies "now" in the configured zone.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in Location (UTC when nil).
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// SelectorKind tells how a Selector's times are interpreted.
type SelectorKind int

const (
	SelectSince SelectorKind = iota
	SelectUntil
	SelectBetween
)

func (k SelectorKind) String() string {
	switch k {
	case SelectSince:
		return "since"
	case SelectUntil:
		return "until"
	case SelectBetween:
		return "between"
	}
	return fmt.Sprintf("SelectorKind(%d)", int(k))
}

// Selector is a since(t), until(t) or between(t0, t1) time selection.
type Selector struct {
	Kind SelectorKind
	From time.Time
	To   time.Time
}

func Since(t time.Time) Selector        { return Selector{Kind: SelectSince, From: t} }
func Until(t time.Time) Selector        { return Selector{Kind: SelectUntil, To: t} }
func Between(t0, t1 time.Time) Selector { return Selector{Kind: SelectBetween, From: t0, To: t1} }

// Window is a closed interval [Begin, End]. When OpenBegin is set the
// interval starts at the earliest persisted state and Begin is unused.
type Window struct {
	Begin     time.Time
	End       time.Time
	OpenBegin bool
}

// Window resolves s against now. Inverted bounds are swapped.
func (s Selector) Window(now time.Time) Window {
	switch s.Kind {
	case SelectUntil:
		return Window{End: s.To, OpenBegin: true}
	case SelectBetween:
		return ordered(s.From, s.To)
	default:
		return ordered(s.From, now)
	}
}

// Points returns the two instants pointwise metrics (delta, changed, ...)
// compare: the reference time and the time it is compared against.
//
//	since(t):        (t, now)
//	until(t):        (now, t)
//	between(t0, t1): (min, max)
func (s Selector) Points(now time.Time) (time.Time, time.Time) {
	switch s.Kind {
	case SelectUntil:
		return now, s.To
	case SelectBetween:
		w := ordered(s.From, s.To)
		return w.Begin, w.End
	default:
		return s.From, now
	}
}

func ordered(a, b time.Time) Window {
	if b.Before(a) {
		a, b = b, a
	}
	return Window{Begin: a, End: b}
}

// Duration is End-Begin for closed windows and zero otherwise.
func (w Window) Duration() time.Duration {
	if w.OpenBegin {
		return 0
	}
	return w.End.Sub(w.Begin)
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.OpenBegin && t.Before(w.Begin) {
		return false
	}
	return !t.After(w.End)
}
