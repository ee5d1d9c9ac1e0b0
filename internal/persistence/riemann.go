package persistence

import (
	"fmt"
	"strings"
)

// RiemannType selects how a step sequence is turned into an area.
type RiemannType int

const (
	// Left holds each value until the next sample.
	Left RiemannType = iota
	// Right attributes each value back to the previous sample.
	Right
	// Trapezoidal averages the values at both ends of a bucket.
	Trapezoidal
	// Midpoint weights each sample by half of its adjacent buckets.
	Midpoint
)

var riemannNames = map[RiemannType]string{
	Left:        "left",
	Right:       "right",
	Trapezoidal: "trapezoidal",
	Midpoint:    "midpoint",
}

func (r RiemannType) String() string {
	if n, ok := riemannNames[r]; ok {
		return n
	}
	return fmt.Sprintf("RiemannType(%d)", int(r))
}

// ParseRiemannType accepts the lower or upper case rule name; the empty
// string selects Left.
func ParseRiemannType(s string) (RiemannType, error) {
	if s == "" {
		return Left, nil
	}
	for r, n := range riemannNames {
		if strings.EqualFold(s, n) {
			return r, nil
		}
	}
	return Left, fmt.Errorf("%w: %q", ErrUnknownRiemannType, s)
}

// riemannSum integrates samples over time in value·seconds.
func riemannSum(samples []Sample, rule RiemannType) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}
	dt := func(i int) float64 { return samples[i+1].Time.Sub(samples[i].Time).Seconds() }

	var area float64
	switch rule {
	case Right:
		for i := 0; i < n-1; i++ {
			area += samples[i+1].Value * dt(i)
		}
	case Trapezoidal:
		for i := 0; i < n-1; i++ {
			area += (samples[i].Value + samples[i+1].Value) / 2 * dt(i)
		}
	case Midpoint:
		for i := 0; i < n; i++ {
			var weight float64
			if i > 0 {
				weight += dt(i-1) / 2
			}
			if i < n-1 {
				weight += dt(i) / 2
			}
			area += samples[i].Value * weight
		}
	default:
		for i := 0; i < n-1; i++ {
			area += samples[i].Value * dt(i)
		}
	}
	return area
}
