// Package units models the physical units an item can declare and the
// conversions between units of the same dimension.
//
// Every unit is expressed as an affine map onto the canonical unit of its
// dimension (Kelvin for temperature, metre for length, watt for power, ...):
//
//	canonical = value*factor + offset
//
// Only temperature scales carry an offset.
package units

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownUnit is returned when a unit symbol is not registered.
	ErrUnknownUnit = errors.New("unknown unit")

	// ErrIncompatible is returned when converting between units of
	// different dimensions, e.g. temperature and length.
	ErrIncompatible = errors.New("incompatible units")
)

// Dimension groups units that can be converted into each other.
type Dimension string

const (
	Dimensionless Dimension = "dimensionless"
	Temperature   Dimension = "temperature"
	Length        Dimension = "length"
	Power         Dimension = "power"
	Energy        Dimension = "energy"
	Duration      Dimension = "time"
	Pressure      Dimension = "pressure"
	Volume        Dimension = "volume"
)

// Unit is a registered unit symbol with its conversion onto the canonical
// unit of its dimension.
type Unit struct {
	Symbol    string
	Dimension Dimension
	factor    float64
	offset    float64
}

// Second is the time unit used for integrals over time.
var Second = Unit{Symbol: "s", Dimension: Duration, factor: 1}

var registry = map[string]Unit{}

func register(dim Dimension, factor, offset float64, symbols ...string) {
	for _, s := range symbols {
		registry[s] = Unit{Symbol: symbols[0], Dimension: dim, factor: factor, offset: offset}
	}
}

func init() {
	register(Dimensionless, 1, 0, "one")
	register(Dimensionless, 0.01, 0, "%")

	register(Temperature, 1, 0, "K")
	register(Temperature, 1, 273.15, "°C", "℃", "C")
	register(Temperature, 5.0/9.0, 459.67*5.0/9.0, "°F", "℉", "F")

	register(Length, 1, 0, "m")
	register(Length, 1000, 0, "km")
	register(Length, 0.01, 0, "cm")
	register(Length, 0.001, 0, "mm")

	register(Power, 1, 0, "W")
	register(Power, 1e3, 0, "kW")
	register(Power, 1e6, 0, "MW")

	register(Energy, 1, 0, "J")
	register(Energy, 3600, 0, "Wh")
	register(Energy, 3.6e6, 0, "kWh")
	register(Energy, 3.6e9, 0, "MWh")

	register(Duration, 1, 0, "s")
	register(Duration, 60, 0, "min")
	register(Duration, 3600, 0, "h")

	register(Pressure, 1, 0, "Pa")
	register(Pressure, 100, 0, "hPa")
	register(Pressure, 1e5, 0, "bar")

	register(Volume, 1, 0, "m³", "m3")
	register(Volume, 0.001, 0, "l", "L")
}

// Parse looks up a unit by symbol.
func Parse(symbol string) (Unit, error) {
	u, ok := registry[strings.TrimSpace(symbol)]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, symbol)
	}
	return u, nil
}

// MustParse is like Parse but panics on unknown symbols. It is meant for
// package level variables and tests.
func MustParse(symbol string) Unit {
	u, err := Parse(symbol)
	if err != nil {
		panic(err)
	}
	return u
}

// IsZero reports whether u is the zero Unit, i.e. no unit at all.
func (u Unit) IsZero() bool { return u.Symbol == "" }

func (u Unit) String() string { return u.Symbol }

// Compatible reports whether values in u can be converted to other.
func (u Unit) Compatible(other Unit) bool {
	return u.Dimension == other.Dimension
}

// Convert converts value from unit from into unit to.
func Convert(value float64, from, to Unit) (float64, error) {
	if from.Symbol == to.Symbol {
		return value, nil
	}
	if !from.Compatible(to) {
		return 0, fmt.Errorf("%w: %s (%s) and %s (%s)", ErrIncompatible, from.Symbol, from.Dimension, to.Symbol, to.Dimension)
	}
	canonical := value*from.factor + from.offset
	return (canonical - to.offset) / to.factor, nil
}

// Product returns the symbol of u multiplied by other, e.g. "°C·s".
func Product(u, other Unit) string {
	switch {
	case u.IsZero():
		return other.Symbol
	case other.IsZero():
		return u.Symbol
	}
	return u.Symbol + "·" + other.Symbol
}

// Squared returns the symbol of u², or "" for no unit.
func Squared(u Unit) string {
	if u.IsZero() {
		return ""
	}
	return u.Symbol + "²"
}
