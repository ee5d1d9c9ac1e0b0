// Package state defines the values an item can hold and their textual
// encoding used by the stores and the live-state sources.
package state

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

// ErrUnparsable is returned by Parse for text that is not a known state.
var ErrUnparsable = errors.New("unparsable state")

// State is one of Decimal, OnOff, OpenClosed, Quantity or Undefined.
type State interface {
	String() string
	isState()
}

// Binary is implemented by two-state values.
type Binary interface {
	State
	Active() bool
}

// Decimal is a plain number without unit.
type Decimal float64

// OnOff is a switch state.
type OnOff bool

// OpenClosed is a contact state.
type OpenClosed bool

const (
	On     OnOff      = true
	Off    OnOff      = false
	Open   OpenClosed = true
	Closed OpenClosed = false
)

// Quantity is a number carrying a physical unit.
type Quantity struct {
	Value float64
	Unit  units.Unit
}

// Undefined is the state of an item that has not received a value yet.
type Undefined struct{}

// Undef is the single Undefined value.
var Undef State = Undefined{}

func (Decimal) isState()    {}
func (OnOff) isState()      {}
func (OpenClosed) isState() {}
func (Quantity) isState()   {}
func (Undefined) isState()  {}

func (d Decimal) String() string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64)
}

func (s OnOff) String() string {
	if s {
		return "ON"
	}
	return "OFF"
}

func (s OnOff) Active() bool { return bool(s) }

func (s OpenClosed) String() string {
	if s {
		return "OPEN"
	}
	return "CLOSED"
}

func (s OpenClosed) Active() bool { return bool(s) }

func (q Quantity) String() string {
	v := strconv.FormatFloat(q.Value, 'f', -1, 64)
	if q.Unit.IsZero() {
		return v
	}
	return v + " " + q.Unit.Symbol
}

func (Undefined) String() string { return "UNDEF" }

// NewQuantity builds a Quantity from a value and a unit symbol.
func NewQuantity(value float64, symbol string) (Quantity, error) {
	u, err := units.Parse(symbol)
	if err != nil {
		return Quantity{}, err
	}
	return Quantity{Value: value, Unit: u}, nil
}

// Parse decodes the textual form produced by State.String.
func Parse(text string) (State, error) {
	text = strings.TrimSpace(text)
	switch strings.ToUpper(text) {
	case "ON":
		return On, nil
	case "OFF":
		return Off, nil
	case "OPEN":
		return Open, nil
	case "CLOSED":
		return Closed, nil
	case "UNDEF", "NULL", "":
		return Undef, nil
	}

	number, symbol, hasUnit := strings.Cut(text, " ")
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnparsable, text)
	}
	if !hasUnit {
		return Decimal(v), nil
	}
	q, err := NewQuantity(v, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnparsable, text, err)
	}
	return q, nil
}
