package persistence

import (
	"fmt"

	"github.com/tejusbharadwaj/itemhistory/internal/item"
	"github.com/tejusbharadwaj/itemhistory/internal/state"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

// normalizer maps states onto plain numbers expressed in the item's
// declared unit. Items without a declared unit adopt the unit of the first
// quantity they see.
type normalizer struct {
	item string
	unit units.Unit
}

func newNormalizer(it item.Item) *normalizer {
	return &normalizer{item: it.Name(), unit: it.Unit()}
}

// value converts s. It returns false for states that carry no number
// (undefined), and an error wrapping units.ErrIncompatible when a quantity
// cannot be expressed in the item's unit.
func (n *normalizer) value(s state.State) (float64, bool, error) {
	switch v := s.(type) {
	case state.Decimal:
		return float64(v), true, nil
	case state.Binary:
		if v.Active() {
			return 1, true, nil
		}
		return 0, true, nil
	case state.Quantity:
		if n.unit.IsZero() {
			n.unit = v.Unit
			return v.Value, true, nil
		}
		c, err := units.Convert(v.Value, v.Unit, n.unit)
		if err != nil {
			return 0, false, fmt.Errorf("item %s: %w", n.item, err)
		}
		return c, true, nil
	}
	return 0, false, nil
}

// symbol is the unit symbol results are reported in.
func (n *normalizer) symbol() string {
	return n.unit.Symbol
}
