// Package item holds the monitored entities whose history is queried: plain
// items with a live state and groups combining the states of their members.
package item

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/state"
	"github.com/tejusbharadwaj/itemhistory/internal/units"
)

var (
	ErrNotFound      = errors.New("item not found")
	ErrDuplicate     = errors.New("item already registered")
	ErrNotUpdatable  = errors.New("item state cannot be set directly")
	ErrUnknownFunc   = errors.New("unknown group function")
	ErrUnknownMember = errors.New("unknown group member")
)

// Item is a monitored entity with a live state and an optional unit.
type Item interface {
	Name() string
	State() state.State
	// Unit is the declared unit, the zero Unit when the item has none.
	Unit() units.Unit
}

// Current returns the live state of it. Groups report members that cannot be
// combined as an error instead of leaving them out.
func Current(it Item) (state.State, error) {
	if g, ok := it.(*GroupItem); ok {
		return g.Value()
	}
	return it.State(), nil
}

// GenericItem is an item whose state is set by incoming updates.
type GenericItem struct {
	name string
	unit units.Unit

	mu      sync.RWMutex
	current state.State
	updated time.Time
}

// NewGenericItem creates an item with an undefined state.
func NewGenericItem(name string, unit units.Unit) *GenericItem {
	return &GenericItem{name: name, unit: unit, current: state.Undef}
}

func (i *GenericItem) Name() string     { return i.name }
func (i *GenericItem) Unit() units.Unit { return i.unit }

func (i *GenericItem) State() state.State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.current
}

// LastUpdate returns when the state was last set.
func (i *GenericItem) LastUpdate() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.updated
}

// SetState stores s as the live state and reports whether it differs from
// the previous one.
func (i *GenericItem) SetState(s state.State, at time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	changed := i.current == nil || i.current.String() != s.String()
	i.current = s
	i.updated = at
	return changed
}

// Registry is a concurrency safe set of items keyed by name.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Item)}
}

// Add registers it under its name.
func (r *Registry) Add(it Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[it.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, it.Name())
	}
	r.items[it.Name()] = it
	return nil
}

func (r *Registry) Get(name string) (Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return it, nil
}

// Items returns all registered items ordered by name.
func (r *Registry) Items() []Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name() < out[b].Name() })
	return out
}

// Update sets the live state of a generic item.
func (r *Registry) Update(name string, s state.State, at time.Time) (bool, error) {
	it, err := r.Get(name)
	if err != nil {
		return false, err
	}
	gi, ok := it.(*GenericItem)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotUpdatable, name)
	}
	return gi.SetState(s, at), nil
}
