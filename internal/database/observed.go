package database

import (
	"context"
	"time"

	"github.com/tejusbharadwaj/itemhistory/internal/models"
)

// WriteHook is told about every successful write: the item and the earliest
// time the write touched. Removals without a begin bound report the zero time.
type WriteHook func(item string, earliest time.Time)

// ObservedStore reports writes to the wrapped store through a WriteHook.
type ObservedStore struct {
	Store
	hook WriteHook
}

var _ Store = (*ObservedStore)(nil)

func Observe(s Store, hook WriteHook) *ObservedStore {
	return &ObservedStore{Store: s, hook: hook}
}

func (o *ObservedStore) Persist(ctx context.Context, item string, states ...models.HistoricState) error {
	if err := o.Store.Persist(ctx, item, states...); err != nil {
		return err
	}
	if len(states) == 0 {
		return nil
	}
	earliest := states[0].Time
	for _, s := range states[1:] {
		if s.Time.Before(earliest) {
			earliest = s.Time
		}
	}
	o.hook(item, earliest)
	return nil
}

func (o *ObservedStore) Remove(ctx context.Context, filter FilterCriteria) error {
	if err := o.Store.Remove(ctx, filter); err != nil {
		return err
	}
	var earliest time.Time
	if filter.Begin != nil {
		earliest = *filter.Begin
	}
	o.hook(filter.ItemName, earliest)
	return nil
}
