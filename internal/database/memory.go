package database

import (
	"context"
	"sort"
	"sync"

	"github.com/tejusbharadwaj/itemhistory/internal/models"
)

// MemoryStore keeps states in process memory, sorted by time per item.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]models.HistoricState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]models.HistoricState)}
}

func (m *MemoryStore) Query(ctx context.Context, filter FilterCriteria) ([]models.HistoricState, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var rows []models.HistoricState
	for _, s := range m.items[filter.ItemName] {
		if filter.contains(s.Time) {
			rows = append(rows, s)
		}
	}
	m.mu.RUnlock()

	if filter.Ordering == Descending {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return paginate(rows, filter.PageSize, filter.PageNumber), nil
}

func (m *MemoryStore) Persist(ctx context.Context, item string, states ...models.HistoricState) error {
	if item == "" {
		return ErrMissingItem
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := append(m.items[item], states...)
	sort.SliceStable(rows, func(a, b int) bool { return rows[a].Time.Before(rows[b].Time) })
	m.items[item] = rows
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, filter FilterCriteria) error {
	if err := filter.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[filter.ItemName][:0]
	for _, s := range m.items[filter.ItemName] {
		if !filter.contains(s.Time) {
			kept = append(kept, s)
		}
	}
	m.items[filter.ItemName] = kept
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
