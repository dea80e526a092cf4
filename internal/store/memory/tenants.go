package memory

import (
	"context"
	"slices"
	"time"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/store"
)

// ListStores reports the implicit tenant.
func (s *Store) ListStores(_ context.Context) ([]domain.StoreSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, err := get[domain.StoreSettings](s, KeySettings)
	if err != nil {
		return nil, err
	}
	createdAt, err := get[time.Time](s, KeyCreatedAt)
	if err != nil {
		return nil, err
	}
	return []domain.StoreSummary{{ID: DemoStoreID, Name: settings.Name, CreatedAt: createdAt}}, nil
}

// DeleteStore empties the implicit tenant. The tenant itself and the demo
// accounts remain so the demo stays usable.
func (s *Store) DeleteStore(_ context.Context, storeID string) error {
	if storeID != DemoStoreID {
		return store.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	s.wipe()
	s.logger.Info("demo tenant emptied")
	return nil
}

func (s *Store) ListLeads(_ context.Context) ([]domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	leads, err := get[[]domain.Lead](s, KeyLeads)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(leads, func(a, b domain.Lead) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return leads, nil
}

func (s *Store) CreateLead(_ context.Context, lead domain.Lead) (*domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.saveSnapshotLocked()

	if lead.ID == "" {
		lead.ID = s.newID()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = s.now()
	}
	if err := s.appendLocked(KeyLeads, lead); err != nil {
		return nil, err
	}
	return &lead, nil
}
