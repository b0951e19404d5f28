package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medikube/platform/domains/tenants/be/service"
)

// MemoryRepository is an in-memory implementation suitable for tests and
// early development.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]service.Tenant
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[uuid.UUID]service.Tenant)}
}

func (r *MemoryRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.findByNameLocked(t.Name) != nil {
		return service.Tenant{}, service.ErrConflict
	}
	if t.Domain != nil {
		for _, existing := range r.byID {
			if existing.Domain != nil && *existing.Domain == *t.Domain {
				return service.Tenant{}, service.ErrConflict
			}
		}
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.byID[t.ID] = t
	return t, nil
}

func (r *MemoryRepository) GetOrCreateByName(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.findByNameLocked(t.Name); existing != nil && existing.IsActive {
		return *existing, nil
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	r.byID[t.ID] = t
	return t, nil
}

func (r *MemoryRepository) GetActive(ctx context.Context, id uuid.UUID) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	if !ok || !t.IsActive {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) GetActiveByName(ctx context.Context, name string) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t := r.findByNameLocked(name); t != nil && t.IsActive {
		return *t, nil
	}
	return service.Tenant{}, service.ErrNotFound
}

func (r *MemoryRepository) GetActiveByDomain(ctx context.Context, domain string) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.byID {
		if t.IsActive && t.Domain != nil && *t.Domain == domain {
			return t, nil
		}
	}
	return service.Tenant{}, service.ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context) ([]service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tenants := make([]service.Tenant, 0, len(r.byID))
	for _, t := range r.byID {
		tenants = append(tenants, t)
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].CreatedAt.After(tenants[j].CreatedAt) })
	return tenants, nil
}

func (r *MemoryRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byID[id]
	if !ok || !t.IsActive {
		return service.ErrNotFound
	}
	t.IsActive = false
	t.UpdatedAt = time.Now().UTC()
	r.byID[id] = t
	return nil
}

func (r *MemoryRepository) findByNameLocked(name string) *service.Tenant {
	for id, t := range r.byID {
		if t.Name == name {
			found := r.byID[id]
			return &found
		}
	}
	return nil
}
