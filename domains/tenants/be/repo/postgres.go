package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/medikube/platform/domains/tenants/be/service"
	"github.com/medikube/platform/platform/go/persistence"
)

// PostgresRepository implements service.Repository on top of the shared
// tenant store.
type PostgresRepository struct {
	store *persistence.TenantStore
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(store *persistence.TenantStore) *PostgresRepository {
	if store == nil {
		panic("tenant store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	rec, err := r.store.Create(ctx, toRecord(t))
	if err != nil {
		return service.Tenant{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) GetOrCreateByName(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	rec, err := r.store.GetOrCreateByName(ctx, toRecord(t))
	if err != nil {
		return service.Tenant{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) GetActive(ctx context.Context, id uuid.UUID) (service.Tenant, error) {
	rec, err := r.store.GetActive(ctx, id)
	if err != nil {
		return service.Tenant{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) GetActiveByName(ctx context.Context, name string) (service.Tenant, error) {
	rec, err := r.store.GetActiveByName(ctx, name)
	if err != nil {
		return service.Tenant{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) GetActiveByDomain(ctx context.Context, domain string) (service.Tenant, error) {
	rec, err := r.store.GetActiveByDomain(ctx, domain)
	if err != nil {
		return service.Tenant{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]service.Tenant, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	tenants := make([]service.Tenant, 0, len(recs))
	for _, rec := range recs {
		tenants = append(tenants, fromRecord(rec))
	}
	return tenants, nil
}

func (r *PostgresRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := r.store.Deactivate(ctx, id); err != nil {
		return mapStoreError(err)
	}
	return nil
}

func toRecord(t service.Tenant) persistence.TenantRecord {
	return persistence.TenantRecord{
		TenantID: t.ID,
		Name:     t.Name,
		Domain:   t.Domain,
		IsActive: t.IsActive,
	}
}

func fromRecord(rec persistence.TenantRecord) service.Tenant {
	return service.Tenant{
		ID:        rec.TenantID,
		Name:      rec.Name,
		Domain:    rec.Domain,
		IsActive:  rec.IsActive,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return service.ErrConflict
	default:
		return err
	}
}
