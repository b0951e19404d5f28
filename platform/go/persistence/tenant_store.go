package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const TenantsTable = "tenants"

// TenantRecord represents a row in the tenants table.
type TenantRecord struct {
	TenantID  uuid.UUID `db:"tenant_id"`
	Name      string    `db:"name"`
	Domain    *string   `db:"domain"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TenantStore exposes persistence helpers for the tenants table.
type TenantStore struct {
	pool *pgxpool.Pool
}

// NewTenantStore returns a store instance bound to the shared pool.
func NewTenantStore(pool *pgxpool.Pool) (*TenantStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TenantStore{pool: pool}, nil
}

const tenantColumns = "tenant_id, name, domain, is_active, created_at, updated_at"

// Create inserts a new tenant row.
func (s *TenantStore) Create(ctx context.Context, rec TenantRecord) (TenantRecord, error) {
	if rec.TenantID == uuid.Nil {
		return TenantRecord{}, errors.New("tenant id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (tenant_id, name, domain, is_active)
        VALUES ($1, $2, $3, $4)
        RETURNING %s
    `, TenantsTable, tenantColumns),
		rec.TenantID, rec.Name, rec.Domain, rec.IsActive,
	)

	out, err := scanTenant(row)
	if err != nil {
		if isUniqueViolation(err) {
			return TenantRecord{}, ErrConflict
		}
		return TenantRecord{}, err
	}
	return out, nil
}

// GetOrCreateByName returns the active tenant with the given name, inserting
// it first when absent. The insert uses ON CONFLICT DO NOTHING against the
// unique name index, so concurrent first-callers converge on a single row.
func (s *TenantStore) GetOrCreateByName(ctx context.Context, rec TenantRecord) (TenantRecord, error) {
	if rec.TenantID == uuid.Nil {
		return TenantRecord{}, errors.New("tenant id is required")
	}

	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (tenant_id, name, domain, is_active)
        VALUES ($1, $2, $3, true)
        ON CONFLICT (name) DO NOTHING
    `, TenantsTable), rec.TenantID, rec.Name, rec.Domain); err != nil {
		return TenantRecord{}, fmt.Errorf("get-or-create tenant: %w", err)
	}

	return s.GetActiveByName(ctx, rec.Name)
}

// GetActive returns the active tenant with the given id.
func (s *TenantStore) GetActive(ctx context.Context, id uuid.UUID) (TenantRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE tenant_id = $1 AND is_active
    `, tenantColumns, TenantsTable), id)
	return scanTenantNotFound(row)
}

// GetActiveByName returns the active tenant with the given unique name.
func (s *TenantStore) GetActiveByName(ctx context.Context, name string) (TenantRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE name = $1 AND is_active
    `, tenantColumns, TenantsTable), name)
	return scanTenantNotFound(row)
}

// GetActiveByDomain returns the active tenant serving the given domain.
func (s *TenantStore) GetActiveByDomain(ctx context.Context, domain string) (TenantRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE domain = $1 AND is_active
    `, tenantColumns, TenantsTable), domain)
	return scanTenantNotFound(row)
}

// List returns all tenants, newest first.
func (s *TenantStore) List(ctx context.Context) ([]TenantRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s ORDER BY created_at DESC
    `, tenantColumns, TenantsTable))
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]TenantRecord, 0)
	for rows.Next() {
		rec, scanErr := scanTenant(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan tenant: %w", scanErr)
		}
		tenants = append(tenants, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, nil
}

// Deactivate soft-disables a tenant; the row is never hard-deleted here.
func (s *TenantStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET is_active = false, updated_at = now() WHERE tenant_id = $1 AND is_active
    `, TenantsTable), id)
	if err != nil {
		return fmt.Errorf("deactivate tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTenant(row pgx.Row) (TenantRecord, error) {
	var rec TenantRecord
	err := row.Scan(&rec.TenantID, &rec.Name, &rec.Domain, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func scanTenantNotFound(row pgx.Row) (TenantRecord, error) {
	rec, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, ErrNotFound
		}
		return TenantRecord{}, err
	}
	return rec, nil
}
