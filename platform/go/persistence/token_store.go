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

const AccessTokensTable = "access_tokens"

// TokenRecord represents a row in the access_tokens table.
type TokenRecord struct {
	TokenID   uuid.UUID `db:"token_id"`
	TenantID  uuid.UUID `db:"tenant_id"`
	UserID    uuid.UUID `db:"user_id"`
	Token     string    `db:"token"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
	IPAddress *string   `db:"ip_address"`
	UserAgent string    `db:"user_agent"`
}

// TokenStore exposes persistence helpers for the access_tokens table.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore returns a store instance bound to the shared pool.
func NewTokenStore(pool *pgxpool.Pool) (*TokenStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &TokenStore{pool: pool}, nil
}

const tokenColumns = "token_id, tenant_id, user_id, token, is_active, created_at, expires_at, ip_address, user_agent"

// IssueExclusive deactivates every active token held by (user, tenant) and
// inserts the new one, all inside a single transaction. Partial application
// (old tokens dropped, new insert failed) is never observable.
func (s *TokenStore) IssueExclusive(ctx context.Context, rec TokenRecord) (TokenRecord, error) {
	if rec.TokenID == uuid.Nil {
		return TokenRecord{}, errors.New("token id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET is_active = false
        WHERE user_id = $1 AND tenant_id = $2 AND is_active
    `, AccessTokensTable), rec.UserID, rec.TenantID); err != nil {
		return TokenRecord{}, fmt.Errorf("supersede tokens: %w", err)
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (token_id, tenant_id, user_id, token, is_active, expires_at, ip_address, user_agent)
        VALUES ($1, $2, $3, $4, true, $5, $6, $7)
        RETURNING %s
    `, AccessTokensTable, tokenColumns),
		rec.TokenID, rec.TenantID, rec.UserID, rec.Token, rec.ExpiresAt, rec.IPAddress, rec.UserAgent,
	)

	out, err := scanToken(row)
	if err != nil {
		if isUniqueViolation(err) {
			return TokenRecord{}, ErrConflict
		}
		return TokenRecord{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TokenRecord{}, fmt.Errorf("commit issue: %w", err)
	}
	return out, nil
}

// GetActive returns the active token row with the given opaque value,
// restricted to a tenant when one is supplied.
func (s *TokenStore) GetActive(ctx context.Context, token string, tenantID *uuid.UUID) (TokenRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE token = $1 AND is_active`, tokenColumns, AccessTokensTable)
	args := []any{token}
	if tenantID != nil {
		query += " AND tenant_id = $2"
		args = append(args, *tenantID)
	}

	rec, err := scanToken(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenRecord{}, ErrNotFound
		}
		return TokenRecord{}, err
	}
	return rec, nil
}

// Deactivate marks a single token row inactive by id. Used for lazy expiry;
// already-inactive rows are a no-op, which keeps the sweep idempotent.
func (s *TokenStore) Deactivate(ctx context.Context, tokenID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET is_active = false WHERE token_id = $1
    `, AccessTokensTable), tokenID)
	if err != nil {
		return fmt.Errorf("deactivate token: %w", err)
	}
	return nil
}

// Revoke marks the matching active token inactive and reports whether a row
// was found.
func (s *TokenStore) Revoke(ctx context.Context, token string, tenantID *uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_active = false WHERE token = $1 AND is_active`, AccessTokensTable)
	args := []any{token}
	if tenantID != nil {
		query += " AND tenant_id = $2"
		args = append(args, *tenantID)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SweepExpired bulk-deactivates active tokens past their expiry. Maintenance
// path only; request-path validation already expires lazily.
func (s *TokenStore) SweepExpired(ctx context.Context, tenantID *uuid.UUID, now time.Time) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET is_active = false WHERE is_active AND expires_at < $1`, AccessTokensTable)
	args := []any{now}
	if tenantID != nil {
		query += " AND tenant_id = $2"
		args = append(args, *tenantID)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("sweep expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (TokenRecord, error) {
	var rec TokenRecord
	err := row.Scan(&rec.TokenID, &rec.TenantID, &rec.UserID, &rec.Token, &rec.IsActive, &rec.CreatedAt, &rec.ExpiresAt, &rec.IPAddress, &rec.UserAgent)
	return rec, err
}
