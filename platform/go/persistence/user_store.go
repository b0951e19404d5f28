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

const (
	UsersTable    = "users"
	ProfilesTable = "user_profiles"
	RolesTable    = "roles"
)

// UserRecord represents a row in the users table. The password hash is opaque
// to the store; verification lives with the credential collaborator.
type UserRecord struct {
	UserID       uuid.UUID `db:"user_id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ProfileRecord represents a row in the user_profiles table joined with the
// optional role name. RoleName is nil when the profile has no role (e.g. the
// role was deleted; the FK nulls the reference).
type ProfileRecord struct {
	UserID    uuid.UUID  `db:"user_id"`
	TenantID  uuid.UUID  `db:"tenant_id"`
	RoleID    *uuid.UUID `db:"role_id"`
	RoleName  *string    `db:"role_name"`
	Phone     string     `db:"phone"`
	Address   string     `db:"address"`
	Bio       string     `db:"bio"`
	IsActive  bool       `db:"is_active"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// RoleRecord represents a row in the roles table.
type RoleRecord struct {
	RoleID      uuid.UUID `db:"role_id"`
	TenantID    uuid.UUID `db:"tenant_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
}

// ProfilePatch carries the allow-listed optional profile fields; nil fields
// are left untouched.
type ProfilePatch struct {
	Phone   *string
	Address *string
	Bio     *string
}

// UserStore exposes persistence helpers for users, profiles and roles.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore returns a store instance bound to the shared pool.
func NewUserStore(pool *pgxpool.Pool) (*UserStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &UserStore{pool: pool}, nil
}

const userColumns = "user_id, username, email, password_hash, is_active, created_at, updated_at"

// CreateUser inserts a new user row; ErrConflict on duplicate username/email.
func (s *UserStore) CreateUser(ctx context.Context, rec UserRecord) (UserRecord, error) {
	if rec.UserID == uuid.Nil {
		return UserRecord{}, errors.New("user id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (user_id, username, email, password_hash, is_active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING %s
    `, UsersTable, userColumns),
		rec.UserID, rec.Username, rec.Email, rec.PasswordHash, rec.IsActive,
	)

	out, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return UserRecord{}, ErrConflict
		}
		return UserRecord{}, err
	}
	return out, nil
}

// GetUser returns a user by id.
func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (UserRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE user_id = $1
    `, userColumns, UsersTable), id)
	return scanUserNotFound(row)
}

// GetUserByUsername returns a user by unique username.
func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (UserRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE username = $1
    `, userColumns, UsersTable), username)
	return scanUserNotFound(row)
}

// GetUserByEmail returns a user by unique email.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE email = $1
    `, userColumns, UsersTable), email)
	return scanUserNotFound(row)
}

// DeactivateUser marks the user and its profile inactive.
func (s *UserStore) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	tag, err := tx.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET is_active = false, updated_at = now() WHERE user_id = $1
    `, UsersTable), id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET is_active = false, updated_at = now() WHERE user_id = $1
    `, ProfilesTable), id); err != nil {
		return fmt.Errorf("deactivate profile: %w", err)
	}

	return tx.Commit(ctx)
}

const profileSelect = `
        SELECT p.user_id, p.tenant_id, p.role_id, r.name, p.phone, p.address, p.bio,
               p.is_active, p.created_at, p.updated_at
        FROM user_profiles p
        LEFT JOIN roles r ON r.role_id = p.role_id
`

// CreateProfile inserts a profile row bound to an existing user and tenant.
func (s *UserStore) CreateProfile(ctx context.Context, rec ProfileRecord) (ProfileRecord, error) {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (user_id, tenant_id, role_id, phone, address, bio, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, ProfilesTable),
		rec.UserID, rec.TenantID, rec.RoleID, rec.Phone, rec.Address, rec.Bio, rec.IsActive,
	); err != nil {
		if isUniqueViolation(err) {
			return ProfileRecord{}, ErrConflict
		}
		return ProfileRecord{}, fmt.Errorf("create profile: %w", err)
	}
	return s.GetProfile(ctx, rec.UserID)
}

// GetProfile returns the profile (with role name) for a user.
func (s *UserStore) GetProfile(ctx context.Context, userID uuid.UUID) (ProfileRecord, error) {
	row := s.pool.QueryRow(ctx, profileSelect+` WHERE p.user_id = $1`, userID)
	return scanProfileNotFound(row)
}

// UpdateProfileFields applies the allow-listed patch and returns the result.
func (s *UserStore) UpdateProfileFields(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (ProfileRecord, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET
            phone   = COALESCE($2, phone),
            address = COALESCE($3, address),
            bio     = COALESCE($4, bio),
            updated_at = now()
        WHERE user_id = $1
    `, ProfilesTable), userID, patch.Phone, patch.Address, patch.Bio)
	if err != nil {
		return ProfileRecord{}, fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ProfileRecord{}, ErrNotFound
	}
	return s.GetProfile(ctx, userID)
}

// SetProfileRole repoints the profile at a role within the same tenant.
func (s *UserStore) SetProfileRole(ctx context.Context, userID uuid.UUID, roleID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET role_id = $2, updated_at = now() WHERE user_id = $1
    `, ProfilesTable), userID, roleID)
	if err != nil {
		return fmt.Errorf("set profile role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetOrCreateRole returns the tenant's role with the given name, creating it
// on first use. Safe under concurrent callers via the (tenant_id, name)
// unique constraint plus reselect.
func (s *UserStore) GetOrCreateRole(ctx context.Context, tenantID uuid.UUID, name, description string) (RoleRecord, error) {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (role_id, tenant_id, name, description)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (tenant_id, name) DO NOTHING
    `, RolesTable), uuid.New(), tenantID, name, description); err != nil {
		return RoleRecord{}, fmt.Errorf("get-or-create role: %w", err)
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT role_id, tenant_id, name, description FROM %s
        WHERE tenant_id = $1 AND name = $2
    `, RolesTable), tenantID, name)

	var rec RoleRecord
	if err := row.Scan(&rec.RoleID, &rec.TenantID, &rec.Name, &rec.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleRecord{}, ErrNotFound
		}
		return RoleRecord{}, err
	}
	return rec, nil
}

func scanUser(row pgx.Row) (UserRecord, error) {
	var rec UserRecord
	err := row.Scan(&rec.UserID, &rec.Username, &rec.Email, &rec.PasswordHash, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func scanUserNotFound(row pgx.Row) (UserRecord, error) {
	rec, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRecord{}, ErrNotFound
		}
		return UserRecord{}, err
	}
	return rec, nil
}

func scanProfileNotFound(row pgx.Row) (ProfileRecord, error) {
	var rec ProfileRecord
	err := row.Scan(&rec.UserID, &rec.TenantID, &rec.RoleID, &rec.RoleName, &rec.Phone, &rec.Address, &rec.Bio, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileRecord{}, ErrNotFound
		}
		return ProfileRecord{}, err
	}
	return rec, nil
}
