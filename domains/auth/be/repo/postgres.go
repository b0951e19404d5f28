package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medikube/platform/domains/auth/be/service"
	"github.com/medikube/platform/platform/go/persistence"
)

// PostgresUsers implements service.UserRepository on top of the shared user
// store.
type PostgresUsers struct {
	store *persistence.UserStore
}

// NewPostgresUsers constructs a PostgresUsers repository.
func NewPostgresUsers(store *persistence.UserStore) *PostgresUsers {
	if store == nil {
		panic("user store is required")
	}
	return &PostgresUsers{store: store}
}

func (r *PostgresUsers) CreateUser(ctx context.Context, u service.User) (service.User, error) {
	rec, err := r.store.CreateUser(ctx, persistence.UserRecord{
		UserID:       u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
	})
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return fromUserRecord(rec), nil
}

func (r *PostgresUsers) GetUser(ctx context.Context, id uuid.UUID) (service.User, error) {
	rec, err := r.store.GetUser(ctx, id)
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return fromUserRecord(rec), nil
}

func (r *PostgresUsers) GetUserByUsername(ctx context.Context, username string) (service.User, error) {
	rec, err := r.store.GetUserByUsername(ctx, username)
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return fromUserRecord(rec), nil
}

func (r *PostgresUsers) GetUserByEmail(ctx context.Context, email string) (service.User, error) {
	rec, err := r.store.GetUserByEmail(ctx, email)
	if err != nil {
		return service.User{}, mapStoreError(err)
	}
	return fromUserRecord(rec), nil
}

func (r *PostgresUsers) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	return mapStoreError(r.store.DeactivateUser(ctx, id))
}

func (r *PostgresUsers) CreateProfile(ctx context.Context, p service.Profile, roleID *uuid.UUID) (service.Profile, error) {
	rec, err := r.store.CreateProfile(ctx, persistence.ProfileRecord{
		UserID:   p.UserID,
		TenantID: p.TenantID,
		RoleID:   roleID,
		Phone:    p.Phone,
		Address:  p.Address,
		Bio:      p.Bio,
		IsActive: p.IsActive,
	})
	if err != nil {
		return service.Profile{}, mapStoreError(err)
	}
	return fromProfileRecord(rec), nil
}

func (r *PostgresUsers) GetProfile(ctx context.Context, userID uuid.UUID) (service.Profile, error) {
	rec, err := r.store.GetProfile(ctx, userID)
	if err != nil {
		return service.Profile{}, mapStoreError(err)
	}
	return fromProfileRecord(rec), nil
}

func (r *PostgresUsers) UpdateProfileFields(ctx context.Context, userID uuid.UUID, patch service.ProfilePatch) (service.Profile, error) {
	rec, err := r.store.UpdateProfileFields(ctx, userID, persistence.ProfilePatch{
		Phone:   patch.Phone,
		Address: patch.Address,
		Bio:     patch.Bio,
	})
	if err != nil {
		return service.Profile{}, mapStoreError(err)
	}
	return fromProfileRecord(rec), nil
}

func (r *PostgresUsers) SetProfileRole(ctx context.Context, userID, roleID uuid.UUID) error {
	return mapStoreError(r.store.SetProfileRole(ctx, userID, roleID))
}

func (r *PostgresUsers) GetOrCreateRole(ctx context.Context, tenantID uuid.UUID, name service.RoleName, description string) (service.Role, error) {
	rec, err := r.store.GetOrCreateRole(ctx, tenantID, string(name), description)
	if err != nil {
		return service.Role{}, mapStoreError(err)
	}
	return service.Role{
		ID:          rec.RoleID,
		TenantID:    rec.TenantID,
		Name:        service.RoleName(rec.Name),
		Description: rec.Description,
	}, nil
}

// PostgresTokens implements service.TokenRepository on top of the shared
// token store.
type PostgresTokens struct {
	store *persistence.TokenStore
}

// NewPostgresTokens constructs a PostgresTokens repository.
func NewPostgresTokens(store *persistence.TokenStore) *PostgresTokens {
	if store == nil {
		panic("token store is required")
	}
	return &PostgresTokens{store: store}
}

func (r *PostgresTokens) IssueExclusive(ctx context.Context, t service.Token) (service.Token, error) {
	rec, err := r.store.IssueExclusive(ctx, toTokenRecord(t))
	if err != nil {
		return service.Token{}, mapStoreError(err)
	}
	return fromTokenRecord(rec), nil
}

func (r *PostgresTokens) GetActive(ctx context.Context, value string, tenantID *uuid.UUID) (service.Token, error) {
	rec, err := r.store.GetActive(ctx, value, tenantID)
	if err != nil {
		return service.Token{}, mapStoreError(err)
	}
	return fromTokenRecord(rec), nil
}

func (r *PostgresTokens) Deactivate(ctx context.Context, tokenID uuid.UUID) error {
	return r.store.Deactivate(ctx, tokenID)
}

func (r *PostgresTokens) Revoke(ctx context.Context, value string, tenantID *uuid.UUID) (bool, error) {
	return r.store.Revoke(ctx, value, tenantID)
}

func (r *PostgresTokens) SweepExpired(ctx context.Context, tenantID *uuid.UUID, now time.Time) (int64, error) {
	return r.store.SweepExpired(ctx, tenantID, now)
}

// PostgresAccounts implements service.AccountDirectory on top of the shared
// account store.
type PostgresAccounts struct {
	store *persistence.AccountStore
}

// NewPostgresAccounts constructs a PostgresAccounts directory.
func NewPostgresAccounts(store *persistence.AccountStore) *PostgresAccounts {
	if store == nil {
		panic("account store is required")
	}
	return &PostgresAccounts{store: store}
}

func (r *PostgresAccounts) CreateAccount(ctx context.Context, tenantID, userID uuid.UUID, verificationToken string) (service.AccountRef, error) {
	rec, err := r.store.Create(ctx, tenantID, userID, verificationToken)
	if err != nil {
		return service.AccountRef{}, mapStoreError(err)
	}
	return fromAccountRecord(rec), nil
}

func (r *PostgresAccounts) GetAccountByUser(ctx context.Context, userID uuid.UUID) (service.AccountRef, error) {
	rec, err := r.store.GetByUser(ctx, userID)
	if err != nil {
		return service.AccountRef{}, mapStoreError(err)
	}
	return fromAccountRecord(rec), nil
}

func (r *PostgresAccounts) StampLogin(ctx context.Context, userID uuid.UUID, ip *string, at time.Time) error {
	return r.store.StampLogin(ctx, userID, ip, at)
}

func fromUserRecord(rec persistence.UserRecord) service.User {
	return service.User{
		ID:           rec.UserID,
		Username:     rec.Username,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		IsActive:     rec.IsActive,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func fromProfileRecord(rec persistence.ProfileRecord) service.Profile {
	p := service.Profile{
		UserID:   rec.UserID,
		TenantID: rec.TenantID,
		Phone:    rec.Phone,
		Address:  rec.Address,
		Bio:      rec.Bio,
		IsActive: rec.IsActive,
	}
	if rec.RoleName != nil {
		if role, err := service.ParseRoleName(*rec.RoleName); err == nil {
			p.Role = &role
		}
	}
	return p
}

func toTokenRecord(t service.Token) persistence.TokenRecord {
	return persistence.TokenRecord{
		TokenID:   t.ID,
		TenantID:  t.TenantID,
		UserID:    t.UserID,
		Token:     t.Value,
		IsActive:  t.IsActive,
		ExpiresAt: t.ExpiresAt,
		IPAddress: t.IPAddress,
		UserAgent: t.UserAgent,
	}
}

func fromTokenRecord(rec persistence.TokenRecord) service.Token {
	return service.Token{
		ID:        rec.TokenID,
		TenantID:  rec.TenantID,
		UserID:    rec.UserID,
		Value:     rec.Token,
		IsActive:  rec.IsActive,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		IPAddress: rec.IPAddress,
		UserAgent: rec.UserAgent,
	}
}

func fromAccountRecord(rec persistence.AccountRecord) service.AccountRef {
	return service.AccountRef{
		AccountID:     rec.AccountID,
		AccountNumber: rec.AccountNumber,
		Balance:       rec.Balance,
		IsVerified:    rec.IsVerified,
	}
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrConflict):
		return service.ErrConflict
	default:
		return err
	}
}
