package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medikube/platform/domains/accounts/be/service"
	"github.com/medikube/platform/platform/go/persistence"
)

// PostgresRepository implements service.Repository on top of the shared
// account store.
type PostgresRepository struct {
	store *persistence.AccountStore
}

// NewPostgresRepository constructs a PostgresRepository.
func NewPostgresRepository(store *persistence.AccountStore) *PostgresRepository {
	if store == nil {
		panic("account store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Get(ctx context.Context, accountID int64) (service.Account, error) {
	rec, err := r.store.Get(ctx, accountID)
	if err != nil {
		return service.Account{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) GetByUser(ctx context.Context, userID uuid.UUID) (service.Account, error) {
	rec, err := r.store.GetByUser(ctx, userID)
	if err != nil {
		return service.Account{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]service.Account, error) {
	recs, err := r.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	accounts := make([]service.Account, 0, len(recs))
	for _, rec := range recs {
		accounts = append(accounts, fromRecord(rec))
	}
	return accounts, nil
}

func (r *PostgresRepository) ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) (service.Account, error) {
	rec, err := r.store.ApplyDelta(ctx, accountID, delta)
	if err != nil {
		return service.Account{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) Transfer(ctx context.Context, fromID int64, tenantID uuid.UUID, recipientNumber string, amount decimal.Decimal) (service.Account, error) {
	rec, err := r.store.Transfer(ctx, fromID, tenantID, recipientNumber, amount)
	if err != nil {
		return service.Account{}, mapStoreError(err)
	}
	return fromRecord(rec), nil
}

func (r *PostgresRepository) ConsumeVerificationToken(ctx context.Context, accountID int64, token string) (bool, error) {
	return r.store.ConsumeVerificationToken(ctx, accountID, token)
}

func fromRecord(rec persistence.AccountRecord) service.Account {
	return service.Account{
		ID:            rec.AccountID,
		TenantID:      rec.TenantID,
		UserID:        rec.UserID,
		AccountNumber: rec.AccountNumber,
		Balance:       rec.Balance,
		IsVerified:    rec.IsVerified,
		LastLoginIP:   rec.LastLoginIP,
		LastLoginTime: rec.LastLoginTime,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrInsufficientFunds):
		return service.ErrInsufficientFunds
	case errors.Is(err, persistence.ErrRecipientNotFound):
		return service.ErrRecipientNotFound
	default:
		return err
	}
}
