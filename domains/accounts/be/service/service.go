package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Domain sentinel errors.
var (
	ErrNotFound          = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRecipientNotFound = errors.New("recipient account not found")
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Account represents the domain view of a ledger account. Balances are
// fixed-point decimals; floats never touch money.
type Account struct {
	ID            int64
	TenantID      uuid.UUID
	UserID        uuid.UUID
	AccountNumber string
	Balance       decimal.Decimal
	IsVerified    bool
	LastLoginIP   *string
	LastLoginTime *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AdjustDirection selects the sign of an admin balance adjustment.
type AdjustDirection string

const (
	AdjustAdd      AdjustDirection = "add"
	AdjustSubtract AdjustDirection = "subtract"
)

// Repository abstracts persistence for the ledger.
type Repository interface {
	Get(ctx context.Context, accountID int64) (Account, error)
	GetByUser(ctx context.Context, userID uuid.UUID) (Account, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Account, error)
	// ApplyDelta atomically adds delta to the balance, rejecting results
	// below zero with ErrInsufficientFunds.
	ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) (Account, error)
	// Transfer atomically debits the sender and credits the recipient
	// resolved by account number within the sender's tenant.
	Transfer(ctx context.Context, fromID int64, tenantID uuid.UUID, recipientNumber string, amount decimal.Decimal) (Account, error)
	ConsumeVerificationToken(ctx context.Context, accountID int64, token string) (bool, error)
}

// Service provides ledger operations scoped to the calling user's account.
type Service struct {
	repo Repository
}

// New constructs a Service with required dependencies.
func New(repo Repository) *Service {
	if repo == nil {
		panic("accounts repository is required")
	}
	return &Service{repo: repo}
}

// GetByUser returns the caller's account.
func (s *Service) GetByUser(ctx context.Context, userID uuid.UUID) (Account, error) {
	return s.repo.GetByUser(ctx, userID)
}

// ListByTenant returns every account in the tenant, for admin review.
func (s *Service) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]Account, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// Deposit credits the user's account by a positive amount.
func (s *Service) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (Account, error) {
	if err := validateAmount(amount); err != nil {
		return Account{}, err
	}
	account, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	return s.repo.ApplyDelta(ctx, account.ID, amount)
}

// Withdraw debits the user's account by a positive amount. Balances never go
// negative; an overdraw fails with ErrInsufficientFunds and changes nothing.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (Account, error) {
	if err := validateAmount(amount); err != nil {
		return Account{}, err
	}
	account, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	return s.repo.ApplyDelta(ctx, account.ID, amount.Neg())
}

// Transfer moves a positive amount from the user's account to the recipient
// identified by account number within the same tenant. Debit and credit
// commit together or not at all.
func (s *Service) Transfer(ctx context.Context, userID uuid.UUID, recipientNumber string, amount decimal.Decimal) (Account, error) {
	if err := validateAmount(amount); err != nil {
		return Account{}, err
	}

	recipientNumber = strings.TrimSpace(recipientNumber)
	if recipientNumber == "" {
		return Account{}, newValidationError(map[string]string{"recipient": "recipient account number is required"})
	}

	account, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return Account{}, err
	}
	if account.AccountNumber == recipientNumber {
		return Account{}, ErrRecipientNotFound
	}

	return s.repo.Transfer(ctx, account.ID, account.TenantID, recipientNumber, amount)
}

// Adjust applies an admin-side correction to any account in the tenant.
// Subtractions respect the non-negative balance invariant like withdrawals.
func (s *Service) Adjust(ctx context.Context, tenantID uuid.UUID, accountID int64, direction AdjustDirection, amount decimal.Decimal) (Account, error) {
	if err := validateAmount(amount); err != nil {
		return Account{}, err
	}

	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return Account{}, err
	}
	if account.TenantID != tenantID {
		return Account{}, ErrNotFound
	}

	switch direction {
	case AdjustAdd:
		return s.repo.ApplyDelta(ctx, accountID, amount)
	case AdjustSubtract:
		return s.repo.ApplyDelta(ctx, accountID, amount.Neg())
	default:
		return Account{}, newValidationError(map[string]string{"direction": "direction must be add or subtract"})
	}
}

// Verify consumes the account's emailed verification token. The token is
// single-use; a wrong or reused value is a validation failure.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, token string) (Account, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Account{}, newValidationError(map[string]string{"token": "verification token is required"})
	}

	account, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return Account{}, err
	}

	ok, err := s.repo.ConsumeVerificationToken(ctx, account.ID, token)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return Account{}, newValidationError(map[string]string{"token": "verification token does not match"})
	}

	return s.repo.Get(ctx, account.ID)
}

// validateAmount enforces positive amounts with at most two decimal places.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return newValidationError(map[string]string{"amount": "amount must be positive"})
	}
	if amount.Exponent() < -2 {
		return newValidationError(map[string]string{"amount": "amount cannot have more than two decimal places"})
	}
	return nil
}

func newValidationError(fields map[string]string) error {
	fe := FieldErrors{}
	for key, message := range fields {
		fe.add(key, message)
	}
	return &ValidationError{Fields: fe}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
