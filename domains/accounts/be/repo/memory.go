package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medikube/platform/domains/accounts/be/service"
)

type memoryRow struct {
	account           service.Account
	verificationToken string
}

// MemoryRepository is an in-memory service.Repository for tests and early
// development. A single mutex guards every balance move, which gives the
// same atomicity the SQL implementation gets from row locks.
type MemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]*memoryRow
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*memoryRow)}
}

// Create provisions an account with a derived number. Mirrors what the auth
// domain does at registration so ledger tests can seed accounts directly.
func (r *MemoryRepository) Create(ctx context.Context, tenantID, userID uuid.UUID, verificationToken string) (service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := time.Now().UTC()
	account := service.Account{
		ID:            r.nextID,
		TenantID:      tenantID,
		UserID:        userID,
		AccountNumber: fmt.Sprintf("ACC%08d", r.nextID),
		Balance:       decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.byID[account.ID] = &memoryRow{account: account, verificationToken: verificationToken}
	return account, nil
}

func (r *MemoryRepository) Get(ctx context.Context, accountID int64) (service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.byID[accountID]
	if !ok {
		return service.Account{}, service.ErrNotFound
	}
	return row.account, nil
}

func (r *MemoryRepository) GetByUser(ctx context.Context, userID uuid.UUID) (service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.byID {
		if row.account.UserID == userID {
			return row.account, nil
		}
	}
	return service.Account{}, service.ErrNotFound
}

func (r *MemoryRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := make([]service.Account, 0)
	for _, row := range r.byID {
		if row.account.TenantID == tenantID {
			accounts = append(accounts, row.account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (r *MemoryRepository) ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) (service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.byID[accountID]
	if !ok {
		return service.Account{}, service.ErrNotFound
	}

	next := row.account.Balance.Add(delta)
	if next.IsNegative() {
		return service.Account{}, service.ErrInsufficientFunds
	}
	row.account.Balance = next
	row.account.UpdatedAt = time.Now().UTC()
	return row.account, nil
}

func (r *MemoryRepository) Transfer(ctx context.Context, fromID int64, tenantID uuid.UUID, recipientNumber string, amount decimal.Decimal) (service.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender, ok := r.byID[fromID]
	if !ok {
		return service.Account{}, service.ErrNotFound
	}

	var recipient *memoryRow
	for _, row := range r.byID {
		if row.account.TenantID == tenantID && row.account.AccountNumber == recipientNumber {
			recipient = row
			break
		}
	}
	if recipient == nil || recipient.account.ID == fromID {
		return service.Account{}, service.ErrRecipientNotFound
	}

	if sender.account.Balance.LessThan(amount) {
		return service.Account{}, service.ErrInsufficientFunds
	}

	now := time.Now().UTC()
	sender.account.Balance = sender.account.Balance.Sub(amount)
	sender.account.UpdatedAt = now
	recipient.account.Balance = recipient.account.Balance.Add(amount)
	recipient.account.UpdatedAt = now
	return sender.account, nil
}

func (r *MemoryRepository) ConsumeVerificationToken(ctx context.Context, accountID int64, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.byID[accountID]
	if !ok {
		return false, service.ErrNotFound
	}
	if row.verificationToken == "" || row.verificationToken != token {
		return false, nil
	}
	row.verificationToken = ""
	row.account.IsVerified = true
	row.account.UpdatedAt = time.Now().UTC()
	return true, nil
}
