package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const AccountsTable = "accounts"

// AccountRecord represents a row in the accounts table. Balance is carried as
// a fixed-point decimal; the column is numeric(12,2) and values are moved
// over the wire as text to avoid any float rounding.
type AccountRecord struct {
	AccountID         int64           `db:"account_id"`
	TenantID          uuid.UUID       `db:"tenant_id"`
	UserID            uuid.UUID       `db:"user_id"`
	AccountNumber     string          `db:"account_number"`
	Balance           decimal.Decimal `db:"balance"`
	IsVerified        bool            `db:"is_verified"`
	VerificationToken string          `db:"verification_token"`
	LastLoginIP       *string         `db:"last_login_ip"`
	LastLoginTime     *time.Time      `db:"last_login_time"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// AccountStore exposes persistence helpers for the accounts table.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore returns a store instance bound to the shared pool.
func NewAccountStore(pool *pgxpool.Pool) (*AccountStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &AccountStore{pool: pool}, nil
}

const accountColumns = `account_id, tenant_id, user_id, account_number, balance::text,
               is_verified, verification_token, last_login_ip, last_login_time, created_at, updated_at`

// Create inserts an account and derives its human-readable number from the
// assigned id in the same transaction (two-phase creation: the id only
// exists after the insert).
func (s *AccountStore) Create(ctx context.Context, tenantID, userID uuid.UUID, verificationToken string) (AccountRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var accountID int64
	err = tx.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (tenant_id, user_id, verification_token)
        VALUES ($1, $2, $3)
        RETURNING account_id
    `, AccountsTable), tenantID, userID, verificationToken).Scan(&accountID)
	if err != nil {
		if isUniqueViolation(err) {
			return AccountRecord{}, ErrConflict
		}
		return AccountRecord{}, fmt.Errorf("insert account: %w", err)
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET account_number = 'ACC' || lpad(account_id::text, 8, '0'), updated_at = now()
        WHERE account_id = $1
        RETURNING %s
    `, AccountsTable, accountColumns), accountID)

	rec, err := scanAccount(row)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("derive account number: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return AccountRecord{}, fmt.Errorf("commit create account: %w", err)
	}
	return rec, nil
}

// Get returns an account by id.
func (s *AccountStore) Get(ctx context.Context, accountID int64) (AccountRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE account_id = $1
    `, accountColumns, AccountsTable), accountID)
	return scanAccountNotFound(row)
}

// GetByUser returns the account owned by a user (1:1).
func (s *AccountStore) GetByUser(ctx context.Context, userID uuid.UUID) (AccountRecord, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE user_id = $1
    `, accountColumns, AccountsTable), userID)
	return scanAccountNotFound(row)
}

// ListByTenant returns every account within a tenant, oldest first.
func (s *AccountStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]AccountRecord, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE tenant_id = $1 ORDER BY account_id
    `, accountColumns, AccountsTable), tenantID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]AccountRecord, 0)
	for rows.Next() {
		rec, scanErr := scanAccount(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan account: %w", scanErr)
		}
		accounts = append(accounts, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// ApplyDelta adds delta (negative for debits) to the account balance under a
// row lock, failing with ErrInsufficientFunds when the result would go
// negative. The read-check-write runs as one transaction so two concurrent
// debits cannot both observe the same stale balance.
func (s *AccountStore) ApplyDelta(ctx context.Context, accountID int64, delta decimal.Decimal) (AccountRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	balance, err := lockBalance(ctx, tx, accountID)
	if err != nil {
		return AccountRecord{}, err
	}

	next := balance.Add(delta)
	if next.IsNegative() {
		return AccountRecord{}, ErrInsufficientFunds
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET balance = $2::numeric, updated_at = now()
        WHERE account_id = $1
        RETURNING %s
    `, AccountsTable, accountColumns), accountID, next.StringFixed(2))

	rec, err := scanAccount(row)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("apply balance delta: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return AccountRecord{}, fmt.Errorf("commit balance delta: %w", err)
	}
	return rec, nil
}

// Transfer debits the sender and credits the recipient (resolved by account
// number inside the sender's tenant) as one atomic unit. Both rows are locked
// in ascending account id order so opposite-direction transfers cannot
// deadlock.
func (s *AccountStore) Transfer(ctx context.Context, fromID int64, tenantID uuid.UUID, recipientNumber string, amount decimal.Decimal) (AccountRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var toID int64
	err = tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT account_id FROM %s WHERE tenant_id = $1 AND account_number = $2
    `, AccountsTable), tenantID, recipientNumber).Scan(&toID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountRecord{}, ErrRecipientNotFound
		}
		return AccountRecord{}, fmt.Errorf("resolve recipient: %w", err)
	}
	if toID == fromID {
		return AccountRecord{}, ErrRecipientNotFound
	}

	// Lock in ascending id order regardless of direction.
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	if _, err := lockBalance(ctx, tx, first); err != nil {
		return AccountRecord{}, err
	}
	if _, err := lockBalance(ctx, tx, second); err != nil {
		return AccountRecord{}, err
	}

	senderBalance, err := readBalance(ctx, tx, fromID)
	if err != nil {
		return AccountRecord{}, err
	}
	if senderBalance.LessThan(amount) {
		return AccountRecord{}, ErrInsufficientFunds
	}

	amountText := amount.StringFixed(2)
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET balance = balance - $2::numeric, updated_at = now() WHERE account_id = $1
    `, AccountsTable), fromID, amountText); err != nil {
		return AccountRecord{}, fmt.Errorf("debit sender: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET balance = balance + $2::numeric, updated_at = now() WHERE account_id = $1
    `, AccountsTable), toID, amountText); err != nil {
		return AccountRecord{}, fmt.Errorf("credit recipient: %w", err)
	}

	row := tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE account_id = $1
    `, accountColumns, AccountsTable), fromID)
	rec, err := scanAccount(row)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("reload sender: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return AccountRecord{}, fmt.Errorf("commit transfer: %w", err)
	}
	return rec, nil
}

// ConsumeVerificationToken flips is_verified and clears the stored token iff
// the submitted value matches exactly. Returns false when nothing matched.
func (s *AccountStore) ConsumeVerificationToken(ctx context.Context, accountID int64, token string) (bool, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET is_verified = true, verification_token = '', updated_at = now()
        WHERE account_id = $1 AND verification_token <> '' AND verification_token = $2
    `, AccountsTable), accountID, token)
	if err != nil {
		return false, fmt.Errorf("consume verification token: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// StampLogin records the source of the latest successful login.
func (s *AccountStore) StampLogin(ctx context.Context, userID uuid.UUID, ip *string, at time.Time) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET last_login_ip = $2, last_login_time = $3, updated_at = now()
        WHERE user_id = $1
    `, AccountsTable), userID, ip, at)
	if err != nil {
		return fmt.Errorf("stamp login: %w", err)
	}
	return nil
}

func lockBalance(ctx context.Context, tx pgx.Tx, accountID int64) (decimal.Decimal, error) {
	var text string
	err := tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT balance::text FROM %s WHERE account_id = $1 FOR UPDATE
    `, AccountsTable), accountID).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("lock account %d: %w", accountID, err)
	}
	return decimal.NewFromString(text)
}

func readBalance(ctx context.Context, tx pgx.Tx, accountID int64) (decimal.Decimal, error) {
	var text string
	err := tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT balance::text FROM %s WHERE account_id = $1
    `, AccountsTable), accountID).Scan(&text)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read balance %d: %w", accountID, err)
	}
	return decimal.NewFromString(text)
}

func scanAccount(row pgx.Row) (AccountRecord, error) {
	var (
		rec         AccountRecord
		balanceText string
	)
	err := row.Scan(&rec.AccountID, &rec.TenantID, &rec.UserID, &rec.AccountNumber, &balanceText,
		&rec.IsVerified, &rec.VerificationToken, &rec.LastLoginIP, &rec.LastLoginTime, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return AccountRecord{}, err
	}
	rec.Balance, err = decimal.NewFromString(balanceText)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("parse balance: %w", err)
	}
	return rec, nil
}

func scanAccountNotFound(row pgx.Row) (AccountRecord, error) {
	rec, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountRecord{}, ErrNotFound
		}
		return AccountRecord{}, err
	}
	return rec, nil
}
