package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, ctx context.Context, accounts *AccountStore, tenants *TenantStore, users *UserStore) (TenantRecord, AccountRecord) {
	t.Helper()

	tn, usr := seedTenantAndUser(t, ctx, tenants, users)
	acc, err := accounts.Create(ctx, tn.TenantID, usr.UserID, "verify-"+uuid.New().String())
	require.NoError(t, err)
	return tn, acc
}

func TestAccountStoreCreateDerivesNumber(t *testing.T) {
	pool, cleanup := mustTestPool(t)
	defer cleanup()
	ctx := context.Background()

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)
	accounts, err := NewAccountStore(pool)
	require.NoError(t, err)

	_, acc := seedAccount(t, ctx, accounts, tenants, users)

	require.Equal(t, fmt.Sprintf("ACC%08d", acc.AccountID), acc.AccountNumber)
	require.True(t, acc.Balance.IsZero())
	require.False(t, acc.IsVerified)
}

func TestAccountStoreApplyDelta(t *testing.T) {
	pool, cleanup := mustTestPool(t)
	defer cleanup()
	ctx := context.Background()

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)
	accounts, err := NewAccountStore(pool)
	require.NoError(t, err)

	_, acc := seedAccount(t, ctx, accounts, tenants, users)

	updated, err := accounts.ApplyDelta(ctx, acc.AccountID, decimal.RequireFromString("100.50"))
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(decimal.RequireFromString("100.50")))

	updated, err = accounts.ApplyDelta(ctx, acc.AccountID, decimal.RequireFromString("-40.25"))
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(decimal.RequireFromString("60.25")))

	// Overdraw leaves the balance untouched.
	_, err = accounts.ApplyDelta(ctx, acc.AccountID, decimal.RequireFromString("-60.26"))
	require.ErrorIs(t, err, ErrInsufficientFunds)

	current, err := accounts.Get(ctx, acc.AccountID)
	require.NoError(t, err)
	require.True(t, current.Balance.Equal(decimal.RequireFromString("60.25")))
}

func TestAccountStoreTransfer(t *testing.T) {
	pool, cleanup := mustTestPool(t)
	defer cleanup()
	ctx := context.Background()

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)
	accounts, err := NewAccountStore(pool)
	require.NoError(t, err)

	tn, usrA := seedTenantAndUser(t, ctx, tenants, users)
	sender, err := accounts.Create(ctx, tn.TenantID, usrA.UserID, "")
	require.NoError(t, err)

	suffix := uuid.New().String()[:8]
	usrB, err := users.CreateUser(ctx, UserRecord{
		UserID:       uuid.New(),
		Username:     "peer-" + suffix,
		Email:        fmt.Sprintf("peer-%s@example.com", suffix),
		PasswordHash: "x",
		IsActive:     true,
	})
	require.NoError(t, err)
	recipient, err := accounts.Create(ctx, tn.TenantID, usrB.UserID, "")
	require.NoError(t, err)

	_, err = accounts.ApplyDelta(ctx, sender.AccountID, decimal.RequireFromString("50.00"))
	require.NoError(t, err)

	out, err := accounts.Transfer(ctx, sender.AccountID, tn.TenantID, recipient.AccountNumber, decimal.RequireFromString("20.00"))
	require.NoError(t, err)
	require.True(t, out.Balance.Equal(decimal.RequireFromString("30.00")))

	got, err := accounts.Get(ctx, recipient.AccountID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.RequireFromString("20.00")))

	// Unknown recipient number inside the tenant.
	_, err = accounts.Transfer(ctx, sender.AccountID, tn.TenantID, "ACC99999999", decimal.RequireFromString("1.00"))
	require.ErrorIs(t, err, ErrRecipientNotFound)

	// Overdraw is rejected atomically; neither side moves.
	_, err = accounts.Transfer(ctx, sender.AccountID, tn.TenantID, recipient.AccountNumber, decimal.RequireFromString("30.01"))
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestAccountStoreConsumeVerificationToken(t *testing.T) {
	pool, cleanup := mustTestPool(t)
	defer cleanup()
	ctx := context.Background()

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)
	accounts, err := NewAccountStore(pool)
	require.NoError(t, err)

	tn, usr := seedTenantAndUser(t, ctx, tenants, users)
	token := "verify-" + uuid.New().String()
	acc, err := accounts.Create(ctx, tn.TenantID, usr.UserID, token)
	require.NoError(t, err)

	ok, err := accounts.ConsumeVerificationToken(ctx, acc.AccountID, "wrong")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = accounts.ConsumeVerificationToken(ctx, acc.AccountID, token)
	require.NoError(t, err)
	require.True(t, ok)

	// Token is single-use.
	ok, err = accounts.ConsumeVerificationToken(ctx, acc.AccountID, token)
	require.NoError(t, err)
	require.False(t, ok)

	got, err := accounts.Get(ctx, acc.AccountID)
	require.NoError(t, err)
	require.True(t, got.IsVerified)
	require.Empty(t, got.VerificationToken)
}
