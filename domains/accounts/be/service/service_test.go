package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/medikube/platform/domains/accounts/be/repo"
	"github.com/medikube/platform/domains/accounts/be/service"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	svc  *service.Service
	repo *repo.MemoryRepository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	r := repo.NewMemoryRepository()
	return fixture{svc: service.New(r), repo: r}
}

func (f fixture) seed(t *testing.T, tenantID uuid.UUID, balance string) service.Account {
	t.Helper()
	account, err := f.repo.Create(context.Background(), tenantID, uuid.New(), "seed-token")
	require.NoError(t, err)
	if balance != "0" {
		account, err = f.repo.ApplyDelta(context.Background(), account.ID, dec(balance))
		require.NoError(t, err)
	}
	return account
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	account := f.seed(t, uuid.New(), "0")

	updated, err := f.svc.Deposit(ctx, account.UserID, dec("100.50"))
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(dec("100.50")))

	updated, err = f.svc.Withdraw(ctx, account.UserID, dec("40.25"))
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(dec("60.25")))
}

func TestWithdrawOverdrawRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	account := f.seed(t, uuid.New(), "50.00")

	_, err := f.svc.Withdraw(ctx, account.UserID, dec("50.01"))
	require.ErrorIs(t, err, service.ErrInsufficientFunds)

	current, err := f.svc.GetByUser(ctx, account.UserID)
	require.NoError(t, err)
	require.True(t, current.Balance.Equal(dec("50.00")))

	// Withdrawing the exact balance drains it to zero.
	current, err = f.svc.Withdraw(ctx, account.UserID, dec("50.00"))
	require.NoError(t, err)
	require.True(t, current.Balance.IsZero())
}

func TestAmountValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	account := f.seed(t, uuid.New(), "10.00")

	var vErr *service.ValidationError

	_, err := f.svc.Deposit(ctx, account.UserID, dec("0"))
	require.ErrorAs(t, err, &vErr)

	_, err = f.svc.Deposit(ctx, account.UserID, dec("-5"))
	require.ErrorAs(t, err, &vErr)

	// Sub-cent precision is rejected rather than silently rounded.
	_, err = f.svc.Deposit(ctx, account.UserID, dec("1.001"))
	require.ErrorAs(t, err, &vErr)
}

func TestTransferMovesFundsAtomically(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	sender := f.seed(t, tenantID, "80.00")
	recipient := f.seed(t, tenantID, "0")

	updated, err := f.svc.Transfer(ctx, sender.UserID, recipient.AccountNumber, dec("30.00"))
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(dec("50.00")))

	got, err := f.svc.GetByUser(ctx, recipient.UserID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(dec("30.00")))
}

func TestTransferFailuresLeaveBalancesUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	sender := f.seed(t, tenantID, "80.00")
	recipient := f.seed(t, tenantID, "5.00")

	// Unknown recipient.
	_, err := f.svc.Transfer(ctx, sender.UserID, "ACC99999999", dec("10.00"))
	require.ErrorIs(t, err, service.ErrRecipientNotFound)

	// Self-transfer.
	_, err = f.svc.Transfer(ctx, sender.UserID, sender.AccountNumber, dec("10.00"))
	require.ErrorIs(t, err, service.ErrRecipientNotFound)

	// Overdraw.
	_, err = f.svc.Transfer(ctx, sender.UserID, recipient.AccountNumber, dec("80.01"))
	require.ErrorIs(t, err, service.ErrInsufficientFunds)

	senderNow, err := f.svc.GetByUser(ctx, sender.UserID)
	require.NoError(t, err)
	require.True(t, senderNow.Balance.Equal(dec("80.00")))
	recipientNow, err := f.svc.GetByUser(ctx, recipient.UserID)
	require.NoError(t, err)
	require.True(t, recipientNow.Balance.Equal(dec("5.00")))
}

func TestTransferIsTenantScoped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	sender := f.seed(t, uuid.New(), "80.00")
	outsider := f.seed(t, uuid.New(), "0")

	// The outsider's number exists, but in another tenant.
	_, err := f.svc.Transfer(ctx, sender.UserID, outsider.AccountNumber, dec("10.00"))
	require.ErrorIs(t, err, service.ErrRecipientNotFound)
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	account := f.seed(t, uuid.New(), "100.00")

	const workers = 20
	var wg sync.WaitGroup
	succeeded := make([]bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Withdraw(ctx, account.UserID, dec("10.00"))
			succeeded[i] = err == nil
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range succeeded {
		if ok {
			wins++
		}
	}
	require.Equal(t, 10, wins)

	current, err := f.svc.GetByUser(ctx, account.UserID)
	require.NoError(t, err)
	require.True(t, current.Balance.IsZero())
}

func TestAdjustDirections(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()
	account := f.seed(t, tenantID, "20.00")

	updated, err := f.svc.Adjust(ctx, tenantID, account.ID, service.AdjustAdd, dec("5.00"))
	require.NoError(t, err)
	require.True(t, updated.Balance.Equal(dec("25.00")))

	updated, err = f.svc.Adjust(ctx, tenantID, account.ID, service.AdjustSubtract, dec("25.00"))
	require.NoError(t, err)
	require.True(t, updated.Balance.IsZero())

	_, err = f.svc.Adjust(ctx, tenantID, account.ID, service.AdjustSubtract, dec("0.01"))
	require.ErrorIs(t, err, service.ErrInsufficientFunds)

	var vErr *service.ValidationError
	_, err = f.svc.Adjust(ctx, tenantID, account.ID, service.AdjustDirection("multiply"), dec("2.00"))
	require.ErrorAs(t, err, &vErr)

	// Accounts outside the tenant are invisible to adjustment.
	_, err = f.svc.Adjust(ctx, uuid.New(), account.ID, service.AdjustAdd, dec("1.00"))
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestVerifyTokenSingleUse(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	account := f.seed(t, uuid.New(), "0")

	var vErr *service.ValidationError
	_, err := f.svc.Verify(ctx, account.UserID, "wrong-token")
	require.ErrorAs(t, err, &vErr)

	verified, err := f.svc.Verify(ctx, account.UserID, "seed-token")
	require.NoError(t, err)
	require.True(t, verified.IsVerified)

	_, err = f.svc.Verify(ctx, account.UserID, "seed-token")
	require.ErrorAs(t, err, &vErr)
}
