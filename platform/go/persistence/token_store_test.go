package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// seedTenantAndUser inserts a tenant and a user with unique names so tests
// can run against a shared database without clashing.
func seedTenantAndUser(t *testing.T, ctx context.Context, tenants *TenantStore, users *UserStore) (TenantRecord, UserRecord) {
	t.Helper()

	suffix := uuid.New().String()[:8]
	tn, err := tenants.Create(ctx, TenantRecord{
		TenantID: uuid.New(),
		Name:     "tenant-" + suffix,
		IsActive: true,
	})
	require.NoError(t, err)

	usr, err := users.CreateUser(ctx, UserRecord{
		UserID:       uuid.New(),
		Username:     "user-" + suffix,
		Email:        fmt.Sprintf("user-%s@example.com", suffix),
		PasswordHash: "x",
		IsActive:     true,
	})
	require.NoError(t, err)

	return tn, usr
}

func TestTokenStoreIssueExclusiveSupersedes(t *testing.T) {
	pool, cleanup := mustTestPool(t)
	defer cleanup()
	ctx := context.Background()

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)
	tokens, err := NewTokenStore(pool)
	require.NoError(t, err)

	tn, usr := seedTenantAndUser(t, ctx, tenants, users)

	issue := func(value string) TokenRecord {
		rec, issueErr := tokens.IssueExclusive(ctx, TokenRecord{
			TokenID:   uuid.New(),
			TenantID:  tn.TenantID,
			UserID:    usr.UserID,
			Token:     value,
			ExpiresAt: time.Now().Add(time.Hour),
			UserAgent: "test",
		})
		require.NoError(t, issueErr)
		return rec
	}

	first := issue("token-" + uuid.New().String())
	second := issue("token-" + uuid.New().String())

	// The first token must have been deactivated by the second issue.
	_, err = tokens.GetActive(ctx, first.Token, &tn.TenantID)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := tokens.GetActive(ctx, second.Token, &tn.TenantID)
	require.NoError(t, err)
	require.Equal(t, second.TokenID, got.TokenID)
	require.True(t, got.IsActive)
}

func TestTokenStoreRevokeAndSweep(t *testing.T) {
	pool, cleanup := mustTestPool(t)
	defer cleanup()
	ctx := context.Background()

	tenants, err := NewTenantStore(pool)
	require.NoError(t, err)
	users, err := NewUserStore(pool)
	require.NoError(t, err)
	tokens, err := NewTokenStore(pool)
	require.NoError(t, err)

	tn, usr := seedTenantAndUser(t, ctx, tenants, users)

	rec, err := tokens.IssueExclusive(ctx, TokenRecord{
		TokenID:   uuid.New(),
		TenantID:  tn.TenantID,
		UserID:    usr.UserID,
		Token:     "revoke-" + uuid.New().String(),
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	revoked, err := tokens.Revoke(ctx, rec.Token, &tn.TenantID)
	require.NoError(t, err)
	require.True(t, revoked)

	// Revoking again finds nothing.
	revoked, err = tokens.Revoke(ctx, rec.Token, &tn.TenantID)
	require.NoError(t, err)
	require.False(t, revoked)

	// A token already past expiry is picked up by the sweep.
	expired, err := tokens.IssueExclusive(ctx, TokenRecord{
		TokenID:   uuid.New(),
		TenantID:  tn.TenantID,
		UserID:    usr.UserID,
		Token:     "expired-" + uuid.New().String(),
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	n, err := tokens.SweepExpired(ctx, &tn.TenantID, time.Now())
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, int64(1))

	_, err = tokens.GetActive(ctx, expired.Token, &tn.TenantID)
	require.ErrorIs(t, err, ErrNotFound)
}
