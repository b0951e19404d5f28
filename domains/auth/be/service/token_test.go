package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/medikube/platform/domains/auth/be/repo"
	"github.com/medikube/platform/domains/auth/be/service"
)

func TestIssueSupersedesPreviousToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tokens := repo.NewMemoryTokens()
	svc := service.NewTokenService(tokens)

	tenantID, userID := uuid.New(), uuid.New()

	first, err := svc.Issue(ctx, tenantID, userID, nil, "cli")
	require.NoError(t, err)
	second, err := svc.Issue(ctx, tenantID, userID, nil, "cli")
	require.NoError(t, err)
	require.NotEqual(t, first.Value, second.Value)

	require.Equal(t, 1, tokens.ActiveCount(userID, tenantID))

	_, err = svc.Validate(ctx, first.Value, &tenantID)
	require.ErrorIs(t, err, service.ErrTokenInvalid)

	got, err := svc.Validate(ctx, second.Value, &tenantID)
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)
}

func TestIssuePerTenantIsIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tokens := repo.NewMemoryTokens()
	svc := service.NewTokenService(tokens)

	userID := uuid.New()
	tenantA, tenantB := uuid.New(), uuid.New()

	inA, err := svc.Issue(ctx, tenantA, userID, nil, "")
	require.NoError(t, err)
	inB, err := svc.Issue(ctx, tenantB, userID, nil, "")
	require.NoError(t, err)

	// Issuing in B must not supersede the token held in A.
	_, err = svc.Validate(ctx, inA.Value, &tenantA)
	require.NoError(t, err)
	_, err = svc.Validate(ctx, inB.Value, &tenantB)
	require.NoError(t, err)

	// A token never validates under another tenant.
	_, err = svc.Validate(ctx, inA.Value, &tenantB)
	require.ErrorIs(t, err, service.ErrTokenInvalid)
}

func TestValidateExpiresLazily(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tokens := repo.NewMemoryTokens()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := service.NewTokenService(tokens).WithClock(clock)

	tenantID, userID := uuid.New(), uuid.New()
	tok, err := svc.Issue(ctx, tenantID, userID, nil, "")
	require.NoError(t, err)
	require.Equal(t, now.Add(service.TokenTTL), tok.ExpiresAt)

	// Just inside the window.
	now = tok.ExpiresAt.Add(-time.Second)
	_, err = svc.Validate(ctx, tok.Value, &tenantID)
	require.NoError(t, err)

	// At the boundary the token is no longer valid, and the row is
	// deactivated so later checks fail without a clock.
	now = tok.ExpiresAt
	_, err = svc.Validate(ctx, tok.Value, &tenantID)
	require.ErrorIs(t, err, service.ErrTokenInvalid)
	require.Equal(t, 0, tokens.ActiveCount(userID, tenantID))
}

func TestRevokeUnknownToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := service.NewTokenService(repo.NewMemoryTokens())

	tenantID := uuid.New()
	err := svc.Revoke(ctx, "no-such-token", &tenantID)
	require.ErrorIs(t, err, service.ErrTokenInvalid)
}

func TestSweepExpiredCountsOnlyExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tokens := repo.NewMemoryTokens()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	svc := service.NewTokenService(tokens).WithClock(clock)

	tenantID := uuid.New()
	stale, err := svc.Issue(ctx, tenantID, uuid.New(), nil, "")
	require.NoError(t, err)

	now = stale.ExpiresAt.Add(time.Hour)
	fresh, err := svc.Issue(ctx, tenantID, uuid.New(), nil, "")
	require.NoError(t, err)

	n, err := svc.SweepExpired(ctx, &tenantID)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, err = svc.Validate(ctx, fresh.Value, &tenantID)
	require.NoError(t, err)

	// Sweep is idempotent.
	n, err = svc.SweepExpired(ctx, &tenantID)
	require.NoError(t, err)
	require.Zero(t, n)
}
