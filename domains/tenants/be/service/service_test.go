package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/medikube/platform/domains/tenants/be/repo"
	"github.com/medikube/platform/domains/tenants/be/service"
)

func newService(t *testing.T) *service.Service {
	t.Helper()
	return service.New(repo.NewMemoryRepository())
}

func mustCreate(t *testing.T, svc *service.Service, name string, domain *string) service.Tenant {
	t.Helper()
	created, err := svc.Create(context.Background(), service.CreateInput{Name: name, Domain: domain})
	require.NoError(t, err)
	return created
}

func strPtr(s string) *string { return &s }

func TestResolvePrefersExplicitID(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	byID := mustCreate(t, svc, "Acme", strPtr("acme.example.com"))
	byName := mustCreate(t, svc, "Beta", nil)

	name := byName.Name
	resolved, err := svc.Resolve(ctx, service.Hints{
		TenantID:   &byID.ID,
		TenantName: &name,
		Host:       "acme.example.com:8443",
	})
	require.NoError(t, err)
	require.Equal(t, byID.ID, resolved.ID)
}

func TestResolveFallsThroughToName(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	byName := mustCreate(t, svc, "Beta", nil)

	unknown := uuid.New()
	name := byName.Name
	resolved, err := svc.Resolve(ctx, service.Hints{
		TenantID:   &unknown,
		TenantName: &name,
	})
	require.NoError(t, err)
	require.Equal(t, byName.ID, resolved.ID)
}

func TestResolveMatchesHostDomainWithoutPort(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	byDomain := mustCreate(t, svc, "Acme", strPtr("acme.example.com"))

	resolved, err := svc.Resolve(ctx, service.Hints{Host: "acme.example.com:9000"})
	require.NoError(t, err)
	require.Equal(t, byDomain.ID, resolved.ID)
}

func TestResolveDefaultsWhenNothingMatches(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	resolved, err := svc.Resolve(ctx, service.Hints{Host: "unknown.example.com"})
	require.NoError(t, err)
	require.Equal(t, service.DefaultTenantName, resolved.Name)
	require.NotNil(t, resolved.Domain)
	require.Equal(t, service.DefaultTenantDomain, *resolved.Domain)

	// A second resolution reuses the same default tenant row.
	again, err := svc.Resolve(ctx, service.Hints{})
	require.NoError(t, err)
	require.Equal(t, resolved.ID, again.ID)
}

func TestResolveSkipsDeactivatedTenant(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	gone := mustCreate(t, svc, "Gone", strPtr("gone.example.com"))
	require.NoError(t, svc.Deactivate(ctx, gone.ID))

	resolved, err := svc.Resolve(ctx, service.Hints{TenantID: &gone.ID, Host: "gone.example.com"})
	require.NoError(t, err)
	require.Equal(t, service.DefaultTenantName, resolved.Name)
}

func TestGetOrCreateDefaultConcurrent(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	const workers = 16
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tn, err := svc.GetOrCreateDefault(ctx)
			ids[i], errs[i] = tn.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, service.CreateInput{Name: "  "})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "name")

	// Duplicate names are rejected.
	mustCreate(t, svc, "Acme", nil)
	_, err = svc.Create(ctx, service.CreateInput{Name: "Acme"})
	require.ErrorIs(t, err, service.ErrConflict)
}
