package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/medikube/platform/domains/auth/be/repo"
	"github.com/medikube/platform/domains/auth/be/service"
)

// plainHasher keeps service tests fast; bcrypt behavior is covered by the
// hasher's own test.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Verify(hash, password string) bool    { return hash == "plain:"+password }

type fixture struct {
	svc    *service.Service
	users  *repo.MemoryUsers
	tokens *repo.MemoryTokens
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	users := repo.NewMemoryUsers()
	tokens := repo.NewMemoryTokens()
	svc := service.New(users, service.NewTokenService(tokens), repo.NewMemoryAccounts(), plainHasher{})
	return fixture{svc: svc, users: users, tokens: tokens}
}

func register(t *testing.T, f fixture, tenantID uuid.UUID, username string) service.UserSummary {
	t.Helper()
	summary, err := f.svc.Register(context.Background(), tenantID, service.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return summary
}

func TestRegisterProvisionsProfileAndAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	tenantID := uuid.New()

	summary := register(t, f, tenantID, "alice")

	require.Equal(t, "alice", summary.Username)
	require.NotNil(t, summary.Role)
	require.Equal(t, service.RoleUser, *summary.Role)
	require.False(t, summary.IsAdmin)
	require.False(t, summary.IsExpert)
	require.True(t, strings.HasPrefix(summary.AccountNumber, "ACC"))
	require.Len(t, summary.AccountNumber, 11)
	require.True(t, summary.Balance.IsZero())
	require.False(t, summary.IsVerified)

	profile, err := f.users.GetProfile(context.Background(), summary.UserID)
	require.NoError(t, err)
	require.Equal(t, tenantID, profile.TenantID)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, uuid.New(), service.RegisterInput{
		Username: "",
		Email:    "not-an-email",
		Password: "short",
	})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "username")
	require.Contains(t, vErr.Fields, "email")
	require.Contains(t, vErr.Fields, "password")

	// Duplicate usernames are rejected.
	register(t, f, uuid.New(), "bob")
	_, err = f.svc.Register(ctx, uuid.New(), service.RegisterInput{
		Username: "bob",
		Email:    "other@example.com",
		Password: "correct horse",
	})
	require.ErrorIs(t, err, service.ErrConflict)
}

func TestAuthenticateFailuresAreUniform(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	summary := register(t, f, tenantID, "carol")

	// Wrong password.
	_, err := f.svc.Authenticate(ctx, "carol", "wrong")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	// Unknown user.
	_, err = f.svc.Authenticate(ctx, "nobody", "correct horse")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)

	// Deactivated user with the right password.
	require.NoError(t, f.svc.Deactivate(ctx, tenantID, summary.UserID))
	_, err = f.svc.Authenticate(ctx, "carol", "correct horse")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthenticateByEmail(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	register(t, f, uuid.New(), "dave")

	user, err := f.svc.Authenticate(ctx, "dave@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "dave", user.Username)
}

func TestLoginLogoutRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	register(t, f, tenantID, "erin")

	session, err := f.svc.Login(ctx, tenantID, "erin", "correct horse", nil, "test-agent")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, "erin", session.User.Username)

	principal, err := f.svc.ResolveToken(ctx, tenantID, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.User.UserID, principal.User.ID)

	require.NoError(t, f.svc.Logout(ctx, tenantID, session.Token))

	_, err = f.svc.ResolveToken(ctx, tenantID, session.Token)
	require.ErrorIs(t, err, service.ErrTokenInvalid)

	// Logging out twice fails: the token is already gone.
	err = f.svc.Logout(ctx, tenantID, session.Token)
	require.ErrorIs(t, err, service.ErrTokenInvalid)
}

func TestLoginRequiresTenantMembership(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	homeTenant := uuid.New()
	otherTenant := uuid.New()

	summary := register(t, f, homeTenant, "judy")

	// Valid credentials are not enough: the profile lives in another tenant.
	_, err := f.svc.Login(ctx, otherTenant, "judy", "correct horse", nil, "")
	require.ErrorIs(t, err, service.ErrTenantMismatch)

	// The rejected attempt must not have minted a token anywhere.
	require.Equal(t, 0, f.tokens.ActiveCount(summary.UserID, otherTenant))
	require.Equal(t, 0, f.tokens.ActiveCount(summary.UserID, homeTenant))

	// The home tenant still works.
	_, err = f.svc.Login(ctx, homeTenant, "judy", "correct horse", nil, "")
	require.NoError(t, err)
}

func TestRefreshRequiresTenantMembership(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	homeTenant := uuid.New()
	otherTenant := uuid.New()

	summary := register(t, f, homeTenant, "kate")
	session, err := f.svc.Login(ctx, homeTenant, "kate", "correct horse", nil, "")
	require.NoError(t, err)

	// A home-tenant token presented to another tenant never matches there.
	_, err = f.svc.Refresh(ctx, otherTenant, session.Token, nil, "")
	require.ErrorIs(t, err, service.ErrTokenInvalid)
	require.Equal(t, 0, f.tokens.ActiveCount(summary.UserID, otherTenant))

	// The original token survives the failed attempt.
	_, err = f.svc.ResolveToken(ctx, homeTenant, session.Token)
	require.NoError(t, err)

	// Even a token minted directly under the foreign tenant cannot refresh
	// there: the profile's tenant wins.
	tok, err := f.svc.Tokens().Issue(ctx, otherTenant, summary.UserID, nil, "")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, otherTenant, tok.Value, nil, "")
	require.ErrorIs(t, err, service.ErrTenantMismatch)
}

func TestRefreshSupersedesOldToken(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	register(t, f, tenantID, "frank")
	session, err := f.svc.Login(ctx, tenantID, "frank", "correct horse", nil, "")
	require.NoError(t, err)

	fresh, err := f.svc.Refresh(ctx, tenantID, session.Token, nil, "")
	require.NoError(t, err)
	require.NotEqual(t, session.Token, fresh.Token)

	_, err = f.svc.ResolveToken(ctx, tenantID, session.Token)
	require.ErrorIs(t, err, service.ErrTokenInvalid)
	_, err = f.svc.ResolveToken(ctx, tenantID, fresh.Token)
	require.NoError(t, err)

	require.Equal(t, 1, f.tokens.ActiveCount(session.User.UserID, tenantID))
}

func TestDeactivateInvalidatesSessions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	summary := register(t, f, tenantID, "grace")
	session, err := f.svc.Login(ctx, tenantID, "grace", "correct horse", nil, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Deactivate(ctx, tenantID, summary.UserID))

	_, err = f.svc.ResolveToken(ctx, tenantID, session.Token)
	require.ErrorIs(t, err, service.ErrTokenInvalid)
}

func TestChangeRolePromotes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	summary := register(t, f, tenantID, "heidi")

	require.NoError(t, f.svc.ChangeRole(ctx, tenantID, summary.UserID, service.RoleAdmin))

	updated, err := f.svc.Summary(ctx, summary.UserID)
	require.NoError(t, err)
	require.Equal(t, service.RoleAdmin, *updated.Role)
	require.True(t, updated.IsAdmin)
	require.False(t, updated.IsExpert)

	// Unknown role names are rejected before touching the profile.
	err = f.svc.ChangeRole(ctx, tenantID, summary.UserID, service.RoleName("owner"))
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)

	// A profile in another tenant cannot be promoted from here.
	err = f.svc.ChangeRole(ctx, uuid.New(), summary.UserID, service.RoleUser)
	require.ErrorIs(t, err, service.ErrTenantMismatch)
}

func TestUpdateProfileAllowList(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	summary := register(t, f, tenantID, "ivan")

	phone := "+34 600 000 000"
	_, err := f.svc.UpdateProfile(ctx, summary.UserID, service.ProfilePatch{Phone: &phone})
	require.NoError(t, err)

	profile, err := f.users.GetProfile(ctx, summary.UserID)
	require.NoError(t, err)
	require.Equal(t, phone, profile.Phone)
	require.Equal(t, service.RoleUser, *profile.Role)

	// An empty patch is a validation error.
	_, err = f.svc.UpdateProfile(ctx, summary.UserID, service.ProfilePatch{})
	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestAuthorizeMatrix(t *testing.T) {
	t.Parallel()
	tenantID := uuid.New()

	role := func(name service.RoleName) *service.RoleName { return &name }
	profile := func(r *service.RoleName, tid uuid.UUID) service.Profile {
		return service.Profile{UserID: uuid.New(), TenantID: tid, Role: r, IsActive: true}
	}

	cases := []struct {
		name    string
		profile service.Profile
		cap     service.Capability
		want    error
	}{
		{"admin has admin", profile(role(service.RoleAdmin), tenantID), service.CapabilityAdmin, nil},
		{"admin lacks expert", profile(role(service.RoleAdmin), tenantID), service.CapabilityExpert, service.ErrForbidden},
		{"expert lacks admin", profile(role(service.RoleExpert), tenantID), service.CapabilityAdmin, service.ErrForbidden},
		{"expert has expert", profile(role(service.RoleExpert), tenantID), service.CapabilityExpert, nil},
		{"user lacks admin", profile(role(service.RoleUser), tenantID), service.CapabilityAdmin, service.ErrForbidden},
		{"user lacks expert", profile(role(service.RoleUser), tenantID), service.CapabilityExpert, service.ErrForbidden},
		{"no role lacks everything", profile(nil, tenantID), service.CapabilityExpert, service.ErrForbidden},
		{"wrong tenant beats role check", profile(role(service.RoleAdmin), uuid.New()), service.CapabilityAdmin, service.ErrTenantMismatch},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := service.Authorize(tc.profile, tenantID, tc.cap)
			if tc.want == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestBcryptHasherRoundTrip(t *testing.T) {
	t.Parallel()
	h := service.NewBcryptHasher()

	hash, err := h.Hash("s3cret-passphrase")
	require.NoError(t, err)
	require.True(t, h.Verify(hash, "s3cret-passphrase"))
	require.False(t, h.Verify(hash, "other"))
}
