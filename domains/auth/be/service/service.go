package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRepository abstracts persistence for users, profiles and roles.
type UserRepository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	DeactivateUser(ctx context.Context, id uuid.UUID) error

	CreateProfile(ctx context.Context, p Profile, roleID *uuid.UUID) (Profile, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error)
	UpdateProfileFields(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (Profile, error)
	SetProfileRole(ctx context.Context, userID, roleID uuid.UUID) error
	GetOrCreateRole(ctx context.Context, tenantID uuid.UUID, name RoleName, description string) (Role, error)
}

// AccountDirectory is the slice of the ledger the auth flows need: account
// provisioning at registration and login stamping.
type AccountDirectory interface {
	CreateAccount(ctx context.Context, tenantID, userID uuid.UUID, verificationToken string) (AccountRef, error)
	GetAccountByUser(ctx context.Context, userID uuid.UUID) (AccountRef, error)
	StampLogin(ctx context.Context, userID uuid.UUID, ip *string, at time.Time) error
}

// Service orchestrates credential checks, token lifecycle and user
// provisioning within a tenant.
type Service struct {
	users    UserRepository
	tokens   *TokenService
	accounts AccountDirectory
	hasher   PasswordHasher
	now      func() time.Time
}

// New constructs a Service with required dependencies.
func New(users UserRepository, tokens *TokenService, accounts AccountDirectory, hasher PasswordHasher) *Service {
	if users == nil {
		panic("user repository is required")
	}
	if tokens == nil {
		panic("token service is required")
	}
	if accounts == nil {
		panic("account directory is required")
	}
	if hasher == nil {
		panic("password hasher is required")
	}
	return &Service{users: users, tokens: tokens, accounts: accounts, hasher: hasher, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Tokens exposes the underlying token service for guards and maintenance.
func (s *Service) Tokens() *TokenService {
	return s.tokens
}

// Authenticate verifies a username-or-email plus password pair. Every
// failure path returns ErrInvalidCredentials; a bcrypt comparison runs even
// when the user is missing so response timing does not leak existence.
func (s *Service) Authenticate(ctx context.Context, login, password string) (User, error) {
	login = strings.TrimSpace(login)

	user, err := s.users.GetUserByUsername(ctx, login)
	if errors.Is(err, ErrNotFound) && strings.Contains(login, "@") {
		user, err = s.users.GetUserByEmail(ctx, strings.ToLower(login))
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.hasher.Verify(decoyHash, password)
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// decoyHash is a throwaway bcrypt hash compared against when the user does
// not exist, keeping the failure path cost-constant.
const decoyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Login authenticates, checks tenant membership and issues a session token
// bound to the given tenant. A user whose profile belongs to another tenant
// is rejected before any token exists.
func (s *Service) Login(ctx context.Context, tenantID uuid.UUID, login, password string, ip *string, userAgent string) (Session, error) {
	user, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return Session{}, err
	}

	if err := s.checkMembership(ctx, user.ID, tenantID); err != nil {
		return Session{}, err
	}

	token, err := s.tokens.Issue(ctx, tenantID, user.ID, ip, userAgent)
	if err != nil {
		return Session{}, err
	}

	if err := s.accounts.StampLogin(ctx, user.ID, ip, s.now().UTC()); err != nil {
		return Session{}, err
	}

	summary, err := s.Summary(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}

	return Session{Token: token.Value, ExpiresAt: token.ExpiresAt, User: summary}, nil
}

// Refresh exchanges a valid token for a fresh one; the old token is
// superseded atomically by the issue.
func (s *Service) Refresh(ctx context.Context, tenantID uuid.UUID, value string, ip *string, userAgent string) (Session, error) {
	tok, err := s.tokens.Validate(ctx, value, &tenantID)
	if err != nil {
		return Session{}, err
	}

	user, err := s.users.GetUser(ctx, tok.UserID)
	if err != nil || !user.IsActive {
		return Session{}, ErrTokenInvalid
	}

	if err := s.checkMembership(ctx, tok.UserID, tenantID); err != nil {
		return Session{}, err
	}

	fresh, err := s.tokens.Issue(ctx, tenantID, tok.UserID, ip, userAgent)
	if err != nil {
		return Session{}, err
	}

	summary, err := s.Summary(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}

	return Session{Token: fresh.Value, ExpiresAt: fresh.ExpiresAt, User: summary}, nil
}

// checkMembership verifies the user's profile belongs to the acting tenant.
// A missing profile fails the same way as a foreign one.
func (s *Service) checkMembership(ctx context.Context, userID, tenantID uuid.UUID) error {
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrTenantMismatch
		}
		return err
	}
	if profile.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}

// Logout revokes the presented token within the tenant.
func (s *Service) Logout(ctx context.Context, tenantID uuid.UUID, value string) error {
	return s.tokens.Revoke(ctx, value, &tenantID)
}

// ResolveToken validates a bearer value and loads the caller behind it.
// Deactivated users fail exactly like bad tokens.
func (s *Service) ResolveToken(ctx context.Context, tenantID uuid.UUID, value string) (Principal, error) {
	tok, err := s.tokens.Validate(ctx, value, &tenantID)
	if err != nil {
		return Principal{}, err
	}

	user, err := s.users.GetUser(ctx, tok.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrTokenInvalid
		}
		return Principal{}, err
	}
	if !user.IsActive {
		return Principal{}, ErrTokenInvalid
	}

	profile, err := s.users.GetProfile(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrTokenInvalid
		}
		return Principal{}, err
	}

	return Principal{User: user, Profile: profile, Token: tok}, nil
}

// Authorize checks that the caller's profile belongs to the tenant and holds
// the required capability. The tenant check runs first so a cross-tenant
// token is reported as a mismatch, not as a role failure.
func Authorize(p Profile, tenantID uuid.UUID, cap Capability) error {
	if p.TenantID != tenantID {
		return ErrTenantMismatch
	}
	if p.Role == nil {
		return ErrForbidden
	}

	switch cap {
	case CapabilityAdmin:
		if *p.Role == RoleAdmin {
			return nil
		}
	case CapabilityExpert:
		if *p.Role == RoleExpert {
			return nil
		}
	}
	return ErrForbidden
}

// RegisterInput is the payload required to create a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
	Address  string
	Bio      string
}

// Register creates a user and provisions its tenant profile and ledger
// account. The default role is user; promotion happens via ChangeRole.
func (s *Service) Register(ctx context.Context, tenantID uuid.UUID, input RegisterInput) (UserSummary, error) {
	fieldErrors := FieldErrors{}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		fieldErrors.add("username", "username is required")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		fieldErrors.add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		fieldErrors.add("email", "email must contain '@'")
	}

	if len(input.Password) < 8 {
		fieldErrors.add("password", "password must be at least 8 characters")
	}

	if len(fieldErrors) > 0 {
		return UserSummary{}, &ValidationError{Fields: fieldErrors}
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return UserSummary{}, err
	}

	user, err := s.users.CreateUser(ctx, User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		return UserSummary{}, err
	}

	if err := s.ProvisionNewUser(ctx, tenantID, user.ID, ProfilePatch{
		Phone:   &input.Phone,
		Address: &input.Address,
		Bio:     &input.Bio,
	}); err != nil {
		return UserSummary{}, err
	}

	return s.Summary(ctx, user.ID)
}

// ProvisionNewUser attaches the tenant profile with the default role and
// creates the ledger account with a fresh verification token. Called
// explicitly by Register and by the bootstrap CLI.
func (s *Service) ProvisionNewUser(ctx context.Context, tenantID, userID uuid.UUID, contact ProfilePatch) error {
	role, err := s.users.GetOrCreateRole(ctx, tenantID, RoleUser, "Default role for registered users")
	if err != nil {
		return err
	}

	profile := Profile{
		UserID:   userID,
		TenantID: tenantID,
		IsActive: true,
	}
	if contact.Phone != nil {
		profile.Phone = *contact.Phone
	}
	if contact.Address != nil {
		profile.Address = *contact.Address
	}
	if contact.Bio != nil {
		profile.Bio = *contact.Bio
	}

	if _, err := s.users.CreateProfile(ctx, profile, &role.ID); err != nil {
		return err
	}

	_, err = s.accounts.CreateAccount(ctx, tenantID, userID, uuid.New().String())
	return err
}

// Summary assembles the user-facing profile view: identity, role flags and
// ledger state.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (UserSummary, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return UserSummary{}, err
	}

	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return UserSummary{}, err
	}

	summary := UserSummary{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     profile.Role,
		Phone:    profile.Phone,
		Address:  profile.Address,
		Bio:      profile.Bio,
	}
	if profile.Role != nil {
		summary.IsAdmin = *profile.Role == RoleAdmin
		summary.IsExpert = *profile.Role == RoleExpert
	}

	account, err := s.accounts.GetAccountByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return UserSummary{}, err
		}
		return summary, nil
	}
	summary.AccountNumber = account.AccountNumber
	summary.Balance = account.Balance
	summary.IsVerified = account.IsVerified

	return summary, nil
}

// ChangeRole reassigns the user's tenant-scoped role. The target profile
// must belong to the given tenant.
func (s *Service) ChangeRole(ctx context.Context, tenantID, userID uuid.UUID, role RoleName) error {
	if _, err := ParseRoleName(string(role)); err != nil {
		return newValidationError(map[string]string{"role": err.Error()})
	}

	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.TenantID != tenantID {
		return ErrTenantMismatch
	}

	target, err := s.users.GetOrCreateRole(ctx, tenantID, role, "")
	if err != nil {
		return err
	}
	return s.users.SetProfileRole(ctx, userID, target.ID)
}

// UpdateProfile applies the allow-listed contact fields. Role, tenant and
// activation state are never writable through this path.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, patch ProfilePatch) (Profile, error) {
	if patch.Phone == nil && patch.Address == nil && patch.Bio == nil {
		return Profile{}, newValidationError(map[string]string{"payload": "at least one field must be provided"})
	}
	return s.users.UpdateProfileFields(ctx, userID, patch)
}

// Deactivate disables the user and revokes its active tokens implicitly:
// token resolution rejects inactive holders.
func (s *Service) Deactivate(ctx context.Context, tenantID, userID uuid.UUID) error {
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return s.users.DeactivateUser(ctx, userID)
}
