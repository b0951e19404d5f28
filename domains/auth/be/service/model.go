package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoleName is the closed set of roles a profile can hold.
type RoleName string

const (
	RoleAdmin  RoleName = "admin"
	RoleExpert RoleName = "expert"
	RoleUser   RoleName = "user"
)

// ParseRoleName validates a stored or submitted role string.
func ParseRoleName(s string) (RoleName, error) {
	switch RoleName(s) {
	case RoleAdmin, RoleExpert, RoleUser:
		return RoleName(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Capability names a permission level a caller can be required to hold.
type Capability string

const (
	// CapabilityAdmin is satisfied only by the admin role.
	CapabilityAdmin Capability = "admin"
	// CapabilityExpert is satisfied only by the expert role; admin does
	// not imply it.
	CapabilityExpert Capability = "expert"
)

// User represents the domain view of an account holder's identity.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile binds a user to a tenant and carries the tenant-scoped role plus
// contact details. Role is nil when the profile has no role assigned.
type Profile struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     *RoleName
	Phone    string
	Address  string
	Bio      string
	IsActive bool
}

// ProfilePatch carries the allow-listed optional profile fields; nil fields
// are left untouched.
type ProfilePatch struct {
	Phone   *string
	Address *string
	Bio     *string
}

// Role is a tenant-scoped role row.
type Role struct {
	ID          uuid.UUID
	TenantID    uuid.UUID
	Name        RoleName
	Description string
}

// Token is an opaque bearer credential bound to a user within a tenant.
type Token struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    uuid.UUID
	Value     string
	IsActive  bool
	CreatedAt time.Time
	ExpiresAt time.Time
	IPAddress *string
	UserAgent string
}

// AccountRef is the slice of ledger state the auth flows surface.
type AccountRef struct {
	AccountID     int64
	AccountNumber string
	Balance       decimal.Decimal
	IsVerified    bool
}

// UserSummary is the profile payload returned after login and on /me.
type UserSummary struct {
	UserID        uuid.UUID       `json:"userId"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	Role          *RoleName       `json:"role"`
	IsAdmin       bool            `json:"isAdmin"`
	IsExpert      bool            `json:"isExpert"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	Bio           string          `json:"bio"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	IsVerified    bool            `json:"isVerified"`
}

// Session is the result of a successful login or refresh.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserSummary `json:"user"`
}

// Principal is the authenticated identity attached to a request context by
// the token guard.
type Principal struct {
	User    User
	Profile Profile
	Token   Token
}

type principalKey struct{}

// WithPrincipal returns a derived context carrying the authenticated caller.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext extracts the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
