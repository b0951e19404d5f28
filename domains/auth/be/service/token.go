package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// TokenRepository abstracts persistence for bearer tokens.
type TokenRepository interface {
	// IssueExclusive atomically deactivates the holder's active tokens for
	// the tenant and inserts the new one.
	IssueExclusive(ctx context.Context, t Token) (Token, error)
	GetActive(ctx context.Context, value string, tenantID *uuid.UUID) (Token, error)
	Deactivate(ctx context.Context, tokenID uuid.UUID) error
	Revoke(ctx context.Context, value string, tenantID *uuid.UUID) (bool, error)
	SweepExpired(ctx context.Context, tenantID *uuid.UUID, now time.Time) (int64, error)
}

// TokenService issues and validates opaque bearer tokens. A user holds at
// most one active token per tenant; issuing supersedes the previous one.
type TokenService struct {
	repo TokenRepository
	now  func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(repo TokenRepository) *TokenService {
	if repo == nil {
		panic("token repository is required")
	}
	return &TokenService{repo: repo, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// Issue creates a fresh token for the user within the tenant, superseding
// any active one.
func (s *TokenService) Issue(ctx context.Context, tenantID, userID uuid.UUID, ip *string, userAgent string) (Token, error) {
	now := s.now().UTC()
	value, err := generateTokenValue(userID, now)
	if err != nil {
		return Token{}, err
	}

	return s.repo.IssueExclusive(ctx, Token{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Value:     value,
		IsActive:  true,
		ExpiresAt: now.Add(TokenTTL),
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// Validate resolves an opaque token value to its active, unexpired row.
// Expired tokens are deactivated on sight and reported invalid; the bulk
// sweep is not needed for correctness on the request path.
func (s *TokenService) Validate(ctx context.Context, value string, tenantID *uuid.UUID) (Token, error) {
	tok, err := s.repo.GetActive(ctx, value, tenantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Token{}, ErrTokenInvalid
		}
		return Token{}, err
	}

	if !tok.ExpiresAt.After(s.now()) {
		if err := s.repo.Deactivate(ctx, tok.ID); err != nil {
			return Token{}, err
		}
		return Token{}, ErrTokenInvalid
	}
	return tok, nil
}

// Revoke deactivates the matching active token. Reports ErrTokenInvalid when
// no such token exists.
func (s *TokenService) Revoke(ctx context.Context, value string, tenantID *uuid.UUID) error {
	found, err := s.repo.Revoke(ctx, value, tenantID)
	if err != nil {
		return err
	}
	if !found {
		return ErrTokenInvalid
	}
	return nil
}

// SweepExpired bulk-deactivates expired tokens, optionally scoped to one
// tenant, and returns how many rows were touched.
func (s *TokenService) SweepExpired(ctx context.Context, tenantID *uuid.UUID) (int64, error) {
	return s.repo.SweepExpired(ctx, tenantID, s.now())
}

// generateTokenValue derives an unguessable opaque value from the holder,
// the issue instant and fresh randomness. The value itself carries no
// claims; all state lives server-side.
func generateTokenValue(userID uuid.UUID, now time.Time) (string, error) {
	var nonce [16]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("token nonce: %w", err)
	}

	h := sha256.New()
	h.Write(userID[:])
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.UnixNano()))
	h.Write(ts[:])
	h.Write(nonce[:])

	return hex.EncodeToString(h.Sum(nil)), nil
}
