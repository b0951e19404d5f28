package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medikube/platform/platform/go/tenant"
)

// Domain sentinel errors.
var (
	ErrNotFound = errors.New("tenant not found")
	ErrConflict = errors.New("tenant already exists")
)

// Default workspace used when a request carries no usable tenant hint.
const (
	DefaultTenantName   = "Default Tenant"
	DefaultTenantDomain = "default.local"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Tenant represents the domain view of a workspace.
type Tenant struct {
	ID        uuid.UUID
	Name      string
	Domain    *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Space converts the tenant into the request-scoped value carried in context.
func (t Tenant) Space() tenant.Space {
	domain := ""
	if t.Domain != nil {
		domain = *t.Domain
	}
	return tenant.Space{
		TenantID: t.ID,
		Name:     t.Name,
		Domain:   domain,
	}
}

// CreateInput represents the payload required to register a tenant.
type CreateInput struct {
	Name   string
	Domain *string
}

// Hints carries the identification material a request offers, in falling
// priority: explicit id, explicit name, then the request host.
type Hints struct {
	TenantID   *uuid.UUID
	TenantName *string
	Host       string
}

// Repository abstracts persistence for the tenant registry.
type Repository interface {
	Create(ctx context.Context, t Tenant) (Tenant, error)
	GetOrCreateByName(ctx context.Context, t Tenant) (Tenant, error)
	GetActive(ctx context.Context, id uuid.UUID) (Tenant, error)
	GetActiveByName(ctx context.Context, name string) (Tenant, error)
	GetActiveByDomain(ctx context.Context, domain string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// Service provides tenant registry and request resolution operations.
type Service struct {
	repo Repository
}

// New constructs a Service with required dependencies.
func New(repo Repository) *Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	return &Service{repo: repo}
}

// Resolve maps request hints to an active tenant. Each hint is tried in
// priority order; a hint that points at a missing or inactive tenant falls
// through to the next one rather than failing the request. When nothing
// matches, the default tenant is returned, created on first use.
func (s *Service) Resolve(ctx context.Context, hints Hints) (Tenant, error) {
	if hints.TenantID != nil && *hints.TenantID != uuid.Nil {
		t, err := s.repo.GetActive(ctx, *hints.TenantID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Tenant{}, err
		}
	}

	if hints.TenantName != nil {
		if name := strings.TrimSpace(*hints.TenantName); name != "" {
			t, err := s.repo.GetActiveByName(ctx, name)
			if err == nil {
				return t, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return Tenant{}, err
			}
		}
	}

	if host := tenant.HostWithoutPort(hints.Host); host != "" {
		t, err := s.repo.GetActiveByDomain(ctx, host)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Tenant{}, err
		}
	}

	return s.GetOrCreateDefault(ctx)
}

// GetOrCreateDefault returns the default tenant, inserting it on first use.
// Concurrent first-callers converge on the single row the repository keeps
// under the unique name constraint.
func (s *Service) GetOrCreateDefault(ctx context.Context) (Tenant, error) {
	domain := DefaultTenantDomain
	return s.repo.GetOrCreateByName(ctx, Tenant{
		ID:       uuid.New(),
		Name:     DefaultTenantName,
		Domain:   &domain,
		IsActive: true,
	})
}

// Create registers a new tenant.
func (s *Service) Create(ctx context.Context, input CreateInput) (Tenant, error) {
	fieldErrors := FieldErrors{}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		fieldErrors.add("name", "name is required")
	}

	var domain *string
	if input.Domain != nil {
		trimmed := strings.ToLower(tenant.HostWithoutPort(*input.Domain))
		if trimmed == "" {
			fieldErrors.add("domain", "domain cannot be empty")
		} else {
			domain = &trimmed
		}
	}

	if len(fieldErrors) > 0 {
		return Tenant{}, &ValidationError{Fields: fieldErrors}
	}

	return s.repo.Create(ctx, Tenant{
		ID:       uuid.New(),
		Name:     name,
		Domain:   domain,
		IsActive: true,
	})
}

// Get returns an active tenant by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Tenant, error) {
	if id == uuid.Nil {
		return Tenant{}, ErrNotFound
	}
	return s.repo.GetActive(ctx, id)
}

// List returns every registered tenant, newest first.
func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	return s.repo.List(ctx)
}

// Deactivate soft-disables a tenant. Resolution stops matching it; rows and
// history are kept.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}
	return s.repo.Deactivate(ctx, id)
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
