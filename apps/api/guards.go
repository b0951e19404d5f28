package main

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	authhandler "github.com/medikube/platform/domains/auth/be/handler"
	authservice "github.com/medikube/platform/domains/auth/be/service"
	tenantsservice "github.com/medikube/platform/domains/tenants/be/service"
	"github.com/medikube/platform/platform/go/httpapi"
	"github.com/medikube/platform/platform/go/metrics"
	"github.com/medikube/platform/platform/go/tenant"
)

const (
	headerTenantID   = "X-Tenant-ID"
	headerTenantName = "X-Tenant-Name"
)

// withTenant resolves the request's tenant from headers or the host and
// stores the resulting Space in the context. Every API route runs behind it.
func withTenant(svc *tenantsservice.Service, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hints := tenantsservice.Hints{Host: r.Host}

			if raw := r.Header.Get(headerTenantID); raw != "" {
				if id, err := uuid.Parse(raw); err == nil {
					hints.TenantID = &id
				}
			}
			if name := r.Header.Get(headerTenantName); name != "" {
				hints.TenantName = &name
			}

			resolved, err := svc.Resolve(r.Context(), hints)
			if err != nil {
				logger.Error("tenant resolution failed", zap.String("host", r.Host), zap.Error(err))
				httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant resolution failed")
				return
			}

			ctx := tenant.WithSpace(r.Context(), resolved.Space())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireToken validates the bearer token against the resolved tenant and
// attaches the caller to the context.
func requireToken(svc *authservice.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			space, ok := tenant.FromContext(r.Context())
			if !ok {
				httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
				return
			}

			value, ok := authhandler.BearerToken(r)
			if !ok {
				metrics.TokenValidationsTotal.WithLabelValues("missing").Inc()
				httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "missing bearer token")
				return
			}

			principal, err := svc.ResolveToken(r.Context(), space.TenantID, value)
			if err != nil {
				metrics.TokenValidationsTotal.WithLabelValues("failure").Inc()
				writeGuardError(w, err)
				return
			}

			metrics.TokenValidationsTotal.WithLabelValues("success").Inc()
			ctx := authservice.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireCapability gates a route group on the caller's tenant-scoped role.
// Must run after requireToken.
func requireCapability(cap authservice.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			space, ok := tenant.FromContext(r.Context())
			if !ok {
				httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
				return
			}
			principal, ok := authservice.PrincipalFromContext(r.Context())
			if !ok {
				httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "not authenticated")
				return
			}

			if err := authservice.Authorize(principal.Profile, space.TenantID, cap); err != nil {
				writeGuardError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeGuardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authservice.ErrTokenInvalid):
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "token invalid or expired")
	case errors.Is(err, authservice.ErrTenantMismatch):
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTenantMismatch, "token does not belong to this tenant")
	case errors.Is(err, authservice.ErrForbidden):
		httpapi.WriteError(w, http.StatusForbidden, httpapi.CodeForbidden, "insufficient role")
	default:
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "internal error")
	}
}
