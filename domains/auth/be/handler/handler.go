package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medikube/platform/domains/auth/be/service"
	"github.com/medikube/platform/platform/go/httpapi"
	"github.com/medikube/platform/platform/go/metrics"
	"github.com/medikube/platform/platform/go/tenant"
)

// Handler exposes session and account-holder management over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("auth service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// RegisterPublic mounts the routes that do not require a bearer token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
}

// RegisterProtected mounts the routes behind the token guard.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/auth/refresh", h.Refresh)
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)
	r.Patch("/auth/me/profile", h.UpdateProfile)
}

// RegisterAdmin mounts the admin-only routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/users/{userID}/role", h.ChangeRole)
	r.Delete("/users/{userID}", h.Deactivate)
}

// Register implements POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
		return
	}

	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Address  string `json:"address"`
		Bio      string `json:"bio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid request body")
		return
	}

	summary, err := h.svc.Register(r.Context(), space.TenantID, service.RegisterInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		Phone:    body.Phone,
		Address:  body.Address,
		Bio:      body.Bio,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, summary)
}

// Login implements POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
		return
	}

	var body struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid request body")
		return
	}

	ip := clientIP(r)
	session, err := h.svc.Login(r.Context(), space.TenantID, body.Login, body.Password, ip, r.UserAgent())
	if err != nil {
		metrics.AuthLoginsTotal.WithLabelValues("failure").Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.AuthLoginsTotal.WithLabelValues("success").Inc()
	metrics.TokensIssuedTotal.WithLabelValues("login").Inc()
	httpapi.WriteJSON(w, http.StatusOK, session)
}

// Refresh implements POST /auth/refresh. The caller presents its current
// token; a fresh one supersedes it.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
		return
	}

	value, ok := BearerToken(r)
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "missing bearer token")
		return
	}

	ip := clientIP(r)
	session, err := h.svc.Refresh(r.Context(), space.TenantID, value, ip, r.UserAgent())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()
	httpapi.WriteJSON(w, http.StatusOK, session)
}

// Logout implements POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
		return
	}

	value, ok := BearerToken(r)
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "missing bearer token")
		return
	}

	if err := h.svc.Logout(r.Context(), space.TenantID, value); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me implements GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := service.PrincipalFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "not authenticated")
		return
	}

	summary, err := h.svc.Summary(r.Context(), principal.User.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, summary)
}

// UpdateProfile implements PATCH /auth/me/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := service.PrincipalFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "not authenticated")
		return
	}

	var body struct {
		Phone   *string `json:"phone"`
		Address *string `json:"address"`
		Bio     *string `json:"bio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid request body")
		return
	}

	if _, err := h.svc.UpdateProfile(r.Context(), principal.User.ID, service.ProfilePatch{
		Phone:   body.Phone,
		Address: body.Address,
		Bio:     body.Bio,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.svc.Summary(r.Context(), principal.User.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, summary)
}

// ChangeRole implements PUT /users/{userID}/role.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid user id")
		return
	}

	var body struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid request body")
		return
	}

	if err := h.svc.ChangeRole(r.Context(), space.TenantID, userID, service.RoleName(body.Role)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Deactivate implements DELETE /users/{userID}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid user id")
		return
	}

	if err := h.svc.Deactivate(r.Context(), space.TenantID, userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BearerToken extracts the opaque value from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(raw) <= len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(raw[len(prefix):]), true
}

func clientIP(r *http.Request) *string {
	// XFF can be a list: client, proxy1, proxy2...
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip != "" {
			return &ip
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" {
		return &xr
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i+1:], ":") {
		host = host[:i]
	}
	host = strings.Trim(host, "[]")
	if host == "" {
		return nil
	}
	return &host
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		httpapi.WriteValidation(w, vErr.Fields)
	case errors.Is(err, service.ErrInvalidCredentials):
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeInvalidCredentials, "invalid credentials")
	case errors.Is(err, service.ErrTokenInvalid):
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "token invalid or expired")
	case errors.Is(err, service.ErrTenantMismatch):
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTenantMismatch, "token does not belong to this tenant")
	case errors.Is(err, service.ErrForbidden):
		httpapi.WriteError(w, http.StatusForbidden, httpapi.CodeForbidden, "insufficient role")
	case errors.Is(err, service.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeNotFound, "user not found")
	case errors.Is(err, service.ErrConflict):
		httpapi.WriteError(w, http.StatusConflict, httpapi.CodeConflict, "username or email already taken")
	default:
		h.logger.Error("auth handler failure", zap.String("path", r.URL.Path), zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "internal error")
	}
}
