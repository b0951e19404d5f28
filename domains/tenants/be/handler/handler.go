package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medikube/platform/domains/tenants/be/service"
	"github.com/medikube/platform/platform/go/httpapi"
	"github.com/medikube/platform/platform/go/tenant"
)

// Handler exposes the tenant registry over HTTP.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the registry routes. The caller applies admin guards.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tenants", h.List)
	r.Post("/tenants", h.Create)
	r.Delete("/tenants/{tenantID}", h.Deactivate)
}

type tenantResponse struct {
	TenantID string  `json:"tenantId"`
	Name     string  `json:"name"`
	Domain   *string `json:"domain"`
	IsActive bool    `json:"isActive"`
}

func toResponse(t service.Tenant) tenantResponse {
	return tenantResponse{
		TenantID: t.ID.String(),
		Name:     t.Name,
		Domain:   t.Domain,
		IsActive: t.IsActive,
	}
}

// List implements GET /tenants.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.svc.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		items = append(items, toResponse(t))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Create implements POST /tenants.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name   string  `json:"name"`
		Domain *string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid request body")
		return
	}

	t, err := h.svc.Create(r.Context(), service.CreateInput{Name: body.Name, Domain: body.Domain})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, toResponse(t))
}

// Deactivate implements DELETE /tenants/{tenantID}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid tenant id")
		return
	}

	if err := h.svc.Deactivate(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Current implements GET /tenants/current, echoing the resolved workspace.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
		return
	}
	domain := &space.Domain
	if space.Domain == "" {
		domain = nil
	}
	httpapi.WriteJSON(w, http.StatusOK, tenantResponse{
		TenantID: space.TenantID.String(),
		Name:     space.Name,
		Domain:   domain,
		IsActive: true,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		httpapi.WriteValidation(w, vErr.Fields)
	case errors.Is(err, service.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeNotFound, "tenant not found")
	case errors.Is(err, service.ErrConflict):
		httpapi.WriteError(w, http.StatusConflict, httpapi.CodeConflict, "tenant already exists")
	default:
		h.logger.Error("tenants handler failure", zap.String("path", r.URL.Path), zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "internal error")
	}
}
