package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/medikube/platform/domains/accounts/be/service"
	authservice "github.com/medikube/platform/domains/auth/be/service"
	"github.com/medikube/platform/platform/go/httpapi"
	"github.com/medikube/platform/platform/go/metrics"
	"github.com/medikube/platform/platform/go/tenant"
)

// Handler exposes the ledger over HTTP. Every route requires a token; the
// guard puts the caller in the context before these run.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("accounts service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the caller-scoped ledger routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/account", h.Get)
	r.Post("/account/deposit", h.Deposit)
	r.Post("/account/withdraw", h.Withdraw)
	r.Post("/account/transfer", h.Transfer)
	r.Post("/account/verify", h.Verify)
}

// RegisterAdmin mounts the admin-only ledger routes.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/accounts", h.List)
	r.Post("/accounts/{accountID}/adjust", h.Adjust)
}

type accountResponse struct {
	AccountID     int64      `json:"accountId"`
	AccountNumber string     `json:"accountNumber"`
	Balance       string     `json:"balance"`
	IsVerified    bool       `json:"isVerified"`
	LastLoginIP   *string    `json:"lastLoginIp,omitempty"`
	LastLoginTime *time.Time `json:"lastLoginTime,omitempty"`
}

func toResponse(a service.Account) accountResponse {
	return accountResponse{
		AccountID:     a.ID,
		AccountNumber: a.AccountNumber,
		Balance:       a.Balance.StringFixed(2),
		IsVerified:    a.IsVerified,
		LastLoginIP:   a.LastLoginIP,
		LastLoginTime: a.LastLoginTime,
	}
}

// Get implements GET /account.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := authservice.PrincipalFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "not authenticated")
		return
	}

	account, err := h.svc.GetByUser(r.Context(), principal.User.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(account))
}

// Deposit implements POST /account/deposit.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.applyBalanceOp(w, r, "deposit", h.svc.Deposit)
}

// Withdraw implements POST /account/withdraw.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.applyBalanceOp(w, r, "withdraw", h.svc.Withdraw)
}

// Transfer implements POST /account/transfer.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	principal, ok := authservice.PrincipalFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "not authenticated")
		return
	}

	var body struct {
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid request body")
		return
	}

	amount, err := parseAmount(body.Amount)
	if err != nil {
		httpapi.WriteValidation(w, map[string][]string{"amount": {"amount must be a decimal number"}})
		return
	}

	account, err := h.svc.Transfer(r.Context(), principal.User.ID, body.Recipient, amount)
	if err != nil {
		metrics.LedgerOperationsTotal.WithLabelValues("transfer", "failure").Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.LedgerOperationsTotal.WithLabelValues("transfer", "success").Inc()
	httpapi.WriteJSON(w, http.StatusOK, toResponse(account))
}

// Verify implements POST /account/verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	principal, ok := authservice.PrincipalFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "not authenticated")
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid request body")
		return
	}

	account, err := h.svc.Verify(r.Context(), principal.User.ID, body.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toResponse(account))
}

// List implements GET /accounts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
		return
	}

	accounts, err := h.svc.ListByTenant(r.Context(), space.TenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		items = append(items, toResponse(a))
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Adjust implements POST /accounts/{accountID}/adjust.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	space, ok := tenant.FromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "tenant not resolved")
		return
	}

	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid account id")
		return
	}

	var body struct {
		Direction string `json:"direction"`
		Amount    string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid request body")
		return
	}

	amount, err := parseAmount(body.Amount)
	if err != nil {
		httpapi.WriteValidation(w, map[string][]string{"amount": {"amount must be a decimal number"}})
		return
	}

	account, err := h.svc.Adjust(r.Context(), space.TenantID, accountID, service.AdjustDirection(body.Direction), amount)
	if err != nil {
		metrics.LedgerOperationsTotal.WithLabelValues("adjust", "failure").Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.LedgerOperationsTotal.WithLabelValues("adjust", "success").Inc()
	httpapi.WriteJSON(w, http.StatusOK, toResponse(account))
}

type balanceOp func(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (service.Account, error)

func (h *Handler) applyBalanceOp(w http.ResponseWriter, r *http.Request, name string, op balanceOp) {
	principal, ok := authservice.PrincipalFromContext(r.Context())
	if !ok {
		httpapi.WriteError(w, http.StatusUnauthorized, httpapi.CodeTokenInvalid, "not authenticated")
		return
	}

	var body struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, httpapi.CodeValidationError, "invalid request body")
		return
	}

	amount, err := parseAmount(body.Amount)
	if err != nil {
		httpapi.WriteValidation(w, map[string][]string{"amount": {"amount must be a decimal number"}})
		return
	}

	account, err := op(r.Context(), principal.User.ID, amount)
	if err != nil {
		metrics.LedgerOperationsTotal.WithLabelValues(name, "failure").Inc()
		h.writeError(w, r, err)
		return
	}

	metrics.LedgerOperationsTotal.WithLabelValues(name, "success").Inc()
	httpapi.WriteJSON(w, http.StatusOK, toResponse(account))
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		httpapi.WriteValidation(w, vErr.Fields)
	case errors.Is(err, service.ErrInsufficientFunds):
		httpapi.WriteError(w, http.StatusUnprocessableEntity, httpapi.CodeInsufficientFunds, "insufficient funds")
	case errors.Is(err, service.ErrRecipientNotFound):
		httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeRecipientNotFound, "recipient account not found")
	case errors.Is(err, service.ErrNotFound):
		httpapi.WriteError(w, http.StatusNotFound, httpapi.CodeNotFound, "account not found")
	default:
		h.logger.Error("accounts handler failure", zap.String("path", r.URL.Path), zap.Error(err))
		httpapi.WriteError(w, http.StatusInternalServerError, httpapi.CodeInternal, "internal error")
	}
}
