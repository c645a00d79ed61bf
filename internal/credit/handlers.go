package credit

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rover/credit-manager/internal/model"
	"github.com/rover/credit-manager/internal/oracle"
	"github.com/rover/credit-manager/internal/store"
)

// --- Request/Response types ---

// CreateAccountRequest is the JSON body for POST /accounts.
type CreateAccountRequest struct {
	Owner string `json:"owner"`
}

// UpdateAccountRequest is the JSON body for POST /accounts/{accountID}/actions.
type UpdateAccountRequest struct {
	Caller  string         `json:"caller"`
	Actions []model.Action `json:"actions"`
	Funds   []model.Coin   `json:"funds"` // coins sent along; deposits must consume all of them
}

// UpdateAccountResponse is returned once an update commits.
type UpdateAccountResponse struct {
	RequestID   string          `json:"request_id"`
	Position    *model.Position `json:"position"`
	CommittedAt time.Time       `json:"committed_at"`
}

// UpdateConfigRequest is the JSON body for PUT /config.
type UpdateConfigRequest struct {
	Caller string `json:"caller"`
	model.ConfigUpdate
}

// SetPriceRequest is the JSON body for PUT /oracle/prices/{denom}.
type SetPriceRequest struct {
	Caller string          `json:"caller"`
	Price  decimal.Decimal `json:"price"`
}

// Handler exposes a Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates HTTP handlers for svc.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes registers the credit manager endpoints on r. Denoms may contain
// slashes, so denom routes use a trailing wildcard.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/accounts", h.CreateAccount)
	r.Post("/accounts/{accountID}/actions", h.UpdateAccount)
	r.Get("/accounts/{accountID}/position", h.GetPosition)
	r.Get("/debt-shares", h.ListTotalDebtShares)
	r.Get("/debt-shares/*", h.GetTotalDebtShares)
	r.Get("/config", h.GetConfig)
	r.Put("/config", h.UpdateConfig)
	r.Put("/oracle/prices/*", h.SetPrice)
}

// CreateAccount handles POST /api/v1/accounts.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	acct, err := h.svc.CreateAccount(r.Context(), req.Owner)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// UpdateAccount handles POST /api/v1/accounts/{accountID}/actions.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" {
		writeError(w, "caller is required", http.StatusBadRequest)
		return
	}

	pos, err := h.svc.UpdateAccount(r.Context(), req.Caller, accountID, req.Actions, req.Funds)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UpdateAccountResponse{
		RequestID:   uuid.New().String(),
		Position:    pos,
		CommittedAt: time.Now().UTC(),
	})
}

// GetPosition handles GET /api/v1/accounts/{accountID}/position.
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.Position(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTotalDebtShares handles GET /api/v1/debt-shares/{denom}.
func (h *Handler) GetTotalDebtShares(w http.ResponseWriter, r *http.Request) {
	shares, err := h.svc.TotalDebtShares(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shares)
}

// ListTotalDebtShares handles GET /api/v1/debt-shares.
func (h *Handler) ListTotalDebtShares(w http.ResponseWriter, r *http.Request) {
	totals, err := h.svc.AllTotalDebtShares(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

// GetConfig handles GET /api/v1/config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Config(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig handles PUT /api/v1/config.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg, err := h.svc.UpdateConfig(r.Context(), req.Caller, req.ConfigUpdate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SetPrice handles PUT /api/v1/oracle/prices/{denom}.
func (h *Handler) SetPrice(w http.ResponseWriter, r *http.Request) {
	var req SetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d := chi.URLParam(r, "*")
	if err := h.svc.SetPrice(r.Context(), req.Caller, d, req.Price); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"denom": d, "price": req.Price.String()})
}

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	var (
		notOwner     *NotTokenOwnerError
		notListed    *NotWhitelistedError
		mismatch     *FundsMismatchError
		reserveError *ReserveError
	)
	switch {
	case errors.As(err, &notOwner), errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.As(err, &notListed), errors.As(err, &mismatch),
		errors.Is(err, ErrNoAmount), errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrOverflow):
		return http.StatusBadRequest
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.As(err, &reserveError), errors.Is(err, oracle.ErrPriceNotFound):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		message = "internal error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "reason": reason(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
