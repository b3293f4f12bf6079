package handler

import (
	"net/http"
	"time"

	"arcadeswap-api/internal/model"
	"arcadeswap-api/internal/service"
	"arcadeswap-api/pkg/apierror"
	"arcadeswap-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// LibraryHandler handles asset, account and ledger HTTP requests.
type LibraryHandler struct {
	library *service.LibraryService
}

// NewLibraryHandler creates a new library handler.
func NewLibraryHandler(library *service.LibraryService) *LibraryHandler {
	return &LibraryHandler{library: library}
}

// TradeableRequest toggles a tradeable flag.
type TradeableRequest struct {
	Tradeable *bool `json:"tradeable"`
}

func (req TradeableRequest) validate() error {
	if req.Tradeable == nil {
		return apierror.ValidationError("invalid request",
			apierror.FieldError{Field: "tradeable", Message: "is required"})
	}
	return nil
}

// ListAssets handles GET /api/v1/assets
func (h *LibraryHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	assets, err := h.library.ListAssets(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "LibraryHandler", err)
		return
	}
	response.OK(w, assets)
}

// SetAssetTradeable handles PUT /api/v1/assets/{id}/tradeable
func (h *LibraryHandler) SetAssetTradeable(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req TradeableRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := req.validate(); err != nil {
		response.Error(w, err)
		return
	}

	asset, err := h.library.SetAssetTradeable(r.Context(), userID, chi.URLParam(r, "id"), *req.Tradeable)
	if err != nil {
		writeServiceError(w, r, "LibraryHandler", err)
		return
	}
	response.OK(w, asset)
}

// GetAccount handles GET /api/v1/account
func (h *LibraryHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	account, err := h.library.GetAccount(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "LibraryHandler", err)
		return
	}
	response.OK(w, account)
}

// SetAccountTradeable handles PUT /api/v1/account/tradeable
func (h *LibraryHandler) SetAccountTradeable(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req TradeableRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if err := req.validate(); err != nil {
		response.Error(w, err)
		return
	}

	account, err := h.library.SetAccountTradeable(r.Context(), userID, *req.Tradeable)
	if err != nil {
		writeServiceError(w, r, "LibraryHandler", err)
		return
	}
	response.OK(w, account)
}

// ListTransactions handles GET /api/v1/transactions
func (h *LibraryHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	txns, err := h.library.ListTransactions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "LibraryHandler", err)
		return
	}
	views := make([]TransactionView, 0, len(txns))
	for _, t := range txns {
		views = append(views, newTransactionView(t))
	}
	response.OK(w, views)
}

// TransactionView is a ledger entry with its lines split by direction.
type TransactionView struct {
	ID                 string                  `json:"id"`
	Kind               model.TransactionKind   `json:"kind"`
	PrimaryUserID      string                  `json:"primary_user_id"`
	CounterpartyUserID *string                 `json:"counterparty_user_id,omitempty"`
	Value              decimal.Decimal         `json:"value"`
	CompletedAt        time.Time               `json:"completed_at"`
	Sent               []model.TransactionLine `json:"sent"`
	Received           []model.TransactionLine `json:"received"`
}

func newTransactionView(t *model.Transaction) TransactionView {
	return TransactionView{
		ID:                 t.ID,
		Kind:               t.Kind,
		PrimaryUserID:      t.PrimaryUserID,
		CounterpartyUserID: t.CounterpartyUserID,
		Value:              t.Value,
		CompletedAt:        t.CompletedAt,
		Sent:               t.Sent(),
		Received:           t.Received(),
	}
}
