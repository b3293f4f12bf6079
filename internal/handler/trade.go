package handler

import (
	"net/http"
	"strings"

	"arcadeswap-api/internal/model"
	"arcadeswap-api/internal/service"
	"arcadeswap-api/pkg/apierror"
	"arcadeswap-api/pkg/response"
	"arcadeswap-api/pkg/uid"

	"github.com/go-chi/chi/v5"
)

// TradeHandler handles trade HTTP requests.
type TradeHandler struct {
	trades *service.TradeService
}

// NewTradeHandler creates a new trade handler.
func NewTradeHandler(trades *service.TradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// RespondRequest is the body of POST /api/v1/trades/{id}/respond.
type RespondRequest struct {
	Decision model.Decision `json:"decision"`
}

// Propose handles POST /api/v1/trades
func (h *TradeHandler) Propose(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var p service.Proposal
	if err := decodeJSON(r, &p); err != nil {
		response.Error(w, err)
		return
	}
	p.RequesterID = userID

	trade, err := h.trades.Propose(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, "TradeHandler", err)
		return
	}
	response.Created(w, trade)
}

// List handles GET /api/v1/trades
// The optional role query narrows the list to trades the user sent or received.
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	trades, err := h.trades.ListTrades(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "TradeHandler", err)
		return
	}

	role := strings.ToLower(r.URL.Query().Get("role"))
	switch role {
	case "", "all":
	case "sent", "received":
		filtered := make([]*model.Trade, 0, len(trades))
		for _, t := range trades {
			if (role == "sent") == (t.RequesterID == userID) {
				filtered = append(filtered, t)
			}
		}
		trades = filtered
	default:
		response.Error(w, apierror.BadRequest("role must be sent, received or all"))
		return
	}

	response.List(w, trades, len(trades))
}

// Get handles GET /api/v1/trades/{id}
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	tradeID, ok := tradeIDParam(w, r)
	if !ok {
		return
	}

	trade, err := h.trades.GetTrade(r.Context(), tradeID, userID)
	if err != nil {
		writeServiceError(w, r, "TradeHandler", err)
		return
	}
	response.OK(w, trade)
}

// Respond handles POST /api/v1/trades/{id}/respond
func (h *TradeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req RespondRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if !req.Decision.Valid() {
		response.Error(w, apierror.ValidationError("invalid request",
			apierror.FieldError{Field: "decision", Message: "must be accept or reject"}))
		return
	}

	h.respond(w, r, userID, req.Decision)
}

// Withdraw handles DELETE /api/v1/trades/{id}
func (h *TradeHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.respond(w, r, userID, model.DecisionReject)
}

func (h *TradeHandler) respond(w http.ResponseWriter, r *http.Request, userID string, decision model.Decision) {
	tradeID, ok := tradeIDParam(w, r)
	if !ok {
		return
	}

	outcome, err := h.trades.Respond(r.Context(), tradeID, userID, decision)
	if err != nil {
		writeServiceError(w, r, "TradeHandler", err)
		return
	}
	response.OK(w, outcome)
}

// tradeIDParam answers 404 for ids that cannot name a trade.
func tradeIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !uid.IsValid(id) {
		response.Error(w, apierror.NotFound("trade not found"))
		return "", false
	}
	return id, true
}
