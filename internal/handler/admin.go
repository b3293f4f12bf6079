package handler

import (
	"context"
	"net/http"
	"runtime"
	"strings"
	"time"

	"arcadeswap-api/internal/model"
	"arcadeswap-api/internal/repository"
	"arcadeswap-api/internal/service"
	"arcadeswap-api/pkg/apierror"
	"arcadeswap-api/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// StatsReporter is implemented by the lockers.
type StatsReporter interface {
	Stats(ctx context.Context) map[string]interface{}
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	store     repository.Store
	locker    StatsReporter
	sweeper   *service.StaleTradeSweeper
	library   *service.LibraryService
	startTime time.Time
}

// NewAdminHandler creates a new admin handler. locker and sweeper may be nil.
func NewAdminHandler(
	store repository.Store,
	locker StatsReporter,
	sweeper *service.StaleTradeSweeper,
	library *service.LibraryService,
) *AdminHandler {
	return &AdminHandler{
		store:     store,
		locker:    locker,
		sweeper:   sweeper,
		library:   library,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Store stats
	if storeStats, err := h.store.GetStats(ctx); err == nil {
		storeStats["status"] = "connected"
		stats["store"] = storeStats
	} else {
		stats["store"] = map[string]interface{}{
			"driver": h.store.Driver(),
			"status": "error",
			"error":  err.Error(),
		}
	}

	if h.locker != nil {
		stats["lock"] = h.locker.Stats(ctx)
	} else {
		stats["lock"] = map[string]interface{}{"status": "not_configured"}
	}

	if h.sweeper != nil {
		stats["sweeper"] = h.sweeper.Stats()
	} else {
		stats["sweeper"] = map[string]interface{}{"status": "disabled"}
	}

	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

// UpsertGameRequest is the body of PUT /api/v1/admin/games/{id}.
type UpsertGameRequest struct {
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// UpsertGame handles PUT /api/v1/admin/games/{id}
func (h *AdminHandler) UpsertGame(w http.ResponseWriter, r *http.Request) {
	var req UpsertGameRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	game := &model.Game{
		ID:    strings.TrimSpace(chi.URLParam(r, "id")),
		Title: strings.TrimSpace(req.Title),
		Price: req.Price,
	}
	if err := h.library.UpsertGame(r.Context(), game); err != nil {
		writeServiceError(w, r, "AdminHandler", err)
		return
	}
	response.OK(w, game)
}

// GrantRequest is the body of POST /api/v1/admin/grants.
type GrantRequest struct {
	UserID string `json:"user_id"`
	GameID string `json:"game_id"`
}

// GrantPurchase handles POST /api/v1/admin/grants
func (h *AdminHandler) GrantPurchase(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	if strings.TrimSpace(req.GameID) == "" {
		response.Error(w, apierror.ValidationError("invalid request",
			apierror.FieldError{Field: "game_id", Message: "is required"}))
		return
	}

	asset, txn, err := h.library.GrantPurchase(r.Context(), strings.TrimSpace(req.UserID), strings.TrimSpace(req.GameID))
	if err != nil {
		writeServiceError(w, r, "AdminHandler", err)
		return
	}
	response.Created(w, map[string]interface{}{
		"asset":       asset,
		"transaction": newTransactionView(txn),
	})
}

// RunSweep handles POST /api/v1/admin/sweep
func (h *AdminHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	if h.sweeper == nil {
		response.Error(w, apierror.ServiceUnavailable("sweeper is disabled"))
		return
	}

	purged, err := h.sweeper.RunNow(r.Context())
	if err != nil {
		writeServiceError(w, r, "AdminHandler", err)
		return
	}
	response.OK(w, map[string]interface{}{"purged": purged})
}
