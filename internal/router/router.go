package router

import (
	"net/http"

	"arcadeswap-api/internal/handler"
	"arcadeswap-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	TradeHandler    *handler.TradeHandler
	LibraryHandler  *handler.LibraryHandler
	AdminHandler    *handler.AdminHandler
	AuthMiddleware  func(http.Handler) http.Handler
	AdminMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		// Admin endpoints, guarded by the login key instead of a user token
		if cfg.AdminHandler != nil {
			r.Route("/admin", func(r chi.Router) {
				if cfg.AdminMiddleware != nil {
					r.Use(cfg.AdminMiddleware)
				}
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Put("/games/{id}", cfg.AdminHandler.UpsertGame)
				r.Post("/grants", cfg.AdminHandler.GrantPurchase)
				r.Post("/sweep", cfg.AdminHandler.RunSweep)
			})
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.AuthMiddleware != nil {
				r.Use(cfg.AuthMiddleware)
			}

			if cfg.TradeHandler != nil {
				r.Route("/trades", func(r chi.Router) {
					r.Post("/", cfg.TradeHandler.Propose)
					r.Get("/", cfg.TradeHandler.List)
					r.Get("/{id}", cfg.TradeHandler.Get)
					r.Post("/{id}/respond", cfg.TradeHandler.Respond)
					r.Delete("/{id}", cfg.TradeHandler.Withdraw)
				})
			}

			if cfg.LibraryHandler != nil {
				r.Get("/assets", cfg.LibraryHandler.ListAssets)
				r.Put("/assets/{id}/tradeable", cfg.LibraryHandler.SetAssetTradeable)
				r.Get("/account", cfg.LibraryHandler.GetAccount)
				r.Put("/account/tradeable", cfg.LibraryHandler.SetAccountTradeable)
				r.Get("/transactions", cfg.LibraryHandler.ListTransactions)
			}
		})
	})

	return r
}
