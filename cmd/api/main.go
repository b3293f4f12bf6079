package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"arcadeswap-api/internal/config"
	"arcadeswap-api/internal/handler"
	"arcadeswap-api/internal/lock"
	"arcadeswap-api/internal/middleware"
	"arcadeswap-api/internal/repository"
	"arcadeswap-api/internal/router"
	"arcadeswap-api/internal/service"
	"arcadeswap-api/internal/telemetry"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load configuration
	cfg := config.MustLoad()
	log.Printf("Starting %s v%s...", cfg.App.Name, cfg.App.Version)
	log.Printf("Environment: %s", cfg.App.Environment)

	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry, cfg.App.Name, cfg.App.Version)
	if err != nil {
		log.Printf("Warning: tracing disabled: %v", err)
	}

	// Initialize trade store based on config
	var store repository.Store
	opts := repository.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		QueryTimeout:    cfg.Database.TxTimeout,
	}
	switch cfg.Database.Driver {
	case "mysql":
		mysqlStore, err := repository.NewMySQLStore(cfg.Database.MySQLDSN(), opts)
		if err != nil {
			log.Fatalf("Failed to initialize MySQL: %v", err)
		}
		store = mysqlStore
		log.Println("MySQL trade store initialized")
	case "postgres":
		pgStore, err := repository.NewPostgresStore(cfg.Database.PostgresDSN(), opts)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		store = pgStore
		log.Println("PostgreSQL trade store initialized")
	default: // sqlite
		sqliteStore, err := repository.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite: %v", err)
		}
		store = sqliteStore
		log.Println("SQLite trade store initialized")
	}

	// Initialize proposal locker
	var locker lock.Locker
	if cfg.Lock.Type == "redis" {
		redisLocker, err := lock.NewRedisLocker(lock.RedisConfig{
			Addr:     cfg.Lock.RedisAddress(),
			Password: cfg.Lock.RedisPassword,
			DB:       cfg.Lock.RedisDB,
		})
		if err != nil {
			log.Printf("Warning: Redis connection failed, using in-memory locks: %v", err)
		} else {
			locker = redisLocker
		}
	}
	if locker == nil {
		locker = lock.NewMemoryLocker()
		log.Println("In-memory proposal locker initialized")
	}

	// Initialize services
	tradeService := service.NewTradeService(store, locker, service.TradeServiceConfig{
		LockTTL:  cfg.Lock.TTL,
		LockWait: cfg.Lock.Wait,
	})
	libraryService := service.NewLibraryService(store)

	var sweeper *service.StaleTradeSweeper
	if cfg.Sweeper.Enabled {
		sweeperCfg := service.DefaultSweeperConfig()
		sweeperCfg.Interval = cfg.Sweeper.Interval
		sweeperCfg.BatchSize = cfg.Sweeper.BatchSize
		sweeper = service.NewStaleTradeSweeper(tradeService, sweeperCfg)
		sweeper.Start()
	}

	// Initialize handlers
	healthHandler := handler.New(cfg.App.Name, cfg.App.Version, store)
	tradeHandler := handler.NewTradeHandler(tradeService)
	libraryHandler := handler.NewLibraryHandler(libraryService)
	adminHandler := handler.NewAdminHandler(store, locker, sweeper, libraryService)

	if cfg.Auth.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set, authenticated routes will reject every request")
	}
	authMiddleware := middleware.NewAuthMiddleware(middleware.AuthConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.Issuer,
	})

	// Create router
	r := router.New(router.Config{
		Handler:         healthHandler,
		TradeHandler:    tradeHandler,
		LibraryHandler:  libraryHandler,
		AdminHandler:    adminHandler,
		AuthMiddleware:  authMiddleware,
		AdminMiddleware: middleware.NewLoginKeyMiddleware(cfg.App.LoginKey),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop background work before the store goes away
	if sweeper != nil {
		sweeper.Stop()
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if err := locker.Close(); err != nil {
		log.Printf("Locker close error: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Printf("Store close error: %v", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Tracer shutdown error: %v", err)
		}
	}

	log.Println("Server stopped")
	fmt.Println("Goodbye!")
}
