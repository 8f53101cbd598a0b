package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/pelada-app/pelada-system/config"
	"github.com/pelada-app/pelada-system/db"
	"github.com/pelada-app/pelada-system/handlers"
	"github.com/pelada-app/pelada-system/middleware"
	"github.com/pelada-app/pelada-system/realtime"
	"github.com/pelada-app/pelada-system/repositories"
	api "github.com/pelada-app/pelada-system/routes"
	"github.com/pelada-app/pelada-system/services"
	"github.com/pelada-app/pelada-system/snapshot"
	"github.com/pelada-app/pelada-system/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	// Cover image storage is optional; without R2 credentials the server
	// runs with uploads disabled.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Info("R2 not configured, cover uploads disabled")
	}

	wsHub := realtime.NewHub()
	go wsHub.Run()
	logger.Info("WebSocket hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	logger.Info("repositories initialized")

	cache := snapshot.NewCache(eventRepo, playerRepo, uploader, wsHub, logger)

	authService := services.NewAuthService(userRepo)
	eventService := services.NewEventService(eventRepo, playerRepo, uploader, cache, logger)
	rosterService := services.NewRosterService(playerRepo, eventRepo, cache, logger)
	logger.Info("services initialized")

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	// Prime the snapshot before serving; reads hit the cache, not the DB.
	if err := cache.Refresh(runCtx); err != nil {
		logger.Error("initial snapshot load failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("initial snapshot loaded", slog.Uint64("version", cache.Version()))

	// Subscribe to store change notifications so edits by other server
	// instances (or direct DB writes) show up without local mutations.
	changeListener, err := db.NewChangeListener(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to start store change listener", slog.Any("error", err))
		os.Exit(1)
	}
	defer changeListener.Close()
	go changeListener.Run()
	go cache.Run(runCtx, changeListener.Notifications())
	logger.Info("store change listener started")

	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	eventHandler := handlers.NewEventHandler(eventService, cache)
	playerHandler := handlers.NewPlayerHandler(rosterService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, cache)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authenticator,
		authHandler,
		eventHandler,
		playerHandler,
		webSocketHandler,
		cfg.CORSAllowedOrigins,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
