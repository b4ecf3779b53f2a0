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

	"github.com/mepa-comp/scoring-system/config"
	"github.com/mepa-comp/scoring-system/db"
	"github.com/mepa-comp/scoring-system/handlers"
	"github.com/mepa-comp/scoring-system/repositories"
	api "github.com/mepa-comp/scoring-system/routes"
	"github.com/mepa-comp/scoring-system/services"
	"github.com/mepa-comp/scoring-system/storage"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
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

	// Инициализация загрузчика файлов (Cloudflare R2), если сконфигурирован
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewCloudflareR2Uploader(context.Background(), storage.CloudflareR2UploaderConfig{
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
		logger.Info("R2 uploader not configured, logo uploads disabled")
	}

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tokenRepo := repositories.NewPostgresTokenRepository(dbConn)
	eventRepo := repositories.NewPostgresEventRepository(dbConn)
	staffRepo := repositories.NewPostgresStaffRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	sumulaRepo := repositories.NewPostgresSumulaRepository(dbConn)
	scoreRepo := repositories.NewPostgresPlayerScoreRepository(dbConn)
	resultsRepo := repositories.NewPostgresResultsRepository(dbConn)
	permissionRepo := repositories.NewPostgresPermissionRepository(dbConn)
	logger.Info("repositories initialized")

	// Идемпотентная регистрация четырех ролей
	if err := services.EnsureRoles(context.Background(), permissionRepo); err != nil {
		logger.Error("failed to ensure roles", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("roles ensured")

	// Инициализация сервисов
	permissionService := services.NewPermissionService(permissionRepo)
	authService := services.NewAuthService(userRepo)
	tokenService := services.NewTokenService(tokenRepo)

	var emailService services.EmailSender
	if cfg.SMTPHost != "" {
		emailService = services.NewEmailService(cfg)
	}

	eventService := services.NewEventService(
		dbConn,
		tokenRepo,
		eventRepo,
		resultsRepo,
		userRepo,
		staffRepo,
		playerRepo,
		permissionRepo,
		permissionService,
		uploader,
		logger,
	)
	scoreService := services.NewScoreService(
		dbConn,
		scoreRepo,
		playerRepo,
		sumulaRepo,
		permissionService,
		logger,
	)
	sumulaService := services.NewSumulaService(
		dbConn,
		sumulaRepo,
		scoreRepo,
		playerRepo,
		staffRepo,
		permissionService,
		logger,
	)
	playerService := services.NewPlayerService(
		dbConn,
		playerRepo,
		eventRepo,
		userRepo,
		permissionService,
		logger,
	)
	staffService := services.NewStaffService(
		staffRepo,
		eventRepo,
		userRepo,
		permissionService,
		emailService,
		logger,
	)
	resultsService := services.NewResultsService(
		dbConn,
		resultsRepo,
		playerRepo,
		eventRepo,
		permissionService,
		logger,
	)
	logger.Info("services initialized")

	// Инициализация обработчиков HTTP
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	tokenHandler := handlers.NewTokenHandler(tokenService)
	eventHandler := handlers.NewEventHandler(eventService)
	staffHandler := handlers.NewStaffHandler(staffService)
	playerHandler := handlers.NewPlayerHandler(playerService, scoreService)
	scoreHandler := handlers.NewScoreHandler(scoreService)
	sumulaHandler := handlers.NewSumulaHandler(sumulaService)
	resultsHandler := handlers.NewResultsHandler(resultsService)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		authHandler,
		tokenHandler,
		eventHandler,
		staffHandler,
		playerHandler,
		scoreHandler,
		sumulaHandler,
		resultsHandler,
	)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
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

	// Ожидание сигнала завершения
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
