package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/SAP-F-2025/marking-service/internal/cache"
	"github.com/SAP-F-2025/marking-service/internal/channel"
	"github.com/SAP-F-2025/marking-service/internal/config"
	"github.com/SAP-F-2025/marking-service/internal/handlers"
	"github.com/SAP-F-2025/marking-service/internal/repositories"
	"github.com/SAP-F-2025/marking-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/marking-service/internal/services"
	"github.com/SAP-F-2025/marking-service/internal/utils"
	"github.com/SAP-F-2025/marking-service/internal/validator"
	"github.com/SAP-F-2025/marking-service/pkg"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Environment)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	slogger := utils.ToSlogLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Results store
	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}
	defer pkg.CloseDatabase(db)
	resultRepo := postgres.NewMarkingResultPostgreSQL(db)

	// Event publishing
	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		logger.LogError(err, "Failed to create event publisher")
		os.Exit(1)
	}
	defer publisher.Close()

	notifications := services.NewNotificationService(publisher, slogger)
	validate := validator.New()

	// Remote marker
	session := channel.NewSession(channel.Config{
		URL:             cfg.Marking.ChannelURL,
		ConnectWait:     cfg.Marking.ConnectWait,
		SpecificationID: cfg.Marking.SpecificationID,
	}, channel.WebsocketDialer(&websocket.Dialer{HandshakeTimeout: cfg.Marking.ConnectWait}), slogger)
	defer session.Close()

	deps := services.CoordinatorDeps{
		Channel:   session,
		Persister: services.NewResultPersister(resultRepo),
		Notifier:  notifications,
		Validator: validate,
		Logger:    slogger,
	}

	// Live results mirror is optional
	var liveResults services.LiveResultReader
	if redisClient, err := pkg.NewRedisClient(ctx, cfg); err != nil {
		logger.Warn("Redis unavailable, live results stay in process", "error", err)
	} else {
		defer redisClient.Close()
		mirror := cache.NewLiveResultCache(cache.NewRedisCache(redisClient, slogger), cfg.Marking.LiveResultTTL)
		deps.LiveView = mirror
		liveResults = mirror
	}

	coordinator := services.NewCoordinator(services.CoordinatorConfig{
		QuestionTimeout: cfg.Marking.QuestionTimeout,
		GroupTimeout:    cfg.Marking.GroupTimeout,
		ConnectWait:     cfg.Marking.ConnectWait,
		SpecificationID: cfg.Marking.SpecificationID,
		SessionKind:     cfg.Marking.SessionKind,
	}, deps)
	defer coordinator.Close()

	markingService := newMarkingService(coordinator, liveResults, resultRepo, notifications, validate, slogger)
	router := handlers.NewRouter(handlers.NewHandlerManager(markingService, validate, logger), logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Marking service listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.LogError(err, "HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down marking service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.LogError(err, "Server forced to shutdown")
	}
}

func newMarkingService(
	coordinator *services.Coordinator,
	liveResults services.LiveResultReader,
	repo repositories.MarkingResultRepository,
	notifications services.NotificationService,
	validate *validator.Validator,
	logger *slog.Logger,
) services.MarkingService {
	return services.NewMarkingService(coordinator, liveResults, repo, services.NewExportService(logger), notifications, validate, logger)
}
