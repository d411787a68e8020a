package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safeher/internal/config"
	handlers "safeher/internal/handlers/shared"
	"safeher/internal/middleware"
	"safeher/internal/services"
	"safeher/pkg/logger"
	"safeher/pkg/maps"
	"safeher/pkg/metrics"
	"safeher/pkg/websocket"
	"safeher/routes"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  cfg.App.LogOutput,
		Colors:  config.IsDevelopment(),
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.NewMetrics()
	hub := websocket.NewHub(appLogger)

	contactChannel, authorityChannel, err := buildAlertChannels(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to configure alert channels")
	}

	guard, closeGuard := buildDispatchGuard(ctx, cfg, appLogger)
	defer closeGuard()

	var geocoder maps.MapsProvider
	if cfg.Maps.ReverseGeocodingEnabled() {
		provider, err := maps.NewGoogleMapsProvider(cfg.Maps.GoogleMaps.APIKey)
		if err != nil {
			appLogger.WithError(err).Warn("Reverse geocoding disabled")
		} else {
			geocoder = provider
		}
	}

	sessions := services.NewSessionService(services.SessionDependencies{
		Safety:           cfg.Safety,
		LinkFormat:       cfg.Maps.LinkFormat,
		Hub:              hub,
		Notifier:         services.MultiNotifier(services.NewBroadcastNotifier(hub), services.NewLogNotifier(appLogger)),
		ContactChannel:   contactChannel,
		AuthorityChannel: authorityChannel,
		Guard:            guard,
		Geocoder:         geocoder,
		Responder:        services.NewCannedResponder(cfg.Safety.ChatReplyDelay),
		Metrics:          m,
		Logger:           appLogger,
	})
	defer sessions.Shutdown()

	hub.OnRegister(sessions.ClientConnected)
	go hub.Run(ctx)

	wsHandler := websocket.NewHandler(hub, sessions, websocket.Options{
		ReadBufferSize:   cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  cfg.WebSocket.WriteBufferSize,
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		PingInterval:     cfg.WebSocket.PingInterval,
		PongTimeout:      cfg.WebSocket.PongTimeout,
		MaxMessageSize:   cfg.WebSocket.MaxMessageSize,
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
	}, appLogger)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		appLogger.WithError(err).Warn("Invalid trusted proxies")
	}

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))
	router.Use(metrics.Middleware(m))

	sessionHandler := handlers.NewSessionHandler(sessions)

	// API routes
	v1 := router.Group("/api/v1")
	{
		routes.SetupSessionRoutes(v1, routes.Handlers{
			Session:   sessionHandler,
			Contact:   handlers.NewContactHandler(sessions),
			Emergency: handlers.NewEmergencyHandler(sessions),
			Voice:     handlers.NewVoiceHandler(sessions),
			Chat:      handlers.NewChatHandler(sessions),
		})
	}
	routes.SetupWebSocketRoutes(router, cfg.WebSocket.Path, wsHandler, sessionHandler.RequireSession)

	health := handlers.NewHealthHandler(sessions, cfg.App.Version)
	router.GET("/health", health.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(map[string]interface{}{
			"port":              cfg.App.Port,
			"environment":       cfg.App.Environment,
			"contact_channel":   contactChannel.Name(),
			"authority_channel": authorityChannel.Name(),
		}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server shutdown failed")
	}
}
