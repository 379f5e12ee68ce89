package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventsim.app/dispatcher/common/id"
	"eventsim.app/dispatcher/common/logger"
	"eventsim.app/dispatcher/common/otel"
	"eventsim.app/dispatcher/core/config"
	"eventsim.app/dispatcher/internal/dispatch"
	"eventsim.app/dispatcher/internal/eventsource"
	"eventsim.app/dispatcher/internal/http/handler"
	"eventsim.app/dispatcher/internal/http/middleware"
	httprouter "eventsim.app/dispatcher/internal/http/router"
	"eventsim.app/dispatcher/internal/schedule"
	"eventsim.app/dispatcher/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "event dispatcher starting",
		"env", cfg.Env,
		"events_dir", cfg.Events.Dir,
		"incident_url", cfg.Dispatch.IncidentEventsURL,
		"change_url", cfg.Dispatch.ChangeEventsURL,
		"rate_per_sec", cfg.Dispatch.RatePerSec)

	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	services := service.NewServices(service.ServicesConfig{
		Source: eventsource.NewFileSource(cfg.Events.Dir, nil),
		Dispatcher: dispatch.New(nil, dispatch.Config{
			HTTPTimeout: cfg.Dispatch.HTTPTimeout,
			RatePerSec:  cfg.Dispatch.RatePerSec,
		}, nil),
		Endpoints: schedule.Endpoints{
			IncidentURL: cfg.Dispatch.IncidentEventsURL,
			ChangeURL:   cfg.Dispatch.ChangeEventsURL,
		},
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Sends and streams stay open until the last scheduled send settles.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	if len(cfg.CORS) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORS,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
			ExposeHeaders: []string{handler.RunIDHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	httprouter.SetupRoutes(router, services)

	return router
}

const banner = `
 ___ _   _ ___ _  _ _____   ___  ___ ___ ___  _ _____ ___ _  _ 
| __| | | | __| \| |_   _| |   \|_ _/ __| _ \/_\_   _/ __| || |
| _|| |_| | _|| .' | | |   | |) || |\__ \  _/ _ \| || (__| __ |
|___|\___/|___|_|\_| |_|   |___/|___|___/_|/_/ \_\_| \___|_||_|
`
