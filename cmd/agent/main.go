package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/surveysync/agent/internal/config"
	"github.com/surveysync/agent/internal/gateway"
	"github.com/surveysync/agent/internal/handlers"
	custommw "github.com/surveysync/agent/internal/middleware"
	"github.com/surveysync/agent/internal/observability"
	"github.com/surveysync/agent/internal/repository"
	"github.com/surveysync/agent/internal/services"
)

const serviceVersion = "1.0.0"

func main() {
	// Load .env if present; real env vars win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("surveysync-agent", serviceVersion))
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}

	// Open the local store, degrading to the key-value backend when
	// SQLite cannot start on this platform
	store, err := repository.Open(cfg.Storage.Backend, cfg.Storage.SQLitePath, cfg.Storage.BoltPath)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer store.Close()
	observability.Infof("Local store ready (backend=%s)", store.Backend())

	// Remote gateway and the services around it
	gw := gateway.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIToken)
	gw.OnUnauthorized = func() {
		observability.Warn("Stored credential invalidated; re-authentication required")
	}

	prober := services.ProberFunc(func(ctx context.Context) bool {
		return gw.Ping(ctx) == nil
	})
	connectivity := services.NewConnectivityService(prober,
		time.Duration(cfg.Remote.ProbeIntervalSeconds)*time.Second)

	statusHub := services.NewStatusHub()
	syncService := services.NewSyncService(store, gw, connectivity, statusHub, cfg.Sync.MaxAttempts)
	syncService.Start()

	if cfg.Sync.AutoStart {
		connectivity.Start()
		defer connectivity.Stop()
	}

	// Handlers
	healthHandler := handlers.NewHealthHandler(store)
	siteHandler := handlers.NewSiteHandler(store)
	surveyHandler := handlers.NewSurveyHandler(store)
	inspectionHandler := handlers.NewInspectionHandler(store)
	photoHandler := handlers.NewPhotoHandler(store, services.NewMetadataService())
	syncHandler := handlers.NewSyncHandler(syncService, connectivity)
	wsHandler := handlers.NewWebSocketHandler(statusHub)

	// Router
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.TracingMiddleware("surveysync-agent"))
	if httpMetrics, err := observability.NewHTTPMetrics(); err == nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	} else {
		observability.Warnf("HTTP metrics unavailable: %v", err)
	}
	r.Use(custommw.APIKeyAuth(cfg.Security.APIKey, cfg.Security.APIKeyHeader))

	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)

	r.Route("/api/sites", func(r chi.Router) {
		r.Get("/", siteHandler.ListSites)
		r.Post("/", siteHandler.CreateSite)
		r.Get("/{id}", siteHandler.GetSite)
		r.Delete("/{id}", siteHandler.DeleteSite)
	})

	r.Route("/api/surveys", func(r chi.Router) {
		r.Get("/", surveyHandler.ListSurveys)
		r.Post("/", surveyHandler.CreateSurvey)
		r.Get("/{id}", surveyHandler.GetSurvey)
		r.Put("/{id}", surveyHandler.UpdateSurvey)
		r.Delete("/{id}", surveyHandler.DeleteSurvey)
		r.Get("/{id}/inspections", inspectionHandler.ListInspections)
	})

	r.Route("/api/inspections", func(r chi.Router) {
		r.Post("/", inspectionHandler.CreateInspection)
		r.Get("/{id}", inspectionHandler.GetInspection)
		r.Put("/{id}", inspectionHandler.UpdateInspection)
		r.Delete("/{id}", inspectionHandler.DeleteInspection)
		r.Get("/{id}/photos", photoHandler.ListPhotos)
	})

	r.Route("/api/photos", func(r chi.Router) {
		r.Post("/", photoHandler.RegisterPhoto)
		r.Get("/{id}", photoHandler.GetPhoto)
		r.Put("/{id}", photoHandler.UpdatePhoto)
		r.Delete("/{id}", photoHandler.DeletePhoto)
	})

	r.Route("/api/sync", func(r chi.Router) {
		r.Post("/run", syncHandler.RunSync)
		r.Get("/status", syncHandler.GetStatus)
		r.Post("/requeue", syncHandler.RequeueFailed)
	})

	r.Get("/ws/status", wsHandler.StreamStatus)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		observability.Infof("SurveySync agent starting on %s", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("Shutting down agent...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		observability.Warnf("Telemetry shutdown: %v", err)
	}

	observability.Info("Agent stopped")
}
