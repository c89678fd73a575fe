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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dbpranger/delay-api/config"
	"github.com/dbpranger/delay-api/handlers"
	"github.com/dbpranger/delay-api/history"
	"github.com/dbpranger/delay-api/logging"
	"github.com/dbpranger/delay-api/predictor"
	"github.com/dbpranger/delay-api/profiling"
	"github.com/dbpranger/delay-api/stations"
	"github.com/dbpranger/delay-api/telemetry"
	"github.com/dbpranger/delay-api/weather"
)

func main() {
	// .env first, then .env.local overrides for local development
	config.LoadDotEnv(".")
	logging.InitLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownMetrics, err := telemetry.InitMetrics()
	if err != nil {
		slog.Warn("Failed to initialize metrics", "error", err)
		shutdownMetrics = func() {}
	}
	defer shutdownMetrics()

	shutdownTracing, err := telemetry.InitTracing()
	if err != nil {
		slog.Warn("Failed to initialize tracing", "error", err)
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	stopProfiling := profiling.InitProfiling(telemetry.Version)
	defer stopProfiling()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Build the history snapshot once; it is read-only afterwards
	svc, err := history.Load(ctx, history.Options{
		DataDir:        cfg.DataDir,
		TransportGlob:  cfg.TransportGlob,
		WeatherGlob:    cfg.WeatherGlob,
		Location:       cfg.Location(),
		SnapshotDBPath: cfg.SnapshotDBPath,
	})
	if err != nil {
		slog.Error("Failed to build history snapshot", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	geofox := stations.NewGeofoxClient(cfg.GeofoxURL, cfg.GTIUser, cfg.GTIPassword, cfg.StationsTimeoutDuration())
	stationLoader, closeStations := stations.NewLoader(ctx, cfg.StationsCacheFile, cfg.StationsDatabaseURL, geofox, cfg.StationsTimeoutDuration())
	defer closeStations()
	directory := stationLoader.Load(ctx)

	weatherClient := weather.NewClient(cfg.WeatherURL, cfg.WeatherLat, cfg.WeatherLon, cfg.Timezone, "Hamburg", cfg.WeatherTimeoutDuration())

	// A nil Predictor makes the model endpoints answer 503
	var delayModels handlers.Predictor
	if p, err := predictor.Load(cfg.ModelDir); err != nil {
		slog.Warn("Delay models not loaded, prediction endpoints disabled", "dir", cfg.ModelDir, "error", err)
	} else {
		delayModels = p
	}

	historyHandler := handlers.NewHistoryHandler(svc, directory, cfg.RequestTimeoutDuration())
	predictionHandler := handlers.NewPredictionHandler(delayModels, weatherClient, cfg.Location())
	weatherHandler := handlers.NewWeatherHandler(weatherClient)
	healthHandler := handlers.NewHealthHandler(svc, delayModels != nil)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", healthHandler.GetHealth)

	// History API routes
	r.Get("/api/history/journeys", historyHandler.ListJourneys)
	r.Get("/api/history/journeys/{journeyId}", historyHandler.GetJourneyDetail)
	r.Get("/api/history/stats", historyHandler.GetStats)
	r.Get("/api/history/lines", historyHandler.GetLines)
	r.Get("/api/history/lines/stats", historyHandler.GetLineStats)
	r.Get("/api/history/lines/{line}/journeys", historyHandler.GetLineJourneys)
	r.Get("/api/history/delays", historyHandler.GetDelays)
	r.Get("/api/history/delays/weather", historyHandler.GetDelaysWithWeather)
	r.Get("/api/history/heatmap", historyHandler.GetHeatmap)
	r.Get("/api/history/segments", historyHandler.GetSegments)
	r.Get("/api/history/segments/map", historyHandler.GetSegmentsMap)

	// Prediction API routes
	r.Post("/api/predict", predictionHandler.Predict)
	r.Post("/api/predict/combined", predictionHandler.PredictCombined)
	r.Post("/api/predict/batch", predictionHandler.PredictBatch)
	r.Get("/api/predict/live", predictionHandler.PredictLive)
	r.Get("/api/model/info", predictionHandler.GetModelInfo)
	r.Get("/api/model/features", predictionHandler.GetModelFeatures)

	r.Get("/api/weather/current", weatherHandler.GetCurrent)

	// Static file serving (if configured)
	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(r, "delay-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Error shutting down server", "error", err)
		}
	}()

	info := svc.Info()
	slog.Info("API server starting",
		"port", cfg.Port,
		"snapshot_id", info.SnapshotID,
		"segments", info.TotalSegments,
		"stations", directory.Len(),
		"models_loaded", delayModels != nil,
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("API server stopped")
}
