package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"pos-voice-relay/internal/api"
	"pos-voice-relay/internal/audio"
	"pos-voice-relay/internal/classifier"
	"pos-voice-relay/internal/config"
	"pos-voice-relay/internal/dataset"
	"pos-voice-relay/internal/kpi"
	"pos-voice-relay/internal/logger"
	"pos-voice-relay/internal/metrics"
	"pos-voice-relay/internal/pipeline"
	"pos-voice-relay/internal/processor"
	"pos-voice-relay/internal/store"
	"pos-voice-relay/internal/transcription"
)

const shutdownTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load() // loads .env

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel})
	log.WithField("service", "pos-voice-relay").WithField("contract", cfg.ClassifyContract).Info("starting service")

	if missing := kpi.MissingLabels(cfg.Labels); len(missing) > 0 {
		entry := log.WithField("missing_labels", missing)
		if cfg.StrictLabels {
			entry.Fatal("kpi formula labels are not in the candidate-label list")
		}
		entry.Warn("kpi formula labels are not in the candidate-label list; their terms will be empty")
	}

	m := metrics.NewManager(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithHistogramBuckets(cfg.MetricsBuckets),
	)

	gin.SetMode(api.GinMode(cfg.Environment))

	db, err := store.Open(cfg.DatabaseURL, log, m)
	if err != nil {
		log.WithError(err).Fatal("failed to open datastore")
	}
	defer db.Close()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout()}

	pipe := pipeline.New(
		audio.NewDownloader(httpClient, cfg.TempDir, log),
		transcription.NewClient(httpClient, transcription.Options{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.WhisperModel,
		}, log),
		classifier.NewClient(httpClient, classifier.Options{
			BaseURL: cfg.HFBaseURL,
			Token:   cfg.HFToken,
			Model:   cfg.HFModel,
		}, log),
		cfg.Labels,
		cfg.TranscribeLanguage,
		log,
		m,
	)

	srvAPI := api.NewServer(api.Options{
		Classifier:     processor.New(pipe, db, log, m),
		CSVLoader:      dataset.NewTabularLoader(cfg.CSVPath, db, log, m),
		GeoJSONLoader:  dataset.NewGeoJSONLoader(cfg.GeoJSONPath, db, log, m),
		Contract:       cfg.ClassifyContract,
		RequirePuntoID: cfg.RequirePuntoID(),
		CORSOrigins:    cfg.CORSOrigins,
		Logger:         log,
		Metrics:        m,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srvAPI.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server terminated")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}
}
