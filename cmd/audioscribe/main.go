package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mkorzh/audioscribe/internal/api"
	"github.com/mkorzh/audioscribe/internal/audio"
	"github.com/mkorzh/audioscribe/internal/config"
	"github.com/mkorzh/audioscribe/internal/transcription"
	"github.com/mkorzh/audioscribe/pkg/logger"
)

const defaultConfigPath = "configs/config.toml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Optional .env file for local development; env vars win over the file
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting audioscribe",
		logger.String("addr", cfg.Server.Addr()),
		logger.String("model", cfg.Transcription.Model),
		logger.Int("max_upload_mb", cfg.Server.MaxUploadMB),
		logger.Int("max_segment_mb", cfg.Transcription.MaxSegmentMB),
		logger.Bool("default_key_configured", cfg.Transcription.DefaultAPIKey != ""),
	)

	transcriber := transcription.NewClient(cfg.Transcription.Model, cfg.Transcription.RequestTimeout(), log)
	segmenter := audio.NewSegmenter(
		cfg.Transcription.MaxSegmentBytes(),
		time.Duration(cfg.Transcription.SegmentDurationHintSec)*time.Second,
	)
	orchestrator := transcription.NewOrchestrator(transcriber, segmenter, cfg.Transcription.DefaultAPIKey, log)
	fetcher := audio.NewFetchClient(cfg.Transcription.RequestTimeout(), cfg.Transcription.FetchMaxBytes(), log)

	handler := api.NewHandler(orchestrator, transcriber, fetcher, cfg, log)
	router := api.NewRouter(handler, cfg, log)

	server := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     router.Routes(),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		// No write timeout: the streaming endpoint holds the response
		// open for the whole transcription job.
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("HTTP server failed", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", logger.Error(err))
	}

	log.Info("Server stopped")
}
