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

	"github.com/joho/godotenv"
	"github.com/viva-labs/viva/pkg/core/bank"
	"github.com/viva-labs/viva/pkg/core/reason"
	"github.com/viva-labs/viva/pkg/core/voice/stt"
	"github.com/viva-labs/viva/pkg/core/voice/tts"
	"github.com/viva-labs/viva/pkg/gateway/archive"
	"github.com/viva-labs/viva/pkg/gateway/config"
	"github.com/viva-labs/viva/pkg/gateway/metrics"
	"github.com/viva-labs/viva/pkg/gateway/server"
	"github.com/viva-labs/viva/pkg/gateway/sessions"
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "viva-server: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	questionBank, err := bank.Load(cfg.QuestionBankPath)
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}
	logger.Info("question bank loaded", "path", cfg.QuestionBankPath, "questions", questionBank.Len())

	var store *archive.Store
	if cfg.ArchivePath != "" {
		store, err = archive.Open(cfg.ArchivePath)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer store.Close()
		logger.Info("session archive enabled", "path", cfg.ArchivePath)
	}

	handler := &server.Handler{
		Config:   cfg,
		Bank:     questionBank,
		STT:      stt.NewDeepgram(cfg.DeepgramAPIKey),
		TTS:      tts.NewDeepgram(cfg.DeepgramAPIKey),
		Reasoner: reason.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMModel),
		Registry: sessions.NewRegistry(),
		Metrics:  metrics.New("viva"),
		Archive:  store,
		Logger:   logger,
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()
	logger.Info("interview gateway listening", "addr", cfg.Addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("gateway stopped")
	return nil
}
