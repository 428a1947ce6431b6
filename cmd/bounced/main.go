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

	"github.com/joho/godotenv"

	"github.io/infrasutra/bouncecsv/internal/api"
	"github.io/infrasutra/bouncecsv/internal/bounce"
	"github.io/infrasutra/bouncecsv/internal/config"
	"github.io/infrasutra/bouncecsv/internal/intake"
	"github.io/infrasutra/bouncecsv/internal/smtpserver"
	"github.io/infrasutra/bouncecsv/internal/sse"
	"github.io/infrasutra/bouncecsv/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}
	if cfg.DBPath == "" {
		logger.Warn("DB_PATH not set; bounces are kept in memory only")
	}

	classifier, err := bounce.NewClassifierFromFile(cfg.RulesPath)
	if err != nil {
		logger.Error("load rules", "error", err, "path", cfg.RulesPath)
		os.Exit(1)
	}
	logger.Info("classifier ready", "rules", len(classifier.Rules()))
	processor := bounce.NewProcessor(classifier, bounce.NewResolver(cfg.NoiseMarkers), logger)

	hub := sse.NewHub()
	in := intake.New(db, hub, processor, logger)
	apiServer := api.NewServer(db, hub, in, logger)

	smtpAuthCfg := smtpserver.AuthConfig{
		Enabled:  cfg.SMTPAuthEnabled,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	}
	if smtpAuthCfg.Enabled {
		logger.Info("smtp auth enabled", "username", smtpAuthCfg.Username)
	} else {
		logger.Warn("smtp auth disabled; server accepts unauthenticated connections")
	}

	smtpAddr := fmt.Sprintf(":%d", cfg.SMTPPort)
	smtpSrv := smtpserver.New(in, logger, smtpAddr, smtpAuthCfg)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := smtpSrv.ListenAndServe(); err != nil {
			logger.Error("smtp server stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("http server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("shutdown http", "error", err)
	}
	if err := smtpSrv.Close(); err != nil {
		logger.Error("shutdown smtp", "error", err)
	}
}
