package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reconciler/internal/handler"
	"reconciler/internal/logger"
	"reconciler/internal/service"
	"reconciler/internal/worker"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the settlement worker",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("server")

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	authSvc := service.NewAuthService(a.gateway, cfg.JWTSecret)
	settlementClient := service.NewSettlementClient(cfg.SettlementSystemAddress)
	settlementWorker := worker.NewSettlementWorker(a.recon, settlementClient, cfg.SettlementInterval, cfg.SettlementBatch)

	r := handler.NewRouter(handler.RouterConfig{
		JWTSecret:           cfg.JWTSecret,
		StripeWebhookSecret: cfg.StripeWebhookSecret,
	}, a.recon, authSvc)

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go settlementWorker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	log.Info().Str("addr", cfg.RunAddress).Msg("starting server")

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-quit:
		log.Info().Msg("shutting down...")
	case err := <-serveErr:
		log.Error().Err(err).Msg("server failed")
		return err
	}

	cancel() // stop worker
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	log.Info().Msg("server stopped")
	return nil
}
