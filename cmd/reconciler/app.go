package main

import (
	"context"
	"fmt"

	"reconciler/internal/database"
	"reconciler/internal/notify"
	"reconciler/internal/service"
	"reconciler/internal/storage"
)

type app struct {
	db      *database.DB
	gateway *storage.Gateway
	recon   *service.ReconciliationService
}

func openApp(ctx context.Context) (*app, error) {
	db, err := database.NewDB(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("connect to DB: %w", err)
	}

	if err := database.InitSchema(ctx, db); err != nil {
		_ = database.CloseDB(db)
		return nil, fmt.Errorf("init DB schema: %w", err)
	}

	gw := storage.NewGateway(db.DB, cfg.RetryPolicy(storage.IsTransient))

	var notifier service.Notifier = notify.NewLog()
	if cfg.SlackWebhookURL != "" {
		notifier = notify.NewSlack(cfg.SlackWebhookURL)
	}

	return &app{
		db:      db,
		gateway: gw,
		recon:   service.NewReconciliationService(gw, notifier),
	}, nil
}

func (a *app) Close() error {
	return database.CloseDB(a.db)
}
