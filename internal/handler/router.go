package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"reconciler/internal/mw"
	"reconciler/internal/service"
)

type RouterConfig struct {
	JWTSecret           string
	StripeWebhookSecret string
}

func NewRouter(cfg RouterConfig, reconSvc *service.ReconciliationService, authSvc *service.AuthService) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Post("/api/operator/register", RegisterHandler(authSvc))
	r.Post("/api/operator/login", LoginHandler(authSvc))

	if cfg.StripeWebhookSecret != "" {
		r.Post("/api/webhooks/stripe", NewStripeWebhookHandler(reconSvc, cfg.StripeWebhookSecret).HandleWebhook)
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Post("/api/invoices", CreateInvoiceHandler(reconSvc))
		r.Get("/api/invoices/{id}", GetInvoiceHandler(reconSvc))
		r.Get("/api/invoices/{id}/balance", GetBalanceHandler(reconSvc))
		r.Get("/api/invoices/{id}/transactions", ListTransactionsHandler(reconSvc))
		r.Post("/api/invoices/{id}/payments", RecordPaymentHandler(reconSvc))
		r.Post("/api/transactions/{id}/reconcile", ReconcileTransactionHandler(reconSvc))
	})

	return r
}
