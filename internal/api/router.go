/**
 * @description
 * This file sets up the HTTP router for the subscription-service using the go-chi/chi router.
 * It defines the API routes, applies middleware for logging, CORS, and authentication,
 * and maps the routes to their corresponding handler functions.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the subscription-service routes.
// walletAuth guards fan routes; internalKey guards the entitlement check.
func NewRouter(h *Handler, walletAuth func(http.Handler) http.Handler, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Subscription service is healthy"))
	})

	r.Get("/plans/{planID}/summary", h.handleGetPlanSummary)
	r.Get("/creators/{creatorAddress}/plans", h.handleListCreatorPlans)

	// Routes acting on behalf of the authenticated fan.
	r.Group(func(r chi.Router) {
		r.Use(walletAuth)

		r.Get("/wallet/status", h.handleGetWalletStatus)

		r.Route("/checkouts", func(r chi.Router) {
			r.Post("/", h.handleCreateCheckout)
			r.Get("/{id}", h.handleGetCheckout)
			r.Get("/{id}/price-breakdown", h.handleGetPriceBreakdown)
			r.Get("/{id}/preview", h.handleGetTransactionPreview)
			r.Post("/{id}/validate-balance", h.handleValidateBalance)
			r.Post("/{id}/confirm", h.handleConfirmCheckout)
			r.Post("/{id}/fail", h.handleFailCheckout)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", h.handleListSubscriptions)
			r.Get("/{id}", h.handleGetSubscription)
			r.Post("/{id}/cancel", h.handleCancelSubscription)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalKey))
		r.Get("/subscriptions/check", h.handleCheckSubscriber)
	})

	return r
}
