/**
 * @description
 * This file sets up the HTTP router for the commerce-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CommerceRoutes creates and returns a new router for the commerce service.
func CommerceRoutes(h *CommerceHandlers, jwtSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		// Payment flow endpoints
		r.Post("/payment/create-order", h.CreateOrderHandler)
		r.Post("/payment/verify", h.VerifyPaymentHandler)

		// Subscription endpoints
		r.Post("/subscription/create", h.CreateSubscriptionOrderHandler)
		r.Get("/subscription", h.GetSubscriptionHandler)

		// Buyer and seller views
		r.Get("/purchases", h.ListPurchasesHandler)
		r.Get("/dashboard/stats", h.DashboardStatsHandler)

		// Admin endpoints (role enforced by the service layer)
		r.Post("/admin/discount/create", h.CreateDiscountHandler)
	})

	return r
}
