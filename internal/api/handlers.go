/**
 * @description
 * This file contains the HTTP handlers for the commerce-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/celora/commerce-service/internal/app"
	"github.com/celora/commerce-service/internal/domain"
	"github.com/celora/commerce-service/internal/store"
)

// verifyPaymentResponse is sent back after a payment confirmation settles. It
// carries the purchase id and download link for template sales, or the
// activated plan for subscriptions.
type verifyPaymentResponse struct {
	Success     bool       `json:"success"`
	Kind        string     `json:"kind"`
	PurchaseID  *uuid.UUID `json:"purchase_id,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Plan        string     `json:"plan,omitempty"`
}

func buildVerifyPaymentResponse(result *domain.SettlementResult) verifyPaymentResponse {
	resp := verifyPaymentResponse{
		Success:     true,
		Kind:        result.Kind,
		DownloadURL: result.DownloadURL,
		Plan:        result.Plan,
	}
	if result.Purchase != nil {
		id := result.Purchase.ID
		resp.PurchaseID = &id
	}
	return resp
}

// CommerceHandlers holds the application service that handlers will use.
type CommerceHandlers struct {
	service *app.Service

	limiter           *app.RedisRateLimiter
	orderLimitPerMin  int
	verifyLimitPerMin int
}

// NewCommerceHandlers creates a new instance of CommerceHandlers. The limiter
// may be nil, in which case no rate limits are enforced.
func NewCommerceHandlers(service *app.Service, limiter *app.RedisRateLimiter, orderLimitPerMin, verifyLimitPerMin int) *CommerceHandlers {
	return &CommerceHandlers{
		service:           service,
		limiter:           limiter,
		orderLimitPerMin:  orderLimitPerMin,
		verifyLimitPerMin: verifyLimitPerMin,
	}
}

// enforceRateLimit applies a per-user fixed window on a handler scope. It
// returns false after writing a 429 when the caller is over the limit. Limiter
// infrastructure errors fail open so a Redis outage never blocks payments.
func (h *CommerceHandlers) enforceRateLimit(w http.ResponseWriter, r *http.Request, scope string, userID uuid.UUID, limit int) bool {
	if h.limiter == nil || limit <= 0 {
		return true
	}

	allowed, retryAfter, err := h.limiter.Allow(r.Context(), scope, userID, limit)
	if err != nil {
		log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" scope=%s err=%v", scope, err)
		return true
	}
	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down and try again.")
		return false
	}
	return true
}

// CreateOrderHandler handles requests to create a payment order for a template.
func (h *CommerceHandlers) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not get user from context")
		return
	}

	if !h.enforceRateLimit(w, r, app.RateLimitScopeOrder, principal.UserID, h.orderLimitPerMin) {
		return
	}

	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	handle, err := h.service.CreateTemplateOrder(r.Context(), principal, req.TemplateID)
	if err != nil {
		h.writeServiceError(w, err, "order creation failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, handle)
}

// VerifyPaymentHandler handles gateway payment confirmations from the client.
func (h *CommerceHandlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not get user from context")
		return
	}

	if !h.enforceRateLimit(w, r, app.RateLimitScopeVerify, principal.UserID, h.verifyLimitPerMin) {
		return
	}

	var req domain.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		h.writeError(w, http.StatusBadRequest, "order_id, payment_id and signature are required")
		return
	}

	result, err := h.service.VerifyAndSettle(r.Context(), req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		h.writeServiceError(w, err, "payment verification failed")
		return
	}

	h.writeJSON(w, http.StatusOK, buildVerifyPaymentResponse(result))
}

// CreateSubscriptionOrderHandler handles requests to start a subscription purchase.
func (h *CommerceHandlers) CreateSubscriptionOrderHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not get user from context")
		return
	}

	if !h.enforceRateLimit(w, r, app.RateLimitScopeOrder, principal.UserID, h.orderLimitPerMin) {
		return
	}

	var req domain.CreateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	handle, err := h.service.CreateSubscriptionOrder(r.Context(), principal, req.PlanID)
	if err != nil {
		h.writeServiceError(w, err, "subscription order creation failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, handle)
}

// GetSubscriptionHandler returns the caller's current subscription status.
func (h *CommerceHandlers) GetSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not get user from context")
		return
	}

	status, err := h.service.GetSubscriptionStatus(r.Context(), principal)
	if err != nil {
		h.writeServiceError(w, err, "subscription lookup failed")
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// CreateDiscountHandler handles admin requests to create a promotional discount.
func (h *CommerceHandlers) CreateDiscountHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not get user from context")
		return
	}

	var req domain.CreateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	discount, err := h.service.CreateDiscount(r.Context(), principal, req)
	if err != nil {
		h.writeServiceError(w, err, "discount creation failed")
		return
	}

	h.writeJSON(w, http.StatusCreated, discount)
}

// ListPurchasesHandler returns the caller's purchase history.
func (h *CommerceHandlers) ListPurchasesHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not get user from context")
		return
	}

	purchases, err := h.service.ListPurchases(r.Context(), principal)
	if err != nil {
		h.writeServiceError(w, err, "purchase listing failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"purchases": purchases})
}

// DashboardStatsHandler returns the caller's seller dashboard aggregates.
func (h *CommerceHandlers) DashboardStatsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Could not get user from context")
		return
	}

	stats, err := h.service.GetSellerStats(r.Context(), principal)
	if err != nil {
		h.writeServiceError(w, err, "stats lookup failed")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *CommerceHandlers) writeServiceError(w http.ResponseWriter, err error, logContext string) {
	switch {
	case errors.Is(err, store.ErrTemplateNotFound):
		h.writeError(w, http.StatusNotFound, "Template not found")
	case errors.Is(err, app.ErrTemplateNotPurchasable):
		h.writeError(w, http.StatusUnprocessableEntity, "This template cannot be purchased")
	case errors.Is(err, app.ErrAlreadyPurchased):
		h.writeError(w, http.StatusConflict, "You already own this template")
	case errors.Is(err, app.ErrInvalidPlan):
		h.writeError(w, http.StatusBadRequest, "Unknown subscription plan")
	case errors.Is(err, app.ErrInvalidDiscount):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidPrice):
		h.writeError(w, http.StatusUnprocessableEntity, "Template price cannot be processed")
	case errors.Is(err, app.ErrNotAuthorized):
		h.writeError(w, http.StatusForbidden, "Admin access required")
	case errors.Is(err, app.ErrPaymentVerification):
		h.writeError(w, http.StatusBadRequest, "Payment verification failed")
	case errors.Is(err, app.ErrOrderNotFound):
		h.writeError(w, http.StatusNotFound, "Payment order not found")
	case errors.Is(err, app.ErrSettlementTarget):
		h.writeError(w, http.StatusConflict, "The purchased item is no longer available; contact support for a refund")
	case errors.Is(err, app.ErrGateway):
		h.writeError(w, http.StatusBadGateway, "Payment gateway is temporarily unavailable")
	default:
		log.Printf("level=error component=api msg=%q err=%v", logContext, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *CommerceHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *CommerceHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
