/**
 * @description
 * This file defines the core domain models for the commerce-service. These structs
 * represent the entities used throughout the purchase settlement flow: catalog
 * templates, promotional discounts, payment orders, and durable purchase records.
 *
 * @notes
 * - Amounts are stored as `int64` in the smallest currency unit (paise), which
 *   avoids floating-point inaccuracies with financial data.
 * - A Purchase is unique per (buyer_id, template_id); the storage layer enforces
 *   this with a unique constraint so settlement stays exactly-once.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Template is the catalog view of a sellable item. The commerce core reads it
// and only ever mutates the download counter (via the purchase commit).
type Template struct {
	ID                   uuid.UUID `json:"id"`
	SellerID             uuid.UUID `json:"seller_id"`
	Title                string    `json:"title"`
	PricePaise           int64     `json:"price"` // in paise
	IsFree               bool      `json:"is_free"`
	SubscriptionEligible bool      `json:"subscription_eligible"`
	Status               string    `json:"status"` // e.g., 'pending', 'approved', 'rejected'
	Downloads            int64     `json:"downloads"`
	FileURL              string    `json:"file_url,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Purchasable reports whether a template can be sold right now. Free templates
// are downloaded directly and never go through the payment flow.
func (t *Template) Purchasable() bool {
	return t.Status == "approved" && !t.IsFree
}

// Discount is a promotional percentage reduction, scoped either to the whole
// catalog or to an explicit set of templates. Discounts are never edited after
// creation; they expire lazily once ExpiresAt has passed.
type Discount struct {
	ID           uuid.UUID   `json:"id"`
	Percentage   int         `json:"percentage"` // 1..99
	AppliesToAll bool        `json:"applies_to_all"`
	TemplateIDs  []uuid.UUID `json:"template_ids,omitempty"`
	ExpiresAt    time.Time   `json:"expires_at"`
	CreatedAt    time.Time   `json:"created_at"`
}

// ActiveFor reports whether the discount is unexpired at `now` and covers the
// given template.
func (d *Discount) ActiveFor(templateID uuid.UUID, now time.Time) bool {
	if !d.ExpiresAt.After(now) {
		return false
	}
	if d.AppliesToAll {
		return true
	}
	for _, id := range d.TemplateIDs {
		if id == templateID {
			return true
		}
	}
	return false
}

// PriceQuote is the auditable breakdown of how a payable amount was derived.
type PriceQuote struct {
	OriginalPricePaise int64      `json:"original_price"`
	FinalPricePaise    int64      `json:"final_price"`
	DiscountPercentage int        `json:"discount_percentage"`
	DiscountID         *uuid.UUID `json:"discount_id,omitempty"`
}

// OrderHandle is returned to the client after a payment order has been
// registered with the gateway. The order itself lives at the gateway; we keep
// no local copy beyond this response.
type OrderHandle struct {
	GatewayOrderID string     `json:"order_id"`
	AmountPaise    int64      `json:"amount"`
	Currency       string     `json:"currency"`
	Quote          PriceQuote `json:"price_breakdown"`
}

// Purchase is the durable record of a settled template sale. It maps directly
// to the `purchases` table.
type Purchase struct {
	ID               uuid.UUID `json:"id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	TemplateID       uuid.UUID `json:"template_id"`
	AmountPaise      int64     `json:"amount"` // gross amount paid, in paise
	PaymentReference string    `json:"payment_reference"`
	CreatedAt        time.Time `json:"created_at"`
}

// SettlementResult reports what a verified payment was converted into.
type SettlementResult struct {
	Kind        string        `json:"kind"` // 'template' or 'subscription'
	Purchase    *Purchase     `json:"purchase,omitempty"`
	DownloadURL string        `json:"download_url,omitempty"`
	Plan        string        `json:"plan,omitempty"`
	Replayed    bool          `json:"-"` // true when a duplicate confirmation hit an already-settled order
	Subscribed  *Subscription `json:"-"`
}

// SellerStats aggregates a seller's earnings and catalog activity for the
// dashboard. Earnings are only ever advanced by a successful purchase commit.
type SellerStats struct {
	TotalEarningsPaise int64      `json:"total_earnings"`
	TotalDownloads     int64      `json:"total_downloads"`
	TotalTemplates     int64      `json:"total_templates"`
	RecentPurchases    []Purchase `json:"recent_purchases"`
}

// Principal is the authenticated caller of a core operation. It is always
// passed explicitly; the core never reads identity from ambient state.
type Principal struct {
	UserID uuid.UUID
	Role   string // e.g., 'buyer', 'seller', 'admin'
}

// IsAdmin reports whether the principal may call admin-only operations.
func (p Principal) IsAdmin() bool {
	return p.Role == "admin"
}

// CreateOrderRequest is the DTO for template order creation.
type CreateOrderRequest struct {
	TemplateID uuid.UUID `json:"template_id"`
}

// VerifyPaymentRequest is the DTO for gateway payment confirmations.
type VerifyPaymentRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// CreateSubscriptionRequest is the DTO for subscription order creation.
type CreateSubscriptionRequest struct {
	PlanID string `json:"plan_id"`
}

// CreateDiscountRequest is the DTO for the admin discount endpoint.
type CreateDiscountRequest struct {
	Percentage    int         `json:"percentage"`
	DurationHours int         `json:"duration_hours"`
	TemplateIDs   []uuid.UUID `json:"template_ids,omitempty"`
}
