/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the commerce-service. The interface
 * decouples the settlement logic from the PostgreSQL implementation, which keeps
 * the exactly-once commit contract testable with in-memory stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/celora/commerce-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Catalog methods (read-only to the commerce core)
	FindTemplateByID(ctx context.Context, templateID uuid.UUID) (*domain.Template, error)

	// Discount methods
	CreateDiscount(ctx context.Context, d *domain.Discount) error
	ListDiscountsForTemplate(ctx context.Context, templateID uuid.UUID, now time.Time) ([]domain.Discount, error)
	DeleteExpiredDiscounts(ctx context.Context, cutoff time.Time) (int64, error)

	// Purchase ledger methods. CommitPurchase is the exactly-once guard: the
	// purchase insert, the template download counter, and the seller earnings
	// update happen in one database transaction. When a purchase for the same
	// (buyer, template) already exists, the existing record is returned with
	// created=false and nothing is mutated.
	CommitPurchase(ctx context.Context, p *domain.Purchase, sellerID uuid.UUID, sellerSharePaise int64) (purchase *domain.Purchase, created bool, err error)
	HasPurchase(ctx context.Context, buyerID, templateID uuid.UUID) (bool, error)
	ListPurchasesByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Purchase, error)

	// Seller aggregate methods
	GetSellerStats(ctx context.Context, sellerID uuid.UUID) (*domain.SellerStats, error)

	// Subscription methods. ActivateSubscription is keyed by user and carries
	// the same exactly-once contract as CommitPurchase: a redelivered
	// confirmation for a gateway order that already activated the plan returns
	// the existing record with activated=false and mutates nothing, so the
	// billing window never shifts on replay.
	ActivateSubscription(ctx context.Context, sub *domain.Subscription) (activated *domain.Subscription, fresh bool, err error)
	GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error)
}
