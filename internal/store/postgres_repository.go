/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL for templates, discounts, purchases, seller earnings,
 * and subscriptions.
 *
 * The settlement tables look like:
 *   purchases        (id, buyer_id, template_id, amount_paise, payment_reference,
 *                     created_at, UNIQUE (buyer_id, template_id))
 *   seller_earnings  (seller_id PRIMARY KEY, total_earnings_paise)
 *   discounts        (id, percentage, applies_to_all, expires_at, created_at)
 *   discount_templates (discount_id, template_id)
 *   subscriptions    (user_id PRIMARY KEY, plan, status, current_period_start,
 *                     current_period_end, gateway_order_id)
 *
 * The unique constraint on (buyer_id, template_id) is what makes the purchase
 * commit exactly-once under concurrent confirmations; see CommitPurchase.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/celora/commerce-service/internal/domain"
)

var (
	ErrTemplateNotFound     = errors.New("template not found")
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindTemplateByID retrieves a template from the catalog by its ID.
func (r *PostgresRepository) FindTemplateByID(ctx context.Context, templateID uuid.UUID) (*domain.Template, error) {
	var t domain.Template
	query := `
		SELECT id, seller_id, title, price_paise, is_free, subscription_eligible, status, downloads, file_url, created_at
		FROM templates
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, templateID).Scan(
		&t.ID,
		&t.SellerID,
		&t.Title,
		&t.PricePaise,
		&t.IsFree,
		&t.SubscriptionEligible,
		&t.Status,
		&t.Downloads,
		&t.FileURL,
		&t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	return &t, nil
}

// CreateDiscount inserts a new promotional discount and its template scope.
func (r *PostgresRepository) CreateDiscount(ctx context.Context, d *domain.Discount) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO discounts (id, percentage, applies_to_all, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err = tx.Exec(ctx, insertQuery, d.ID, d.Percentage, d.AppliesToAll, d.ExpiresAt, d.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert discount: %w", err)
	}

	for _, templateID := range d.TemplateIDs {
		if _, err = tx.Exec(ctx,
			`INSERT INTO discount_templates (discount_id, template_id) VALUES ($1, $2)`,
			d.ID, templateID,
		); err != nil {
			return fmt.Errorf("failed to insert discount scope: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListDiscountsForTemplate returns all unexpired discounts whose scope covers
// the given template. Selection policy (largest percentage, most recent) is
// applied by the caller, not here.
func (r *PostgresRepository) ListDiscountsForTemplate(ctx context.Context, templateID uuid.UUID, now time.Time) ([]domain.Discount, error) {
	query := `
		SELECT d.id, d.percentage, d.applies_to_all, d.expires_at, d.created_at
		FROM discounts d
		WHERE d.expires_at > $2
		  AND (d.applies_to_all OR EXISTS (
		      SELECT 1 FROM discount_templates dt
		      WHERE dt.discount_id = d.id AND dt.template_id = $1
		  ))
	`
	rows, err := r.db.Query(ctx, query, templateID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []domain.Discount
	for rows.Next() {
		var d domain.Discount
		if err := rows.Scan(&d.ID, &d.Percentage, &d.AppliesToAll, &d.ExpiresAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		discounts = append(discounts, d)
	}
	return discounts, rows.Err()
}

// DeleteExpiredDiscounts removes discounts whose expiry is at or before the
// cutoff. Resolution already ignores expired discounts; this keeps the table
// from growing without bound.
func (r *PostgresRepository) DeleteExpiredDiscounts(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM discounts WHERE expires_at <= $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CommitPurchase records a settled template sale exactly once. The insert, the
// download counter, and the seller earnings update are a single database
// transaction: either all three apply or none do. A duplicate confirmation for
// the same (buyer, template) hits the unique constraint, mutates nothing, and
// gets the already-committed purchase back.
func (r *PostgresRepository) CommitPurchase(ctx context.Context, p *domain.Purchase, sellerID uuid.UUID, sellerSharePaise int64) (*domain.Purchase, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Insert-if-absent. Concurrent commits for the same key serialize on the
	// unique constraint; exactly one caller sees a returned row.
	insertQuery := `
		INSERT INTO purchases (id, buyer_id, template_id, amount_paise, payment_reference, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (buyer_id, template_id) DO NOTHING
		RETURNING id, created_at
	`
	var insertedID uuid.UUID
	var createdAt time.Time
	err = tx.QueryRow(ctx, insertQuery, p.ID, p.BuyerID, p.TemplateID, p.AmountPaise, p.PaymentReference).Scan(&insertedID, &createdAt)
	if err == pgx.ErrNoRows {
		// Already settled: return the existing record unchanged.
		existing, findErr := r.findPurchaseByKey(ctx, tx, p.BuyerID, p.TemplateID)
		if findErr != nil {
			return nil, false, findErr
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return nil, false, commitErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert purchase: %w", err)
	}

	// 2. Advance the template download counter.
	if _, err = tx.Exec(ctx, `UPDATE templates SET downloads = downloads + 1 WHERE id = $1`, p.TemplateID); err != nil {
		return nil, false, fmt.Errorf("failed to update download counter: %w", err)
	}

	// 3. Advance the seller earnings aggregate by the commission share.
	earningsQuery := `
		INSERT INTO seller_earnings (seller_id, total_earnings_paise)
		VALUES ($1, $2)
		ON CONFLICT (seller_id) DO UPDATE
		SET total_earnings_paise = seller_earnings.total_earnings_paise + EXCLUDED.total_earnings_paise
	`
	if _, err = tx.Exec(ctx, earningsQuery, sellerID, sellerSharePaise); err != nil {
		return nil, false, fmt.Errorf("failed to update seller earnings: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("failed to commit purchase: %w", err)
	}

	committed := *p
	committed.ID = insertedID
	committed.CreatedAt = createdAt
	return &committed, true, nil
}

func (r *PostgresRepository) findPurchaseByKey(ctx context.Context, tx pgx.Tx, buyerID, templateID uuid.UUID) (*domain.Purchase, error) {
	var p domain.Purchase
	query := `
		SELECT id, buyer_id, template_id, amount_paise, payment_reference, created_at
		FROM purchases
		WHERE buyer_id = $1 AND template_id = $2
	`
	err := tx.QueryRow(ctx, query, buyerID, templateID).Scan(
		&p.ID, &p.BuyerID, &p.TemplateID, &p.AmountPaise, &p.PaymentReference, &p.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	return &p, nil
}

// HasPurchase reports whether the buyer already owns the template.
func (r *PostgresRepository) HasPurchase(ctx context.Context, buyerID, templateID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM purchases WHERE buyer_id = $1 AND template_id = $2)`
	if err := r.db.QueryRow(ctx, query, buyerID, templateID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ListPurchasesByBuyer returns all purchases made by a buyer, newest first.
func (r *PostgresRepository) ListPurchasesByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Purchase, error) {
	query := `
		SELECT id, buyer_id, template_id, amount_paise, payment_reference, created_at
		FROM purchases
		WHERE buyer_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []domain.Purchase
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.BuyerID, &p.TemplateID, &p.AmountPaise, &p.PaymentReference, &p.CreatedAt); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// GetSellerStats aggregates earnings, downloads, template count, and the five
// most recent sales for a seller's dashboard.
func (r *PostgresRepository) GetSellerStats(ctx context.Context, sellerID uuid.UUID) (*domain.SellerStats, error) {
	stats := &domain.SellerStats{}

	query := `
		SELECT
			COALESCE((SELECT total_earnings_paise FROM seller_earnings WHERE seller_id = $1), 0),
			COALESCE((SELECT SUM(downloads) FROM templates WHERE seller_id = $1), 0),
			(SELECT COUNT(*) FROM templates WHERE seller_id = $1)
	`
	err := r.db.QueryRow(ctx, query, sellerID).Scan(
		&stats.TotalEarningsPaise,
		&stats.TotalDownloads,
		&stats.TotalTemplates,
	)
	if err != nil {
		return nil, err
	}

	recentQuery := `
		SELECT p.id, p.buyer_id, p.template_id, p.amount_paise, p.payment_reference, p.created_at
		FROM purchases p
		JOIN templates t ON t.id = p.template_id
		WHERE t.seller_id = $1
		ORDER BY p.created_at DESC
		LIMIT 5
	`
	rows, err := r.db.Query(ctx, recentQuery, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.BuyerID, &p.TemplateID, &p.AmountPaise, &p.PaymentReference, &p.CreatedAt); err != nil {
			return nil, err
		}
		stats.RecentPurchases = append(stats.RecentPurchases, p)
	}
	return stats, rows.Err()
}

// ActivateSubscription creates or replaces the buyer's plan record, keyed by
// user. The upsert only fires when the confirmation comes from a gateway order
// the row has not seen yet; a redelivered confirmation for the same order is a
// no-op, and the existing record is read back with fresh=false so the billing
// window stays where the first settlement put it.
func (r *PostgresRepository) ActivateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, bool, error) {
	var activated domain.Subscription
	query := `
		INSERT INTO subscriptions (user_id, plan, status, current_period_start, current_period_end, gateway_order_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			gateway_order_id = EXCLUDED.gateway_order_id,
			updated_at = NOW()
		WHERE subscriptions.gateway_order_id IS DISTINCT FROM EXCLUDED.gateway_order_id
		RETURNING user_id, plan, status, current_period_start, current_period_end, gateway_order_id
	`
	err := r.db.QueryRow(ctx, query,
		sub.UserID,
		sub.Plan,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.GatewayOrderID,
	).Scan(
		&activated.UserID,
		&activated.Plan,
		&activated.Status,
		&activated.CurrentPeriodStart,
		&activated.CurrentPeriodEnd,
		&activated.GatewayOrderID,
	)
	if err == pgx.ErrNoRows {
		// Conflict on an already-applied gateway order: nothing changed.
		existing, findErr := r.GetSubscriptionByUserID(ctx, sub.UserID)
		if findErr != nil {
			return nil, false, findErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &activated, true, nil
}

// GetSubscriptionByUserID retrieves the buyer's current plan record.
func (r *PostgresRepository) GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	var sub domain.Subscription
	query := `
		SELECT user_id, plan, status, current_period_start, current_period_end, gateway_order_id
		FROM subscriptions
		WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&sub.UserID,
		&sub.Plan,
		&sub.Status,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.GatewayOrderID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}
