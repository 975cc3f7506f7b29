/**
 * @description
 * This file implements discount administration and the background sweep that
 * removes expired discounts. Discounts are created by admins, apply either to
 * the whole catalog or to a named set of templates, and expire after a fixed
 * duration. Expiry is enforced twice: pricing ignores expired rows immediately,
 * and a cron job deletes them so the discounts table stays small.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: For the periodic sweep schedule.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/celora/commerce-service/internal/domain"
	"github.com/celora/commerce-service/internal/store"
)

const maxDiscountDurationHours = 24 * 90

// CreateDiscount creates a promotional discount. Admin only. An empty template
// set means the discount applies to the entire catalog.
func (s *Service) CreateDiscount(ctx context.Context, caller domain.Principal, req domain.CreateDiscountRequest) (*domain.Discount, error) {
	if !caller.IsAdmin() {
		return nil, ErrNotAuthorized
	}
	if req.Percentage < 1 || req.Percentage > 99 {
		return nil, fmt.Errorf("%w: percentage must be between 1 and 99, got %d", ErrInvalidDiscount, req.Percentage)
	}
	if req.DurationHours < 1 || req.DurationHours > maxDiscountDurationHours {
		return nil, fmt.Errorf("%w: duration must be between 1 and %d hours, got %d", ErrInvalidDiscount, maxDiscountDurationHours, req.DurationHours)
	}

	now := time.Now().UTC()
	discount := &domain.Discount{
		ID:           uuid.New(),
		Percentage:   req.Percentage,
		AppliesToAll: len(req.TemplateIDs) == 0,
		TemplateIDs:  req.TemplateIDs,
		ExpiresAt:    now.Add(time.Duration(req.DurationHours) * time.Hour),
		CreatedAt:    now,
	}
	if err := s.repo.CreateDiscount(ctx, discount); err != nil {
		return nil, fmt.Errorf("failed to create discount: %w", err)
	}

	log.Printf("level=info component=discounts msg=\"discount created\" discount_id=%s percentage=%d applies_to_all=%t templates=%d expires_at=%s",
		discount.ID, discount.Percentage, discount.AppliesToAll, len(discount.TemplateIDs), discount.ExpiresAt.Format(time.RFC3339))

	return discount, nil
}

// DiscountSweeper periodically deletes expired discounts.
type DiscountSweeper struct {
	repo     store.Repository
	schedule string
	cron     *cron.Cron
}

// NewDiscountSweeper creates the sweeper with a cron schedule expression
// (e.g. "@hourly").
func NewDiscountSweeper(repo store.Repository, schedule string) *DiscountSweeper {
	return &DiscountSweeper{
		repo:     repo,
		schedule: schedule,
		cron:     cron.New(),
	}
}

// Start registers the sweep job and starts the scheduler. One sweep runs
// immediately so a long-stopped service catches up on startup.
func (w *DiscountSweeper) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.sweep); err != nil {
		return fmt.Errorf("failed to schedule discount sweep: %w", err)
	}
	w.cron.Start()
	log.Printf("level=info component=discount_sweeper msg=\"scheduler started\" schedule=%q", w.schedule)
	go w.sweep()
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (w *DiscountSweeper) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	log.Printf("level=info component=discount_sweeper msg=\"scheduler stopped\"")
}

func (w *DiscountSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := w.repo.DeleteExpiredDiscounts(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("level=error component=discount_sweeper msg=\"sweep failed\" err=%v", err)
		return
	}
	if deleted > 0 {
		log.Printf("level=info component=discount_sweeper msg=\"expired discounts removed\" count=%d", deleted)
	}
}
