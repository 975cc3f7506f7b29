/**
 * @description
 * Pure pricing arithmetic for the settlement flow: best-discount selection,
 * final price computation, and the seller commission split. Everything here is
 * deterministic integer math on paise so totals reproduce exactly across runs
 * and accumulations.
 */
package app

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/celora/commerce-service/internal/domain"
)

// ErrInvalidPrice is returned when a price cannot be computed: the template is
// free, or its base price is not a positive amount.
var ErrInvalidPrice = errors.New("invalid price for paid template")

// BestDiscount selects the discount to apply to a template from the given
// candidates. Policy: among unexpired discounts whose scope covers the
// template, pick the largest percentage; ties go to the most recently created.
// A nil result means full price, which is a normal outcome, not an error.
func BestDiscount(discounts []domain.Discount, templateID uuid.UUID, now time.Time) *domain.Discount {
	var best *domain.Discount
	for i := range discounts {
		d := &discounts[i]
		if !d.ActiveFor(templateID, now) {
			continue
		}
		if best == nil ||
			d.Percentage > best.Percentage ||
			(d.Percentage == best.Percentage && d.CreatedAt.After(best.CreatedAt)) {
			best = d
		}
	}
	return best
}

// ComputeFinalPrice applies a discount to a base price in paise:
// floor(base * (100 - pct) / 100). With no discount the base price passes
// through unchanged. Base prices that are not positive are rejected; free
// templates never reach this function.
func ComputeFinalPrice(basePaise int64, discount *domain.Discount) (int64, error) {
	if basePaise <= 0 {
		return 0, ErrInvalidPrice
	}
	if discount == nil {
		return basePaise, nil
	}
	if discount.Percentage <= 0 || discount.Percentage >= 100 {
		return 0, ErrInvalidPrice
	}
	return basePaise * int64(100-discount.Percentage) / 100, nil
}

// Quote bundles the price computation into the auditable breakdown stored with
// the gateway order.
func Quote(basePaise int64, discount *domain.Discount) (domain.PriceQuote, error) {
	final, err := ComputeFinalPrice(basePaise, discount)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	quote := domain.PriceQuote{
		OriginalPricePaise: basePaise,
		FinalPricePaise:    final,
	}
	if discount != nil {
		quote.DiscountPercentage = discount.Percentage
		id := discount.ID
		quote.DiscountID = &id
	}
	return quote, nil
}

// SellerShare computes the seller's cut of a gross sale amount using the
// commission rate in basis points (6500 = 65%). Integer multiply-then-divide
// keeps accumulated earnings free of floating-point drift.
func SellerShare(grossPaise int64, commissionBps int) int64 {
	if grossPaise <= 0 || commissionBps <= 0 {
		return 0
	}
	return grossPaise * int64(commissionBps) / 10000
}
