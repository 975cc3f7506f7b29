package domain

import (
	"time"

	"github.com/google/uuid"
)

// Subscription plan identifiers. The set is fixed; prices come from config.
const (
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// ValidPlan reports whether planID names a sellable subscription plan.
func ValidPlan(planID string) bool {
	switch planID {
	case PlanStarter, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// Subscription is a buyer's active plan, keyed by user. Activation is an
// upsert so duplicate gateway confirmations for the same order are harmless.
type Subscription struct {
	UserID             uuid.UUID `json:"user_id"`
	Plan               string    `json:"plan"`
	Status             string    `json:"status"` // 'active' or 'inactive'
	CurrentPeriodStart time.Time `json:"current_period_start"`
	CurrentPeriodEnd   time.Time `json:"current_period_end"`
	GatewayOrderID     string    `json:"-"`
}

// SubscriptionStatus is the API view of a buyer's plan.
type SubscriptionStatus struct {
	Plan             string     `json:"plan"`
	IsActive         bool       `json:"is_active"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}
