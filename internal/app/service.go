/**
 * @description
 * This file contains the core business logic for the commerce-service. The
 * `Service` struct orchestrates the purchase settlement flow, coordinating
 * between the database repository, the Razorpay gateway client, and the message
 * broker.
 *
 * Key features:
 * - Creates payment orders for template purchases and subscription plans.
 * - Verifies gateway payment confirmations and settles them exactly once.
 * - Applies promotional discounts and the platform commission split.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/razorpay, pkg/rabbitmq: For external service communication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/celora/commerce-service/internal/domain"
	"github.com/celora/commerce-service/internal/store"
	"github.com/celora/commerce-service/pkg/rabbitmq"
	"github.com/celora/commerce-service/pkg/razorpay"
)

const (
	orderTypeTemplate     = "template"
	orderTypeSubscription = "subscription"
)

var (
	ErrTemplateNotPurchasable = errors.New("template is not purchasable")
	ErrAlreadyPurchased       = errors.New("template already purchased")
	ErrInvalidPlan            = errors.New("unknown subscription plan")
	ErrInvalidDiscount        = errors.New("invalid discount parameters")
	ErrNotAuthorized          = errors.New("caller is not authorized for this operation")
	ErrPaymentVerification    = errors.New("payment verification failed")
	ErrOrderNotFound          = errors.New("gateway order not found")
	ErrSettlementTarget       = errors.New("settlement target no longer exists")
	ErrGateway                = errors.New("payment gateway request failed")
)

// PaymentGateway is the subset of the Razorpay client the service depends on.
// Declared here so tests can substitute a fake gateway.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes razorpay.OrderNotes) (*razorpay.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*razorpay.Order, error)
	VerifySignature(orderID, paymentID, signature string) error
}

// Service provides the core business logic for purchase settlement.
type Service struct {
	repo          store.Repository
	gateway       PaymentGateway
	eventProducer rabbitmq.Publisher

	currency      string
	commissionBps int
	minPricePaise int64
	planPrices    map[string]int64
	eventsExch    string
}

// NewService creates a new commerce service instance.
func NewService(repo store.Repository, gateway PaymentGateway, producer rabbitmq.Publisher, currency string, commissionBps int, minPricePaise int64, planPrices map[string]int64, eventsExchange string) *Service {
	return &Service{
		repo:          repo,
		gateway:       gateway,
		eventProducer: producer,
		currency:      currency,
		commissionBps: commissionBps,
		minPricePaise: minPricePaise,
		planPrices:    planPrices,
		eventsExch:    eventsExchange,
	}
}

// templateReceipt builds the deterministic gateway receipt for a template
// order. The same (template, buyer) pair always maps to the same receipt, so a
// retried order creation reconciles to one logical purchase on the gateway side.
func templateReceipt(templateID, buyerID uuid.UUID) string {
	return fmt.Sprintf("template_%s_%s", templateID, buyerID)
}

func planReceipt(planID string, buyerID uuid.UUID) string {
	return fmt.Sprintf("plan_%s_%s", planID, buyerID)
}

// CreateTemplateOrder resolves the payable price for a template and registers a
// payment order with the gateway. The buyer must not already own the template;
// this pre-check keeps obviously doomed orders off the gateway, while the
// ledger's commit-time guard remains the real duplicate barrier.
func (s *Service) CreateTemplateOrder(ctx context.Context, buyer domain.Principal, templateID uuid.UUID) (*domain.OrderHandle, error) {
	template, err := s.repo.FindTemplateByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !template.Purchasable() {
		return nil, ErrTemplateNotPurchasable
	}
	if template.PricePaise < s.minPricePaise {
		log.Printf("level=warn component=orders msg=\"template priced below configured minimum\" template_id=%s price=%d min=%d", template.ID, template.PricePaise, s.minPricePaise)
		return nil, ErrTemplateNotPurchasable
	}

	owned, err := s.repo.HasPurchase(ctx, buyer.UserID, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing purchase: %w", err)
	}
	if owned {
		return nil, ErrAlreadyPurchased
	}

	now := time.Now().UTC()
	candidates, err := s.repo.ListDiscountsForTemplate(ctx, templateID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load discounts: %w", err)
	}
	discount := BestDiscount(candidates, templateID, now)

	quote, err := Quote(template.PricePaise, discount)
	if err != nil {
		return nil, err
	}

	notes := razorpay.OrderNotes{
		Type:               orderTypeTemplate,
		TemplateID:         template.ID.String(),
		BuyerID:            buyer.UserID.String(),
		OriginalPrice:      quote.OriginalPricePaise,
		FinalPrice:         quote.FinalPricePaise,
		DiscountPercentage: quote.DiscountPercentage,
	}
	if quote.DiscountID != nil {
		notes.DiscountID = quote.DiscountID.String()
	}

	order, err := s.gateway.CreateOrder(ctx, quote.FinalPricePaise, s.currency, templateReceipt(template.ID, buyer.UserID), notes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	log.Printf("level=info component=orders msg=\"template order created\" order_id=%s template_id=%s buyer_id=%s amount=%d discount_pct=%d",
		order.ID, template.ID, buyer.UserID, order.Amount, quote.DiscountPercentage)

	return &domain.OrderHandle{
		GatewayOrderID: order.ID,
		AmountPaise:    order.Amount,
		Currency:       order.Currency,
		Quote:          quote,
	}, nil
}

// CreateSubscriptionOrder registers a payment order for one of the fixed
// subscription plans.
func (s *Service) CreateSubscriptionOrder(ctx context.Context, buyer domain.Principal, planID string) (*domain.OrderHandle, error) {
	if !domain.ValidPlan(planID) {
		return nil, ErrInvalidPlan
	}
	price, ok := s.planPrices[planID]
	if !ok || price <= 0 {
		return nil, ErrInvalidPlan
	}

	notes := razorpay.OrderNotes{
		Type:    orderTypeSubscription,
		Plan:    planID,
		BuyerID: buyer.UserID.String(),
	}

	order, err := s.gateway.CreateOrder(ctx, price, s.currency, planReceipt(planID, buyer.UserID), notes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	log.Printf("level=info component=orders msg=\"subscription order created\" order_id=%s plan=%s buyer_id=%s amount=%d",
		order.ID, planID, buyer.UserID, order.Amount)

	return &domain.OrderHandle{
		GatewayOrderID: order.ID,
		AmountPaise:    order.Amount,
		Currency:       order.Currency,
		Quote: domain.PriceQuote{
			OriginalPricePaise: price,
			FinalPricePaise:    price,
		},
	}, nil
}

// VerifyAndSettle validates a gateway payment confirmation and converts it into
// durable state. The signature check fails closed; the order is then re-fetched
// from the gateway so only its stored metadata drives settlement, never values
// supplied by the client. Template payments commit to the purchase ledger;
// subscription payments activate the buyer's plan.
func (s *Service) VerifyAndSettle(ctx context.Context, orderID, paymentID, signature string) (*domain.SettlementResult, error) {
	if err := s.gateway.VerifySignature(orderID, paymentID, signature); err != nil {
		// Verification-primitive errors are treated the same as a mismatch:
		// never assume success when the verifier cannot say yes.
		log.Printf("level=warn component=settlement outcome=reject reason=signature_invalid order_id=%s err=%v", orderID, err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentVerification, err)
	}

	order, err := s.gateway.FetchOrder(ctx, orderID)
	if err != nil {
		var apiErr *razorpay.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	switch order.Notes.Type {
	case orderTypeTemplate:
		return s.settleTemplatePurchase(ctx, order, paymentID)
	case orderTypeSubscription:
		return s.settleSubscription(ctx, order)
	default:
		log.Printf("level=error component=settlement msg=\"order has unknown type marker\" order_id=%s type=%q", order.ID, order.Notes.Type)
		return nil, fmt.Errorf("%w: unknown order type %q", ErrSettlementTarget, order.Notes.Type)
	}
}

func (s *Service) settleTemplatePurchase(ctx context.Context, order *razorpay.Order, paymentID string) (*domain.SettlementResult, error) {
	templateID, err := uuid.Parse(order.Notes.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed template id in order notes: %v", ErrSettlementTarget, err)
	}
	buyerID, err := uuid.Parse(order.Notes.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed buyer id in order notes: %v", ErrSettlementTarget, err)
	}

	template, err := s.repo.FindTemplateByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, store.ErrTemplateNotFound) {
			log.Printf("level=warn component=settlement msg=\"paid template vanished before settlement\" order_id=%s template_id=%s", order.ID, templateID)
			return nil, fmt.Errorf("%w: template %s", ErrSettlementTarget, templateID)
		}
		return nil, err
	}

	// The gateway's amount is authoritative: it is what the buyer actually paid.
	gross := order.Amount
	share := SellerShare(gross, s.commissionBps)

	purchase := &domain.Purchase{
		ID:               uuid.New(),
		BuyerID:          buyerID,
		TemplateID:       template.ID,
		AmountPaise:      gross,
		PaymentReference: paymentID,
	}
	committed, created, err := s.repo.CommitPurchase(ctx, purchase, template.SellerID, share)
	if err != nil {
		return nil, fmt.Errorf("failed to commit purchase: %w", err)
	}

	if created {
		s.publishEvent(ctx, "purchase.settled", rabbitmq.PurchaseSettledEvent{
			PurchaseID:  committed.ID,
			BuyerID:     committed.BuyerID,
			TemplateID:  committed.TemplateID,
			SellerID:    template.SellerID,
			AmountPaise: committed.AmountPaise,
			SellerShare: share,
			Timestamp:   time.Now().UTC(),
		})
		log.Printf("level=info component=settlement outcome=committed purchase_id=%s buyer_id=%s template_id=%s amount=%d seller_share=%d",
			committed.ID, committed.BuyerID, committed.TemplateID, committed.AmountPaise, share)
	} else {
		// Benign: the gateway redelivered a confirmation we already settled.
		log.Printf("level=info component=settlement outcome=replayed purchase_id=%s buyer_id=%s template_id=%s",
			committed.ID, committed.BuyerID, committed.TemplateID)
	}

	return &domain.SettlementResult{
		Kind:        orderTypeTemplate,
		Purchase:    committed,
		DownloadURL: template.FileURL,
		Replayed:    !created,
	}, nil
}

func (s *Service) settleSubscription(ctx context.Context, order *razorpay.Order) (*domain.SettlementResult, error) {
	if !domain.ValidPlan(order.Notes.Plan) {
		log.Printf("level=warn component=settlement msg=\"paid plan no longer offered\" order_id=%s plan=%q", order.ID, order.Notes.Plan)
		return nil, fmt.Errorf("%w: plan %q", ErrSettlementTarget, order.Notes.Plan)
	}
	buyerID, err := uuid.Parse(order.Notes.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed buyer id in order notes: %v", ErrSettlementTarget, err)
	}

	now := time.Now().UTC()
	sub, fresh, err := s.repo.ActivateSubscription(ctx, &domain.Subscription{
		UserID:             buyerID,
		Plan:               order.Notes.Plan,
		Status:             "active",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		GatewayOrderID:     order.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}

	if fresh {
		s.publishEvent(ctx, "subscription.activated", rabbitmq.SubscriptionActivatedEvent{
			UserID:    sub.UserID,
			Plan:      sub.Plan,
			Timestamp: now,
		})
		log.Printf("level=info component=settlement outcome=subscribed user_id=%s plan=%s order_id=%s", sub.UserID, sub.Plan, order.ID)
	} else {
		// Benign: the gateway redelivered a confirmation we already applied.
		log.Printf("level=info component=settlement outcome=replayed user_id=%s plan=%s order_id=%s", sub.UserID, sub.Plan, order.ID)
	}

	return &domain.SettlementResult{
		Kind:       orderTypeSubscription,
		Plan:       sub.Plan,
		Subscribed: sub,
		Replayed:   !fresh,
	}, nil
}

// publishEvent emits a settlement event. Publish failures are logged and never
// fail the settlement: the money has already moved.
func (s *Service) publishEvent(ctx context.Context, routingKey string, body interface{}) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, s.eventsExch, routingKey, body); err != nil {
		log.Printf("level=warn component=settlement msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}

// ListPurchases returns the buyer's purchase history.
func (s *Service) ListPurchases(ctx context.Context, buyer domain.Principal) ([]domain.Purchase, error) {
	return s.repo.ListPurchasesByBuyer(ctx, buyer.UserID)
}

// GetSellerStats returns the dashboard aggregates for a seller.
func (s *Service) GetSellerStats(ctx context.Context, seller domain.Principal) (*domain.SellerStats, error) {
	return s.repo.GetSellerStats(ctx, seller.UserID)
}

// GetSubscriptionStatus returns the buyer's current plan. Users without a
// subscription record are on the free tier.
func (s *Service) GetSubscriptionStatus(ctx context.Context, buyer domain.Principal) (*domain.SubscriptionStatus, error) {
	sub, err := s.repo.GetSubscriptionByUserID(ctx, buyer.UserID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return &domain.SubscriptionStatus{Plan: "free", IsActive: false}, nil
		}
		return nil, err
	}

	status := &domain.SubscriptionStatus{
		Plan:     sub.Plan,
		IsActive: sub.Status == "active" && sub.CurrentPeriodEnd.After(time.Now()),
	}
	if status.IsActive {
		end := sub.CurrentPeriodEnd
		status.CurrentPeriodEnd = &end
	}
	return status, nil
}
