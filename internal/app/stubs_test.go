package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/celora/commerce-service/internal/domain"
	"github.com/celora/commerce-service/internal/store"
	"github.com/celora/commerce-service/pkg/rabbitmq"
	"github.com/celora/commerce-service/pkg/razorpay"
)

// purchaseKey identifies a logical purchase the same way the database unique
// constraint does.
type purchaseKey struct {
	buyerID    uuid.UUID
	templateID uuid.UUID
}

// stubRepository is an in-memory store.Repository. CommitPurchase honors the
// insert-if-absent contract under a mutex so concurrent settlement tests
// exercise the same guarantees the unique constraint provides.
type stubRepository struct {
	mu sync.Mutex

	templates     map[uuid.UUID]*domain.Template
	discounts     []domain.Discount
	purchases     map[purchaseKey]*domain.Purchase
	earnings      map[uuid.UUID]int64
	subscriptions map[uuid.UUID]*domain.Subscription

	commitCalls int
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		templates:     make(map[uuid.UUID]*domain.Template),
		purchases:     make(map[purchaseKey]*domain.Purchase),
		earnings:      make(map[uuid.UUID]int64),
		subscriptions: make(map[uuid.UUID]*domain.Subscription),
	}
}

func (r *stubRepository) FindTemplateByID(ctx context.Context, templateID uuid.UUID) (*domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[templateID]
	if !ok {
		return nil, store.ErrTemplateNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *stubRepository) CreateDiscount(ctx context.Context, d *domain.Discount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discounts = append(r.discounts, *d)
	return nil
}

func (r *stubRepository) ListDiscountsForTemplate(ctx context.Context, templateID uuid.UUID, now time.Time) ([]domain.Discount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Discount
	for _, d := range r.discounts {
		if d.ActiveFor(templateID, now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *stubRepository) DeleteExpiredDiscounts(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []domain.Discount
	var deleted int64
	for _, d := range r.discounts {
		if d.ExpiresAt.After(cutoff) {
			kept = append(kept, d)
		} else {
			deleted++
		}
	}
	r.discounts = kept
	return deleted, nil
}

func (r *stubRepository) CommitPurchase(ctx context.Context, p *domain.Purchase, sellerID uuid.UUID, sellerSharePaise int64) (*domain.Purchase, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commitCalls++

	key := purchaseKey{buyerID: p.BuyerID, templateID: p.TemplateID}
	if existing, ok := r.purchases[key]; ok {
		copied := *existing
		return &copied, false, nil
	}

	stored := *p
	stored.CreatedAt = time.Now().UTC()
	r.purchases[key] = &stored
	if t, ok := r.templates[p.TemplateID]; ok {
		t.Downloads++
	}
	r.earnings[sellerID] += sellerSharePaise

	copied := stored
	return &copied, true, nil
}

func (r *stubRepository) HasPurchase(ctx context.Context, buyerID, templateID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.purchases[purchaseKey{buyerID: buyerID, templateID: templateID}]
	return ok, nil
}

func (r *stubRepository) ListPurchasesByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Purchase
	for _, p := range r.purchases {
		if p.BuyerID == buyerID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *stubRepository) GetSellerStats(ctx context.Context, sellerID uuid.UUID) (*domain.SellerStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.SellerStats{TotalEarningsPaise: r.earnings[sellerID]}
	for _, t := range r.templates {
		if t.SellerID == sellerID {
			stats.TotalTemplates++
			stats.TotalDownloads += t.Downloads
		}
	}
	return stats, nil
}

func (r *stubRepository) ActivateSubscription(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.subscriptions[sub.UserID]; ok && existing.GatewayOrderID == sub.GatewayOrderID {
		copied := *existing
		return &copied, false, nil
	}
	stored := *sub
	r.subscriptions[sub.UserID] = &stored
	copied := stored
	return &copied, true, nil
}

func (r *stubRepository) GetSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subscriptions[userID]
	if !ok {
		return nil, store.ErrSubscriptionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *stubRepository) sellerEarnings(sellerID uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.earnings[sellerID]
}

// stubGateway is an in-memory PaymentGateway that records created orders and
// counts calls.
type stubGateway struct {
	mu sync.Mutex

	orders       map[string]*razorpay.Order
	createCalls  int
	fetchCalls   int
	createErr    error
	fetchErr     error
	signatureErr error
}

func newStubGateway() *stubGateway {
	return &stubGateway{orders: make(map[string]*razorpay.Order)}
}

func (g *stubGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes razorpay.OrderNotes) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	order := &razorpay.Order{
		ID:       "order_" + uuid.NewString(),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
		Notes:    notes,
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *stubGateway) FetchOrder(ctx context.Context, orderID string) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetchCalls++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	order, ok := g.orders[orderID]
	if !ok {
		return nil, &razorpay.APIError{StatusCode: 404}
	}
	copied := *order
	return &copied, nil
}

func (g *stubGateway) VerifySignature(orderID, paymentID, signature string) error {
	return g.signatureErr
}

// stubPublisher records published events.
type stubPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

func (p *stubPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *stubPublisher) Close() {}

func (p *stubPublisher) published(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int
	for _, e := range p.events {
		if e.routingKey == routingKey {
			n++
		}
	}
	return n
}

func newTestService(repo *stubRepository, gateway *stubGateway, publisher *stubPublisher) *Service {
	planPrices := map[string]int64{
		domain.PlanStarter:    49900,
		domain.PlanPro:        249900,
		domain.PlanEnterprise: 999900,
	}
	var pub rabbitmq.Publisher
	if publisher != nil {
		pub = publisher
	}
	return NewService(repo, gateway, pub, "INR", 6500, 1000, planPrices, "celora.events")
}
