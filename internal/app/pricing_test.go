package app

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/celora/commerce-service/internal/domain"
)

func TestComputeFinalPrice(t *testing.T) {
	tests := []struct {
		name       string
		basePaise  int64
		percentage int
		want       int64
		wantErr    error
	}{
		{
			name:       "thirty percent off round amount",
			basePaise:  50000,
			percentage: 30,
			want:       35000,
		},
		{
			name:       "floors fractional paise",
			basePaise:  999,
			percentage: 33,
			want:       669, // 999 * 67 / 100 = 669.33
		},
		{
			name:       "one percent of minimal price",
			basePaise:  100,
			percentage: 99,
			want:       1,
		},
		{
			name:       "no percentage passes base through",
			basePaise:  123457,
			percentage: 0,
			want:       123457,
		},
		{
			name:       "discounted price never reaches zero for positive base",
			basePaise:  1,
			percentage: 99,
			want:       0, // 1 * 1 / 100 floors to 0; documents the floor behavior
		},
		{
			name:      "zero base rejected",
			basePaise: 0,
			wantErr:   ErrInvalidPrice,
		},
		{
			name:      "negative base rejected",
			basePaise: -500,
			wantErr:   ErrInvalidPrice,
		},
		{
			name:       "hundred percent rejected",
			basePaise:  1000,
			percentage: 100,
			wantErr:    ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var discount *domain.Discount
			if tt.percentage != 0 {
				discount = &domain.Discount{ID: uuid.New(), Percentage: tt.percentage}
			}
			got, err := ComputeFinalPrice(tt.basePaise, discount)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestSellerShare(t *testing.T) {
	tests := []struct {
		name          string
		grossPaise    int64
		commissionBps int
		want          int64
	}{
		{name: "sixty five percent of round amount", grossPaise: 35000, commissionBps: 6500, want: 22750},
		{name: "floors fractional share", grossPaise: 999, commissionBps: 6500, want: 649}, // 999*6500/10000 = 649.35
		{name: "zero commission pays nothing to seller", grossPaise: 10000, commissionBps: 0, want: 0},
		{name: "full commission pays entire gross", grossPaise: 10000, commissionBps: 10000, want: 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SellerShare(tt.grossPaise, tt.commissionBps); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestSellerShareReproducible(t *testing.T) {
	// Integer arithmetic must give the same split every time for the same inputs.
	first := SellerShare(123457, 6500)
	for i := 0; i < 100; i++ {
		if got := SellerShare(123457, 6500); got != first {
			t.Fatalf("share not deterministic: first=%d got=%d", first, got)
		}
	}
}

func TestBestDiscount(t *testing.T) {
	now := time.Now().UTC()
	templateID := uuid.New()
	otherID := uuid.New()

	mkDiscount := func(pct int, createdAgo time.Duration, expiresIn time.Duration, all bool, ids ...uuid.UUID) domain.Discount {
		return domain.Discount{
			ID:           uuid.New(),
			Percentage:   pct,
			AppliesToAll: all,
			TemplateIDs:  ids,
			CreatedAt:    now.Add(-createdAgo),
			ExpiresAt:    now.Add(expiresIn),
		}
	}

	t.Run("no candidates yields full price", func(t *testing.T) {
		if got := BestDiscount(nil, templateID, now); got != nil {
			t.Fatalf("expected nil discount, got %+v", got)
		}
	})

	t.Run("picks largest percentage", func(t *testing.T) {
		discounts := []domain.Discount{
			mkDiscount(10, time.Hour, time.Hour, true),
			mkDiscount(40, 2*time.Hour, time.Hour, true),
			mkDiscount(25, 3*time.Hour, time.Hour, true),
		}
		got := BestDiscount(discounts, templateID, now)
		if got == nil || got.Percentage != 40 {
			t.Fatalf("expected 40%% discount, got %+v", got)
		}
	})

	t.Run("tie goes to most recently created", func(t *testing.T) {
		older := mkDiscount(30, 5*time.Hour, time.Hour, true)
		newer := mkDiscount(30, time.Hour, time.Hour, true)
		got := BestDiscount([]domain.Discount{older, newer}, templateID, now)
		if got == nil || got.ID != newer.ID {
			t.Fatalf("expected newest discount %s, got %+v", newer.ID, got)
		}
	})

	t.Run("expired discounts are ignored", func(t *testing.T) {
		expired := mkDiscount(90, time.Hour, -time.Minute, true)
		live := mkDiscount(10, time.Hour, time.Hour, true)
		got := BestDiscount([]domain.Discount{expired, live}, templateID, now)
		if got == nil || got.Percentage != 10 {
			t.Fatalf("expected live 10%% discount, got %+v", got)
		}
	})

	t.Run("scoped discount only covers its templates", func(t *testing.T) {
		scoped := mkDiscount(50, time.Hour, time.Hour, false, otherID)
		if got := BestDiscount([]domain.Discount{scoped}, templateID, now); got != nil {
			t.Fatalf("expected nil for out-of-scope discount, got %+v", got)
		}
		if got := BestDiscount([]domain.Discount{scoped}, otherID, now); got == nil {
			t.Fatal("expected scoped discount for covered template")
		}
	})
}

func TestQuoteCarriesDiscountAudit(t *testing.T) {
	discount := &domain.Discount{ID: uuid.New(), Percentage: 20}
	quote, err := Quote(10000, discount)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.OriginalPricePaise != 10000 || quote.FinalPricePaise != 8000 {
		t.Fatalf("unexpected quote amounts: %+v", quote)
	}
	if quote.DiscountPercentage != 20 || quote.DiscountID == nil || *quote.DiscountID != discount.ID {
		t.Fatalf("quote does not carry discount audit fields: %+v", quote)
	}
}
