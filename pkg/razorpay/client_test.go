package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key_id" || pass != "key_secret" {
			t.Error("expected basic auth with configured credentials")
		}

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Amount != 35000 || req.Currency != "INR" {
			t.Errorf("unexpected order payload: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Order{
			ID:       "order_ABC123",
			Amount:   req.Amount,
			Currency: req.Currency,
			Receipt:  req.Receipt,
			Status:   "created",
			Notes:    req.Notes,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key_id", "key_secret")
	order, err := client.CreateOrder(context.Background(), 35000, "INR", "template_t_b", OrderNotes{Type: "template", BuyerID: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != "order_ABC123" || order.Amount != 35000 {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.Notes.Type != "template" {
		t.Fatalf("notes not round-tripped: %+v", order.Notes)
	}
}

func TestFetchOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/orders/order_ABC123" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Order{
			ID:       "order_ABC123",
			Amount:   35000,
			Currency: "INR",
			Status:   "paid",
			Notes:    OrderNotes{Type: "template", TemplateID: "t1", BuyerID: "b1", FinalPrice: 35000},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key_id", "key_secret")
	order, err := client.FetchOrder(context.Background(), "order_ABC123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Status != "paid" || order.Notes.FinalPrice != 35000 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestFetchOrderAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"order not found"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key_id", "key_secret")
	_, err := client.FetchOrder(context.Background(), "order_missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Inner.Code != "BAD_REQUEST_ERROR" {
		t.Fatalf("unexpected error code: %q", apiErr.Inner.Code)
	}
}

func TestVerifySignature(t *testing.T) {
	client := NewClient("https://api.example.com", "key_id", "key_secret")

	sign := func(orderID, paymentID, secret string) string {
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(orderID + "|" + paymentID))
		return hex.EncodeToString(mac.Sum(nil))
	}

	t.Run("accepts a correctly signed confirmation", func(t *testing.T) {
		sig := sign("order_ABC123", "pay_XYZ789", "key_secret")
		if err := client.VerifySignature("order_ABC123", "pay_XYZ789", sig); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("rejects a signature for a different order", func(t *testing.T) {
		sig := sign("order_OTHER", "pay_XYZ789", "key_secret")
		if err := client.VerifySignature("order_ABC123", "pay_XYZ789", sig); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("expected ErrSignatureMismatch, got %v", err)
		}
	})

	t.Run("rejects a signature made with the wrong secret", func(t *testing.T) {
		sig := sign("order_ABC123", "pay_XYZ789", "stolen_secret")
		if err := client.VerifySignature("order_ABC123", "pay_XYZ789", sig); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("expected ErrSignatureMismatch, got %v", err)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if err := client.VerifySignature("order_ABC123", "pay_XYZ789", "not-hex-at-all"); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("expected ErrSignatureMismatch, got %v", err)
		}
	})

	t.Run("rejects empty signature", func(t *testing.T) {
		if err := client.VerifySignature("order_ABC123", "pay_XYZ789", ""); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("expected ErrSignatureMismatch, got %v", err)
		}
	})
}
