/**
 * @description
 * This package provides a client for interacting with the Razorpay Orders API.
 * It encapsulates the logic for making authenticated HTTP requests to Razorpay's
 * endpoints, handling request body construction, parsing responses, and the
 * offline HMAC verification of payment signatures.
 *
 * @dependencies
 * - bytes, context, crypto/hmac, crypto/sha256, encoding/json, net/http: Standard Go libraries.
 */
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrSignatureMismatch is returned when a payment signature fails HMAC verification.
var ErrSignatureMismatch = errors.New("payment signature mismatch")

// Client is a client for the Razorpay API.
type Client struct {
	BaseURL    string
	KeyID      string
	KeySecret  string
	HTTPClient *http.Client
}

// NewClient creates a new Razorpay API client.
func NewClient(baseURL, keyID, keySecret string) *Client {
	return &Client{
		BaseURL:   baseURL,
		KeyID:     keyID,
		KeySecret: keySecret,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// OrderNotes is the metadata attached to an order at creation time. Razorpay
// stores it with the order and returns it verbatim on fetch, which is what
// makes the order record authoritative at settlement time.
type OrderNotes struct {
	Type               string `json:"type"` // 'template' or 'subscription'
	TemplateID         string `json:"template_id,omitempty"`
	Plan               string `json:"plan,omitempty"`
	BuyerID            string `json:"buyer_id"`
	OriginalPrice      int64  `json:"original_price,string,omitempty"`
	FinalPrice         int64  `json:"final_price,string,omitempty"`
	DiscountPercentage int    `json:"discount_percentage,string,omitempty"`
	DiscountID         string `json:"discount_id,omitempty"`
}

// CreateOrderRequest is the payload for Razorpay's order creation endpoint.
type CreateOrderRequest struct {
	Amount   int64      `json:"amount"` // in paise
	Currency string     `json:"currency"`
	Receipt  string     `json:"receipt"`
	Notes    OrderNotes `json:"notes"`
}

// Order is the gateway's record of a payment order.
type Order struct {
	ID       string     `json:"id"`
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	Receipt  string     `json:"receipt"`
	Status   string     `json:"status"`
	Notes    OrderNotes `json:"notes"`
}

// APIError represents an error payload from the Razorpay API.
type APIError struct {
	StatusCode int
	Inner      struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay api error (status %d): %s - %s", e.StatusCode, e.Inner.Code, e.Inner.Description)
}

// CreateOrder registers a payment order with Razorpay and returns the gateway's
// record of it.
func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes OrderNotes) (*Order, error) {
	payload := CreateOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/orders", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.KeyID, c.KeySecret)

	return c.doOrder(req, "create_order")
}

// FetchOrder retrieves an order by its gateway id. Settlement relies on this
// read-back: the notes stored at creation are the only trusted metadata.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/v1/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.KeyID, c.KeySecret)

	return c.doOrder(req, "fetch_order")
}

func (c *Client) doOrder(req *http.Request, op string) (*Order, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, apiErr); err != nil {
			log.Printf("level=warn component=razorpay_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=razorpay_client op=%s status=%d code=%q description=%q", op, resp.StatusCode, apiErr.Inner.Code, apiErr.Inner.Description)
		return nil, apiErr
	}

	var order Order
	if err := json.Unmarshal(bodyBytes, &order); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return &order, nil
}

// VerifySignature checks a payment confirmation against Razorpay's documented
// scheme: hex(HMAC-SHA256(order_id + "|" + payment_id, key_secret)). The
// comparison is constant-time and the check fails closed on any mismatch.
// No network call is involved.
func (c *Client) VerifySignature(orderID, paymentID, signature string) error {
	mac := hmac.New(sha256.New, []byte(c.KeySecret))
	if _, err := mac.Write([]byte(orderID + "|" + paymentID)); err != nil {
		return fmt.Errorf("failed to compute signature: %w", err)
	}
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
