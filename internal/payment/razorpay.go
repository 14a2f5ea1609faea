package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	circuit "github.com/rubyist/circuitbreaker"
	"github.com/shopspring/decimal"
)

// ErrOrderNotFound is returned by FetchOrder when the gateway has no such order.
var ErrOrderNotFound = errors.New("order not found")

// Order is the gateway side reservation of an amount, in minor units.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// ToMinorUnits converts a currency amount to the gateway's integer minor
// units (paise, cents). Every order amount goes through here.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// Signature returns the hex HMAC-SHA256 of "orderID|paymentID".
func Signature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type Config struct {
	BaseURL          string
	KeyID            string
	KeySecret        string
	Timeout          time.Duration
	BreakerThreshold int64
}

// RazorpayClient talks to a Razorpay compatible orders API. Order calls go
// through a threshold circuit breaker; signature checks are local.
type RazorpayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *circuit.HTTPClient
}

func NewRazorpayClient(cfg Config) *RazorpayClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	threshold := cfg.BreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return &RazorpayClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http:      circuit.NewHTTPClient(timeout, threshold, &http.Client{Timeout: timeout}),
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens an order for amount with receipt as the merchant
// reference. The gateway deduplicates on receipt.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*Order, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   ToMinorUnits(amount),
		Currency: currency,
		Receipt:  receipt,
		Notes:    map[string]string{"booking_id": receipt},
	})
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	return c.doOrder(req, "create order")
}

// FetchOrder loads an order by id, used to check which booking an order
// was opened for.
func (c *RazorpayClient) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)

	return c.doOrder(req, "fetch order")
}

func (c *RazorpayClient) doOrder(req *http.Request, op string) (*Order, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}
	if resp.StatusCode == http.StatusNotFound && req.Method == http.MethodGet {
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge gatewayError
		if json.Unmarshal(data, &ge) == nil && ge.Error.Description != "" {
			return nil, fmt.Errorf("%s: gateway returned %d: %s: %s", op, resp.StatusCode, ge.Error.Code, ge.Error.Description)
		}
		return nil, fmt.Errorf("%s: gateway returned %d", op, resp.StatusCode)
	}

	var order Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("%s: decode order: %w", op, err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("%s: empty order id", op)
	}
	return &order, nil
}

// VerifySignature reports whether signature is the HMAC of orderID|paymentID
// under the key secret.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
	expected := Signature(orderID, paymentID, c.keySecret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
