// Package gateway talks to the payment provider that settles booking payments.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
)

const (
	// MockOrderPrefix marks order ids synthesized without the provider.
	MockOrderPrefix = "mock_order_"
	// MockKeyID is returned to clients in place of a public key in mock mode.
	MockKeyID = "mock"

	placeholderMarker = "xxxxx"
)

var ErrMockMode = errors.New("gateway is running in mock mode")

// Gateway is the payment provider used for checkout orders.
type Gateway interface {
	// CreateOrder reserves amountMinor (paise for INR) and returns the provider's order id.
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	KeyID() string
	// Mock reports whether live credentials are missing.
	Mock() bool
	VerifySignature(orderID, paymentID, signature string) bool
}

// IsPlaceholder reports whether the credentials are unset or still the sample values.
func IsPlaceholder(keyID, keySecret string) bool {
	return keyID == "" || keySecret == "" ||
		strings.Contains(keyID, placeholderMarker) || strings.Contains(keySecret, placeholderMarker)
}

// IsMockOrder reports whether orderID was issued locally instead of by the gateway.
func IsMockOrder(orderID string) bool {
	return strings.HasPrefix(orderID, MockOrderPrefix)
}

// Signature is the lowercase hex HMAC-SHA256 of "orderID|paymentID".
func Signature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidSignature compares case-sensitively in constant time.
func ValidSignature(secret, orderID, paymentID, signature string) bool {
	expected := Signature(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Razorpay is the live Gateway. Placeholder credentials put it in mock mode.
type Razorpay struct {
	orders    orderCreator
	keyID     string
	keySecret string
	mock      bool
}

// NewRazorpay builds a client, or a mock gateway when IsPlaceholder(keyID, keySecret).
func NewRazorpay(keyID, keySecret string) *Razorpay {
	r := &Razorpay{keyID: keyID, keySecret: keySecret, mock: IsPlaceholder(keyID, keySecret)}
	if !r.mock {
		r.orders = razorpay.NewClient(keyID, keySecret).Order
	}
	return r
}

// CreateOrder returns ErrMockMode when no live credentials are configured.
func (r *Razorpay) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error) {
	if r.mock {
		return "", ErrMockMode
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	order, err := r.orders.Create(map[string]interface{}{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("create razorpay order: %w", err)
	}

	id, ok := order["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("create razorpay order: response has no id")
	}
	return id, nil
}

// KeyID is the public key handed to the checkout widget, or MockKeyID in mock mode.
func (r *Razorpay) KeyID() string {
	if r.mock {
		return MockKeyID
	}
	return r.keyID
}

func (r *Razorpay) Mock() bool {
	return r.mock
}

// VerifySignature checks the checkout callback HMAC against the key secret.
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	return ValidSignature(r.keySecret, orderID, paymentID, signature)
}
