package payments

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/netkrida/myhome-sub004/models"
	"github.com/shopspring/decimal"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found at gateway")
	ErrUnknownStatus       = errors.New("unknown gateway transaction status")
)

// Gateway is the outbound side of the payment provider.
type Gateway interface {
	CreateTransaction(ctx context.Context, req IntentRequest) (*Intent, error)
	GetStatus(ctx context.Context, orderID string) (*Notification, error)
	Expire(ctx context.Context, orderID string) error
}

type IntentRequest struct {
	OrderID       string
	Amount        decimal.Decimal
	ItemName      string
	CustomerName  string
	CustomerEmail string
	Expiry        time.Duration
}

type Intent struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Notification is the transaction report sent by the gateway, both as the
// webhook body and as the status API response.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionTime   string `json:"transaction_time"`
	TransactionID     string `json:"transaction_id"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}

const transactionTimeLayout = "2006-01-02 15:04:05"

// Time parses transaction_time in the gateway's local zone.
func (n Notification) Time(loc *time.Location) *time.Time {
	if n.TransactionTime == "" {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(transactionTimeLayout, n.TransactionTime, loc)
	if err != nil {
		return nil
	}
	return &t
}

func (n Notification) Gross() (decimal.Decimal, error) {
	if n.GrossAmount == "" {
		return decimal.Zero, fmt.Errorf("gross_amount is empty")
	}
	return decimal.NewFromString(n.GrossAmount)
}

// MapStatus converts a gateway transaction status into a payment status.
func MapStatus(transactionStatus, fraudStatus string) (models.PaymentStatus, error) {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "", "accept":
			return models.PaymentSuccess, nil
		case "challenge":
			return models.PaymentPending, nil
		default:
			return models.PaymentFailed, nil
		}
	case "settlement", "settle", "success":
		return models.PaymentSuccess, nil
	case "pending", "authorize":
		return models.PaymentPending, nil
	case "deny", "cancel", "failure", "failed":
		return models.PaymentFailed, nil
	case "expire", "expired":
		return models.PaymentExpired, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, transactionStatus)
}

// Signature computes sha512(order_id + status_code + gross_amount + server_key).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func VerifySignature(n Notification, serverKey string) bool {
	if n.SignatureKey == "" || serverKey == "" {
		return false
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(n.SignatureKey)), []byte(want)) == 1
}
