package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentGateway is the boundary to the external payment processor. All
// returns are opaque processor identifiers stored on the transaction.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	// CreateCheckoutSession opens a hosted payment page for the transaction's
	// total; completion arrives through the processor webhook.
	CreateCheckoutSession(ctx context.Context, customerID string, amount decimal.Decimal, transactionID string) (string, error)
	// CreatePaymentIntent authorizes the amount without capturing it; funds
	// stay held until CapturePaymentIntent.
	CreatePaymentIntent(ctx context.Context, customerID string, amount decimal.Decimal, transactionID string) (string, error)
	CapturePaymentIntent(ctx context.Context, paymentIntentID string) error
}
