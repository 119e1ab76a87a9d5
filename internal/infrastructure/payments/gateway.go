package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// Gateway stands in for the card processor. It mints processor-shaped
// identifiers and logs every call; authorization and capture always succeed.
// Swap it for a real client without touching the escrow flow.
type Gateway struct {
	log *logger.Logger
}

func NewGateway(log *logger.Logger) *Gateway {
	return &Gateway{log: log}
}

func (g *Gateway) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	customerID := "cus_" + uuid.NewString()
	g.log.Info("Processor customer created", "user_id", userID, "customer_id", customerID)
	return customerID, nil
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, customerID string, amount decimal.Decimal, transactionID string) (string, error) {
	sessionID := "cs_" + uuid.NewString()
	g.log.Info("Checkout session created",
		"customer_id", customerID,
		"transaction_id", transactionID,
		"amount", amount.String(),
		"session_id", sessionID,
	)
	return sessionID, nil
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, customerID string, amount decimal.Decimal, transactionID string) (string, error) {
	paymentIntentID := "pi_" + uuid.NewString()
	g.log.Info("Payment intent authorized",
		"customer_id", customerID,
		"transaction_id", transactionID,
		"amount", amount.String(),
		"payment_intent_id", paymentIntentID,
	)
	return paymentIntentID, nil
}

func (g *Gateway) CapturePaymentIntent(ctx context.Context, paymentIntentID string) error {
	g.log.Info("Payment intent captured", "payment_intent_id", paymentIntentID)
	return nil
}
