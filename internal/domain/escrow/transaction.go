package escrow

import (
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusHeld     PaymentStatus = "held"
	PaymentStatusReleased PaymentStatus = "released"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type LifecycleStatus string

const (
	LifecyclePaymentPending   LifecycleStatus = "payment_pending"
	LifecycleAwaitingShipping LifecycleStatus = "awaiting_shipping"
	LifecycleInTransit        LifecycleStatus = "in_transit"
	LifecycleDelivered        LifecycleStatus = "delivered"
	LifecycleCompleted        LifecycleStatus = "completed"
	LifecycleCancelled        LifecycleStatus = "cancelled"
	LifecycleDisputed         LifecycleStatus = "disputed"
)

// Transaction is the single settlement record for one sold item. It carries
// the commission breakdown and the escrow lifecycle: buyer funds are held
// from payment authorization until delivery confirmation releases them.
type Transaction struct {
	ID       string
	ItemID   string
	BuyerID  string
	SellerID string

	FinalPrice       decimal.Decimal
	BuyerCommission  decimal.Decimal
	SellerCommission decimal.Decimal
	ShippingCost     decimal.Decimal
	TotalCharged     decimal.Decimal
	SellerPayout     decimal.Decimal

	PaymentStatus   PaymentStatus
	LifecycleStatus LifecycleStatus

	ProcessorCustomerID string
	PaymentIntentID     string
	CheckoutSessionID   string

	ShippingAddress string
	TrackingNumber  string

	CreatedAt   time.Time
	PaidAt      *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CompletedAt *time.Time
}

func NewTransaction(id, itemID, buyerID, sellerID string, breakdown CommissionBreakdown, now time.Time) *Transaction {
	return &Transaction{
		ID:               id,
		ItemID:           itemID,
		BuyerID:          buyerID,
		SellerID:         sellerID,
		FinalPrice:       breakdown.FinalPrice,
		BuyerCommission:  breakdown.BuyerCommission,
		SellerCommission: breakdown.SellerCommission,
		ShippingCost:     breakdown.ShippingCost,
		TotalCharged:     breakdown.TotalCharged,
		SellerPayout:     breakdown.SellerPayout,
		PaymentStatus:    PaymentStatusPending,
		LifecycleStatus:  LifecyclePaymentPending,
		CreatedAt:        now,
	}
}

// AuthorizePayment records that the processor is holding the buyer's funds.
func (t *Transaction) AuthorizePayment(paymentIntentID string, now time.Time) error {
	if t.PaymentStatus != PaymentStatusPending {
		return domainErrors.ErrPaymentNotPending
	}
	if t.LifecycleStatus != LifecyclePaymentPending {
		return domainErrors.ErrInvalidTransition
	}

	t.PaymentStatus = PaymentStatusHeld
	t.LifecycleStatus = LifecycleAwaitingShipping
	t.PaymentIntentID = paymentIntentID
	paidAt := now
	t.PaidAt = &paidAt
	return nil
}

func (t *Transaction) MarkShipped(trackingNumber string, now time.Time) error {
	if t.PaymentStatus != PaymentStatusHeld {
		return domainErrors.ErrPaymentNotHeld
	}
	if t.LifecycleStatus != LifecycleAwaitingShipping {
		return domainErrors.ErrInvalidTransition
	}

	t.LifecycleStatus = LifecycleInTransit
	t.TrackingNumber = trackingNumber
	shippedAt := now
	t.ShippedAt = &shippedAt
	return nil
}

func (t *Transaction) MarkDelivered(now time.Time) error {
	if t.LifecycleStatus != LifecycleInTransit {
		return domainErrors.ErrInvalidTransition
	}

	t.LifecycleStatus = LifecycleDelivered
	deliveredAt := now
	t.DeliveredAt = &deliveredAt
	return nil
}

// ReleaseFunds completes the escrow after the buyer confirms delivery and the
// processor captures the held funds.
func (t *Transaction) ReleaseFunds(now time.Time) error {
	if t.PaymentStatus != PaymentStatusHeld {
		return domainErrors.ErrPaymentNotHeld
	}
	if t.LifecycleStatus != LifecycleInTransit && t.LifecycleStatus != LifecycleDelivered {
		return domainErrors.ErrInvalidTransition
	}

	t.PaymentStatus = PaymentStatusReleased
	t.LifecycleStatus = LifecycleCompleted
	completedAt := now
	t.CompletedAt = &completedAt
	return nil
}

// CanCancel reports whether the buyer may still walk away. Only allowed while
// no funds have moved; the record itself is deleted by the caller.
func (t *Transaction) CanCancel() error {
	if t.PaymentStatus != PaymentStatusPending {
		return domainErrors.ErrPaymentNotPending
	}
	return nil
}

func (t *Transaction) Dispute() error {
	switch t.LifecycleStatus {
	case LifecycleAwaitingShipping, LifecycleInTransit, LifecycleDelivered:
		t.LifecycleStatus = LifecycleDisputed
		return nil
	default:
		return domainErrors.ErrInvalidTransition
	}
}

func (t *Transaction) IsParty(userID string) bool {
	return t.BuyerID == userID || t.SellerID == userID
}
