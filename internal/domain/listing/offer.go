package listing

import (
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
	OfferStatusExpired  OfferStatus = "expired"
)

const DefaultOfferTTL = 7 * 24 * time.Hour

type Offer struct {
	ID        string
	ItemID    string
	BuyerID   string
	Amount    decimal.Decimal
	Message   string
	Status    OfferStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

func NewOffer(id, itemID, buyerID string, amount decimal.Decimal, message string, now time.Time) (*Offer, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domainErrors.ErrInvalidAmount
	}

	return &Offer{
		ID:        id,
		ItemID:    itemID,
		BuyerID:   buyerID,
		Amount:    amount,
		Message:   message,
		Status:    OfferStatusPending,
		ExpiresAt: now.Add(DefaultOfferTTL),
		CreatedAt: now,
	}, nil
}

func (o *Offer) IsPending(now time.Time) bool {
	return o.Status == OfferStatusPending && now.Before(o.ExpiresAt)
}

func (o *Offer) Accept(now time.Time) error {
	if o.Status != OfferStatusPending {
		return domainErrors.ErrOfferNotPending
	}
	if !now.Before(o.ExpiresAt) {
		return domainErrors.ErrOfferExpired
	}

	o.Status = OfferStatusAccepted
	return nil
}

func (o *Offer) Reject() error {
	if o.Status != OfferStatusPending {
		return domainErrors.ErrOfferNotPending
	}

	o.Status = OfferStatusRejected
	return nil
}

func (o *Offer) Expire() {
	if o.Status == OfferStatusPending {
		o.Status = OfferStatusExpired
	}
}
