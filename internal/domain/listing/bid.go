package listing

import (
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

// Bid is an immutable record of one offer to buy at auction. Bids are never
// updated or deleted once accepted.
type Bid struct {
	ID         string
	ItemID     string
	BidderID   string
	Amount     decimal.Decimal
	MaxAutoBid decimal.Decimal
	HasAutoBid bool
	PlacedAt   time.Time
}

func NewBid(id, itemID, bidderID string, amount decimal.Decimal, placedAt time.Time) (*Bid, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domainErrors.ErrInvalidAmount
	}

	return &Bid{
		ID:       id,
		ItemID:   itemID,
		BidderID: bidderID,
		Amount:   amount,
		PlacedAt: placedAt,
	}, nil
}

func (b *Bid) WithAutoBidCeiling(ceiling decimal.Decimal) error {
	if ceiling.LessThan(b.Amount) {
		return domainErrors.ErrInvalidAmount
	}

	b.MaxAutoBid = ceiling
	b.HasAutoBid = true
	return nil
}
