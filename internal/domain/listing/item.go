package listing

import (
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

type SaleMode string

const (
	SaleModeQuickSale SaleMode = "quick_sale"
	SaleModeAuction   SaleMode = "auction"
)

type ItemStatus string

const (
	ItemStatusActive  ItemStatus = "active"
	ItemStatusSold    ItemStatus = "sold"
	ItemStatusExpired ItemStatus = "expired"
)

type Item struct {
	ID       string
	SellerID string
	Title    string
	SaleMode SaleMode
	Status   ItemStatus

	// Quick-sale pricing.
	FixedPrice decimal.Decimal

	// Auction state. CurrentPrice tracks the running highest accepted bid
	// and equals StartingPrice while no bid has been accepted.
	StartingPrice  decimal.Decimal
	ReservePrice   decimal.Decimal
	HasReserve     bool
	AuctionEndsAt  time.Time
	CurrentPrice   decimal.Decimal
	HighestBidder  string
	BidCount       int
	ExtensionCount int

	CreatedAt time.Time
	SoldAt    *time.Time
}

func NewQuickSaleItem(id, sellerID, title string, price decimal.Decimal, now time.Time) (*Item, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return nil, domainErrors.ErrInvalidAmount
	}

	return &Item{
		ID:         id,
		SellerID:   sellerID,
		Title:      title,
		SaleMode:   SaleModeQuickSale,
		Status:     ItemStatusActive,
		FixedPrice: price,
		CreatedAt:  now,
	}, nil
}

func NewAuctionItem(id, sellerID, title string, startingPrice, reservePrice decimal.Decimal, hasReserve bool, endsAt, now time.Time) (*Item, error) {
	if startingPrice.LessThan(decimal.Zero) {
		return nil, domainErrors.ErrInvalidAmount
	}
	if hasReserve && reservePrice.LessThanOrEqual(decimal.Zero) {
		return nil, domainErrors.ErrInvalidAmount
	}
	if !endsAt.After(now) {
		return nil, domainErrors.ErrAuctionEnded
	}

	return &Item{
		ID:            id,
		SellerID:      sellerID,
		Title:         title,
		SaleMode:      SaleModeAuction,
		Status:        ItemStatusActive,
		StartingPrice: startingPrice,
		ReservePrice:  reservePrice,
		HasReserve:    hasReserve,
		AuctionEndsAt: endsAt,
		CurrentPrice:  startingPrice,
		CreatedAt:     now,
	}, nil
}

func (i *Item) IsActive() bool {
	return i.Status == ItemStatusActive
}

func (i *Item) IsAuction() bool {
	return i.SaleMode == SaleModeAuction
}

func (i *Item) AuctionEnded(now time.Time) bool {
	return i.IsAuction() && !now.Before(i.AuctionEndsAt)
}

func (i *Item) HasBids() bool {
	return i.BidCount > 0
}

func (i *Item) MarkSold(now time.Time) error {
	if i.Status != ItemStatusActive {
		return domainErrors.ErrItemNotActive
	}

	i.Status = ItemStatusSold
	soldAt := now
	i.SoldAt = &soldAt
	return nil
}

func (i *Item) MarkExpired() error {
	if i.Status != ItemStatusActive {
		return domainErrors.ErrItemNotActive
	}

	i.Status = ItemStatusExpired
	return nil
}
