package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
)

// BidApplication is the conditional write that makes one bid the running
// highest. The update only lands when the item is still active and its
// current price equals ExpectedPrice; a false return means another bid won
// the race and the caller must re-read and re-validate.
type BidApplication struct {
	ItemID        string
	ExpectedPrice decimal.Decimal
	NewPrice      decimal.Decimal
	BidderID      string
	Extended      bool
	NewEndsAt     time.Time
}

type ListingRepository interface {
	GetItemByID(ctx context.Context, id string) (*listing.Item, error)
	CreateItem(ctx context.Context, item *listing.Item) error
	GetItemsBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*listing.Item, error)
	GetActiveItems(ctx context.Context, limit, offset int) ([]*listing.Item, error)
	GetEndedAuctions(ctx context.Context, now time.Time, limit int) ([]*listing.Item, error)

	ApplyBid(ctx context.Context, application BidApplication) (bool, error)
	MarkItemSold(ctx context.Context, itemID string, soldAt time.Time) (bool, error)
	MarkItemExpired(ctx context.Context, itemID string) (bool, error)
	RevertItemToActive(ctx context.Context, itemID string) error

	CreateBid(ctx context.Context, bid *listing.Bid) error
	GetHighestBid(ctx context.Context, itemID string) (*listing.Bid, error)
	GetBidsByItemID(ctx context.Context, itemID string, limit, offset int) ([]*listing.Bid, error)
	GetDistinctBidders(ctx context.Context, itemID string) ([]string, error)

	CreateOffer(ctx context.Context, offer *listing.Offer) error
	GetOfferByID(ctx context.Context, id string) (*listing.Offer, error)
	GetOffersByItemID(ctx context.Context, itemID string, limit, offset int) ([]*listing.Offer, error)
	UpdateOfferStatus(ctx context.Context, offerID string, status listing.OfferStatus) error
	RejectSiblingOffers(ctx context.Context, itemID, acceptedOfferID string) error
	ExpireStaleOffers(ctx context.Context, now time.Time, limit int) (int, error)
}
