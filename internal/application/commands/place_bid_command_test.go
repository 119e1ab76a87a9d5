package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/application/auth"
	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/generator"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// fakeListings holds one item. Methods the bid path never touches come from
// the embedded nil interface and panic if reached.
type fakeListings struct {
	ports.ListingRepository

	mu     sync.Mutex
	item   *listing.Item
	bids   []*listing.Bid
	offers []*listing.Offer

	// raceBumps simulates a competing bidder: each pending bump raises the
	// stored price right before ApplyBid compares it, failing the update.
	raceBumps int
}

func (f *fakeListings) GetItemByID(ctx context.Context, id string) (*listing.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.item == nil || f.item.ID != id {
		return nil, domainErrors.ErrItemNotFound
	}
	copied := *f.item
	return &copied, nil
}

func (f *fakeListings) ApplyBid(ctx context.Context, application ports.BidApplication) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.raceBumps > 0 {
		f.raceBumps--
		f.item.CurrentPrice = f.item.CurrentPrice.Add(decimal.NewFromInt(10))
		f.item.BidCount++
	}
	if f.item.Status != listing.ItemStatusActive || !f.item.CurrentPrice.Equal(application.ExpectedPrice) {
		return false, nil
	}
	f.item.CurrentPrice = application.NewPrice
	f.item.HighestBidder = application.BidderID
	f.item.BidCount++
	if application.Extended {
		f.item.AuctionEndsAt = application.NewEndsAt
		f.item.ExtensionCount++
	}
	return true, nil
}

func (f *fakeListings) CreateBid(ctx context.Context, bid *listing.Bid) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *bid
	f.bids = append(f.bids, &copied)
	return nil
}

type fakeOutbox struct {
	ports.OutboxRepository

	mu     sync.Mutex
	events []ports.NotificationEvent
}

func (f *fakeOutbox) Append(ctx context.Context, event ports.NotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeTx struct {
	listings *fakeListings
	outbox   *fakeOutbox
}

func (f *fakeTx) Begin(ctx context.Context) (ports.TxContext, error) { return f, nil }
func (f *fakeTx) Listings() ports.ListingRepository                  { return f.listings }
func (f *fakeTx) Transactions() ports.TransactionRepository          { return nil }
func (f *fakeTx) Outbox() ports.OutboxRepository                     { return f.outbox }
func (f *fakeTx) Commit() error                                      { return nil }
func (f *fakeTx) Rollback() error                                    { return nil }

type fakeCache struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func newFakeCache() *fakeCache {
	return &fakeCache{prices: make(map[string]decimal.Decimal)}
}

func (c *fakeCache) AcquireItemLock(ctx context.Context, itemID string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (c *fakeCache) ReleaseItemLock(ctx context.Context, itemID string) error { return nil }

func (c *fakeCache) GetCurrentPrice(ctx context.Context, itemID string) (decimal.Decimal, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	price, ok := c.prices[itemID]
	return price, ok, nil
}

func (c *fakeCache) SetCurrentPrice(ctx context.Context, itemID string, price decimal.Decimal, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[itemID] = price
	return nil
}

func (c *fakeCache) PublishBidUpdate(ctx context.Context, itemID string, payload []byte) error {
	return nil
}

var bidBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newBidFixture(t *testing.T, endsIn time.Duration) (*PlaceBidHandler, *fakeListings, *fakeOutbox, *fakeCache, *clock.MockClock) {
	t.Helper()
	item, err := listing.NewAuctionItem("item-1", "seller-1", "walnut dresser", decimal.NewFromInt(100), decimal.Zero, false, bidBase.Add(endsIn), bidBase)
	assert.NoError(t, err)

	listings := &fakeListings{item: item}
	outbox := &fakeOutbox{}
	cache := newFakeCache()
	clk := clock.NewMockClock(bidBase)
	handler := NewPlaceBidHandler(&fakeTx{listings: listings, outbox: outbox}, listings, cache, generator.NewIDGenerator(), clk, logger.NewLogger())
	return handler, listings, outbox, cache, clk
}

var bidder = auth.Identity{ID: "buyer-1", Role: auth.RoleProfessional}

func TestPlaceBidAcceptsValidBid(t *testing.T) {
	handler, listings, _, cache, _ := newBidFixture(t, 24*time.Hour)

	resp, err := handler.Handle(context.Background(), bidder, PlaceBidCommand{
		ItemID: "item-1",
		Amount: decimal.NewFromInt(110),
	})
	assert.NoError(t, err)
	check.Equal(t, "110", resp.Amount)
	check.Equal(t, 1, resp.BidCount)
	check.False(t, resp.Extended)

	check.True(t, listings.item.CurrentPrice.Equal(decimal.NewFromInt(110)))
	check.Equal(t, "buyer-1", listings.item.HighestBidder)
	check.Equal(t, 1, len(listings.bids))

	cached, ok, err := cache.GetCurrentPrice(context.Background(), "item-1")
	assert.NoError(t, err)
	check.True(t, ok)
	check.True(t, cached.Equal(decimal.NewFromInt(110)))
}

func TestPlaceBidBelowIncrementRejected(t *testing.T) {
	handler, listings, _, _, _ := newBidFixture(t, 24*time.Hour)

	_, err := handler.Handle(context.Background(), bidder, PlaceBidCommand{
		ItemID: "item-1",
		Amount: decimal.NewFromInt(105),
	})
	check.Equal(t, domainErrors.ErrBidBelowMinimum, err, cmpopts.EquateErrors())
	check.Equal(t, 0, len(listings.bids))
}

func TestPlaceBidCachedPricePreFilter(t *testing.T) {
	handler, listings, _, cache, _ := newBidFixture(t, 24*time.Hour)
	assert.NoError(t, cache.SetCurrentPrice(context.Background(), "item-1", decimal.NewFromInt(200), time.Hour))

	_, err := handler.Handle(context.Background(), bidder, PlaceBidCommand{
		ItemID: "item-1",
		Amount: decimal.NewFromInt(150),
	})
	check.Equal(t, domainErrors.ErrBidBelowMinimum, err, cmpopts.EquateErrors())
	check.Equal(t, 0, len(listings.bids))
}

func TestPlaceBidRetriesPastPriceRace(t *testing.T) {
	handler, listings, _, _, _ := newBidFixture(t, 24*time.Hour)
	listings.raceBumps = 1

	resp, err := handler.Handle(context.Background(), bidder, PlaceBidCommand{
		ItemID: "item-1",
		Amount: decimal.NewFromInt(200),
	})
	assert.NoError(t, err)
	check.Equal(t, "200", resp.Amount)
	check.True(t, listings.item.CurrentPrice.Equal(decimal.NewFromInt(200)))
}

func TestPlaceBidGivesUpAfterRepeatedConflicts(t *testing.T) {
	handler, listings, _, _, _ := newBidFixture(t, 24*time.Hour)
	listings.raceBumps = 5

	_, err := handler.Handle(context.Background(), bidder, PlaceBidCommand{
		ItemID: "item-1",
		Amount: decimal.NewFromInt(1000),
	})
	check.Equal(t, domainErrors.ErrBidConflict, err, cmpopts.EquateErrors())
}

func TestPlaceBidExtendsSoftClose(t *testing.T) {
	handler, listings, _, _, _ := newBidFixture(t, 30*time.Minute)

	resp, err := handler.Handle(context.Background(), bidder, PlaceBidCommand{
		ItemID: "item-1",
		Amount: decimal.NewFromInt(110),
	})
	assert.NoError(t, err)
	check.True(t, resp.Extended)
	check.Equal(t, bidBase.Add(40*time.Minute), resp.AuctionEndsAt)
	check.Equal(t, 1, listings.item.ExtensionCount)
}

func TestPlaceBidOutbidEventForPreviousLeader(t *testing.T) {
	handler, _, outbox, _, _ := newBidFixture(t, 24*time.Hour)
	ctx := context.Background()

	_, err := handler.Handle(ctx, bidder, PlaceBidCommand{ItemID: "item-1", Amount: decimal.NewFromInt(110)})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(outbox.events))
	check.Equal(t, ports.TopicBidPlaced, outbox.events[0].Topic)

	rival := auth.Identity{ID: "buyer-2", Role: auth.RoleProfessional}
	_, err = handler.Handle(ctx, rival, PlaceBidCommand{ItemID: "item-1", Amount: decimal.NewFromInt(160)})
	assert.NoError(t, err)
	assert.Equal(t, 3, len(outbox.events))
	check.Equal(t, ports.TopicBidPlaced, outbox.events[1].Topic)
	check.Equal(t, ports.TopicBidOutbid, outbox.events[2].Topic)
}

func TestPlaceBidGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("individual role cannot bid", func(t *testing.T) {
		handler, _, _, _, _ := newBidFixture(t, 24*time.Hour)
		_, err := handler.Handle(ctx, auth.Identity{ID: "u1", Role: auth.RoleIndividual}, PlaceBidCommand{ItemID: "item-1", Amount: decimal.NewFromInt(110)})
		check.Equal(t, domainErrors.ErrForbidden, err, cmpopts.EquateErrors())
	})

	t.Run("seller cannot bid on own item", func(t *testing.T) {
		handler, _, _, _, _ := newBidFixture(t, 24*time.Hour)
		_, err := handler.Handle(ctx, auth.Identity{ID: "seller-1", Role: auth.RoleProfessional}, PlaceBidCommand{ItemID: "item-1", Amount: decimal.NewFromInt(110)})
		check.Equal(t, domainErrors.ErrBidOnOwnItem, err, cmpopts.EquateErrors())
	})

	t.Run("ended auction rejects bids", func(t *testing.T) {
		handler, _, _, _, clk := newBidFixture(t, time.Hour)
		clk.Advance(2 * time.Hour)
		_, err := handler.Handle(ctx, bidder, PlaceBidCommand{ItemID: "item-1", Amount: decimal.NewFromInt(110)})
		check.Equal(t, domainErrors.ErrAuctionEnded, err, cmpopts.EquateErrors())
	})

	t.Run("reserve not met", func(t *testing.T) {
		item, err := listing.NewAuctionItem("item-1", "seller-1", "walnut dresser", decimal.NewFromInt(100), decimal.NewFromInt(500), true, bidBase.Add(24*time.Hour), bidBase)
		assert.NoError(t, err)
		listings := &fakeListings{item: item}
		handler := NewPlaceBidHandler(&fakeTx{listings: listings, outbox: &fakeOutbox{}}, listings, newFakeCache(), generator.NewIDGenerator(), clock.NewMockClock(bidBase), logger.NewLogger())

		_, err = handler.Handle(ctx, bidder, PlaceBidCommand{ItemID: "item-1", Amount: decimal.NewFromInt(110)})
		check.Equal(t, domainErrors.ErrBidBelowReserve, err, cmpopts.EquateErrors())
	})
}
