package use_cases

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
)

// fakeStore backs all repository ports with in-memory maps. Begin returns
// the store itself; commit and rollback are no-ops, which is fine for these
// tests because every scenario asserts on final state only.
type fakeStore struct {
	mu sync.Mutex

	items        map[string]*listing.Item
	bids         map[string][]*listing.Bid
	offers       map[string]*listing.Offer
	transactions map[string]*escrow.Transaction
	events       []ports.NotificationEvent

	failCreateTransaction bool

	// beforeTransactionWrite runs just before a transaction Update or Delete
	// touches the store, letting a test interleave a competing transition.
	beforeTransactionWrite func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:        make(map[string]*listing.Item),
		bids:         make(map[string][]*listing.Bid),
		offers:       make(map[string]*listing.Offer),
		transactions: make(map[string]*escrow.Transaction),
	}
}

func (s *fakeStore) Begin(ctx context.Context) (ports.TxContext, error) { return s, nil }
func (s *fakeStore) Listings() ports.ListingRepository                  { return s }
func (s *fakeStore) Transactions() ports.TransactionRepository          { return s }
func (s *fakeStore) Outbox() ports.OutboxRepository                     { return s }
func (s *fakeStore) Commit() error                                      { return nil }
func (s *fakeStore) Rollback() error                                    { return nil }

func (s *fakeStore) GetItemByID(ctx context.Context, id string) (*listing.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domainErrors.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *fakeStore) CreateItem(ctx context.Context, item *listing.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.items[item.ID] = &copied
	return nil
}

func (s *fakeStore) GetItemsBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*listing.Item, error) {
	return nil, nil
}

func (s *fakeStore) GetActiveItems(ctx context.Context, limit, offset int) ([]*listing.Item, error) {
	return nil, nil
}

func (s *fakeStore) GetEndedAuctions(ctx context.Context, now time.Time, limit int) ([]*listing.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ended []*listing.Item
	for _, item := range s.items {
		if item.SaleMode == listing.SaleModeAuction && item.Status == listing.ItemStatusActive && !now.Before(item.AuctionEndsAt) {
			copied := *item
			ended = append(ended, &copied)
		}
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].ID < ended[j].ID })
	if len(ended) > limit {
		ended = ended[:limit]
	}
	return ended, nil
}

func (s *fakeStore) ApplyBid(ctx context.Context, application ports.BidApplication) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[application.ItemID]
	if !ok {
		return false, domainErrors.ErrItemNotFound
	}
	if item.Status != listing.ItemStatusActive || !item.CurrentPrice.Equal(application.ExpectedPrice) {
		return false, nil
	}
	item.CurrentPrice = application.NewPrice
	item.HighestBidder = application.BidderID
	item.BidCount++
	if application.Extended {
		item.AuctionEndsAt = application.NewEndsAt
		item.ExtensionCount++
	}
	return true, nil
}

func (s *fakeStore) MarkItemSold(ctx context.Context, itemID string, soldAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || item.Status != listing.ItemStatusActive {
		return false, nil
	}
	item.Status = listing.ItemStatusSold
	at := soldAt
	item.SoldAt = &at
	return true, nil
}

func (s *fakeStore) MarkItemExpired(ctx context.Context, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok || item.Status != listing.ItemStatusActive {
		return false, nil
	}
	item.Status = listing.ItemStatusExpired
	return true, nil
}

func (s *fakeStore) RevertItemToActive(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[itemID]
	if !ok {
		return domainErrors.ErrItemNotFound
	}
	item.Status = listing.ItemStatusActive
	item.SoldAt = nil
	return nil
}

func (s *fakeStore) CreateBid(ctx context.Context, bid *listing.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *bid
	s.bids[bid.ItemID] = append(s.bids[bid.ItemID], &copied)
	return nil
}

func (s *fakeStore) GetHighestBid(ctx context.Context, itemID string) (*listing.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bids := s.bids[itemID]
	if len(bids) == 0 {
		return nil, domainErrors.ErrNoBids
	}
	highest := bids[0]
	for _, bid := range bids[1:] {
		if bid.Amount.GreaterThan(highest.Amount) {
			highest = bid
		}
	}
	copied := *highest
	return &copied, nil
}

func (s *fakeStore) GetBidsByItemID(ctx context.Context, itemID string, limit, offset int) ([]*listing.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*listing.Bid
	for _, bid := range s.bids[itemID] {
		copied := *bid
		out = append(out, &copied)
	}
	return out, nil
}

func (s *fakeStore) GetDistinctBidders(ctx context.Context, itemID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var bidders []string
	for _, bid := range s.bids[itemID] {
		if !seen[bid.BidderID] {
			seen[bid.BidderID] = true
			bidders = append(bidders, bid.BidderID)
		}
	}
	return bidders, nil
}

func (s *fakeStore) CreateOffer(ctx context.Context, offer *listing.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *offer
	s.offers[offer.ID] = &copied
	return nil
}

func (s *fakeStore) GetOfferByID(ctx context.Context, id string) (*listing.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[id]
	if !ok {
		return nil, domainErrors.ErrOfferNotFound
	}
	copied := *offer
	return &copied, nil
}

func (s *fakeStore) GetOffersByItemID(ctx context.Context, itemID string, limit, offset int) ([]*listing.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*listing.Offer
	for _, offer := range s.offers {
		if offer.ItemID == itemID {
			copied := *offer
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) UpdateOfferStatus(ctx context.Context, offerID string, status listing.OfferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	offer, ok := s.offers[offerID]
	if !ok {
		return domainErrors.ErrOfferNotFound
	}
	offer.Status = status
	return nil
}

func (s *fakeStore) RejectSiblingOffers(ctx context.Context, itemID, acceptedOfferID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, offer := range s.offers {
		if offer.ItemID == itemID && offer.ID != acceptedOfferID && offer.Status == listing.OfferStatusPending {
			offer.Status = listing.OfferStatusRejected
		}
	}
	return nil
}

func (s *fakeStore) ExpireStaleOffers(ctx context.Context, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, offer := range s.offers {
		if offer.Status == listing.OfferStatusPending && !now.Before(offer.ExpiresAt) {
			offer.Status = listing.OfferStatusExpired
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) CreateIfAbsent(ctx context.Context, tx *escrow.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateTransaction {
		return false, domainErrors.ErrUpstreamFailure
	}
	for _, existing := range s.transactions {
		if existing.ItemID == tx.ItemID {
			return false, nil
		}
	}
	copied := *tx
	s.transactions[tx.ID] = &copied
	return true, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*escrow.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	copied := *tx
	return &copied, nil
}

func (s *fakeStore) GetByItemID(ctx context.Context, itemID string) (*escrow.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.transactions {
		if tx.ItemID == itemID {
			copied := *tx
			return &copied, nil
		}
	}
	return nil, domainErrors.ErrTransactionNotFound
}

func (s *fakeStore) GetByUser(ctx context.Context, userID string, limit, offset int) ([]*escrow.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*escrow.Transaction
	for _, tx := range s.transactions {
		if tx.BuyerID == userID || tx.SellerID == userID {
			copied := *tx
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *fakeStore) Update(ctx context.Context, tx *escrow.Transaction, fromPayment escrow.PaymentStatus, fromLifecycle escrow.LifecycleStatus) error {
	if s.beforeTransactionWrite != nil {
		s.beforeTransactionWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.transactions[tx.ID]
	if !ok || stored.PaymentStatus != fromPayment || stored.LifecycleStatus != fromLifecycle {
		return domainErrors.ErrInvalidTransition
	}
	copied := *tx
	s.transactions[tx.ID] = &copied
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id string, fromPayment escrow.PaymentStatus) error {
	if s.beforeTransactionWrite != nil {
		s.beforeTransactionWrite()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.transactions[id]
	if !ok || stored.PaymentStatus != fromPayment {
		return domainErrors.ErrInvalidTransition
	}
	delete(s.transactions, id)
	return nil
}

func (s *fakeStore) Append(ctx context.Context, event ports.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *fakeStore) GetPending(ctx context.Context, limit int) ([]ports.NotificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []ports.NotificationEvent
	for _, event := range s.events {
		if event.DispatchedAt == nil {
			pending = append(pending, event)
		}
	}
	return pending, nil
}

func (s *fakeStore) MarkDispatched(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			dispatched := at
			s.events[i].DispatchedAt = &dispatched
		}
	}
	return nil
}

func (s *fakeStore) eventTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.events))
	for _, event := range s.events {
		topics = append(topics, event.Topic)
	}
	sort.Strings(topics)
	return topics
}

type fakeCache struct {
	mu     sync.Mutex
	locks  map[string]bool
	prices map[string]decimal.Decimal
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		locks:  make(map[string]bool),
		prices: make(map[string]decimal.Decimal),
	}
}

func (c *fakeCache) AcquireItemLock(ctx context.Context, itemID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[itemID] {
		return false, nil
	}
	c.locks[itemID] = true
	return true, nil
}

func (c *fakeCache) ReleaseItemLock(ctx context.Context, itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, itemID)
	return nil
}

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

type fakeSettings struct{}

func (fakeSettings) GetCommissionRates(ctx context.Context) (escrow.CommissionRates, error) {
	return escrow.CommissionRates{
		BuyerRate:  decimal.RequireFromString("0.03"),
		SellerRate: decimal.RequireFromString("0.02"),
	}, nil
}

func (fakeSettings) UpdateCommissionRates(ctx context.Context, rates escrow.CommissionRates) error {
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	intents     []string
	sessions    []string
	captured    []string
	failCapture bool
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	return "cus_" + userID, nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, customerID string, amount decimal.Decimal, transactionID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	session := "cs_" + transactionID
	g.sessions = append(g.sessions, session)
	return session, nil
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, customerID string, amount decimal.Decimal, transactionID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	intent := "pi_" + transactionID
	g.intents = append(g.intents, intent)
	return intent, nil
}

func (g *fakeGateway) CapturePaymentIntent(ctx context.Context, paymentIntentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCapture {
		return domainErrors.ErrUpstreamFailure
	}
	g.captured = append(g.captured, paymentIntentID)
	return nil
}
