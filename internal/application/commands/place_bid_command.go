package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/application/auth"
	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/generator"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

type PlaceBidCommand struct {
	ItemID     string
	Amount     decimal.Decimal
	MaxAutoBid decimal.Decimal
	HasAutoBid bool
}

type PlaceBidResponse struct {
	BidID         string    `json:"bid_id"`
	ItemID        string    `json:"item_id"`
	Amount        string    `json:"amount"`
	BidCount      int       `json:"bid_count"`
	Extended      bool      `json:"extended"`
	AuctionEndsAt time.Time `json:"auction_ends_at"`
}

// PlaceBidHandler validates and applies one bid. Two concurrent bids on the
// same item race on a conditional update keyed to the price the bidder saw;
// the loser re-reads and re-validates against the fresh price instead of
// overwriting it.
type PlaceBidHandler struct {
	uow         ports.UnitOfWork
	listingRepo ports.ListingRepository
	cache       ports.Cache
	idGen       *generator.IDGenerator
	clk         clock.Clock
	log         *logger.Logger

	retryAttempts int
	lockTTL       time.Duration
}

func NewPlaceBidHandler(
	uow ports.UnitOfWork,
	listingRepo ports.ListingRepository,
	cache ports.Cache,
	idGen *generator.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *PlaceBidHandler {
	return &PlaceBidHandler{
		uow:           uow,
		listingRepo:   listingRepo,
		cache:         cache,
		idGen:         idGen,
		clk:           clk,
		log:           log,
		retryAttempts: 3,
		lockTTL:       3 * time.Second,
	}
}

func (h *PlaceBidHandler) Handle(ctx context.Context, identity auth.Identity, cmd PlaceBidCommand) (*PlaceBidResponse, error) {
	if !identity.CanBuy() {
		return nil, domainErrors.ErrForbidden
	}

	// Cheap rejection before touching the database. The cached price only
	// ever trails the committed price, so a bid that fails against it would
	// fail against the real one too.
	if cached, ok, err := h.cache.GetCurrentPrice(ctx, cmd.ItemID); err == nil && ok {
		if cmd.Amount.LessThan(cached.Add(listing.MinIncrement(cached))) {
			return nil, domainErrors.ErrBidBelowMinimum
		}
	}

	locked, err := h.cache.AcquireItemLock(ctx, cmd.ItemID, h.lockTTL)
	if err != nil {
		h.log.Warn("Bid lock unavailable, relying on conditional update", "item_id", cmd.ItemID, "error", err)
	}
	if locked {
		defer func() {
			if err := h.cache.ReleaseItemLock(ctx, cmd.ItemID); err != nil {
				h.log.Error("Failed to release bid lock", "item_id", cmd.ItemID, "error", err)
			}
		}()
	}

	var resp *PlaceBidResponse
	for attempt := 0; attempt < h.retryAttempts; attempt++ {
		resp, err = h.attempt(ctx, identity, cmd)
		if err != domainErrors.ErrBidConflict {
			break
		}
		h.log.Info("Bid lost the price race, revalidating", "item_id", cmd.ItemID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (h *PlaceBidHandler) attempt(ctx context.Context, identity auth.Identity, cmd PlaceBidCommand) (resp *PlaceBidResponse, err error) {
	item, err := h.listingRepo.GetItemByID(ctx, cmd.ItemID)
	if err != nil {
		return nil, err
	}

	now := h.clk.Now()
	if !item.IsActive() {
		return nil, domainErrors.ErrItemNotActive
	}
	if !item.IsAuction() {
		return nil, domainErrors.ErrItemNotAuction
	}
	if item.AuctionEnded(now) {
		return nil, domainErrors.ErrAuctionEnded
	}
	if item.SellerID == identity.ID {
		return nil, domainErrors.ErrBidOnOwnItem
	}

	if err := listing.ValidateBid(cmd.Amount, item.CurrentPrice, item.ReservePrice, item.HasReserve); err != nil {
		return nil, err
	}

	bid, err := listing.NewBid(h.idGen.NewBidID(), item.ID, identity.ID, cmd.Amount, now)
	if err != nil {
		return nil, err
	}
	if cmd.HasAutoBid {
		if err := bid.WithAutoBidCeiling(cmd.MaxAutoBid); err != nil {
			return nil, err
		}
	}

	extended := listing.ShouldExtend(item.AuctionEndsAt, now)
	newEndsAt := item.AuctionEndsAt
	if extended {
		newEndsAt = listing.Extend(item.AuctionEndsAt)
	}

	txc, err := h.uow.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrUpstreamFailure, err)
	}
	defer func() {
		if err != nil {
			_ = txc.Rollback()
		}
	}()

	applied, err := txc.Listings().ApplyBid(ctx, ports.BidApplication{
		ItemID:        item.ID,
		ExpectedPrice: item.CurrentPrice,
		NewPrice:      cmd.Amount,
		BidderID:      identity.ID,
		Extended:      extended,
		NewEndsAt:     newEndsAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: applying bid: %v", domainErrors.ErrUpstreamFailure, err)
	}
	if !applied {
		err = domainErrors.ErrBidConflict
		return nil, err
	}

	if err = txc.Listings().CreateBid(ctx, bid); err != nil {
		return nil, fmt.Errorf("%w: storing bid: %v", domainErrors.ErrUpstreamFailure, err)
	}

	placed := ports.NotificationEvent{
		ID:    h.idGen.NewEventID(),
		Topic: ports.TopicBidPlaced,
		Payload: mustJSON(map[string]string{
			"item_id":    item.ID,
			"item_title": item.Title,
			"user_id":    identity.ID,
			"bid_id":     bid.ID,
			"amount":     cmd.Amount.String(),
		}),
		CreatedAt: now,
	}
	if err = txc.Outbox().Append(ctx, placed); err != nil {
		return nil, fmt.Errorf("%w: queueing bid confirmation: %v", domainErrors.ErrUpstreamFailure, err)
	}

	if item.HighestBidder != "" && item.HighestBidder != identity.ID {
		event := ports.NotificationEvent{
			ID:    h.idGen.NewEventID(),
			Topic: ports.TopicBidOutbid,
			Payload: mustJSON(map[string]string{
				"item_id":    item.ID,
				"item_title": item.Title,
				"user_id":    item.HighestBidder,
				"new_amount": cmd.Amount.String(),
			}),
			CreatedAt: now,
		}
		if err = txc.Outbox().Append(ctx, event); err != nil {
			return nil, fmt.Errorf("%w: queueing outbid event: %v", domainErrors.ErrUpstreamFailure, err)
		}
	}

	if err = txc.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing bid: %v", domainErrors.ErrUpstreamFailure, err)
	}

	h.afterCommit(ctx, item.ID, cmd.Amount, item.BidCount+1, newEndsAt)

	h.log.Info("Bid accepted",
		"item_id", item.ID,
		"bid_id", bid.ID,
		"bidder_id", identity.ID,
		"amount", cmd.Amount.String(),
		"extended", extended,
	)

	return &PlaceBidResponse{
		BidID:         bid.ID,
		ItemID:        item.ID,
		Amount:        cmd.Amount.String(),
		BidCount:      item.BidCount + 1,
		Extended:      extended,
		AuctionEndsAt: newEndsAt,
	}, nil
}

// afterCommit refreshes the price cache and broadcasts the accepted bid.
// Both are best effort; the bid is already durable.
func (h *PlaceBidHandler) afterCommit(ctx context.Context, itemID string, amount decimal.Decimal, bidCount int, endsAt time.Time) {
	if err := h.cache.SetCurrentPrice(ctx, itemID, amount, time.Until(endsAt)+time.Hour); err != nil {
		h.log.Warn("Failed to refresh price cache", "item_id", itemID, "error", err)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"item_id":         itemID,
		"amount":          amount.String(),
		"bid_count":       bidCount,
		"auction_ends_at": endsAt,
	})
	if err != nil {
		return
	}
	if err := h.cache.PublishBidUpdate(ctx, itemID, payload); err != nil {
		h.log.Warn("Failed to broadcast bid update", "item_id", itemID, "error", err)
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
