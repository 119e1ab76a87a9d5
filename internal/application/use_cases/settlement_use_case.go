package use_cases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/application/auth"
	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/generator"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// SettlementResult carries the one transaction per item. AlreadySettled is
// set when a concurrent trigger created the record first; that is a normal
// outcome, not an error.
type SettlementResult struct {
	Transaction    *escrow.Transaction
	AlreadySettled bool
}

// SettlementUseCase turns a winning bid or accepted offer into exactly one
// transaction and flips the item to sold. Three triggers converge here: the
// seller accepting a bid, the seller accepting an offer, and the expiration
// sweep. The item lock narrows the race window; correctness comes from the
// conditional transaction insert and the conditional item update committing
// as one unit.
type SettlementUseCase struct {
	uow          ports.UnitOfWork
	listingRepo  ports.ListingRepository
	settingsRepo ports.SettingsRepository
	cache        ports.Cache
	idGen        *generator.IDGenerator
	clk          clock.Clock
	log          *logger.Logger

	lockTTL time.Duration
}

func NewSettlementUseCase(
	uow ports.UnitOfWork,
	listingRepo ports.ListingRepository,
	settingsRepo ports.SettingsRepository,
	cache ports.Cache,
	idGen *generator.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *SettlementUseCase {
	return &SettlementUseCase{
		uow:          uow,
		listingRepo:  listingRepo,
		settingsRepo: settingsRepo,
		cache:        cache,
		idGen:        idGen,
		clk:          clk,
		log:          log,
		lockTTL:      5 * time.Second,
	}
}

// SettleFromBid handles the explicit "accept highest bid" action by the
// seller (or an admin). The auction does not need to have ended.
func (uc *SettlementUseCase) SettleFromBid(ctx context.Context, identity auth.Identity, itemID string) (*SettlementResult, error) {
	return uc.settle(ctx, itemID, func(ctx context.Context, txc ports.TxContext, item *listing.Item) (*winner, error) {
		if identity.ID != item.SellerID && !identity.IsAdmin() {
			return nil, domainErrors.ErrForbidden
		}
		if !item.IsAuction() {
			return nil, domainErrors.ErrItemNotAuction
		}

		bid, err := txc.Listings().GetHighestBid(ctx, itemID)
		if err != nil {
			return nil, err
		}

		return &winner{buyerID: bid.BidderID, amount: bid.Amount, fromAuction: true}, nil
	})
}

// SettleFromOffer settles a quick-sale item from an offer the seller just
// accepted. Sibling pending offers are rejected in the same transaction.
func (uc *SettlementUseCase) SettleFromOffer(ctx context.Context, identity auth.Identity, offerID string) (*SettlementResult, error) {
	offer, err := uc.listingRepo.GetOfferByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	return uc.settle(ctx, offer.ItemID, func(ctx context.Context, txc ports.TxContext, item *listing.Item) (*winner, error) {
		if identity.ID != item.SellerID && !identity.IsAdmin() {
			return nil, domainErrors.ErrForbidden
		}

		// Re-read inside the settlement transaction; the pre-read above only
		// resolved the item id.
		offer, err := txc.Listings().GetOfferByID(ctx, offerID)
		if err != nil {
			return nil, err
		}
		if err := offer.Accept(uc.clk.Now()); err != nil {
			return nil, err
		}
		if err := txc.Listings().UpdateOfferStatus(ctx, offer.ID, listing.OfferStatusAccepted); err != nil {
			return nil, err
		}
		if err := txc.Listings().RejectSiblingOffers(ctx, item.ID, offer.ID); err != nil {
			return nil, err
		}

		return &winner{buyerID: offer.BuyerID, amount: offer.Amount, offerID: offer.ID}, nil
	})
}

// SettleFromSweep settles an ended auction on behalf of the scheduler. The
// winning bid has already been resolved by the sweep.
func (uc *SettlementUseCase) SettleFromSweep(ctx context.Context, itemID string, bid *listing.Bid) (*SettlementResult, error) {
	return uc.settle(ctx, itemID, func(ctx context.Context, txc ports.TxContext, item *listing.Item) (*winner, error) {
		return &winner{buyerID: bid.BidderID, amount: bid.Amount, fromAuction: true}, nil
	})
}

type winner struct {
	buyerID     string
	amount      decimal.Decimal
	offerID     string
	fromAuction bool
}

// resolveWinner runs inside the settlement transaction, after the idempotency
// check and the item status precondition have passed.
type resolveWinner func(ctx context.Context, txc ports.TxContext, item *listing.Item) (*winner, error)

func (uc *SettlementUseCase) settle(ctx context.Context, itemID string, resolve resolveWinner) (result *SettlementResult, err error) {
	locked, lockErr := uc.cache.AcquireItemLock(ctx, itemID, uc.lockTTL)
	if lockErr != nil {
		uc.log.Warn("Item lock unavailable, relying on conditional insert", "item_id", itemID, "error", lockErr)
	}
	if locked {
		defer func() {
			if err := uc.cache.ReleaseItemLock(ctx, itemID); err != nil {
				uc.log.Error("Failed to release item lock", "item_id", itemID, "error", err)
			}
		}()
	}

	rates, err := uc.settingsRepo.GetCommissionRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading commission rates: %v", domainErrors.ErrUpstreamFailure, err)
	}

	txc, err := uc.uow.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrUpstreamFailure, err)
	}
	defer func() {
		if err != nil {
			_ = txc.Rollback()
		}
	}()

	item, err := txc.Listings().GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	// Idempotency: concurrent triggers are expected. Whoever lost the race
	// gets the existing record back unchanged.
	existing, err := txc.Transactions().GetByItemID(ctx, itemID)
	if err != nil && err != domainErrors.ErrTransactionNotFound {
		return nil, err
	}
	if existing != nil {
		_ = txc.Rollback()
		uc.log.Info("Item already settled", "item_id", itemID, "transaction_id", existing.ID)
		return &SettlementResult{Transaction: existing, AlreadySettled: true}, nil
	}

	if !item.IsActive() {
		err = domainErrors.ErrItemNotActive
		return nil, err
	}

	win, err := resolve(ctx, txc, item)
	if err != nil {
		return nil, err
	}

	breakdown, err := escrow.Calculate(win.amount, rates, decimal.Zero)
	if err != nil {
		return nil, err
	}

	// Apply the sale on the loaded entity first; the conditional update
	// below repeats the same transition against the authoritative row.
	now := uc.clk.Now()
	if err = item.MarkSold(now); err != nil {
		return nil, err
	}
	transaction := escrow.NewTransaction(uc.idGen.NewTransactionID(), item.ID, win.buyerID, item.SellerID, breakdown, now)

	created, err := txc.Transactions().CreateIfAbsent(ctx, transaction)
	if err != nil {
		return nil, fmt.Errorf("%w: creating transaction: %v", domainErrors.ErrUpstreamFailure, err)
	}
	if !created {
		existing, getErr := txc.Transactions().GetByItemID(ctx, itemID)
		if getErr != nil {
			err = getErr
			return nil, err
		}
		_ = txc.Rollback()
		return &SettlementResult{Transaction: existing, AlreadySettled: true}, nil
	}

	sold, err := txc.Listings().MarkItemSold(ctx, item.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: marking item sold: %v", domainErrors.ErrUpstreamFailure, err)
	}
	if !sold {
		err = domainErrors.ErrItemNotActive
		return nil, err
	}

	if err = uc.appendSettlementEvents(ctx, txc, item, transaction, win); err != nil {
		return nil, err
	}

	if err = txc.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing settlement: %v", domainErrors.ErrUpstreamFailure, err)
	}

	uc.log.Info("Settlement created",
		"item_id", item.ID,
		"transaction_id", transaction.ID,
		"buyer_id", win.buyerID,
		"final_price", transaction.FinalPrice.String(),
	)

	return &SettlementResult{Transaction: transaction}, nil
}

// appendSettlementEvents queues the buyer-won, seller-sold and loser events
// in the settlement transaction. Delivery happens later via the outbox
// dispatcher; a failing email never unwinds a committed sale.
func (uc *SettlementUseCase) appendSettlementEvents(ctx context.Context, txc ports.TxContext, item *listing.Item, transaction *escrow.Transaction, win *winner) error {
	now := uc.clk.Now()

	buyerTopic := ports.TopicAuctionWon
	if win.offerID != "" {
		buyerTopic = ports.TopicOfferAccepted
	}

	events := []ports.NotificationEvent{
		{
			ID:    uc.idGen.NewEventID(),
			Topic: buyerTopic,
			Payload: mustJSON(map[string]string{
				"item_id":        item.ID,
				"item_title":     item.Title,
				"transaction_id": transaction.ID,
				"user_id":        win.buyerID,
				"amount":         transaction.FinalPrice.String(),
			}),
			CreatedAt: now,
		},
		{
			ID:    uc.idGen.NewEventID(),
			Topic: ports.TopicItemSold,
			Payload: mustJSON(map[string]string{
				"item_id":        item.ID,
				"item_title":     item.Title,
				"transaction_id": transaction.ID,
				"user_id":        item.SellerID,
				"payout":         transaction.SellerPayout.String(),
			}),
			CreatedAt: now,
		},
	}

	if win.fromAuction {
		bidders, err := txc.Listings().GetDistinctBidders(ctx, item.ID)
		if err != nil {
			return err
		}
		for _, bidder := range bidders {
			if bidder == win.buyerID {
				continue
			}
			events = append(events, ports.NotificationEvent{
				ID:    uc.idGen.NewEventID(),
				Topic: ports.TopicAuctionLost,
				Payload: mustJSON(map[string]string{
					"item_id":    item.ID,
					"item_title": item.Title,
					"user_id":    bidder,
				}),
				CreatedAt: now,
			})
		}
	}

	for _, event := range events {
		if err := txc.Outbox().Append(ctx, event); err != nil {
			return fmt.Errorf("%w: appending outbox event: %v", domainErrors.ErrUpstreamFailure, err)
		}
	}

	return nil
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
