package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/application/auth"
	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	"github.com/gavelworks/auction-settlement-service/internal/application/use_cases"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/generator"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

type CreateOfferCommand struct {
	ItemID  string
	Amount  decimal.Decimal
	Message string
}

type OfferResponse struct {
	OfferID   string    `json:"offer_id"`
	ItemID    string    `json:"item_id"`
	Amount    string    `json:"amount"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

type OfferHandler struct {
	uow         ports.UnitOfWork
	listingRepo ports.ListingRepository
	settlement  *use_cases.SettlementUseCase
	idGen       *generator.IDGenerator
	clk         clock.Clock
	log         *logger.Logger
}

func NewOfferHandler(
	uow ports.UnitOfWork,
	listingRepo ports.ListingRepository,
	settlement *use_cases.SettlementUseCase,
	idGen *generator.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *OfferHandler {
	return &OfferHandler{
		uow:         uow,
		listingRepo: listingRepo,
		settlement:  settlement,
		idGen:       idGen,
		clk:         clk,
		log:         log,
	}
}

func (h *OfferHandler) Create(ctx context.Context, identity auth.Identity, cmd CreateOfferCommand) (resp *OfferResponse, err error) {
	if !identity.CanBuy() {
		return nil, domainErrors.ErrForbidden
	}

	item, err := h.listingRepo.GetItemByID(ctx, cmd.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsActive() {
		return nil, domainErrors.ErrItemNotActive
	}
	if item.SaleMode != listing.SaleModeQuickSale {
		return nil, domainErrors.ErrItemNotQuickSale
	}
	if item.SellerID == identity.ID {
		return nil, domainErrors.ErrOfferOnOwnItem
	}

	now := h.clk.Now()
	offer, err := listing.NewOffer(h.idGen.NewOfferID(), item.ID, identity.ID, cmd.Amount, cmd.Message, now)
	if err != nil {
		return nil, err
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

	if err = txc.Listings().CreateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("%w: storing offer: %v", domainErrors.ErrUpstreamFailure, err)
	}

	event := ports.NotificationEvent{
		ID:    h.idGen.NewEventID(),
		Topic: ports.TopicOfferReceived,
		Payload: mustJSON(map[string]string{
			"item_id":    item.ID,
			"item_title": item.Title,
			"user_id":    item.SellerID,
			"offer_id":   offer.ID,
			"amount":     offer.Amount.String(),
		}),
		CreatedAt: now,
	}
	if err = txc.Outbox().Append(ctx, event); err != nil {
		return nil, fmt.Errorf("%w: queueing offer event: %v", domainErrors.ErrUpstreamFailure, err)
	}

	if err = txc.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing offer: %v", domainErrors.ErrUpstreamFailure, err)
	}

	h.log.Info("Offer created", "offer_id", offer.ID, "item_id", item.ID, "buyer_id", identity.ID)

	return &OfferResponse{
		OfferID:   offer.ID,
		ItemID:    offer.ItemID,
		Amount:    offer.Amount.String(),
		Status:    string(offer.Status),
		ExpiresAt: offer.ExpiresAt,
	}, nil
}

// Accept settles the item from the offer. Everything after the authorization
// check runs inside the settlement coordinator, including rejecting all
// sibling pending offers.
func (h *OfferHandler) Accept(ctx context.Context, identity auth.Identity, offerID string) (*use_cases.SettlementResult, error) {
	offer, err := h.listingRepo.GetOfferByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	// A deadline that passed without a sweep is settled lazily here, so the
	// seller sees expired rather than a stale pending offer.
	if offer.Status == listing.OfferStatusPending && !offer.IsPending(h.clk.Now()) {
		offer.Expire()
		if err := h.listingRepo.UpdateOfferStatus(ctx, offer.ID, offer.Status); err != nil {
			h.log.Error("Failed to expire stale offer", "offer_id", offer.ID, "error", err)
		}
		return nil, domainErrors.ErrOfferExpired
	}

	return h.settlement.SettleFromOffer(ctx, identity, offerID)
}

func (h *OfferHandler) Reject(ctx context.Context, identity auth.Identity, offerID string) (err error) {
	offer, err := h.listingRepo.GetOfferByID(ctx, offerID)
	if err != nil {
		return err
	}
	item, err := h.listingRepo.GetItemByID(ctx, offer.ItemID)
	if err != nil {
		return err
	}
	if identity.ID != item.SellerID && !identity.IsAdmin() {
		return domainErrors.ErrForbidden
	}
	if err := offer.Reject(); err != nil {
		return err
	}

	txc, err := h.uow.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrUpstreamFailure, err)
	}
	defer func() {
		if err != nil {
			_ = txc.Rollback()
		}
	}()

	if err = txc.Listings().UpdateOfferStatus(ctx, offer.ID, listing.OfferStatusRejected); err != nil {
		return fmt.Errorf("%w: rejecting offer: %v", domainErrors.ErrUpstreamFailure, err)
	}

	event := ports.NotificationEvent{
		ID:    h.idGen.NewEventID(),
		Topic: ports.TopicOfferRejected,
		Payload: mustJSON(map[string]string{
			"item_id":  item.ID,
			"offer_id": offer.ID,
			"user_id":  offer.BuyerID,
		}),
		CreatedAt: h.clk.Now(),
	}
	if err = txc.Outbox().Append(ctx, event); err != nil {
		return fmt.Errorf("%w: queueing rejection event: %v", domainErrors.ErrUpstreamFailure, err)
	}

	if err = txc.Commit(); err != nil {
		return fmt.Errorf("%w: committing rejection: %v", domainErrors.ErrUpstreamFailure, err)
	}

	h.log.Info("Offer rejected", "offer_id", offer.ID, "item_id", item.ID)
	return nil
}

func (h *OfferHandler) ListForItem(ctx context.Context, identity auth.Identity, itemID string, limit, offset int) ([]*listing.Offer, error) {
	item, err := h.listingRepo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if identity.ID != item.SellerID && !identity.IsAdmin() {
		return nil, domainErrors.ErrForbidden
	}
	return h.listingRepo.GetOffersByItemID(ctx, itemID, limit, offset)
}
