package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gavelworks/auction-settlement-service/internal/application/commands"
	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	"github.com/gavelworks/auction-settlement-service/internal/application/use_cases"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/response"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/clock"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/generator"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

type ItemHandler struct {
	listingRepo  ports.ListingRepository
	bidHandler   *commands.PlaceBidHandler
	offerHandler *commands.OfferHandler
	settlement   *use_cases.SettlementUseCase
	idGen        *generator.IDGenerator
	clk          clock.Clock
	log          *logger.Logger
}

func NewItemHandler(
	listingRepo ports.ListingRepository,
	bidHandler *commands.PlaceBidHandler,
	offerHandler *commands.OfferHandler,
	settlement *use_cases.SettlementUseCase,
	idGen *generator.IDGenerator,
	clk clock.Clock,
	log *logger.Logger,
) *ItemHandler {
	return &ItemHandler{
		listingRepo:  listingRepo,
		bidHandler:   bidHandler,
		offerHandler: offerHandler,
		settlement:   settlement,
		idGen:        idGen,
		clk:          clk,
		log:          log,
	}
}

type createItemRequest struct {
	Title         string `json:"title"`
	SaleMode      string `json:"sale_mode"`
	Price         string `json:"price"`
	StartingPrice string `json:"starting_price"`
	ReservePrice  string `json:"reserve_price"`
	AuctionEndsAt string `json:"auction_ends_at"`
}

func (h *ItemHandler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteValidationError(w, "Invalid request body", nil)
		return
	}

	errors := make(map[string]string)
	if req.Title == "" {
		errors["title"] = "title is required"
	}
	if req.SaleMode != string(listing.SaleModeQuickSale) && req.SaleMode != string(listing.SaleModeAuction) {
		errors["sale_mode"] = "sale_mode must be quick_sale or auction"
	}
	if len(errors) > 0 {
		response.WriteValidationError(w, "Validation failed", errors)
		return
	}

	now := h.clk.Now()
	var item *listing.Item

	switch listing.SaleMode(req.SaleMode) {
	case listing.SaleModeQuickSale:
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			response.WriteValidationError(w, "Validation failed", map[string]string{"price": "price must be a decimal string"})
			return
		}
		item, err = listing.NewQuickSaleItem(h.idGen.NewItemID(), identity.ID, req.Title, price, now)
		if err != nil {
			response.WriteDomainError(w, err)
			return
		}

	case listing.SaleModeAuction:
		startingPrice, err := decimal.NewFromString(req.StartingPrice)
		if err != nil {
			response.WriteValidationError(w, "Validation failed", map[string]string{"starting_price": "starting_price must be a decimal string"})
			return
		}
		endsAt, err := time.Parse(time.RFC3339, req.AuctionEndsAt)
		if err != nil {
			response.WriteValidationError(w, "Validation failed", map[string]string{"auction_ends_at": "auction_ends_at must be RFC3339"})
			return
		}

		reservePrice := decimal.Zero
		hasReserve := false
		if req.ReservePrice != "" {
			reservePrice, err = decimal.NewFromString(req.ReservePrice)
			if err != nil {
				response.WriteValidationError(w, "Validation failed", map[string]string{"reserve_price": "reserve_price must be a decimal string"})
				return
			}
			hasReserve = true
		}

		item, err = listing.NewAuctionItem(h.idGen.NewItemID(), identity.ID, req.Title, startingPrice, reservePrice, hasReserve, endsAt, now)
		if err != nil {
			response.WriteDomainError(w, err)
			return
		}
	}

	if err := h.listingRepo.CreateItem(r.Context(), item); err != nil {
		h.log.Error("Failed to create item", "error", err)
		response.WriteDomainError(w, err)
		return
	}

	h.log.Info("Item created", "item_id", item.ID, "seller_id", identity.ID, "sale_mode", item.SaleMode)
	response.WriteCreated(w, toItemView(item))
}

func (h *ItemHandler) HandleGetItem(w http.ResponseWriter, r *http.Request, itemID string) {
	item, err := h.listingRepo.GetItemByID(r.Context(), itemID)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, toItemView(item))
}

func (h *ItemHandler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	if seller := r.URL.Query().Get("seller_id"); seller != "" {
		items, err := h.listingRepo.GetItemsBySeller(r.Context(), seller, limit, offset)
		if err != nil {
			response.WriteDomainError(w, err)
			return
		}
		response.WriteSuccess(w, toItemViews(items))
		return
	}

	items, err := h.listingRepo.GetActiveItems(r.Context(), limit, offset)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, toItemViews(items))
}

func (h *ItemHandler) HandleListBids(w http.ResponseWriter, r *http.Request, itemID string) {
	limit, offset := parsePagination(r)

	bids, err := h.listingRepo.GetBidsByItemID(r.Context(), itemID, limit, offset)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, toBidViews(bids))
}

type placeBidRequest struct {
	Amount     string `json:"amount"`
	MaxAutoBid string `json:"max_auto_bid"`
}

func (h *ItemHandler) HandlePlaceBid(w http.ResponseWriter, r *http.Request, itemID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteValidationError(w, "Invalid request body", nil)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"amount": "amount must be a decimal string"})
		return
	}

	cmd := commands.PlaceBidCommand{
		ItemID: itemID,
		Amount: amount,
	}
	if req.MaxAutoBid != "" {
		ceiling, err := decimal.NewFromString(req.MaxAutoBid)
		if err != nil {
			response.WriteValidationError(w, "Validation failed", map[string]string{"max_auto_bid": "max_auto_bid must be a decimal string"})
			return
		}
		cmd.MaxAutoBid = ceiling
		cmd.HasAutoBid = true
	}

	resp, err := h.bidHandler.Handle(r.Context(), identity, cmd)
	if err != nil {
		monitoring.RecordBidRejected(err.Error())
		response.WriteDomainError(w, err)
		return
	}

	monitoring.RecordBidPlaced()
	if resp.Extended {
		monitoring.RecordAuctionExtended()
	}
	response.WriteCreated(w, resp)
}

// HandleAcceptBid settles the auction on the current highest bid. Repeating
// the call returns the transaction created the first time.
func (h *ItemHandler) HandleAcceptBid(w http.ResponseWriter, r *http.Request, itemID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	result, err := h.settlement.SettleFromBid(r.Context(), identity, itemID)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	monitoring.RecordSettlement(result.AlreadySettled)
	if result.AlreadySettled {
		response.WriteSuccess(w, toTransactionView(result.Transaction))
		return
	}
	response.WriteCreated(w, toTransactionView(result.Transaction))
}

type createOfferRequest struct {
	Amount  string `json:"amount"`
	Message string `json:"message"`
}

func (h *ItemHandler) HandleCreateOffer(w http.ResponseWriter, r *http.Request, itemID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteValidationError(w, "Invalid request body", nil)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.WriteValidationError(w, "Validation failed", map[string]string{"amount": "amount must be a decimal string"})
		return
	}

	resp, err := h.offerHandler.Create(r.Context(), identity, commands.CreateOfferCommand{
		ItemID:  itemID,
		Amount:  amount,
		Message: req.Message,
	})
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteCreated(w, resp)
}

func (h *ItemHandler) HandleListOffers(w http.ResponseWriter, r *http.Request, itemID string) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)
	offers, err := h.offerHandler.ListForItem(r.Context(), identity, itemID, limit, offset)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}
	response.WriteSuccess(w, toOfferViews(offers))
}
