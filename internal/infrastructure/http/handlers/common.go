package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gavelworks/auction-settlement-service/internal/application/auth"
	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/http/response"
)

func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	identity, err := auth.FromContext(r.Context())
	if err != nil {
		response.WriteDomainError(w, err)
		return auth.Identity{}, false
	}
	return identity, true
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

type itemView struct {
	ID       string `json:"id"`
	SellerID string `json:"seller_id"`
	Title    string `json:"title"`
	SaleMode string `json:"sale_mode"`
	Status   string `json:"status"`

	FixedPrice string `json:"fixed_price,omitempty"`

	StartingPrice  string     `json:"starting_price,omitempty"`
	HasReserve     bool       `json:"has_reserve,omitempty"`
	AuctionEndsAt  *time.Time `json:"auction_ends_at,omitempty"`
	CurrentPrice   string     `json:"current_price,omitempty"`
	BidCount       int        `json:"bid_count,omitempty"`
	ExtensionCount int        `json:"extension_count,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	SoldAt    *time.Time `json:"sold_at,omitempty"`
}

// The reserve amount itself is never exposed, only whether one exists.
func toItemView(item *listing.Item) itemView {
	view := itemView{
		ID:        item.ID,
		SellerID:  item.SellerID,
		Title:     item.Title,
		SaleMode:  string(item.SaleMode),
		Status:    string(item.Status),
		CreatedAt: item.CreatedAt,
		SoldAt:    item.SoldAt,
	}

	if item.IsAuction() {
		endsAt := item.AuctionEndsAt
		view.StartingPrice = item.StartingPrice.String()
		view.HasReserve = item.HasReserve
		view.AuctionEndsAt = &endsAt
		view.CurrentPrice = item.CurrentPrice.String()
		view.BidCount = item.BidCount
		view.ExtensionCount = item.ExtensionCount
	} else {
		view.FixedPrice = item.FixedPrice.String()
	}
	return view
}

func toItemViews(items []*listing.Item) []itemView {
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, toItemView(item))
	}
	return views
}

type bidView struct {
	ID       string    `json:"id"`
	ItemID   string    `json:"item_id"`
	BidderID string    `json:"bidder_id"`
	Amount   string    `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

func toBidViews(bids []*listing.Bid) []bidView {
	views := make([]bidView, 0, len(bids))
	for _, bid := range bids {
		views = append(views, bidView{
			ID:       bid.ID,
			ItemID:   bid.ItemID,
			BidderID: bid.BidderID,
			Amount:   bid.Amount.String(),
			PlacedAt: bid.PlacedAt,
		})
	}
	return views
}

type offerView struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	BuyerID   string    `json:"buyer_id"`
	Amount    string    `json:"amount"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func toOfferViews(offers []*listing.Offer) []offerView {
	views := make([]offerView, 0, len(offers))
	for _, offer := range offers {
		views = append(views, offerView{
			ID:        offer.ID,
			ItemID:    offer.ItemID,
			BuyerID:   offer.BuyerID,
			Amount:    offer.Amount.String(),
			Message:   offer.Message,
			Status:    string(offer.Status),
			ExpiresAt: offer.ExpiresAt,
			CreatedAt: offer.CreatedAt,
		})
	}
	return views
}

type transactionView struct {
	ID       string `json:"id"`
	ItemID   string `json:"item_id"`
	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id"`

	FinalPrice       string `json:"final_price"`
	BuyerCommission  string `json:"buyer_commission"`
	SellerCommission string `json:"seller_commission"`
	ShippingCost     string `json:"shipping_cost"`
	TotalCharged     string `json:"total_charged"`
	SellerPayout     string `json:"seller_payout"`

	PaymentStatus   string `json:"payment_status"`
	LifecycleStatus string `json:"lifecycle_status"`
	TrackingNumber  string `json:"tracking_number,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toTransactionView(t *escrow.Transaction) transactionView {
	return transactionView{
		ID:               t.ID,
		ItemID:           t.ItemID,
		BuyerID:          t.BuyerID,
		SellerID:         t.SellerID,
		FinalPrice:       t.FinalPrice.String(),
		BuyerCommission:  t.BuyerCommission.String(),
		SellerCommission: t.SellerCommission.String(),
		ShippingCost:     t.ShippingCost.String(),
		TotalCharged:     t.TotalCharged.String(),
		SellerPayout:     t.SellerPayout.String(),
		PaymentStatus:    string(t.PaymentStatus),
		LifecycleStatus:  string(t.LifecycleStatus),
		TrackingNumber:   t.TrackingNumber,
		CreatedAt:        t.CreatedAt,
		PaidAt:           t.PaidAt,
		ShippedAt:        t.ShippedAt,
		DeliveredAt:      t.DeliveredAt,
		CompletedAt:      t.CompletedAt,
	}
}
