package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/gavelworks/auction-settlement-service/internal/application/ports"
	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
	"github.com/gavelworks/auction-settlement-service/internal/domain/listing"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
)

// ListingRepository persists items, bids and offers. With tx set, every
// statement runs inside that transaction; otherwise on the pooled connection.
type ListingRepository struct {
	conn *Connection
	tx   *sql.Tx
}

func NewListingRepository(conn *Connection) *ListingRepository {
	return &ListingRepository{conn: conn}
}

func NewListingRepositoryTx(conn *Connection, tx *sql.Tx) *ListingRepository {
	return &ListingRepository{conn: conn, tx: tx}
}

func (r *ListingRepository) query(ctx context.Context, queryType, table, query string, args ...interface{}) (*sql.Rows, error) {
	if r.tx != nil {
		return monitoring.InstrumentTxQuery(ctx, r.tx, queryType, table, query, args...)
	}
	return monitoring.InstrumentQuery(ctx, r.conn.db, queryType, table, query, args...)
}

func (r *ListingRepository) queryRow(ctx context.Context, queryType, table, query string, args ...interface{}) *sql.Row {
	if r.tx != nil {
		return monitoring.InstrumentTxQueryRow(ctx, r.tx, queryType, table, query, args...)
	}
	return monitoring.InstrumentQueryRow(ctx, r.conn.db, queryType, table, query, args...)
}

func (r *ListingRepository) exec(ctx context.Context, queryType, table, query string, args ...interface{}) (sql.Result, error) {
	if r.tx != nil {
		return monitoring.InstrumentTxExec(ctx, r.tx, queryType, table, query, args...)
	}
	return monitoring.InstrumentExec(ctx, r.conn.db, queryType, table, query, args...)
}

const itemColumns = `
	id, seller_id, title, sale_mode, status,
	fixed_price, starting_price, reserve_price, has_reserve,
	auction_ends_at, current_price, highest_bidder, bid_count, extension_count,
	created_at, sold_at
`

func scanItem(scanner interface{ Scan(...interface{}) error }) (*listing.Item, error) {
	var item listing.Item
	var endsAt sql.NullTime
	var highestBidder sql.NullString
	var soldAt sql.NullTime

	err := scanner.Scan(
		&item.ID, &item.SellerID, &item.Title, &item.SaleMode, &item.Status,
		&item.FixedPrice, &item.StartingPrice, &item.ReservePrice, &item.HasReserve,
		&endsAt, &item.CurrentPrice, &highestBidder, &item.BidCount, &item.ExtensionCount,
		&item.CreatedAt, &soldAt,
	)
	if err != nil {
		return nil, err
	}

	if endsAt.Valid {
		item.AuctionEndsAt = endsAt.Time
	}
	if highestBidder.Valid {
		item.HighestBidder = highestBidder.String
	}
	if soldAt.Valid {
		at := soldAt.Time
		item.SoldAt = &at
	}
	return &item, nil
}

func (r *ListingRepository) GetItemByID(ctx context.Context, id string) (*listing.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(r.queryRow(ctx, "SELECT", "items", query, id))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (r *ListingRepository) CreateItem(ctx context.Context, item *listing.Item) error {
	query := `
		INSERT INTO items (
			id, seller_id, title, sale_mode, status,
			fixed_price, starting_price, reserve_price, has_reserve,
			auction_ends_at, current_price, highest_bidder, bid_count, extension_count,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14, $15)
	`

	var endsAt interface{}
	if item.IsAuction() {
		endsAt = item.AuctionEndsAt
	}

	_, err := r.exec(ctx, "INSERT", "items", query,
		item.ID, item.SellerID, item.Title, item.SaleMode, item.Status,
		item.FixedPrice, item.StartingPrice, item.ReservePrice, item.HasReserve,
		endsAt, item.CurrentPrice, item.HighestBidder, item.BidCount, item.ExtensionCount,
		item.CreatedAt,
	)
	return err
}

func (r *ListingRepository) GetItemsBySeller(ctx context.Context, sellerID string, limit, offset int) ([]*listing.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryItems(ctx, query, sellerID, limit, offset)
}

func (r *ListingRepository) GetActiveItems(ctx context.Context, limit, offset int) ([]*listing.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE status = 'active'
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.queryItems(ctx, query, limit, offset)
}

func (r *ListingRepository) GetEndedAuctions(ctx context.Context, now time.Time, limit int) ([]*listing.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE sale_mode = 'auction' AND status = 'active' AND auction_ends_at <= $1
		ORDER BY auction_ends_at
		LIMIT $2
	`
	return r.queryItems(ctx, query, now, limit)
}

func (r *ListingRepository) queryItems(ctx context.Context, query string, args ...interface{}) ([]*listing.Item, error) {
	rows, err := r.query(ctx, "SELECT", "items", query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*listing.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ApplyBid is the price CAS: the update only lands when the item is still
// active and the price is exactly what the bidder validated against. Zero
// rows affected means another bid got there first.
func (r *ListingRepository) ApplyBid(ctx context.Context, application ports.BidApplication) (bool, error) {
	query := `
		UPDATE items
		SET current_price = $3,
		    highest_bidder = $4,
		    bid_count = bid_count + 1,
		    auction_ends_at = $5,
		    extension_count = extension_count + CASE WHEN $6 THEN 1 ELSE 0 END
		WHERE id = $1 AND status = 'active' AND current_price = $2
	`

	result, err := r.exec(ctx, "UPDATE", "items", query,
		application.ItemID, application.ExpectedPrice, application.NewPrice,
		application.BidderID, application.NewEndsAt, application.Extended,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ListingRepository) MarkItemSold(ctx context.Context, itemID string, soldAt time.Time) (bool, error) {
	query := `UPDATE items SET status = 'sold', sold_at = $2 WHERE id = $1 AND status = 'active'`

	result, err := r.exec(ctx, "UPDATE", "items", query, itemID, soldAt)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ListingRepository) MarkItemExpired(ctx context.Context, itemID string) (bool, error) {
	query := `UPDATE items SET status = 'expired' WHERE id = $1 AND status = 'active'`

	result, err := r.exec(ctx, "UPDATE", "items", query, itemID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *ListingRepository) RevertItemToActive(ctx context.Context, itemID string) error {
	query := `UPDATE items SET status = 'active', sold_at = NULL WHERE id = $1`

	result, err := r.exec(ctx, "UPDATE", "items", query, itemID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainErrors.ErrItemNotFound
	}
	return nil
}

func (r *ListingRepository) CreateBid(ctx context.Context, bid *listing.Bid) error {
	query := `
		INSERT INTO bids (id, item_id, bidder_id, amount, max_auto_bid, has_auto_bid, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.exec(ctx, "INSERT", "bids", query,
		bid.ID, bid.ItemID, bid.BidderID, bid.Amount, bid.MaxAutoBid, bid.HasAutoBid, bid.PlacedAt,
	)
	return err
}

const bidColumns = `id, item_id, bidder_id, amount, max_auto_bid, has_auto_bid, placed_at`

func scanBid(scanner interface{ Scan(...interface{}) error }) (*listing.Bid, error) {
	var bid listing.Bid
	err := scanner.Scan(
		&bid.ID, &bid.ItemID, &bid.BidderID, &bid.Amount, &bid.MaxAutoBid, &bid.HasAutoBid, &bid.PlacedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (r *ListingRepository) GetHighestBid(ctx context.Context, itemID string) (*listing.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE item_id = $1
		ORDER BY amount DESC, placed_at
		LIMIT 1
	`

	bid, err := scanBid(r.queryRow(ctx, "SELECT", "bids", query, itemID))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrNoBids
	}
	if err != nil {
		return nil, err
	}
	return bid, nil
}

func (r *ListingRepository) GetBidsByItemID(ctx context.Context, itemID string, limit, offset int) ([]*listing.Bid, error) {
	query := `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE item_id = $1
		ORDER BY placed_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.query(ctx, "SELECT", "bids", query, itemID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*listing.Bid
	for rows.Next() {
		bid, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, rows.Err()
}

func (r *ListingRepository) GetDistinctBidders(ctx context.Context, itemID string) ([]string, error) {
	query := `SELECT DISTINCT bidder_id FROM bids WHERE item_id = $1`

	rows, err := r.query(ctx, "SELECT", "bids", query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bidders []string
	for rows.Next() {
		var bidder string
		if err := rows.Scan(&bidder); err != nil {
			return nil, err
		}
		bidders = append(bidders, bidder)
	}
	return bidders, rows.Err()
}

func (r *ListingRepository) CreateOffer(ctx context.Context, offer *listing.Offer) error {
	query := `
		INSERT INTO offers (id, item_id, buyer_id, amount, message, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.exec(ctx, "INSERT", "offers", query,
		offer.ID, offer.ItemID, offer.BuyerID, offer.Amount, offer.Message,
		offer.Status, offer.ExpiresAt, offer.CreatedAt,
	)
	return err
}

const offerColumns = `id, item_id, buyer_id, amount, message, status, expires_at, created_at`

func scanOffer(scanner interface{ Scan(...interface{}) error }) (*listing.Offer, error) {
	var offer listing.Offer
	err := scanner.Scan(
		&offer.ID, &offer.ItemID, &offer.BuyerID, &offer.Amount, &offer.Message,
		&offer.Status, &offer.ExpiresAt, &offer.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *ListingRepository) GetOfferByID(ctx context.Context, id string) (*listing.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	offer, err := scanOffer(r.queryRow(ctx, "SELECT", "offers", query, id))
	if err == sql.ErrNoRows {
		return nil, domainErrors.ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (r *ListingRepository) GetOffersByItemID(ctx context.Context, itemID string, limit, offset int) ([]*listing.Offer, error) {
	query := `
		SELECT ` + offerColumns + `
		FROM offers
		WHERE item_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.query(ctx, "SELECT", "offers", query, itemID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*listing.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

func (r *ListingRepository) UpdateOfferStatus(ctx context.Context, offerID string, status listing.OfferStatus) error {
	query := `UPDATE offers SET status = $2 WHERE id = $1`

	result, err := r.exec(ctx, "UPDATE", "offers", query, offerID, status)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domainErrors.ErrOfferNotFound
	}
	return nil
}

func (r *ListingRepository) RejectSiblingOffers(ctx context.Context, itemID, acceptedOfferID string) error {
	query := `
		UPDATE offers
		SET status = 'rejected'
		WHERE item_id = $1 AND id <> $2 AND status = 'pending'
	`

	_, err := r.exec(ctx, "UPDATE", "offers", query, itemID, acceptedOfferID)
	return err
}

func (r *ListingRepository) ExpireStaleOffers(ctx context.Context, now time.Time, limit int) (int, error) {
	query := `
		UPDATE offers
		SET status = 'expired'
		WHERE id IN (
			SELECT id FROM offers
			WHERE status = 'pending' AND expires_at <= $1
			LIMIT $2
		)
	`

	result, err := r.exec(ctx, "UPDATE", "offers", query, now, limit)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
