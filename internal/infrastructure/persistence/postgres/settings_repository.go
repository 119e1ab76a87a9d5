package postgres

import (
	"context"
	"database/sql"

	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
)

// SettingsRepository reads and writes the single commission_settings row.
// The row is seeded from configuration on first boot; after that the
// database record is authoritative and admins change it over HTTP.
type SettingsRepository struct {
	conn *Connection
}

func NewSettingsRepository(conn *Connection) *SettingsRepository {
	return &SettingsRepository{conn: conn}
}

func (r *SettingsRepository) GetCommissionRates(ctx context.Context) (escrow.CommissionRates, error) {
	query := `SELECT buyer_rate, seller_rate FROM commission_settings WHERE id = 1`

	var rates escrow.CommissionRates
	row := monitoring.InstrumentQueryRow(ctx, r.conn.db, "SELECT", "commission_settings", query)
	if err := row.Scan(&rates.BuyerRate, &rates.SellerRate); err != nil {
		return escrow.CommissionRates{}, err
	}
	return rates, nil
}

// SeedCommissionRates inserts the initial rates if no row exists yet. An
// existing row is left untouched.
func (r *SettingsRepository) SeedCommissionRates(ctx context.Context, rates escrow.CommissionRates) error {
	query := `
		INSERT INTO commission_settings (id, buyer_rate, seller_rate)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := monitoring.InstrumentExec(ctx, r.conn.db, "INSERT", "commission_settings", query,
		rates.BuyerRate, rates.SellerRate,
	)
	return err
}

func (r *SettingsRepository) UpdateCommissionRates(ctx context.Context, rates escrow.CommissionRates) error {
	query := `
		UPDATE commission_settings
		SET buyer_rate = $1, seller_rate = $2, updated_at = NOW()
		WHERE id = 1
	`

	result, err := monitoring.InstrumentExec(ctx, r.conn.db, "UPDATE", "commission_settings", query,
		rates.BuyerRate, rates.SellerRate,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
