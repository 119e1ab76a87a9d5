package ports

import (
	"context"

	"github.com/gavelworks/auction-settlement-service/internal/domain/escrow"
)

type SettingsRepository interface {
	GetCommissionRates(ctx context.Context) (escrow.CommissionRates, error)
	UpdateCommissionRates(ctx context.Context, rates escrow.CommissionRates) error
}
