package escrow

import (
	"github.com/shopspring/decimal"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

// CommissionRates holds the marketplace rates as fractions (0.03 for 3%).
// They come from the admin-mutable settings record; the hard-coded rates some
// legacy flows carried are gone, the configured rates are the single source.
type CommissionRates struct {
	BuyerRate  decimal.Decimal
	SellerRate decimal.Decimal
}

type CommissionBreakdown struct {
	FinalPrice       decimal.Decimal
	BuyerCommission  decimal.Decimal
	SellerCommission decimal.Decimal
	ShippingCost     decimal.Decimal
	TotalCharged     decimal.Decimal
	SellerPayout     decimal.Decimal
}

// Calculate computes the money amounts for one settlement. Each commission is
// rounded to the nearest currency unit on its own; the total is a plain sum
// of already-rounded parts.
func Calculate(finalPrice decimal.Decimal, rates CommissionRates, shippingCost decimal.Decimal) (CommissionBreakdown, error) {
	if finalPrice.LessThanOrEqual(decimal.Zero) {
		return CommissionBreakdown{}, domainErrors.ErrInvalidAmount
	}
	if shippingCost.LessThan(decimal.Zero) {
		return CommissionBreakdown{}, domainErrors.ErrInvalidAmount
	}

	buyerCommission := finalPrice.Mul(rates.BuyerRate).Round(0)
	sellerCommission := finalPrice.Mul(rates.SellerRate).Round(0)

	return CommissionBreakdown{
		FinalPrice:       finalPrice,
		BuyerCommission:  buyerCommission,
		SellerCommission: sellerCommission,
		ShippingCost:     shippingCost,
		TotalCharged:     finalPrice.Add(buyerCommission).Add(shippingCost),
		SellerPayout:     finalPrice.Sub(sellerCommission),
	}, nil
}
