package escrow

import (
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

func rates(buyer, seller string) CommissionRates {
	return CommissionRates{
		BuyerRate:  decimal.RequireFromString(buyer),
		SellerRate: decimal.RequireFromString(seller),
	}
}

func TestCalculate_RoundNumbers(t *testing.T) {
	breakdown, err := Calculate(decimal.NewFromInt(1000), rates("0.03", "0.02"), decimal.Zero)
	check.NoError(t, err)

	check.True(t, breakdown.BuyerCommission.Equal(decimal.NewFromInt(30)))
	check.True(t, breakdown.SellerCommission.Equal(decimal.NewFromInt(20)))
	check.True(t, breakdown.TotalCharged.Equal(decimal.NewFromInt(1030)))
	check.True(t, breakdown.SellerPayout.Equal(decimal.NewFromInt(980)))
}

func TestCalculate_ShippingAddedToTotalOnly(t *testing.T) {
	breakdown, err := Calculate(decimal.NewFromInt(1000), rates("0.03", "0.02"), decimal.NewFromInt(25))
	check.NoError(t, err)

	check.True(t, breakdown.TotalCharged.Equal(decimal.NewFromInt(1055)))
	check.True(t, breakdown.SellerPayout.Equal(decimal.NewFromInt(980)))
}

func TestCalculate_RoundsEachCommissionSeparately(t *testing.T) {
	// 333 * 3% = 9.99 -> 10, 333 * 2% = 6.66 -> 7. Rounding happens per
	// commission, never on the summed total.
	breakdown, err := Calculate(decimal.NewFromInt(333), rates("0.03", "0.02"), decimal.Zero)
	check.NoError(t, err)

	check.True(t, breakdown.BuyerCommission.Equal(decimal.NewFromInt(10)))
	check.True(t, breakdown.SellerCommission.Equal(decimal.NewFromInt(7)))
	check.True(t, breakdown.TotalCharged.Equal(decimal.NewFromInt(343)))
	check.True(t, breakdown.SellerPayout.Equal(decimal.NewFromInt(326)))
}

func TestCalculate_RejectsNonPositivePrice(t *testing.T) {
	_, err := Calculate(decimal.Zero, rates("0.03", "0.02"), decimal.Zero)
	check.True(t, err == domainErrors.ErrInvalidAmount)
}

func TestCalculate_RejectsNegativeShipping(t *testing.T) {
	_, err := Calculate(decimal.NewFromInt(100), rates("0.03", "0.02"), decimal.NewFromInt(-1))
	check.True(t, err == domainErrors.ErrInvalidAmount)
}
