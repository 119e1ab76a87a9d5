package listing

import (
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/gavelworks/auction-settlement-service/internal/domain/errors"
)

const (
	// SoftCloseWindow is how close to the end a bid must land to push the
	// auction out; ExtensionDuration is how far it pushes.
	SoftCloseWindow   = 60 * time.Minute
	ExtensionDuration = 10 * time.Minute
)

var incrementTiers = []struct {
	below     decimal.Decimal
	increment decimal.Decimal
}{
	{decimal.NewFromInt(100), decimal.NewFromInt(10)},
	{decimal.NewFromInt(500), decimal.NewFromInt(50)},
	{decimal.NewFromInt(1000), decimal.NewFromInt(100)},
	{decimal.NewFromInt(5000), decimal.NewFromInt(200)},
}

var topIncrement = decimal.NewFromInt(500)

// MinIncrement returns the minimum amount a new bid must exceed the current
// highest price by, tiered on the current price.
func MinIncrement(currentPrice decimal.Decimal) decimal.Decimal {
	for _, tier := range incrementTiers {
		if currentPrice.LessThan(tier.below) {
			return tier.increment
		}
	}
	return topIncrement
}

// ValidateBid accepts or rejects a proposed amount against the running
// highest price and an optional reserve. It has no side effects; the caller
// applies the result.
func ValidateBid(proposed, currentPrice, reservePrice decimal.Decimal, hasReserve bool) error {
	if proposed.LessThanOrEqual(decimal.Zero) {
		return domainErrors.ErrInvalidAmount
	}

	minimum := currentPrice.Add(MinIncrement(currentPrice))
	if proposed.LessThan(minimum) {
		return domainErrors.ErrBidBelowMinimum
	}

	if hasReserve && proposed.LessThan(reservePrice) {
		return domainErrors.ErrBidBelowReserve
	}

	return nil
}

// ShouldExtend reports whether a bid arriving at now triggers a soft-close
// extension. The window is open on both sides: a bid at exactly one hour
// before the end does not extend, and neither does one at or past the end.
func ShouldExtend(endsAt, now time.Time) bool {
	return now.After(endsAt.Add(-SoftCloseWindow)) && now.Before(endsAt)
}

// Extend computes the pushed-back end time without mutating its input.
func Extend(endsAt time.Time) time.Time {
	return endsAt.Add(ExtensionDuration)
}
