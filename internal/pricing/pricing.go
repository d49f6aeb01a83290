// Package pricing holds the money rules of the auction: cent conversion and
// the minimum acceptable bid.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/estatesale/internal/models"
)

// MinIncrement is used when an item has no positive bid increment, so that
// an accepted bid always raises the current bid.
var MinIncrement = decimal.New(1, -2)

// MaxAmount caps every price, bid and increment. Twice the cap in cents
// still fits in int64, so currentBid + increment never overflows the store.
var MaxAmount = decimal.New(1, 9)

// ToCents converts an amount to integer cents. The amount must already be
// validated with ValidateAmount.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}

// FromCents converts integer cents back to an amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ValidateAmount checks that amount is a positive money value with at most
// two fractional digits, no larger than MaxAmount.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s", amount.String())
	}
	return validateMoney(amount)
}

// ValidateIncrement is ValidateAmount for bid increments, where zero is allowed.
func ValidateIncrement(increment decimal.Decimal) error {
	if increment.IsNegative() {
		return fmt.Errorf("increment must not be negative, got %s", increment.String())
	}
	return validateMoney(increment)
}

func validateMoney(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(2)) {
		return fmt.Errorf("amount %s has more than two decimal places", amount.String())
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("amount %s exceeds the maximum of %s", amount.String(), MaxAmount.StringFixed(2))
	}
	return nil
}

// MinimumBid computes the minimum acceptable bid for item:
// currentBid + bidIncrement once a bid exists, auctionStartPrice otherwise.
func MinimumBid(item *models.Item) decimal.Decimal {
	if item.CurrentBid == nil {
		return item.AuctionStartPrice
	}
	increment := item.BidIncrement
	if !increment.IsPositive() {
		increment = MinIncrement
	}
	return item.CurrentBid.Add(increment)
}
