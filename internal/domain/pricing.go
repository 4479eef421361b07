package domain

import (
	"math"

	"github.com/shopspring/decimal"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// ErrInvalidPrice is returned for negative or non-finite prices.
var ErrInvalidPrice = apperrors.InvalidPrice("prices must be finite and non-negative")

var hundred = decimal.NewFromInt(100)

// Pricing holds the values derived from a variant's list and selling price.
type Pricing struct {
	DiscountPercent float64 `json:"discountPercent"`
	FinalPrice      float64 `json:"finalPrice"`
}

// ComputePricing derives the discount percentage and final price. A selling
// price at or above the list price yields no discount. Both outputs are
// rounded half-up to two decimals.
func ComputePricing(actualPrice, sellingPrice float64) (Pricing, error) {
	if !validPrice(actualPrice) || !validPrice(sellingPrice) {
		return Pricing{}, ErrInvalidPrice
	}

	actual := decimal.NewFromFloat(actualPrice)
	selling := decimal.NewFromFloat(sellingPrice)

	discount := decimal.Zero
	if actual.GreaterThan(selling) {
		discount = actual.Sub(selling).Div(actual).Mul(hundred).Round(2)
	}
	final := selling.Mul(decimal.NewFromInt(1).Sub(discount.Div(hundred))).Round(2)

	return Pricing{
		DiscountPercent: discount.InexactFloat64(),
		FinalPrice:      final.InexactFloat64(),
	}, nil
}

func validPrice(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
