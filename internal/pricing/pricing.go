// Package pricing holds the catalog price lookup and the percentage math used for
// customer discounts and employee commissions. Percentages truncate toward zero.
package pricing

import (
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceFor returns the game's price for the console type.
func PriceFor(game *model.Game, console model.ConsoleType) (int64, error) {
	if !console.Valid() {
		return 0, model.ValidationError("console_type", fmt.Sprintf("unknown console type %q", console))
	}
	price, ok := game.Prices[console]
	if !ok {
		return 0, model.PricingError("console_type",
			fmt.Sprintf("game %d (%s) has no %s price", game.ID, game.Title, console))
	}
	return price, nil
}

// TotalFor sums item snapshots; it never reads the live catalog.
func TotalFor(items []model.GameOrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Amount
	}
	return total
}

// ApplyCustomerDiscount returns amount*pct/100, the customer's effective charge.
func ApplyCustomerDiscount(amount int64, pct int) int64 {
	return percent(amount, pct)
}

// CommissionPayout returns itemAmount*pct/100.
func CommissionPayout(itemAmount int64, pct int) int64 {
	return percent(itemAmount, pct)
}

func percent(amount int64, pct int) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(pct))).
		Div(hundred).
		Truncate(0).
		IntPart()
}
