package pricing

import (
	"testing"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceFor(t *testing.T) {
	game := &model.Game{
		ID:    1,
		Title: "FIFA",
		Prices: map[model.ConsoleType]int64{
			model.ConsoleOnlinePS5: 1500,
			model.ConsoleXbox:      900,
		},
	}

	t.Run("present price", func(t *testing.T) {
		price, err := PriceFor(game, model.ConsoleOnlinePS5)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), price)
	})

	t.Run("missing price is a pricing error", func(t *testing.T) {
		_, err := PriceFor(game, model.ConsoleOnlinePS4)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrPricing)
	})

	t.Run("unknown console type is a validation error", func(t *testing.T) {
		_, err := PriceFor(game, model.ConsoleType("gameboy"))
		assert.ErrorIs(t, err, model.ErrValidation)
	})
}

func TestTotalFor(t *testing.T) {
	items := []model.GameOrderItem{{Amount: 100}, {Amount: 250}, {Amount: 0}}
	assert.Equal(t, int64(350), TotalFor(items))
	assert.Equal(t, int64(0), TotalFor(nil))
}

func TestApplyCustomerDiscount(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		pct    int
		want   int64
	}{
		{"twenty percent", 1000, 20, 200},
		{"full price", 1000, 100, 1000},
		{"free", 1000, 0, 0},
		{"truncates", 999, 33, 329},
		{"negative delta truncates toward zero", -999, 33, -329},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyCustomerDiscount(tt.amount, tt.pct))
		})
	}
}

func TestCommissionPayout(t *testing.T) {
	assert.Equal(t, int64(100), CommissionPayout(1000, 10))
	assert.Equal(t, int64(0), CommissionPayout(1000, 0))
	assert.Equal(t, int64(12), CommissionPayout(125, 10))
}
