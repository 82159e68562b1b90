package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoster_Post(t *testing.T) {
	ctx := context.Background()

	t.Run("customer deposit moves both balances and journals each leg", func(t *testing.T) {
		db := helpers.SetupTestDB(t)
		poster := ledger.NewPoster(db)
		customer := helpers.CreateCustomer(t, db, 100, 0)
		pm := helpers.CreatePaymentMethod(t, db, "cash", false, 0)

		err := poster.Post(ctx, ledger.Posting{
			Reason: "customer_deposit",
			Legs: []ledger.Leg{
				{Account: ledger.Customer(customer), Delta: 500},
				{Account: ledger.PaymentMethod(pm), Delta: 500},
			},
		})
		require.NoError(t, err)

		assert.Equal(t, int64(500), helpers.Balance(t, db, "customers", customer))
		assert.Equal(t, int64(500), helpers.Balance(t, db, "payment_methods", pm))
		assert.Equal(t, int64(2), helpers.JournalCount(t, db, "customer_deposit"))

		entries, err := poster.Entries(ctx, ledger.Customer(customer), 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.NotNil(t, entries[0].BalanceAfter)
		assert.Equal(t, int64(500), *entries[0].BalanceAfter)
	})

	t.Run("unbalanced posting is rejected before any write", func(t *testing.T) {
		db := helpers.SetupTestDB(t)
		poster := ledger.NewPoster(db)
		customer := helpers.CreateCustomer(t, db, 100, 0)
		pm := helpers.CreatePaymentMethod(t, db, "cash", false, 0)

		err := poster.Post(ctx, ledger.Posting{
			Reason: "broken",
			Legs: []ledger.Leg{
				{Account: ledger.Customer(customer), Delta: 500},
				{Account: ledger.PaymentMethod(pm), Delta: -500},
			},
		})
		assert.ErrorIs(t, err, model.ErrInvariantViolation)
		assert.Zero(t, helpers.Balance(t, db, "customers", customer))
		assert.Zero(t, helpers.JournalCount(t, db, ""))
	})

	t.Run("charge against revenue is balanced", func(t *testing.T) {
		db := helpers.SetupTestDB(t)
		poster := ledger.NewPoster(db)
		customer := helpers.CreateCustomer(t, db, 100, 0)

		err := poster.Post(ctx, ledger.Posting{
			Reason: "order_charge",
			Legs:   ledger.AgainstRevenue(ledger.Customer(customer), -1200),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(-1200), helpers.Balance(t, db, "customers", customer))
		assert.Equal(t, int64(2), helpers.JournalCount(t, db, "order_charge"))
	})

	t.Run("no overdraft on payment method", func(t *testing.T) {
		db := helpers.SetupTestDB(t)
		poster := ledger.NewPoster(db)
		employee := helpers.CreateEmployee(t, db, 10, 300)
		pm := helpers.CreatePaymentMethod(t, db, "cash", false, 100)

		err := poster.Post(ctx, ledger.Posting{
			Reason: "employee_payout",
			Legs: []ledger.Leg{
				{Account: ledger.Employee(employee), Delta: -300},
				{Account: ledger.PaymentMethod(pm), Delta: -300, NoOverdraft: true},
			},
		})
		assert.ErrorIs(t, err, model.ErrInsufficientBalance)
		assert.Equal(t, int64(300), helpers.Balance(t, db, "employees", employee))
		assert.Equal(t, int64(100), helpers.Balance(t, db, "payment_methods", pm))
	})

	t.Run("deleted account is not found", func(t *testing.T) {
		db := helpers.SetupTestDB(t)
		poster := ledger.NewPoster(db)
		customer := helpers.CreateCustomer(t, db, 100, 0)
		require.NoError(t, db.Write(ctx).Exec("UPDATE customers SET lifecycle = 'deleted' WHERE id = ?", customer).Error)

		err := poster.Post(ctx, ledger.Posting{
			Reason: "order_charge",
			Legs:   ledger.AgainstRevenue(ledger.Customer(customer), -10),
		})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("zero legs are a no-op", func(t *testing.T) {
		db := helpers.SetupTestDB(t)
		poster := ledger.NewPoster(db)
		customer := helpers.CreateCustomer(t, db, 100, 0)

		require.NoError(t, poster.Post(ctx, ledger.Posting{
			Reason: "order_adjustment",
			Legs:   ledger.AgainstRevenue(ledger.Customer(customer), 0),
		}))
		assert.Zero(t, helpers.JournalCount(t, db, ""))
	})

	t.Run("outer transaction rollback undoes the posting", func(t *testing.T) {
		db := helpers.SetupTestDB(t)
		poster := ledger.NewPoster(db)
		customer := helpers.CreateCustomer(t, db, 100, 0)

		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := poster.Post(ctx, ledger.Posting{
				Reason: "order_charge",
				Legs:   ledger.AgainstRevenue(ledger.Customer(customer), -50),
			}); err != nil {
				return err
			}
			return model.StateConflict("status", "lost race")
		})
		assert.ErrorIs(t, err, model.ErrStateConflict)
		assert.Zero(t, helpers.Balance(t, db, "customers", customer))
		assert.Zero(t, helpers.JournalCount(t, db, ""))
	})
}

func TestPoster_ConcurrentPostingsConserveBalance(t *testing.T) {
	ctx := context.Background()
	db := helpers.SetupTestDB(t)
	poster := ledger.NewPoster(db)
	customer := helpers.CreateCustomer(t, db, 100, 0)
	pm := helpers.CreatePaymentMethod(t, db, "cash", false, 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := poster.Post(ctx, ledger.Posting{
				Reason: "customer_deposit",
				Legs: []ledger.Leg{
					{Account: ledger.Customer(customer), Delta: 10},
					{Account: ledger.PaymentMethod(pm), Delta: 10},
				},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(200), helpers.Balance(t, db, "customers", customer))
	assert.Equal(t, int64(200), helpers.Balance(t, db, "payment_methods", pm))
}

func TestSettlementPosting(t *testing.T) {
	pmID := int64(7)
	orderID := int64(3)

	cases := []struct {
		name string
		txn  model.Transaction
		want map[ledger.Account]int64
	}{
		{
			name: "customer pays the shop through a payment method",
			txn: model.Transaction{
				ID: 1, Amount: 900, InOut: true, PaymentMethodID: &pmID,
				Payer:     model.KnownUser{Kind: model.AccountCustomer, ID: 4},
				Receiver:  model.FreeformLabel{Text: "DrGame"},
				OrderKind: model.OrderKindGame, OrderID: &orderID,
			},
			want: map[ledger.Account]int64{ledger.PaymentMethod(7): 900, ledger.Customer(4): 900},
		},
		{
			name: "shop pays an employee",
			txn: model.Transaction{
				ID: 2, Amount: 300, PaymentMethodID: &pmID,
				Payer:    model.FreeformLabel{Text: "DrGame"},
				Receiver: model.KnownUser{Kind: model.AccountEmployee, ID: 5},
			},
			want: map[ledger.Account]int64{ledger.PaymentMethod(7): -300, ledger.Employee(5): -300},
		},
		{
			name: "outside supplier is paid",
			txn: model.Transaction{
				ID: 3, Amount: 120, PaymentMethodID: &pmID,
				Payer:    model.FreeformLabel{Text: "DrGame"},
				Receiver: model.FreeformLabel{Text: "parts supplier"},
			},
			want: map[ledger.Account]int64{ledger.PaymentMethod(7): -120, ledger.External: 120},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := ledger.SettlementPosting(tc.txn)
			assert.Zero(t, p.Net())
			got := make(map[ledger.Account]int64)
			for _, l := range p.Legs {
				got[l.Account] += l.Delta
			}
			assert.Equal(t, tc.want, got)
			require.NotNil(t, p.TransactionID)
			assert.Equal(t, tc.txn.ID, *p.TransactionID)
		})
	}

	t.Run("shop-side known user without counterparty leg is unbalanced", func(t *testing.T) {
		p := ledger.SettlementPosting(model.Transaction{
			ID: 9, Amount: 50, InOut: true,
			Payer:    model.KnownUser{Kind: model.AccountCustomer, ID: 1},
			Receiver: model.FreeformLabel{Text: "DrGame"},
		})
		assert.NotZero(t, p.Net())
	})
}
