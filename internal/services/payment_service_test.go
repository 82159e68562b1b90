package services_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	gateway "github.com/nimasrn/drgame-ledger/internal/gateways"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	*env
	customer int64
	pm       int64
	orderID  int64
}

// newPaymentFixture opens a product order worth price with an online payment method in place.
func newPaymentFixture(t *testing.T, price int64) *paymentFixture {
	t.Helper()
	e := newEnv(t)
	f := &paymentFixture{env: e}
	f.pm = helpers.CreatePaymentMethod(t, e.db, "zarinpal", true, 0)
	f.customer = helpers.CreateCustomer(t, e.db, 100, 0)
	f.orderID = f.productOrder(t, f.customer, price)
	return f
}

func (f *paymentFixture) productOrder(t *testing.T, customer, price int64) int64 {
	t.Helper()
	order, err := f.products.Create(context.Background(), customerActor(customer), model.ProductOrderCreateRequest{
		CustomerID: customer,
		Items:      []model.ProductOrderLine{{ProductID: f.product(t, price), Quantity: 1}},
	})
	require.NoError(t, err)
	return order.ID
}

func (f *paymentFixture) txnStatus(t *testing.T, id int64) model.TransactionStatus {
	t.Helper()
	txn, err := f.txns.Get(context.Background(), id)
	require.NoError(t, err)
	return txn.Status
}

func TestPayment_GatewayFailureLeavesBalances(t *testing.T) {
	f := newPaymentFixture(t, 500)
	ctx := context.Background()
	f.gw.failRequests(errors.New("connection refused"))

	_, err := f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrGateway)

	order, err := f.products.Get(ctx, f.orderID)
	require.NoError(t, err)
	require.NotNil(t, order.TransactionID)
	assert.Equal(t, model.TransactionFailed, f.txnStatus(t, *order.TransactionID))
	assert.Equal(t, model.PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, int64(-500), f.balance(t, "customers", f.customer))
	assert.Zero(t, f.balance(t, "payment_methods", f.pm))
	assert.Zero(t, helpers.JournalCount(t, f.db, "order_compensated"))

	f.gw.failRequests(nil)
	res, err := f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID)
	require.NoError(t, err, "a failed payment can be requested again")
	assert.Equal(t, int64(500), res.Amount)
	assert.Equal(t, "A00000001", res.Authority)
	assert.Equal(t, "https://pay.test/StartPay/A00000001", res.PaymentURL)
	assert.Equal(t, model.TransactionWaiting, f.txnStatus(t, res.TransactionID))
}

func TestPayment_RequestPreconditions(t *testing.T) {
	f := newPaymentFixture(t, 500)
	ctx := context.Background()

	_, err := f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID+99)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.payments.RequestPayment(ctx, "subscription", f.orderID)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID)
	require.NoError(t, err)

	_, err = f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID)
	assert.ErrorIs(t, err, model.ErrStateConflict, "a waiting payment blocks a second one")
	assert.Equal(t, int64(1), f.count(t, "transactions"))
}

func TestPayment_NoOnlineMethod(t *testing.T) {
	e := newEnv(t)
	customer := helpers.CreateCustomer(t, e.db, 100, 0)
	order, err := e.courses.Create(context.Background(), customerActor(customer), model.CourseOrderCreateRequest{CustomerID: customer})
	require.NoError(t, err)

	_, err = e.payments.RequestPayment(context.Background(), model.OrderKindCourse, order.ID)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, e.count(t, "transactions"))
}

func TestPayment_OKCallbackSettlesCourse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pm := helpers.CreatePaymentMethod(t, e.db, "zarinpal", true, 0)
	customer := helpers.CreateCustomer(t, e.db, 100, 0)
	order, err := e.courses.Create(ctx, customerActor(customer), model.CourseOrderCreateRequest{CustomerID: customer})
	require.NoError(t, err)

	res, err := e.payments.RequestPayment(ctx, model.OrderKindCourse, order.ID)
	require.NoError(t, err)

	txn, err := e.payments.Callback(ctx, "OK", res.Authority)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionPaid, txn.Status)
	assert.Equal(t, "ref-"+res.Authority, txn.RefID)

	assert.Zero(t, e.balance(t, "customers", customer))
	assert.Equal(t, model.DefaultCourseAmount, e.balance(t, "payment_methods", pm))

	paid, err := e.courses.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)

	var access struct{ HasAccessToCourse bool }
	require.NoError(t, e.db.Read(ctx).Table("customers").Select("has_access_to_course").
		Where("id = ?", customer).Scan(&access).Error)
	assert.True(t, access.HasAccessToCourse)

	events := e.published.events()
	assert.Contains(t, events, "payment_settled")
	e.published.mu.Lock()
	var sms int
	for _, n := range e.published.sent {
		if n.Channel == model.ChannelSMS {
			sms++
			assert.Equal(t, "09120000000", n.Recipient)
		}
	}
	e.published.mu.Unlock()
	assert.Equal(t, 1, sms)
}

func TestPayment_NOKCallbackRefundsAndDeletes(t *testing.T) {
	f := newPaymentFixture(t, 700)
	ctx := context.Background()

	res, err := f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID)
	require.NoError(t, err)

	txn, err := f.payments.Callback(ctx, "NOK", res.Authority)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionFailed, txn.Status)
	assert.Zero(t, f.balance(t, "customers", f.customer))
	assert.Zero(t, f.balance(t, "payment_methods", f.pm))
	assert.Empty(t, f.gw.verified, "a failed callback is never verified")

	_, err = f.products.Get(ctx, f.orderID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// a late OK for the same authority changes nothing
	txn, err = f.payments.Callback(ctx, "OK", res.Authority)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionFailed, txn.Status)
	assert.Zero(t, f.balance(t, "customers", f.customer))
	assert.Zero(t, f.balance(t, "payment_methods", f.pm))
	assert.Equal(t, int64(2), helpers.JournalCount(t, f.db, "order_compensated"))
}

func TestPayment_DuplicateOKCreditsOnce(t *testing.T) {
	f := newPaymentFixture(t, 900)
	ctx := context.Background()

	res, err := f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		txn, err := f.payments.Callback(ctx, "OK", res.Authority)
		require.NoError(t, err)
		assert.Equal(t, model.TransactionPaid, txn.Status)
	}
	assert.Len(t, f.gw.verified, 1)
	assert.Zero(t, f.balance(t, "customers", f.customer))
	assert.Equal(t, int64(900), f.balance(t, "payment_methods", f.pm))
	assert.Equal(t, int64(2), helpers.JournalCount(t, f.db, "transaction_settled"))
}

func TestPayment_VerifyFailureIsRetryable(t *testing.T) {
	f := newPaymentFixture(t, 400)
	ctx := context.Background()

	res, err := f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID)
	require.NoError(t, err)

	f.gw.failVerify(errors.New("gateway timeout"))
	_, err = f.payments.Callback(ctx, "OK", res.Authority)
	assert.ErrorIs(t, err, model.ErrGateway)
	assert.Equal(t, model.TransactionWaiting, f.txnStatus(t, res.TransactionID))
	assert.Equal(t, int64(-400), f.balance(t, "customers", f.customer))

	f.gw.failVerify(nil)
	txn, err := f.payments.Callback(ctx, "OK", res.Authority)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionPaid, txn.Status)
	assert.Zero(t, f.balance(t, "customers", f.customer))
	assert.Equal(t, int64(400), f.balance(t, "payment_methods", f.pm))
}

func TestPayment_VerifyRejectionFailsAndRefunds(t *testing.T) {
	f := newPaymentFixture(t, 400)
	ctx := context.Background()

	res, err := f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(-400), f.balance(t, "customers", f.customer))

	f.gw.failVerify(fmt.Errorf("code -51: %w", gateway.ErrRejected))
	txn, err := f.payments.Callback(ctx, "OK", res.Authority)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionFailed, txn.Status)
	assert.Equal(t, model.TransactionFailed, f.txnStatus(t, res.TransactionID))
	assert.Zero(t, f.balance(t, "customers", f.customer))
	assert.Zero(t, f.balance(t, "payment_methods", f.pm))

	_, err = f.products.Get(ctx, f.orderID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	// the gateway recovering later does not resurrect the payment
	f.gw.failVerify(nil)
	txn, err = f.payments.Callback(ctx, "OK", res.Authority)
	require.NoError(t, err)
	assert.Equal(t, model.TransactionFailed, txn.Status)
	assert.Zero(t, f.balance(t, "customers", f.customer))
	assert.Zero(t, f.balance(t, "payment_methods", f.pm))
	assert.Equal(t, int64(2), helpers.JournalCount(t, f.db, "order_compensated"))
}

func TestPayment_CallbackRejections(t *testing.T) {
	f := newPaymentFixture(t, 400)
	ctx := context.Background()

	_, err := f.payments.Callback(ctx, "OK", "  ")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.payments.Callback(ctx, "OK", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.payments.Callback(ctx, "NOK", "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPayment_ManualSettleAfterGatewayFailure(t *testing.T) {
	f := newPaymentFixture(t, 300)
	ctx := context.Background()

	res, err := f.payments.RequestPayment(ctx, model.OrderKindProduct, f.orderID)
	require.NoError(t, err)

	_, err = f.txns.Settle(ctx, res.TransactionID, model.OutcomeFailed)
	require.NoError(t, err)
	assert.Zero(t, f.balance(t, "customers", f.customer))

	_, err = f.payments.Callback(ctx, "OK", res.Authority)
	assert.ErrorIs(t, err, model.ErrStateConflict)
	assert.Zero(t, f.balance(t, "customers", f.customer))
	assert.Zero(t, f.balance(t, "payment_methods", f.pm))
}

// Any interleaving of callbacks, verify outages and manual settles leaves every gateway
// transaction credited at most once.
func TestPayment_RefundOnceProperty(t *testing.T) {
	f := newPaymentFixture(t, 100)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(20240611))

	events := []string{"ok", "nok", "ok_verify_down", "settle_paid", "settle_failed"}
	var expectedPM int64

	for trial := 0; trial < 25; trial++ {
		price := int64(100 + rng.Intn(900))
		customer := helpers.CreateCustomer(t, f.db, 100, 0)
		orderID := f.productOrder(t, customer, price)

		res, err := f.payments.RequestPayment(ctx, model.OrderKindProduct, orderID)
		require.NoError(t, err)

		steps := 1 + rng.Intn(6)
		for i := 0; i < steps; i++ {
			switch events[rng.Intn(len(events))] {
			case "ok":
				_, _ = f.payments.Callback(ctx, "OK", res.Authority)
			case "nok":
				_, _ = f.payments.Callback(ctx, "NOK", res.Authority)
			case "ok_verify_down":
				f.gw.failVerify(errors.New("unavailable"))
				_, _ = f.payments.Callback(ctx, "OK", res.Authority)
				f.gw.failVerify(nil)
			case "settle_paid":
				_, _ = f.txns.Settle(ctx, res.TransactionID, model.OutcomePaid)
			case "settle_failed":
				_, _ = f.txns.Settle(ctx, res.TransactionID, model.OutcomeFailed)
			}

			status := f.txnStatus(t, res.TransactionID)
			got := f.balance(t, "customers", customer)
			switch status {
			case model.TransactionWaiting:
				assert.Equal(t, -price, got, "trial %d step %d", trial, i)
			case model.TransactionPaid, model.TransactionFailed:
				assert.Zero(t, got, "trial %d step %d: %s", trial, i, status)
			default:
				t.Fatalf("trial %d: unexpected status %s", trial, status)
			}
		}

		if f.txnStatus(t, res.TransactionID) == model.TransactionPaid {
			expectedPM += price
		}
		assert.Equal(t, expectedPM, f.balance(t, "payment_methods", f.pm), "trial %d", trial)
	}
}
