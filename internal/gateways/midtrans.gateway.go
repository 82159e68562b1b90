package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
	"github.com/pkg/errors"
)

type MidtransConfig struct {
	ServerKey  string
	Production bool
	Timeout    time.Duration
}

// MidtransClient uses Snap to open a payment page and the core API to confirm it.
// The authority is the Midtrans order id we generate.
type MidtransClient struct {
	snap    snap.Client
	core    coreapi.Client
	timeout time.Duration
}

func NewMidtransClient(cfg MidtransConfig) *MidtransClient {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	m := &MidtransClient{timeout: cfg.Timeout}
	m.snap.New(cfg.ServerKey, env)
	m.core.New(cfg.ServerKey, env)
	return m
}

func (m *MidtransClient) Name() string { return "midtrans" }

func (m *MidtransClient) RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	orderID := "drgame-" + req.Reference + "-" + uuid.NewString()[:8]
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: req.Amount,
		},
	}

	var resp *snap.Response
	err := m.bounded(ctx, "request", func() error {
		r, merr := m.snap.CreateTransaction(snapReq)
		if merr != nil {
			return errors.Wrap(ErrRejected, merr.GetMessage())
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("midtrans payment requested", "order_id", orderID, "amount", req.Amount)
	return &PaymentSession{
		Authority:  orderID,
		PaymentURL: resp.RedirectURL,
		Metadata:   map[string]any{"token": resp.Token},
	}, nil
}

func (m *MidtransClient) VerifyPayment(ctx context.Context, authority string, amount int64) (*Verification, error) {
	var status *coreapi.TransactionStatusResponse
	err := m.bounded(ctx, "verify", func() error {
		s, merr := m.core.CheckTransaction(authority)
		if merr != nil {
			return errors.Wrap(ErrRejected, merr.GetMessage())
		}
		status = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	switch status.TransactionStatus {
	case "settlement", "capture":
	default:
		return nil, errors.Wrapf(ErrRejected, "transaction status %s", status.TransactionStatus)
	}
	if gross, perr := strconv.ParseFloat(status.GrossAmount, 64); perr == nil && int64(gross) != amount {
		return nil, errors.Wrapf(ErrRejected, "gross amount %s does not match %d", status.GrossAmount, amount)
	}
	return &Verification{
		RefID:    status.TransactionID,
		Metadata: map[string]any{"payment_type": status.PaymentType, "status": status.TransactionStatus},
	}, nil
}

// bounded runs a blocking SDK call and gives up when the context or timeout expires.
func (m *MidtransClient) bounded(ctx context.Context, endpoint string, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- fn() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = errors.Wrap(ctx.Err(), "midtrans call timed out")
	}
	prom.ObserveGatewayRequest("midtrans", endpoint, time.Since(start).Seconds(), err != nil)
	return err
}
