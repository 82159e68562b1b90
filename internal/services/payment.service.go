package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	gateway "github.com/nimasrn/drgame-ledger/internal/gateways"
	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/processor"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
)

// CallbackGuard deduplicates gateway callbacks per authority.
type CallbackGuard interface {
	AcquireProcessingLock(ctx context.Context, key string) (*processor.ProcessingContext, error)
	MarkSuccess(ctx context.Context, pc *processor.ProcessingContext) error
	MarkFailure(ctx context.Context, pc *processor.ProcessingContext, reason error) error
}

type PaymentResult struct {
	TransactionID int64  `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Authority     string `json:"authority"`
	PaymentURL    string `json:"payment_url"`
}

// PaymentService drives online payments for orders.
//
// Refund-once: a gateway-bound transaction credits its payer at most once, on its single
// transition out of waiting. Paid credits the paid amount through the settlement posting;
// failed refunds the order's outstanding charge and deletes the order. The conditional
// status update is what makes the credit single; the callback guard only short-cuts replays.
type PaymentService struct {
	tx        Transactor
	txns      TransactionRepository
	methods   PaymentMethodRepository
	customers CustomerRepository
	settlers  Settlers
	gateway   gateway.PaymentGateway
	guard     CallbackGuard
	poster    Poster
	shop      model.FreeformLabel
	notifier  *Notifier
}

func NewPaymentService(tx Transactor, txns TransactionRepository, methods PaymentMethodRepository, customers CustomerRepository, settlers Settlers, gw gateway.PaymentGateway, guard CallbackGuard, poster Poster, shopLabel string, notifier *Notifier) *PaymentService {
	return &PaymentService{
		tx:        tx,
		txns:      txns,
		methods:   methods,
		customers: customers,
		settlers:  settlers,
		gateway:   gw,
		guard:     guard,
		poster:    poster,
		shop:      model.FreeformLabel{Text: shopLabel},
		notifier:  notifier,
	}
}

// RequestPayment opens a gateway payment for what the order owes. A gateway failure marks
// the transaction failed and leaves every balance untouched.
func (s *PaymentService) RequestPayment(ctx context.Context, kind model.OrderKind, orderID int64) (*PaymentResult, error) {
	settler, err := s.settlers.For(kind)
	if err != nil {
		return nil, err
	}

	var txn *model.Transaction
	var mobile string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := settler.Payable(ctx, orderID)
		if err != nil {
			return err
		}
		if err := requirePayable(p); err != nil {
			return err
		}
		if p.TransactionID != nil {
			linked, err := s.txns.GetByID(ctx, *p.TransactionID)
			if err != nil {
				return err
			}
			if linked.Status != model.TransactionFailed {
				return model.StateConflict("transaction", fmt.Sprintf("%s order %d already has a %s payment", kind, orderID, linked.Status))
			}
		}
		method, err := s.methods.GetOnline(ctx)
		if err != nil {
			return err
		}
		customer, err := s.customers.GetByID(ctx, p.CustomerID)
		if err != nil {
			return err
		}
		mobile = customer.Phone

		id := orderID
		txn, err = s.txns.Create(ctx, &model.Transaction{
			Payer:           model.KnownUser{Kind: model.AccountCustomer, ID: customer.ID},
			Receiver:        s.shop,
			PaymentMethodID: &method.ID,
			Amount:          p.Amount,
			Status:          model.TransactionPending,
			InOut:           true,
			Description:     fmt.Sprintf("online payment for %s order %d", kind, orderID),
			OrderKind:       kind,
			OrderID:         &id,
			Lifecycle:       model.LifecycleActive,
		})
		if err != nil {
			return err
		}
		return settler.LinkTransaction(ctx, orderID, txn.ID)
	})
	if err != nil {
		return nil, rejected(kind, err)
	}

	session, gerr := s.gateway.RequestPayment(ctx, gateway.PaymentRequest{
		Amount:      txn.Amount,
		Description: txn.Description,
		Mobile:      mobile,
		Reference:   strconv.FormatInt(txn.ID, 10),
	})
	if gerr != nil {
		if err := s.txns.Transition(ctx, txn.ID, model.TransactionPending, model.TransactionFailed, nil); err != nil {
			logger.Error("failed to mark transaction failed", "id", txn.ID, "error", err)
		}
		prom.ObserveSettlement("gateway_error")
		logger.Error("payment request failed", "provider", s.gateway.Name(), "transaction_id", txn.ID, "error", gerr)
		return nil, model.GatewayError(fmt.Sprintf("%s payment request failed: %v", s.gateway.Name(), gerr))
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.txns.Transition(ctx, txn.ID, model.TransactionPending, model.TransactionWaiting, nil); err != nil {
			return err
		}
		return s.txns.SetGatewayResult(ctx, txn.ID, session.Authority, session.Metadata)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("payment requested", "provider", s.gateway.Name(), "transaction_id", txn.ID, "authority", session.Authority, "amount", txn.Amount)
	return &PaymentResult{
		TransactionID: txn.ID,
		Amount:        txn.Amount,
		Authority:     session.Authority,
		PaymentURL:    session.PaymentURL,
	}, nil
}

// Callback resolves the waiting transaction for authority. status is the gateway's
// Status query parameter; anything but OK is a failure.
func (s *PaymentService) Callback(ctx context.Context, status, authority string) (*model.Transaction, error) {
	authority = strings.TrimSpace(authority)
	if authority == "" {
		return nil, model.ValidationError("authority", "authority is required")
	}

	var pc *processor.ProcessingContext
	if s.guard != nil {
		var err error
		pc, err = s.guard.AcquireProcessingLock(ctx, "payment:"+authority)
		switch {
		case errors.Is(err, processor.ErrAlreadyProcessed):
			return s.byAuthority(ctx, authority)
		case errors.Is(err, processor.ErrLockAcquireFailed):
			return nil, model.StateConflict("authority", "callback is already being processed")
		case errors.Is(err, processor.ErrMaxRetriesExceeded):
			return nil, model.GatewayError("verification retries exhausted")
		case err != nil:
			// the status guard below still holds without redis
			logger.Warn("callback guard unavailable", "authority", authority, "error", err)
			pc = nil
		}
	}

	var txn *model.Transaction
	var err error
	if strings.EqualFold(strings.TrimSpace(status), "OK") {
		txn, err = s.confirm(ctx, authority)
	} else {
		txn, err = s.fail(ctx, authority)
	}

	if pc != nil {
		if err != nil {
			_ = s.guard.MarkFailure(ctx, pc, err)
		} else {
			_ = s.guard.MarkSuccess(ctx, pc)
		}
	}
	return txn, err
}

func (s *PaymentService) byAuthority(ctx context.Context, authority string) (*model.Transaction, error) {
	var txn *model.Transaction
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		txn, err = s.txns.GetByAuthorityForUpdate(ctx, authority)
		return err
	})
	return txn, err
}

// fail moves waiting to failed and gives the customer back the order charge.
func (s *PaymentService) fail(ctx context.Context, authority string) (*model.Transaction, error) {
	var out *model.Transaction
	var refunded int64
	changed := false
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		txn, err := s.txns.GetByAuthorityForUpdate(ctx, authority)
		if err != nil {
			return err
		}
		out = txn
		switch txn.Status {
		case model.TransactionFailed:
			return nil
		case model.TransactionWaiting:
		default:
			return model.StateConflict("status", fmt.Sprintf("transaction %d is %s", txn.ID, txn.Status))
		}
		if err := s.txns.Transition(ctx, txn.ID, model.TransactionWaiting, model.TransactionFailed, nil); err != nil {
			return err
		}
		out.Status = model.TransactionFailed
		changed = true
		if txn.OrderID == nil {
			return nil
		}
		settler, err := s.settlers.For(txn.OrderKind)
		if err != nil {
			return err
		}
		refunded, err = settler.Compensate(ctx, *txn.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		prom.ObserveSettlement(string(model.OutcomeFailed))
		logger.Info("payment failed", "transaction_id", out.ID, "authority", authority, "refunded", refunded)
		s.notifier.Notify(ctx, "payment_failed", fmt.Sprintf("Payment #%d failed, %d refunded", out.ID, refunded))
		s.notifyPayer(ctx, out, "payment_failed", fmt.Sprintf("DrGame: your payment of %d was not completed.", out.Amount))
	}
	return out, nil
}

// confirm verifies with the gateway first. A rejected verification fails the payment like
// a NOK callback; any other verify error leaves the transaction waiting so the callback can
// be retried.
func (s *PaymentService) confirm(ctx context.Context, authority string) (*model.Transaction, error) {
	current, err := s.byAuthority(ctx, authority)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case model.TransactionPaid:
		return current, nil
	case model.TransactionWaiting:
	default:
		return nil, model.StateConflict("status", fmt.Sprintf("transaction %d is %s", current.ID, current.Status))
	}

	v, err := s.gateway.VerifyPayment(ctx, authority, current.Amount)
	if errors.Is(err, gateway.ErrRejected) {
		logger.Warn("payment verification rejected", "provider", s.gateway.Name(), "transaction_id", current.ID, "error", err)
		return s.fail(ctx, authority)
	}
	if err != nil {
		logger.Warn("payment verification failed", "provider", s.gateway.Name(), "transaction_id", current.ID, "error", err)
		return nil, model.GatewayError(fmt.Sprintf("%s verification failed: %v", s.gateway.Name(), err))
	}

	var out *model.Transaction
	changed := false
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		txn, err := s.txns.GetByAuthorityForUpdate(ctx, authority)
		if err != nil {
			return err
		}
		out = txn
		switch txn.Status {
		case model.TransactionPaid:
			return nil
		case model.TransactionWaiting:
		default:
			return model.StateConflict("status", fmt.Sprintf("transaction %d is %s", txn.ID, txn.Status))
		}
		if err := s.txns.Transition(ctx, txn.ID, model.TransactionWaiting, model.TransactionPaid, map[string]any{"ref_id": v.RefID}); err != nil {
			return err
		}
		txn.Status = model.TransactionPaid
		txn.RefID = v.RefID
		changed = true

		if err := s.poster.Post(ctx, ledger.SettlementPosting(*txn)); err != nil {
			return err
		}
		if txn.OrderID == nil {
			return nil
		}
		settler, err := s.settlers.For(txn.OrderKind)
		if err != nil {
			return err
		}
		return settler.MarkPaid(ctx, *txn.OrderID)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		prom.ObserveSettlement(string(model.OutcomePaid))
		logger.Info("payment settled", "transaction_id", out.ID, "authority", authority, "ref_id", out.RefID, "amount", out.Amount)
		s.notifier.Notify(ctx, "payment_settled", fmt.Sprintf("Payment #%d settled: %d, ref %s", out.ID, out.Amount, out.RefID))
		s.notifyPayer(ctx, out, "payment_settled", fmt.Sprintf("DrGame: payment of %d received. Ref %s", out.Amount, out.RefID))
	}
	return out, nil
}

func (s *PaymentService) notifyPayer(ctx context.Context, txn *model.Transaction, event, text string) {
	payer, ok := txn.Payer.(model.KnownUser)
	if !ok || payer.Kind != model.AccountCustomer {
		return
	}
	customer, err := s.customers.GetByID(ctx, payer.ID)
	if err != nil {
		logger.Warn("payer lookup failed", "transaction_id", txn.ID, "error", err)
		return
	}
	s.notifier.NotifyCustomer(ctx, customer.Phone, event, text)
}
