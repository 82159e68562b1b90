package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
)

// OrderSettler is the part of an order service that payment flows drive.
// Every method must run inside the caller's DB transaction.
type OrderSettler interface {
	Kind() model.OrderKind
	// Payable locks the order and reports what a payment for it must collect.
	Payable(ctx context.Context, orderID int64) (*model.Payable, error)
	LinkTransaction(ctx context.Context, orderID, txnID int64) error
	MarkPaid(ctx context.Context, orderID int64) error
	// Compensate refunds the order's outstanding charge and soft-deletes it.
	Compensate(ctx context.Context, orderID int64) (int64, error)
}

type Settlers map[model.OrderKind]OrderSettler

func NewSettlers(settlers ...OrderSettler) Settlers {
	out := make(Settlers, len(settlers))
	for _, s := range settlers {
		out[s.Kind()] = s
	}
	return out
}

func (s Settlers) For(kind model.OrderKind) (OrderSettler, error) {
	if settler, ok := s[kind]; ok {
		return settler, nil
	}
	return nil, model.ValidationError("order_kind", fmt.Sprintf("unknown order kind %q", kind))
}

// adjustCharge moves the customer's outstanding charge for an order from old to next
// as one posting against revenue.
func adjustCharge(ctx context.Context, poster Poster, kind model.OrderKind, orderID, customerID, old, next int64, reason string) error {
	if old == next {
		return nil
	}
	id := orderID
	return poster.Post(ctx, ledger.Posting{
		Reason:    reason,
		OrderKind: kind,
		OrderID:   &id,
		Legs:      ledger.AgainstRevenue(ledger.Customer(customerID), old-next),
	})
}

func requirePayable(p *model.Payable) error {
	if p.PaymentStatus == model.PaymentPaid {
		return model.StateConflict("payment_status", fmt.Sprintf("%s order %d is already paid", p.Kind, p.OrderID))
	}
	if p.Amount <= 0 {
		return model.ValidationError("amount", fmt.Sprintf("%s order %d has no amount yet", p.Kind, p.OrderID))
	}
	return nil
}

type paymentLookup interface {
	PaymentInFlight(ctx context.Context, txnID *int64) (bool, error)
}

// requireRepriceable keeps an order's amount fixed once a payment for it is paid or in flight.
func requireRepriceable(ctx context.Context, payments paymentLookup, status model.PaymentStatus, txnID *int64) error {
	if status == model.PaymentPaid {
		return model.StateConflict("amount", "a paid order cannot be repriced")
	}
	inFlight, err := payments.PaymentInFlight(ctx, txnID)
	if err != nil {
		return err
	}
	if inFlight {
		return model.StateConflict("amount", "a payment for this order is in flight")
	}
	return nil
}

func rejected(kind model.OrderKind, err error) error {
	if err != nil {
		prom.ObserveOrderRejection(string(kind), model.KindName(err))
		logger.Warn("order operation rejected", "kind", kind, "error", err)
	}
	return err
}

func actorRequired(a model.Actor) error {
	if a.ID <= 0 {
		return model.ValidationError("actor", "an authenticated actor is required")
	}
	return nil
}
