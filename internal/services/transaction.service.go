package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/repository"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
)

// TransactionService records money movements and settles them through the ledger.
type TransactionService struct {
	tx       Transactor
	txns     TransactionRepository
	methods  PaymentMethodRepository
	poster   Poster
	settlers Settlers
	shop     model.FreeformLabel
	notifier *Notifier
}

func NewTransactionService(tx Transactor, txns TransactionRepository, methods PaymentMethodRepository, poster Poster, settlers Settlers, shopLabel string, notifier *Notifier) *TransactionService {
	return &TransactionService{
		tx:       tx,
		txns:     txns,
		methods:  methods,
		poster:   poster,
		settlers: settlers,
		shop:     model.FreeformLabel{Text: shopLabel},
		notifier: notifier,
	}
}

// Create stores a transaction. A settled request is stored paid and posted at once.
func (s *TransactionService) Create(ctx context.Context, req model.TransactionCreateRequest) (*model.Transaction, error) {
	txn, err := req.Build()
	if err != nil {
		return nil, err
	}

	var created *model.Transaction
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if txn.PaymentMethodID != nil {
			if _, err := s.methods.GetByID(ctx, *txn.PaymentMethodID); err != nil {
				return err
			}
		}
		created, err = s.txns.Create(ctx, txn)
		if err != nil {
			return err
		}
		if created.Status == model.TransactionPaid {
			return s.poster.Post(ctx, ledger.SettlementPosting(*created))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("transaction created", "id", created.ID, "status", created.Status, "amount", created.Amount,
		"payer", created.Payer.String(), "receiver", created.Receiver.String())
	return created, nil
}

// Settle moves a pending or waiting transaction to outcome exactly once. Repeating the
// same outcome is a no-op; a different outcome afterwards is a conflict.
func (s *TransactionService) Settle(ctx context.Context, id int64, outcome model.SettleOutcome) (*model.Transaction, error) {
	if !outcome.Valid() {
		return nil, model.ValidationError("outcome", fmt.Sprintf("unknown outcome %q", outcome))
	}
	target := outcome.Status()

	changed := false
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		txn, err := s.txns.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if txn.Status == target {
			return nil
		}
		if txn.Status.Terminal() {
			return model.StateConflict("status", fmt.Sprintf("transaction %d is already %s", id, txn.Status))
		}
		if err := s.txns.Transition(ctx, id, txn.Status, target, nil); err != nil {
			return err
		}
		changed = true
		return s.applyOutcome(ctx, txn, target)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		prom.ObserveSettlement(string(outcome))
		logger.Info("transaction settled", "id", id, "outcome", outcome)
	}
	return s.txns.GetByID(ctx, id)
}

// applyOutcome posts a paid transaction and updates its order. A failed transaction that
// was waiting on the gateway gives the customer back the order charge.
func (s *TransactionService) applyOutcome(ctx context.Context, txn *model.Transaction, target model.TransactionStatus) error {
	if target == model.TransactionPaid {
		paid := *txn
		paid.Status = target
		if err := s.poster.Post(ctx, ledger.SettlementPosting(paid)); err != nil {
			return err
		}
	}
	if txn.OrderID == nil || txn.OrderKind == "" {
		return nil
	}
	settler, err := s.settlers.For(txn.OrderKind)
	if err != nil {
		return err
	}
	switch {
	case target == model.TransactionPaid:
		return settler.MarkPaid(ctx, *txn.OrderID)
	case txn.Status == model.TransactionWaiting:
		_, err := settler.Compensate(ctx, *txn.OrderID)
		return err
	}
	return nil
}

// RecordIncoming books money received into a payment method. When an order is named it is
// linked and marked paid.
func (s *TransactionService) RecordIncoming(ctx context.Context, req model.CounterpartyRequest) (*model.Transaction, error) {
	party, err := model.NewParty("party", req.Party)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, &model.Transaction{
		Payer:           party,
		Receiver:        s.shop,
		PaymentMethodID: &req.PaymentMethodID,
		Amount:          req.Amount,
		InOut:           true,
		Description:     req.Description,
		OrderKind:       req.OrderKind,
		OrderID:         req.OrderID,
	})
}

// RecordOutgoing books money paid out of a payment method; the method may not go negative.
func (s *TransactionService) RecordOutgoing(ctx context.Context, req model.CounterpartyRequest) (*model.Transaction, error) {
	party, err := model.NewParty("party", req.Party)
	if err != nil {
		return nil, err
	}
	if req.OrderID != nil {
		return nil, model.ValidationError("order_id", "outgoing payments do not settle orders")
	}
	return s.record(ctx, &model.Transaction{
		Payer:           s.shop,
		Receiver:        party,
		PaymentMethodID: &req.PaymentMethodID,
		Amount:          req.Amount,
		InOut:           false,
		Description:     req.Description,
	})
}

func (s *TransactionService) CustomerDeposit(ctx context.Context, customerID int64, req model.MoneyMovementRequest) (*model.Transaction, error) {
	return s.movement(ctx, true, model.KnownUser{Kind: model.AccountCustomer, ID: customerID}, req)
}

func (s *TransactionService) EmployeePayout(ctx context.Context, employeeID int64, req model.MoneyMovementRequest) (*model.Transaction, error) {
	return s.movement(ctx, false, model.KnownUser{Kind: model.AccountEmployee, ID: employeeID}, req)
}

func (s *TransactionService) RepairmanPayout(ctx context.Context, repairmanID int64, req model.MoneyMovementRequest) (*model.Transaction, error) {
	return s.movement(ctx, false, model.KnownUser{Kind: model.AccountRepairman, ID: repairmanID}, req)
}

func (s *TransactionService) movement(ctx context.Context, incoming bool, who model.KnownUser, req model.MoneyMovementRequest) (*model.Transaction, error) {
	cp := model.CounterpartyRequest{
		Party:           model.PartyInput{User: &who},
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		Description:     req.Description,
	}
	if incoming {
		return s.RecordIncoming(ctx, cp)
	}
	return s.RecordOutgoing(ctx, cp)
}

// RecordOrderPayment books a cash payment from the order's customer for what the order owes.
func (s *TransactionService) RecordOrderPayment(ctx context.Context, kind model.OrderKind, orderID, paymentMethodID int64) (*model.Transaction, error) {
	settler, err := s.settlers.For(kind)
	if err != nil {
		return nil, err
	}
	var out *model.Transaction
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := settler.Payable(ctx, orderID)
		if err != nil {
			return err
		}
		id := orderID
		out, err = s.record(ctx, &model.Transaction{
			Payer:           model.KnownUser{Kind: model.AccountCustomer, ID: p.CustomerID},
			Receiver:        s.shop,
			PaymentMethodID: &paymentMethodID,
			Amount:          p.Amount,
			InOut:           true,
			Description:     fmt.Sprintf("cash payment for %s order %d", kind, orderID),
			OrderKind:       kind,
			OrderID:         &id,
		})
		return err
	})
	return out, err
}

// record stores txn as paid, posts it and settles its order, all in one DB transaction.
func (s *TransactionService) record(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if txn.Amount <= 0 {
		return nil, model.ValidationError("amount", "must be positive")
	}
	if txn.OrderID != nil && !txn.OrderKind.Valid() {
		return nil, model.ValidationError("order_kind", "an order id needs a valid order kind")
	}
	txn.Status = model.TransactionPaid
	txn.Lifecycle = model.LifecycleActive

	var created *model.Transaction
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.methods.GetByID(ctx, *txn.PaymentMethodID); err != nil {
			return err
		}
		var settler OrderSettler
		if txn.OrderID != nil {
			var err error
			if settler, err = s.settlers.For(txn.OrderKind); err != nil {
				return err
			}
			p, err := settler.Payable(ctx, *txn.OrderID)
			if err != nil {
				return err
			}
			if err := requirePayable(p); err != nil {
				return err
			}
			if err := s.requireNoOpenPayment(ctx, p); err != nil {
				return err
			}
			if err := matchesPayable(txn, p); err != nil {
				return err
			}
		}

		var err error
		created, err = s.txns.Create(ctx, txn)
		if err != nil {
			return err
		}
		if err := s.poster.Post(ctx, ledger.SettlementPosting(*created)); err != nil {
			return err
		}
		if settler == nil {
			return nil
		}
		if err := settler.LinkTransaction(ctx, *txn.OrderID, created.ID); err != nil {
			return err
		}
		return settler.MarkPaid(ctx, *txn.OrderID)
	})
	if err != nil {
		return nil, err
	}

	prom.ObserveSettlement("recorded")
	direction := "incoming"
	if !created.InOut {
		direction = "outgoing"
	}
	logger.Info("money movement recorded", "id", created.ID, "direction", direction, "amount", created.Amount,
		"payment_method_id", *created.PaymentMethodID, "payer", created.Payer.String(), "receiver", created.Receiver.String())
	s.notifier.Notify(ctx, "payment_recorded",
		fmt.Sprintf("%s payment #%d: %d (%s -> %s)", direction, created.ID, created.Amount, created.Payer, created.Receiver))
	return created, nil
}

// matchesPayable requires a payment settling an order to come from the order's customer
// and to cover exactly what the order owes.
func matchesPayable(txn *model.Transaction, p *model.Payable) error {
	if u, ok := txn.Payer.(model.KnownUser); !ok || u != (model.KnownUser{Kind: model.AccountCustomer, ID: p.CustomerID}) {
		return model.InvariantViolation("party", fmt.Sprintf("%s order %d can only be paid by customer %d", p.Kind, p.OrderID, p.CustomerID))
	}
	if txn.Amount != p.Amount {
		return model.ValidationError("amount", fmt.Sprintf("%s order %d owes %d, got %d", p.Kind, p.OrderID, p.Amount, txn.Amount))
	}
	return nil
}

// requireNoOpenPayment rejects a second payment while a gateway payment for the order is in flight.
func (s *TransactionService) requireNoOpenPayment(ctx context.Context, p *model.Payable) error {
	if p.TransactionID == nil {
		return nil
	}
	linked, err := s.txns.GetByID(ctx, *p.TransactionID)
	if err != nil {
		return err
	}
	if linked.Status != model.TransactionFailed {
		return model.StateConflict("transaction", fmt.Sprintf("%s order %d already has a %s payment", p.Kind, p.OrderID, linked.Status))
	}
	return nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	return s.txns.GetByID(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, int64, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return s.txns.List(ctx, f)
}
