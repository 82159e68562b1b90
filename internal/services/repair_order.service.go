package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
)

type RepairOrderService struct {
	tx        Transactor
	orders    RepairOrderRepository
	customers CustomerRepository
	repairmen RepairmanRepository
	poster    Poster
	notifier  *Notifier
}

func NewRepairOrderService(tx Transactor, orders RepairOrderRepository, customers CustomerRepository, repairmen RepairmanRepository, poster Poster, notifier *Notifier) *RepairOrderService {
	return &RepairOrderService{
		tx:        tx,
		orders:    orders,
		customers: customers,
		repairmen: repairmen,
		poster:    poster,
		notifier:  notifier,
	}
}

func (s *RepairOrderService) Kind() model.OrderKind { return model.OrderKindRepair }

func (s *RepairOrderService) Create(ctx context.Context, actor model.Actor, req model.RepairOrderCreateRequest) (*model.RepairOrder, error) {
	if err := actorRequired(actor); err != nil {
		return nil, rejected(s.Kind(), err)
	}
	order := &model.RepairOrder{
		CustomerID:    req.CustomerID,
		Device:        req.Device,
		Problem:       req.Problem,
		PaymentStatus: model.PaymentUnpaid,
		Lifecycle:     model.LifecycleActive,
	}
	switch {
	case actor.Role == model.RoleCustomer:
		if actor.ID != req.CustomerID {
			return nil, rejected(s.Kind(), model.ValidationError("customer_id", "customers can only order for themselves"))
		}
		order.Origin = model.OriginCustomer
		order.Status = model.RepairWaitingForDelivery
	case actor.IsStaff():
		order.Origin = model.OriginEmployee
		order.Status = model.RepairWaitingForDelivery
	case actor.Role == model.RoleRepairman:
		// the device is already at the shop
		order.Origin = model.OriginRepairman
		order.Status = model.RepairInAcceptingQueue
	default:
		return nil, rejected(s.Kind(), model.ValidationError("actor", "unknown role"))
	}

	var created *model.RepairOrder
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.customers.GetByID(ctx, req.CustomerID); err != nil {
			return err
		}
		var err error
		created, err = s.orders.Create(ctx, order)
		return err
	})
	if err != nil {
		return nil, rejected(s.Kind(), err)
	}

	prom.ObserveOrderTransition(string(s.Kind()), string(created.Status))
	logger.Info("repair order created", "id", created.ID, "customer_id", created.CustomerID, "origin", created.Origin)
	s.notifier.Notify(ctx, "repair_order_created", fmt.Sprintf("New repair order #%d: %s", created.ID, created.Device))
	return created, nil
}

// Transition walks the repair chain one step. Requesting the current status only applies
// fee and amount corrections.
func (s *RepairOrderService) Transition(ctx context.Context, actor model.Actor, id int64, req model.RepairOrderTransitionRequest) (*model.RepairOrder, error) {
	if !req.Status.Valid() {
		return nil, rejected(s.Kind(), model.ValidationError("status", fmt.Sprintf("unknown repair order status %q", req.Status)))
	}

	var from model.RepairOrderStatus
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status

		if req.Status == o.Status {
			if o.Status == model.RepairWaitingForFee && actor.Role == model.RoleRepairman &&
				(o.RepairmanID == nil || *o.RepairmanID != actor.ID) {
				return model.StateConflict("repair_man", fmt.Sprintf("repair order %d was accepted by another repairman", o.ID))
			}
			return s.correct(ctx, o, req)
		}
		if !o.Status.CanTransitionTo(req.Status) {
			return model.StateConflict("status", fmt.Sprintf("repair order cannot move from %s to %s", o.Status, req.Status))
		}

		changes := map[string]any{"status": req.Status}
		if req.RepairmanFee != nil {
			o.RepairmanFee = req.RepairmanFee
			changes["repairman_fee"] = *req.RepairmanFee
		}
		if req.Amount != nil {
			if o.Amount == nil || *o.Amount != *req.Amount {
				if err := requireRepriceable(ctx, s.orders, o.PaymentStatus, o.TransactionID); err != nil {
					return err
				}
			}
			o.Amount = req.Amount
			changes["amount"] = *req.Amount
		}

		switch req.Status {
		case model.RepairWaitingForFee:
			if actor.Role != model.RoleRepairman {
				return model.ValidationError("actor", "only a repairman can accept a repair order")
			}
			if _, err := s.repairmen.GetByID(ctx, actor.ID); err != nil {
				return err
			}
			changes["repair_man_id"] = actor.ID
		case model.RepairWaitingForAmount:
			if o.RepairmanFee == nil {
				return model.ValidationError("repairman_fee", "repairman fee is required")
			}
		case model.RepairWaitingForCustomer:
			if o.Amount == nil {
				return model.ValidationError("amount", "amount is required")
			}
		case model.RepairInProgress:
			if o.Amount == nil {
				return model.ValidationError("amount", "amount is required")
			}
			if err := adjustCharge(ctx, s.poster, s.Kind(), o.ID, o.CustomerID, o.Charged, *o.Amount, "repair_order_charge"); err != nil {
				return err
			}
			changes["charged"] = *o.Amount
		case model.RepairDone:
			if o.RepairmanID == nil {
				return model.ValidationError("repair_man", "no repairman accepted the order")
			}
			if o.RepairmanFee == nil {
				return model.ValidationError("repairman_fee", "repairman fee is required")
			}
			oid := o.ID
			err := s.poster.Post(ctx, ledger.Posting{
				Reason:    "repairman_fee",
				OrderKind: s.Kind(),
				OrderID:   &oid,
				Legs:      ledger.AgainstRevenue(ledger.Repairman(*o.RepairmanID), *o.RepairmanFee),
			})
			if err != nil {
				return err
			}
		}
		return s.orders.Update(ctx, o.ID, map[string]any{"status": o.Status}, changes)
	})
	if err != nil {
		return nil, rejected(s.Kind(), err)
	}

	if from != req.Status {
		prom.ObserveOrderTransition(string(s.Kind()), string(req.Status))
		logger.Info("repair order transitioned", "id", id, "from", from, "to", req.Status, "actor", actor.ID)
		s.notifier.Notify(ctx, "repair_order_status", fmt.Sprintf("Repair order #%d: %s -> %s", id, from, req.Status))
	}
	return s.orders.GetByID(ctx, id)
}

// correct applies fee and amount edits without a status change. An amount change on a
// charged order refunds the old charge and applies the new one in a single posting.
func (s *RepairOrderService) correct(ctx context.Context, o *model.RepairOrder, req model.RepairOrderTransitionRequest) error {
	changes := map[string]any{}
	if req.RepairmanFee != nil && (o.RepairmanFee == nil || *o.RepairmanFee != *req.RepairmanFee) {
		if o.Status.Charged() && o.Status != model.RepairInProgress {
			return model.StateConflict("repairman_fee", "the fee is settled once the repair is done")
		}
		changes["repairman_fee"] = *req.RepairmanFee
	}
	if req.Amount != nil && (o.Amount == nil || *o.Amount != *req.Amount) {
		if err := requireRepriceable(ctx, s.orders, o.PaymentStatus, o.TransactionID); err != nil {
			return err
		}
		changes["amount"] = *req.Amount
		if o.Status.Charged() {
			if err := adjustCharge(ctx, s.poster, s.Kind(), o.ID, o.CustomerID, o.Charged, *req.Amount, "repair_order_correction"); err != nil {
				return err
			}
			changes["charged"] = *req.Amount
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return s.orders.Update(ctx, o.ID, map[string]any{"status": o.Status}, changes)
}

func (s *RepairOrderService) Get(ctx context.Context, id int64) (*model.RepairOrder, error) {
	return s.orders.GetByID(ctx, id)
}

// CurrentAmount is zero until the amount is set.
func (s *RepairOrderService) CurrentAmount(ctx context.Context, id int64) (int64, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if o.Amount == nil {
		return 0, nil
	}
	return *o.Amount, nil
}

// Payable is the agreed amount; the customer is charged for it on in_progress whichever
// comes first.
func (s *RepairOrderService) Payable(ctx context.Context, orderID int64) (*model.Payable, error) {
	o, err := s.orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	p := &model.Payable{
		Kind:          s.Kind(),
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		PaymentStatus: o.PaymentStatus,
		TransactionID: o.TransactionID,
	}
	if o.Amount != nil {
		p.Amount = *o.Amount
	}
	return p, nil
}

func (s *RepairOrderService) LinkTransaction(ctx context.Context, orderID, txnID int64) error {
	return s.orders.Update(ctx, orderID, nil, map[string]any{"transaction_id": txnID})
}

func (s *RepairOrderService) MarkPaid(ctx context.Context, orderID int64) error {
	return s.orders.Update(ctx, orderID,
		map[string]any{"payment_status": model.PaymentUnpaid},
		map[string]any{"payment_status": model.PaymentPaid})
}

func (s *RepairOrderService) Compensate(ctx context.Context, orderID int64) (int64, error) {
	o, err := s.orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if err := adjustCharge(ctx, s.poster, s.Kind(), o.ID, o.CustomerID, o.Charged, 0, "order_compensated"); err != nil {
		return 0, err
	}
	err = s.orders.Update(ctx, o.ID, nil, map[string]any{"charged": 0, "lifecycle": model.LifecycleDeleted})
	return o.Charged, err
}
