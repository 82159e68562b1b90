package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/pricing"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
)

type GameOrderService struct {
	tx        Transactor
	orders    GameOrderRepository
	customers CustomerRepository
	employees EmployeeRepository
	catalog   CatalogRepository
	poster    Poster
	notifier  *Notifier
}

func NewGameOrderService(tx Transactor, orders GameOrderRepository, customers CustomerRepository, employees EmployeeRepository, catalog CatalogRepository, poster Poster, notifier *Notifier) *GameOrderService {
	return &GameOrderService{
		tx:        tx,
		orders:    orders,
		customers: customers,
		employees: employees,
		catalog:   catalog,
		poster:    poster,
		notifier:  notifier,
	}
}

func (s *GameOrderService) Kind() model.OrderKind { return model.OrderKindGame }

// Create prices every game from the catalog, snapshots the prices on the items and
// charges the customer the discounted total.
func (s *GameOrderService) Create(ctx context.Context, actor model.Actor, req model.GameOrderCreateRequest) (*model.GameOrder, error) {
	if err := actorRequired(actor); err != nil {
		return nil, rejected(s.Kind(), err)
	}
	if !req.ConsoleType.Valid() {
		return nil, rejected(s.Kind(), model.ValidationError("console_type", fmt.Sprintf("unknown console type %q", req.ConsoleType)))
	}
	if len(req.GameIDs) == 0 {
		return nil, rejected(s.Kind(), model.ValidationError("game_ids", "at least one game is required"))
	}

	order := &model.GameOrder{
		CustomerID:    req.CustomerID,
		ConsoleType:   req.ConsoleType,
		Console:       req.Console,
		DeadLine:      req.DeadLine,
		Description:   req.Description,
		PaymentStatus: model.PaymentUnpaid,
		Lifecycle:     model.LifecycleActive,
	}
	switch {
	case actor.Role == model.RoleCustomer:
		if actor.ID != req.CustomerID {
			return nil, rejected(s.Kind(), model.ValidationError("customer_id", "customers can only order for themselves"))
		}
		order.Origin = model.OriginCustomer
		order.Status = model.GameWaitingForDelivery
	case actor.IsStaff():
		recipient := actor.ID
		order.Origin = model.OriginEmployee
		order.Status = model.GameDeliveredToDrGame
		order.RecipientID = &recipient
	default:
		return nil, rejected(s.Kind(), model.ValidationError("actor", "only customers and employees open game orders"))
	}

	var created *model.GameOrder
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		customer, err := s.customers.GetByID(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		games, err := s.catalog.GamesByIDs(ctx, req.GameIDs)
		if err != nil {
			return err
		}
		for _, id := range req.GameIDs {
			game, ok := games[id]
			if !ok {
				return model.NotFound("game", id)
			}
			price, err := pricing.PriceFor(game, req.ConsoleType)
			if err != nil {
				return err
			}
			order.Items = append(order.Items, model.GameOrderItem{GameID: id, Amount: price})
		}
		order.Amount = pricing.TotalFor(order.Items)
		order.Charged = pricing.ApplyCustomerDiscount(order.Amount, customer.Discount)

		created, err = s.orders.Create(ctx, order)
		if err != nil {
			return err
		}
		return adjustCharge(ctx, s.poster, s.Kind(), created.ID, customer.ID, 0, created.Charged, "game_order_charge")
	})
	if err != nil {
		return nil, rejected(s.Kind(), err)
	}

	prom.ObserveOrderTransition(string(s.Kind()), string(created.Status))
	logger.Info("game order created", "id", created.ID, "customer_id", created.CustomerID, "amount", created.Amount, "charged", created.Charged)
	s.notifier.Notify(ctx, "game_order_created",
		fmt.Sprintf("New game order #%d: %d items, %d", created.ID, len(created.Items), created.Amount))
	return created, nil
}

// Transition moves the order to req.Status and applies the item edits. Requesting the
// current status only applies the edits. Entering done pays the item commissions.
func (s *GameOrderService) Transition(ctx context.Context, actor model.Actor, id int64, req model.GameOrderTransitionRequest) (*model.GameOrder, error) {
	if !req.Status.Valid() {
		return nil, rejected(s.Kind(), model.ValidationError("status", fmt.Sprintf("unknown game order status %q", req.Status)))
	}

	var from model.GameOrderStatus
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status
		if req.Status != o.Status && !o.Status.CanTransitionTo(req.Status) {
			return model.StateConflict("status", fmt.Sprintf("game order cannot move from %s to %s", o.Status, req.Status))
		}

		repriced, err := s.applyItemUpdates(ctx, actor, o, req.Items)
		if err != nil {
			return err
		}

		changes := map[string]any{}
		if repriced {
			customer, err := s.customers.GetByID(ctx, o.CustomerID)
			if err != nil {
				return err
			}
			amount := pricing.TotalFor(o.Items)
			charged := pricing.ApplyCustomerDiscount(amount, customer.Discount)
			if err := adjustCharge(ctx, s.poster, s.Kind(), o.ID, o.CustomerID, o.Charged, charged, "game_order_correction"); err != nil {
				return err
			}
			changes["amount"] = amount
			changes["charged"] = charged
		}
		if req.Status != o.Status {
			changes["status"] = req.Status
			if req.Status == model.GameDone {
				if err := s.payCommissions(ctx, o); err != nil {
					return err
				}
			}
		}
		if len(changes) == 0 {
			return nil
		}
		return s.orders.Update(ctx, o.ID, map[string]any{"status": o.Status}, changes)
	})
	if err != nil {
		return nil, rejected(s.Kind(), err)
	}

	if from != req.Status {
		prom.ObserveOrderTransition(string(s.Kind()), string(req.Status))
		logger.Info("game order transitioned", "id", id, "from", from, "to", req.Status, "actor", actor.ID)
		s.notifier.Notify(ctx, "game_order_status", fmt.Sprintf("Game order #%d: %s -> %s", id, from, req.Status))
	}
	return s.orders.GetByID(ctx, id)
}

// applyItemUpdates edits o.Items in place and persists each touched item.
// It reports whether any item amount changed.
func (s *GameOrderService) applyItemUpdates(ctx context.Context, actor model.Actor, o *model.GameOrder, updates []model.GameItemUpdate) (bool, error) {
	if len(updates) == 0 {
		return false, nil
	}
	if !o.Status.Open() {
		return false, model.StateConflict("items", fmt.Sprintf("items are locked in status %s", o.Status))
	}

	repriced := false
	for _, u := range updates {
		idx := -1
		for i := range o.Items {
			if o.Items[i].ID == u.ItemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false, model.NotFound("game_order_item", u.ItemID)
		}
		item := &o.Items[idx]

		if u.ClaimAccountSetter || u.ClaimDataUploader {
			if !actor.IsStaff() {
				return false, model.ValidationError("actor", "only employees can claim item work")
			}
			employee := actor.ID
			if u.ClaimAccountSetter {
				item.AccountSetterID = &employee
			}
			if u.ClaimDataUploader {
				item.DataUploaderID = &employee
			}
		}
		if u.Account != nil {
			item.Account = *u.Account
		}
		if u.Data != nil {
			item.Data = *u.Data
		}
		if u.Amount != nil && *u.Amount != item.Amount {
			if err := requireRepriceable(ctx, s.orders, o.PaymentStatus, o.TransactionID); err != nil {
				return false, err
			}
			item.Amount = *u.Amount
			repriced = true
		}
		if err := s.orders.UpdateItem(ctx, o.ID, *item); err != nil {
			return false, err
		}
	}
	return repriced, nil
}

// payCommissions credits each item's account setter and data uploader with their
// percentage of the item amount.
func (s *GameOrderService) payCommissions(ctx context.Context, o *model.GameOrder) error {
	rates := map[int64]int{}
	rate := func(id int64) (int, error) {
		if r, ok := rates[id]; ok {
			return r, nil
		}
		e, err := s.employees.GetByID(ctx, id)
		if err != nil {
			return 0, err
		}
		rates[id] = e.CommissionAmount
		return e.CommissionAmount, nil
	}

	var legs []ledger.Leg
	for _, item := range o.Items {
		for _, worker := range []*int64{item.AccountSetterID, item.DataUploaderID} {
			if worker == nil {
				continue
			}
			pct, err := rate(*worker)
			if err != nil {
				return err
			}
			if pct == 0 {
				continue
			}
			legs = append(legs, ledger.AgainstRevenue(ledger.Employee(*worker), pricing.CommissionPayout(item.Amount, pct))...)
		}
	}
	id := o.ID
	return s.poster.Post(ctx, ledger.Posting{
		Reason:    "commission",
		OrderKind: s.Kind(),
		OrderID:   &id,
		Legs:      legs,
	})
}

func (s *GameOrderService) Get(ctx context.Context, id int64) (*model.GameOrder, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *GameOrderService) CurrentAmount(ctx context.Context, id int64) (int64, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return o.Amount, nil
}

func (s *GameOrderService) Payable(ctx context.Context, orderID int64) (*model.Payable, error) {
	o, err := s.orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &model.Payable{
		Kind:          s.Kind(),
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		Amount:        o.Charged,
		PaymentStatus: o.PaymentStatus,
		TransactionID: o.TransactionID,
	}, nil
}

func (s *GameOrderService) LinkTransaction(ctx context.Context, orderID, txnID int64) error {
	return s.orders.Update(ctx, orderID, nil, map[string]any{"transaction_id": txnID})
}

func (s *GameOrderService) MarkPaid(ctx context.Context, orderID int64) error {
	return s.orders.Update(ctx, orderID,
		map[string]any{"payment_status": model.PaymentUnpaid},
		map[string]any{"payment_status": model.PaymentPaid})
}

func (s *GameOrderService) Compensate(ctx context.Context, orderID int64) (int64, error) {
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
