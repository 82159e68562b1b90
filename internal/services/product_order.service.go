package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
)

// ProductOrderService sells catalog products. An order is unpaid until a settlement marks it paid.
type ProductOrderService struct {
	tx        Transactor
	orders    ProductOrderRepository
	customers CustomerRepository
	catalog   CatalogRepository
	poster    Poster
	notifier  *Notifier
}

func NewProductOrderService(tx Transactor, orders ProductOrderRepository, customers CustomerRepository, catalog CatalogRepository, poster Poster, notifier *Notifier) *ProductOrderService {
	return &ProductOrderService{
		tx:        tx,
		orders:    orders,
		customers: customers,
		catalog:   catalog,
		poster:    poster,
		notifier:  notifier,
	}
}

func (s *ProductOrderService) Kind() model.OrderKind { return model.OrderKindProduct }

func (s *ProductOrderService) Create(ctx context.Context, actor model.Actor, req model.ProductOrderCreateRequest) (*model.Order, error) {
	if err := actorRequired(actor); err != nil {
		return nil, rejected(s.Kind(), err)
	}
	if len(req.Items) == 0 {
		return nil, rejected(s.Kind(), model.ValidationError("items", "at least one item is required"))
	}
	order := &model.Order{
		CustomerID:    req.CustomerID,
		PaymentStatus: model.PaymentUnpaid,
		Lifecycle:     model.LifecycleActive,
	}
	switch {
	case actor.Role == model.RoleCustomer:
		if actor.ID != req.CustomerID {
			return nil, rejected(s.Kind(), model.ValidationError("customer_id", "customers can only order for themselves"))
		}
		order.Origin = model.OriginCustomer
	case actor.IsStaff():
		createdBy := actor.ID
		order.Origin = model.OriginEmployee
		order.CreatedBy = &createdBy
	default:
		return nil, rejected(s.Kind(), model.ValidationError("actor", "only customers and employees open product orders"))
	}

	ids := make([]int64, 0, len(req.Items))
	for _, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, rejected(s.Kind(), model.ValidationError("quantity", "quantity must be positive"))
		}
		ids = append(ids, line.ProductID)
	}

	var created *model.Order
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.customers.GetByID(ctx, req.CustomerID); err != nil {
			return err
		}
		products, err := s.catalog.ProductsByIDs(ctx, ids)
		if err != nil {
			return err
		}
		for _, line := range req.Items {
			p, ok := products[line.ProductID]
			if !ok {
				return model.NotFound("product", line.ProductID)
			}
			order.Items = append(order.Items, model.OrderItem{ProductID: p.ID, Quantity: line.Quantity, Price: p.Price})
			order.Amount += p.Price * int64(line.Quantity)
		}
		order.Charged = order.Amount

		created, err = s.orders.Create(ctx, order)
		if err != nil {
			return err
		}
		return adjustCharge(ctx, s.poster, s.Kind(), created.ID, created.CustomerID, 0, created.Charged, "product_order_charge")
	})
	if err != nil {
		return nil, rejected(s.Kind(), err)
	}

	prom.ObserveOrderTransition(string(s.Kind()), string(model.PaymentUnpaid))
	logger.Info("product order created", "id", created.ID, "customer_id", created.CustomerID, "amount", created.Amount)
	s.notifier.Notify(ctx, "product_order_created", fmt.Sprintf("New product order #%d: %d", created.ID, created.Amount))
	return created, nil
}

func (s *ProductOrderService) Get(ctx context.Context, id int64) (*model.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *ProductOrderService) CurrentAmount(ctx context.Context, id int64) (int64, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return o.Amount, nil
}

func (s *ProductOrderService) Payable(ctx context.Context, orderID int64) (*model.Payable, error) {
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

func (s *ProductOrderService) LinkTransaction(ctx context.Context, orderID, txnID int64) error {
	return s.orders.Update(ctx, orderID, nil, map[string]any{"transaction_id": txnID})
}

func (s *ProductOrderService) MarkPaid(ctx context.Context, orderID int64) error {
	err := s.orders.Update(ctx, orderID,
		map[string]any{"payment_status": model.PaymentUnpaid},
		map[string]any{"payment_status": model.PaymentPaid})
	if err == nil {
		prom.ObserveOrderTransition(string(s.Kind()), string(model.PaymentPaid))
	}
	return err
}

func (s *ProductOrderService) Compensate(ctx context.Context, orderID int64) (int64, error) {
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
