package services

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
)

// CourseOrderService sells course access; paying the order unlocks the course.
type CourseOrderService struct {
	tx        Transactor
	orders    CourseOrderRepository
	customers CustomerRepository
	poster    Poster
	notifier  *Notifier
}

func NewCourseOrderService(tx Transactor, orders CourseOrderRepository, customers CustomerRepository, poster Poster, notifier *Notifier) *CourseOrderService {
	return &CourseOrderService{
		tx:        tx,
		orders:    orders,
		customers: customers,
		poster:    poster,
		notifier:  notifier,
	}
}

func (s *CourseOrderService) Kind() model.OrderKind { return model.OrderKindCourse }

func (s *CourseOrderService) Create(ctx context.Context, actor model.Actor, req model.CourseOrderCreateRequest) (*model.CourseOrder, error) {
	if err := actorRequired(actor); err != nil {
		return nil, rejected(s.Kind(), err)
	}
	if actor.Role == model.RoleCustomer && actor.ID != req.CustomerID {
		return nil, rejected(s.Kind(), model.ValidationError("customer_id", "customers can only order for themselves"))
	}
	amount := model.DefaultCourseAmount
	if req.Amount != nil {
		if !actor.IsStaff() {
			return nil, rejected(s.Kind(), model.ValidationError("amount", "only staff can set a course price"))
		}
		amount = *req.Amount
	}

	var created *model.CourseOrder
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		customer, err := s.customers.GetByID(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if customer.HasAccessToCourse {
			return model.StateConflict("has_access_to_course", "customer already has course access")
		}
		created, err = s.orders.Create(ctx, &model.CourseOrder{
			CustomerID:    customer.ID,
			Amount:        amount,
			Charged:       amount,
			PaymentStatus: model.PaymentUnpaid,
			Lifecycle:     model.LifecycleActive,
		})
		if err != nil {
			return err
		}
		return adjustCharge(ctx, s.poster, s.Kind(), created.ID, customer.ID, 0, amount, "course_order_charge")
	})
	if err != nil {
		return nil, rejected(s.Kind(), err)
	}

	prom.ObserveOrderTransition(string(s.Kind()), string(model.PaymentUnpaid))
	logger.Info("course order created", "id", created.ID, "customer_id", created.CustomerID, "amount", created.Amount)
	s.notifier.Notify(ctx, "course_order_created", fmt.Sprintf("New course order #%d", created.ID))
	return created, nil
}

func (s *CourseOrderService) Get(ctx context.Context, id int64) (*model.CourseOrder, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *CourseOrderService) CurrentAmount(ctx context.Context, id int64) (int64, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return o.Amount, nil
}

func (s *CourseOrderService) Payable(ctx context.Context, orderID int64) (*model.Payable, error) {
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

func (s *CourseOrderService) LinkTransaction(ctx context.Context, orderID, txnID int64) error {
	return s.orders.Update(ctx, orderID, nil, map[string]any{"transaction_id": txnID})
}

// MarkPaid also grants the customer course access.
func (s *CourseOrderService) MarkPaid(ctx context.Context, orderID int64) error {
	o, err := s.orders.GetForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	err = s.orders.Update(ctx, orderID,
		map[string]any{"payment_status": model.PaymentUnpaid},
		map[string]any{"payment_status": model.PaymentPaid})
	if err != nil {
		return err
	}
	prom.ObserveOrderTransition(string(s.Kind()), string(model.PaymentPaid))
	return s.customers.GrantCourseAccess(ctx, o.CustomerID)
}

func (s *CourseOrderService) Compensate(ctx context.Context, orderID int64) (int64, error) {
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
