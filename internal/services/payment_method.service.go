package services

import (
	"context"
	"strings"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
)

// PaymentMethodService manages money pools. At most one active method may be online;
// the check runs under a row lock and the database index is the backstop.
type PaymentMethodService struct {
	tx      Transactor
	methods PaymentMethodRepository
}

func NewPaymentMethodService(tx Transactor, methods PaymentMethodRepository) *PaymentMethodService {
	return &PaymentMethodService{tx: tx, methods: methods}
}

func (s *PaymentMethodService) Create(ctx context.Context, req model.PaymentMethodRequest) (*model.PaymentMethod, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, model.ValidationError("title", "title is required")
	}
	var created *model.PaymentMethod
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureOnlineFree(ctx, req, 0); err != nil {
			return err
		}
		var err error
		created, err = s.methods.Create(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("payment method created", "id", created.ID, "title", created.Title, "online", created.IsOnline)
	return created, nil
}

func (s *PaymentMethodService) Update(ctx context.Context, id int64, req model.PaymentMethodRequest) (*model.PaymentMethod, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, model.ValidationError("title", "title is required")
	}
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureOnlineFree(ctx, req, id); err != nil {
			return err
		}
		return s.methods.Update(ctx, id, req)
	})
	if err != nil {
		return nil, err
	}
	return s.methods.GetByID(ctx, id)
}

func (s *PaymentMethodService) ensureOnlineFree(ctx context.Context, req model.PaymentMethodRequest, self int64) error {
	if !req.IsOnline {
		return nil
	}
	online, err := s.methods.LockOnline(ctx)
	if err != nil {
		return err
	}
	for _, m := range online {
		if m.ID != self {
			return model.ValidationError("is_online", "payment method "+m.Title+" is already online")
		}
	}
	return nil
}

func (s *PaymentMethodService) Delete(ctx context.Context, id int64) error {
	if err := s.methods.SoftDelete(ctx, id); err != nil {
		return err
	}
	logger.Info("payment method deleted", "id", id)
	return nil
}

func (s *PaymentMethodService) Get(ctx context.Context, id int64) (*model.PaymentMethod, error) {
	return s.methods.GetByID(ctx, id)
}

func (s *PaymentMethodService) List(ctx context.Context) ([]*model.PaymentMethod, error) {
	return s.methods.List(ctx)
}
