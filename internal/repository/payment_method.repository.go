package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentMethodRepository struct {
	*pg.DB
}

func NewPaymentMethodRepository(db *pg.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db}
}

func onlineTaken(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.ValidationError("is_online", "another payment method is already online")
	}
	return err
}

func (r *PaymentMethodRepository) Create(ctx context.Context, req model.PaymentMethodRequest) (*model.PaymentMethod, error) {
	entity := &PaymentMethodEntity{
		Title:     req.Title,
		IsOnline:  req.IsOnline,
		Lifecycle: model.LifecycleActive,
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create payment method: %w", onlineTaken(err))
	}
	return r.GetByID(ctx, entity.ID)
}

func (r *PaymentMethodRepository) Update(ctx context.Context, id int64, req model.PaymentMethodRequest) error {
	res := r.Write(ctx).Model(&PaymentMethodEntity{}).
		Scopes(active).
		Where("id = ?", id).
		Updates(map[string]any{"title": req.Title, "is_online": req.IsOnline})
	if res.Error != nil {
		return fmt.Errorf("update payment method: %w", onlineTaken(res.Error))
	}
	if res.RowsAffected == 0 {
		return model.NotFound("payment_method", id)
	}
	return nil
}

func (r *PaymentMethodRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.Write(ctx).Model(&PaymentMethodEntity{}).
		Scopes(active).
		Where("id = ?", id).
		Updates(map[string]any{"lifecycle": model.LifecycleDeleted, "is_online": false})
	if res.Error != nil {
		return fmt.Errorf("delete payment method: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NotFound("payment_method", id)
	}
	return nil
}

func (r *PaymentMethodRepository) GetByID(ctx context.Context, id int64) (*model.PaymentMethod, error) {
	var entity PaymentMethodEntity
	if err := r.Read(ctx).Scopes(active).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, "payment_method", id)
	}
	return toPaymentMethodModel(&entity), nil
}

// LockOnline returns the active online methods, row-locked when inside a transaction.
func (r *PaymentMethodRepository) LockOnline(ctx context.Context) ([]*model.PaymentMethod, error) {
	var entities []*PaymentMethodEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(active).
		Where("is_online = ?", true).
		Order("id").
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("load online payment methods: %w", err)
	}
	out := make([]*model.PaymentMethod, len(entities))
	for i, e := range entities {
		out[i] = toPaymentMethodModel(e)
	}
	return out, nil
}

// GetOnline returns the single online method.
func (r *PaymentMethodRepository) GetOnline(ctx context.Context) (*model.PaymentMethod, error) {
	var entity PaymentMethodEntity
	err := r.Read(ctx).Scopes(active).Where("is_online = ?", true).Order("id").First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ValidationError("payment_method", "no online payment method is configured")
		}
		return nil, fmt.Errorf("load online payment method: %w", err)
	}
	return toPaymentMethodModel(&entity), nil
}

func (r *PaymentMethodRepository) List(ctx context.Context) ([]*model.PaymentMethod, error) {
	var entities []*PaymentMethodEntity
	if err := r.Read(ctx).Scopes(active).Order("id").Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	out := make([]*model.PaymentMethod, len(entities))
	for i, e := range entities {
		out[i] = toPaymentMethodModel(e)
	}
	return out, nil
}

func (r *PaymentMethodRepository) Total(ctx context.Context) (int64, error) {
	var total int64
	err := r.Read(ctx).Model(&PaymentMethodEntity{}).
		Scopes(active).
		Select("COALESCE(SUM(balance), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("payment method total: %w", err)
	}
	return total, nil
}
