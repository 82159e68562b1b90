package repository

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{db}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return toTransactionModel(entity)
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	if err := r.Read(ctx).Scopes(active).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return toTransactionModel(&entity)
}

// GetForUpdate loads and row-locks the transaction for the enclosing DB transaction.
func (r *TransactionRepository) GetForUpdate(ctx context.Context, id int64) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(active).
		Where("id = ?", id).
		First(&entity).Error
	if err != nil {
		return nil, notFound(err, "transaction", id)
	}
	return toTransactionModel(&entity)
}

func (r *TransactionRepository) GetByAuthorityForUpdate(ctx context.Context, authority string) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Write(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(active).
		Where("authority = ?", authority).
		First(&entity).Error
	if err != nil {
		return nil, notFound(err, "transaction", authority)
	}
	return toTransactionModel(&entity)
}

// Transition moves a transaction out of status from; zero rows touched means someone else did first.
func (r *TransactionRepository) Transition(ctx context.Context, id int64, from, to model.TransactionStatus, fields map[string]any) error {
	changes := map[string]any{"status": to}
	for k, v := range fields {
		changes[k] = v
	}
	res := r.Write(ctx).Model(&TransactionEntity{}).
		Where("id = ? AND status = ?", id, from).
		Updates(changes)
	return conditional(res, "transaction", "status")
}

func (r *TransactionRepository) SetGatewayResult(ctx context.Context, id int64, authority string, metadata map[string]any) error {
	changes := map[string]any{"authority": authority}
	if metadata != nil {
		changes["metadata"] = datatypes.JSONMap(metadata)
	}
	res := r.Write(ctx).Model(&TransactionEntity{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return fmt.Errorf("store gateway result: %w", res.Error)
	}
	return nil
}

type TransactionFilter struct {
	Status          *model.TransactionStatus
	PaymentMethodID *int64
	OrderKind       *model.OrderKind
	OrderID         *int64
	Limit           int
	Offset          int
}

func (r *TransactionRepository) List(ctx context.Context, f TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).Model(&TransactionEntity{}).Scopes(active)
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.PaymentMethodID != nil {
		q = q.Where("payment_method_id = ?", *f.PaymentMethodID)
	}
	if f.OrderKind != nil {
		q = q.Where("order_kind = ?", *f.OrderKind)
	}
	if f.OrderID != nil {
		q = q.Where("order_id = ?", *f.OrderID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entities []*TransactionEntity
	if err := q.Order("id DESC").Limit(limit).Offset(f.Offset).Find(&entities).Error; err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}

	out := make([]*model.Transaction, 0, len(entities))
	for _, e := range entities {
		m, err := toTransactionModel(e)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, nil
}

func (r *TransactionRepository) CountByStatus(ctx context.Context, status model.TransactionStatus) (int64, error) {
	var n int64
	err := r.Read(ctx).Model(&TransactionEntity{}).Scopes(active).Where("status = ?", status).Count(&n).Error
	return n, err
}

func (r *TransactionRepository) SoftDelete(ctx context.Context, id int64) error {
	res := r.Write(ctx).Model(&TransactionEntity{}).
		Scopes(active).
		Where("id = ?", id).
		Update("lifecycle", model.LifecycleDeleted)
	if res.Error != nil {
		return fmt.Errorf("delete transaction: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NotFound("transaction", id)
	}
	return nil
}
