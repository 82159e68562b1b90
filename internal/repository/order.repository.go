package repository

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func lockedQuery(db *gorm.DB, id int64) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(active).Where("id = ?", id)
}

// updateOrderRow applies changes to an active order row. guard adds extra WHERE conditions
// that must still hold; when they do not, the update is reported as a state conflict.
func updateOrderRow(db *gorm.DB, entity any, name string, id int64, guard map[string]any, changes map[string]any) error {
	q := db.Model(entity).Scopes(active).Where("id = ?", id)
	for col, val := range guard {
		q = q.Where(col+" = ?", val)
	}
	res := q.Updates(changes)
	if len(guard) == 0 {
		if res.Error != nil {
			return fmt.Errorf("update %s: %w", name, res.Error)
		}
		if res.RowsAffected == 0 {
			return model.NotFound(name, id)
		}
		return nil
	}
	return conditional(res, name, "status")
}

// paymentInFlight reports whether the linked transaction is anything but failed.
func paymentInFlight(db *gorm.DB, txnID *int64) (bool, error) {
	if txnID == nil {
		return false, nil
	}
	var entity TransactionEntity
	if err := db.Select("id", "status").Where("id = ?", *txnID).First(&entity).Error; err != nil {
		return false, notFound(err, "transaction", *txnID)
	}
	return entity.Status != model.TransactionFailed, nil
}

// ProductOrderRepository stores product orders and their line items.
type ProductOrderRepository struct {
	*pg.DB
}

func NewProductOrderRepository(db *pg.DB) *ProductOrderRepository {
	return &ProductOrderRepository{db}
}

func (r *ProductOrderRepository) Create(ctx context.Context, o *model.Order) (*model.Order, error) {
	entity := toOrderEntity(o)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return toOrderModel(entity), nil
}

func (r *ProductOrderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	var entity OrderEntity
	err := r.Read(ctx).Preload("Items", orderByID).Scopes(active).Where("id = ?", id).First(&entity).Error
	if err != nil {
		return nil, notFound(err, "order", id)
	}
	return toOrderModel(&entity), nil
}

func (r *ProductOrderRepository) GetForUpdate(ctx context.Context, id int64) (*model.Order, error) {
	var entity OrderEntity
	if err := lockedQuery(r.Write(ctx), id).Preload("Items", orderByID).First(&entity).Error; err != nil {
		return nil, notFound(err, "order", id)
	}
	return toOrderModel(&entity), nil
}

func (r *ProductOrderRepository) Update(ctx context.Context, id int64, guard, changes map[string]any) error {
	return updateOrderRow(r.Write(ctx), &OrderEntity{}, "order", id, guard, changes)
}

// GameOrderRepository stores game orders and their items.
type GameOrderRepository struct {
	*pg.DB
}

func NewGameOrderRepository(db *pg.DB) *GameOrderRepository {
	return &GameOrderRepository{db}
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func (r *GameOrderRepository) Create(ctx context.Context, o *model.GameOrder) (*model.GameOrder, error) {
	entity := toGameOrderEntity(o)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create game order: %w", err)
	}
	return toGameOrderModel(entity), nil
}

func (r *GameOrderRepository) GetByID(ctx context.Context, id int64) (*model.GameOrder, error) {
	var entity GameOrderEntity
	err := r.Read(ctx).Preload("Items", orderByID).Scopes(active).Where("id = ?", id).First(&entity).Error
	if err != nil {
		return nil, notFound(err, "game_order", id)
	}
	return toGameOrderModel(&entity), nil
}

func (r *GameOrderRepository) GetForUpdate(ctx context.Context, id int64) (*model.GameOrder, error) {
	var entity GameOrderEntity
	if err := lockedQuery(r.Write(ctx), id).Preload("Items", orderByID).First(&entity).Error; err != nil {
		return nil, notFound(err, "game_order", id)
	}
	return toGameOrderModel(&entity), nil
}

func (r *GameOrderRepository) Update(ctx context.Context, id int64, guard, changes map[string]any) error {
	return updateOrderRow(r.Write(ctx), &GameOrderEntity{}, "game_order", id, guard, changes)
}

func (r *GameOrderRepository) PaymentInFlight(ctx context.Context, txnID *int64) (bool, error) {
	return paymentInFlight(r.Write(ctx), txnID)
}

func (r *GameOrderRepository) UpdateItem(ctx context.Context, orderID int64, it model.GameOrderItem) error {
	res := r.Write(ctx).Model(&GameOrderItemEntity{}).
		Where("id = ? AND game_order_id = ?", it.ID, orderID).
		Select("amount", "account", "data", "account_setter_id", "data_uploader_id").
		Updates(&GameOrderItemEntity{
			Amount:          it.Amount,
			Account:         it.Account,
			Data:            it.Data,
			AccountSetterID: it.AccountSetterID,
			DataUploaderID:  it.DataUploaderID,
		})
	if res.Error != nil {
		return fmt.Errorf("update game order item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NotFound("game_order_item", it.ID)
	}
	return nil
}

// RepairOrderRepository stores repair orders.
type RepairOrderRepository struct {
	*pg.DB
}

func NewRepairOrderRepository(db *pg.DB) *RepairOrderRepository {
	return &RepairOrderRepository{db}
}

func (r *RepairOrderRepository) Create(ctx context.Context, o *model.RepairOrder) (*model.RepairOrder, error) {
	entity := &RepairOrderEntity{
		CustomerID:    o.CustomerID,
		RepairmanID:   o.RepairmanID,
		Origin:        o.Origin,
		Device:        o.Device,
		Problem:       o.Problem,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Amount:        o.Amount,
		RepairmanFee:  o.RepairmanFee,
		Lifecycle:     model.LifecycleActive,
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create repair order: %w", err)
	}
	return toRepairOrderModel(entity), nil
}

func (r *RepairOrderRepository) GetByID(ctx context.Context, id int64) (*model.RepairOrder, error) {
	var entity RepairOrderEntity
	if err := r.Read(ctx).Scopes(active).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, "repair_order", id)
	}
	return toRepairOrderModel(&entity), nil
}

func (r *RepairOrderRepository) GetForUpdate(ctx context.Context, id int64) (*model.RepairOrder, error) {
	var entity RepairOrderEntity
	if err := lockedQuery(r.Write(ctx), id).First(&entity).Error; err != nil {
		return nil, notFound(err, "repair_order", id)
	}
	return toRepairOrderModel(&entity), nil
}

func (r *RepairOrderRepository) Update(ctx context.Context, id int64, guard, changes map[string]any) error {
	return updateOrderRow(r.Write(ctx), &RepairOrderEntity{}, "repair_order", id, guard, changes)
}

func (r *RepairOrderRepository) PaymentInFlight(ctx context.Context, txnID *int64) (bool, error) {
	return paymentInFlight(r.Write(ctx), txnID)
}

// CourseOrderRepository stores course purchases.
type CourseOrderRepository struct {
	*pg.DB
}

func NewCourseOrderRepository(db *pg.DB) *CourseOrderRepository {
	return &CourseOrderRepository{db}
}

func (r *CourseOrderRepository) Create(ctx context.Context, o *model.CourseOrder) (*model.CourseOrder, error) {
	entity := &CourseOrderEntity{
		CustomerID:    o.CustomerID,
		Amount:        o.Amount,
		Charged:       o.Charged,
		PaymentStatus: o.PaymentStatus,
		Lifecycle:     model.LifecycleActive,
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create course order: %w", err)
	}
	return toCourseOrderModel(entity), nil
}

func (r *CourseOrderRepository) GetByID(ctx context.Context, id int64) (*model.CourseOrder, error) {
	var entity CourseOrderEntity
	if err := r.Read(ctx).Scopes(active).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, "course_order", id)
	}
	return toCourseOrderModel(&entity), nil
}

func (r *CourseOrderRepository) GetForUpdate(ctx context.Context, id int64) (*model.CourseOrder, error) {
	var entity CourseOrderEntity
	if err := lockedQuery(r.Write(ctx), id).First(&entity).Error; err != nil {
		return nil, notFound(err, "course_order", id)
	}
	return toCourseOrderModel(&entity), nil
}

func (r *CourseOrderRepository) Update(ctx context.Context, id int64, guard, changes map[string]any) error {
	return updateOrderRow(r.Write(ctx), &CourseOrderEntity{}, "course_order", id, guard, changes)
}
