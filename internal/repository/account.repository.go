package repository

import (
	"context"
	"fmt"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{db}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	// a zero discount is omitted by gorm, so the column default (full price) applies
	entity := toCustomerEntity(c)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return r.GetByID(ctx, entity.ID)
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*model.Customer, error) {
	var entity CustomerEntity
	if err := r.Read(ctx).Scopes(active).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, "customer", id)
	}
	return toCustomerModel(&entity), nil
}

func (r *CustomerRepository) GrantCourseAccess(ctx context.Context, id int64) error {
	res := r.Write(ctx).Model(&CustomerEntity{}).
		Scopes(active).
		Where("id = ?", id).
		Update("has_access_to_course", true)
	if res.Error != nil {
		return fmt.Errorf("grant course access: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return model.NotFound("customer", id)
	}
	return nil
}

func (r *CustomerRepository) Totals(ctx context.Context) (BalanceTotals, error) {
	return balanceTotals(r.Read(ctx), CustomerEntity{}.TableName())
}

type EmployeeRepository struct {
	*pg.DB
}

func NewEmployeeRepository(db *pg.DB) *EmployeeRepository {
	return &EmployeeRepository{db}
}

func (r *EmployeeRepository) Create(ctx context.Context, e *model.Employee) (*model.Employee, error) {
	entity := toEmployeeEntity(e)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create employee: %w", err)
	}
	return r.GetByID(ctx, entity.ID)
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id int64) (*model.Employee, error) {
	var entity EmployeeEntity
	if err := r.Read(ctx).Scopes(active).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, "employee", id)
	}
	return toEmployeeModel(&entity), nil
}

func (r *EmployeeRepository) Totals(ctx context.Context) (BalanceTotals, error) {
	return balanceTotals(r.Read(ctx), EmployeeEntity{}.TableName())
}

type RepairmanRepository struct {
	*pg.DB
}

func NewRepairmanRepository(db *pg.DB) *RepairmanRepository {
	return &RepairmanRepository{db}
}

func (r *RepairmanRepository) Create(ctx context.Context, m *model.Repairman) (*model.Repairman, error) {
	entity := &RepairmanEntity{Name: m.Name, Phone: m.Phone, Lifecycle: lifecycleOrActive(m.Lifecycle)}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, fmt.Errorf("create repairman: %w", err)
	}
	return r.GetByID(ctx, entity.ID)
}

func (r *RepairmanRepository) GetByID(ctx context.Context, id int64) (*model.Repairman, error) {
	var entity RepairmanEntity
	if err := r.Read(ctx).Scopes(active).Where("id = ?", id).First(&entity).Error; err != nil {
		return nil, notFound(err, "repairman", id)
	}
	return toRepairmanModel(&entity), nil
}

func (r *RepairmanRepository) Totals(ctx context.Context) (BalanceTotals, error) {
	return balanceTotals(r.Read(ctx), RepairmanEntity{}.TableName())
}
