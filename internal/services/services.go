package services

import (
	"context"

	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/repository"
)

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Poster is the only way services touch a balance.
type Poster interface {
	Post(ctx context.Context, posting ledger.Posting) error
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Transaction, error)
	GetByAuthorityForUpdate(ctx context.Context, authority string) (*model.Transaction, error)
	Transition(ctx context.Context, id int64, from, to model.TransactionStatus, fields map[string]any) error
	SetGatewayResult(ctx context.Context, id int64, authority string, metadata map[string]any) error
	List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, int64, error)
	CountByStatus(ctx context.Context, status model.TransactionStatus) (int64, error)
}

type PaymentMethodRepository interface {
	Create(ctx context.Context, req model.PaymentMethodRequest) (*model.PaymentMethod, error)
	Update(ctx context.Context, id int64, req model.PaymentMethodRequest) error
	SoftDelete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*model.PaymentMethod, error)
	LockOnline(ctx context.Context) ([]*model.PaymentMethod, error)
	GetOnline(ctx context.Context) (*model.PaymentMethod, error)
	List(ctx context.Context) ([]*model.PaymentMethod, error)
	Total(ctx context.Context) (int64, error)
}

type CustomerRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Customer, error)
	GrantCourseAccess(ctx context.Context, id int64) error
	Totals(ctx context.Context) (repository.BalanceTotals, error)
}

type EmployeeRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Employee, error)
	Totals(ctx context.Context) (repository.BalanceTotals, error)
}

type RepairmanRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Repairman, error)
	Totals(ctx context.Context) (repository.BalanceTotals, error)
}

type CatalogRepository interface {
	GamesByIDs(ctx context.Context, ids []int64) (map[int64]*model.Game, error)
	ProductsByIDs(ctx context.Context, ids []int64) (map[int64]*model.Product, error)
}

type GameOrderRepository interface {
	Create(ctx context.Context, o *model.GameOrder) (*model.GameOrder, error)
	GetByID(ctx context.Context, id int64) (*model.GameOrder, error)
	GetForUpdate(ctx context.Context, id int64) (*model.GameOrder, error)
	Update(ctx context.Context, id int64, guard, changes map[string]any) error
	UpdateItem(ctx context.Context, orderID int64, it model.GameOrderItem) error
	PaymentInFlight(ctx context.Context, txnID *int64) (bool, error)
}

type RepairOrderRepository interface {
	Create(ctx context.Context, o *model.RepairOrder) (*model.RepairOrder, error)
	GetByID(ctx context.Context, id int64) (*model.RepairOrder, error)
	GetForUpdate(ctx context.Context, id int64) (*model.RepairOrder, error)
	Update(ctx context.Context, id int64, guard, changes map[string]any) error
	PaymentInFlight(ctx context.Context, txnID *int64) (bool, error)
}

type ProductOrderRepository interface {
	Create(ctx context.Context, o *model.Order) (*model.Order, error)
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Order, error)
	Update(ctx context.Context, id int64, guard, changes map[string]any) error
}

type CourseOrderRepository interface {
	Create(ctx context.Context, o *model.CourseOrder) (*model.CourseOrder, error)
	GetByID(ctx context.Context, id int64) (*model.CourseOrder, error)
	GetForUpdate(ctx context.Context, id int64) (*model.CourseOrder, error)
	Update(ctx context.Context, id int64, guard, changes map[string]any) error
}
