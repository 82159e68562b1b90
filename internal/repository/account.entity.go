package repository

import (
	"time"

	"github.com/nimasrn/drgame-ledger/internal/model"
)

// Balance columns are read-only here; only the ledger poster writes them.

type CustomerEntity struct {
	ID                int64           `gorm:"primaryKey;autoIncrement;column:id"`
	Name              string          `gorm:"column:name;not null"`
	Phone             string          `gorm:"column:phone;index"`
	Balance           int64           `gorm:"column:balance;->;not null;default:0"`
	Discount          int             `gorm:"column:discount;not null;default:100"`
	HasAccessToCourse bool            `gorm:"column:has_access_to_course;not null;default:false"`
	Lifecycle         model.Lifecycle `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CustomerEntity) TableName() string { return "customers" }

type EmployeeEntity struct {
	ID               int64           `gorm:"primaryKey;autoIncrement;column:id"`
	Name             string          `gorm:"column:name;not null"`
	Phone            string          `gorm:"column:phone;index"`
	Role             string          `gorm:"column:role;not null;default:employee"`
	Balance          int64           `gorm:"column:balance;->;not null;default:0"`
	CommissionAmount int             `gorm:"column:commission_amount;not null;default:0"`
	Lifecycle        model.Lifecycle `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (EmployeeEntity) TableName() string { return "employees" }

type RepairmanEntity struct {
	ID        int64           `gorm:"primaryKey;autoIncrement;column:id"`
	Name      string          `gorm:"column:name;not null"`
	Phone     string          `gorm:"column:phone;index"`
	Balance   int64           `gorm:"column:balance;->;not null;default:0"`
	Lifecycle model.Lifecycle `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (RepairmanEntity) TableName() string { return "repairmen" }

type PaymentMethodEntity struct {
	ID        int64           `gorm:"primaryKey;autoIncrement;column:id"`
	Title     string          `gorm:"column:title;not null"`
	Balance   int64           `gorm:"column:balance;->;not null;default:0"`
	IsOnline  bool            `gorm:"column:is_online;not null;default:false"`
	Lifecycle model.Lifecycle `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PaymentMethodEntity) TableName() string { return "payment_methods" }

func lifecycleOrActive(l model.Lifecycle) model.Lifecycle {
	if l == "" {
		return model.LifecycleActive
	}
	return l
}

func toCustomerEntity(m *model.Customer) *CustomerEntity {
	return &CustomerEntity{
		ID:                m.ID,
		Name:              m.Name,
		Phone:             m.Phone,
		Discount:          m.Discount,
		HasAccessToCourse: m.HasAccessToCourse,
		Lifecycle:         lifecycleOrActive(m.Lifecycle),
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	return &model.Customer{
		ID:                e.ID,
		Name:              e.Name,
		Phone:             e.Phone,
		Balance:           e.Balance,
		Discount:          e.Discount,
		HasAccessToCourse: e.HasAccessToCourse,
		Lifecycle:         e.Lifecycle,
		CreatedAt:         e.CreatedAt,
	}
}

func toEmployeeEntity(m *model.Employee) *EmployeeEntity {
	role := m.Role
	if role == "" {
		role = string(model.RoleEmployee)
	}
	return &EmployeeEntity{
		ID:               m.ID,
		Name:             m.Name,
		Phone:            m.Phone,
		Role:             role,
		CommissionAmount: m.CommissionAmount,
		Lifecycle:        lifecycleOrActive(m.Lifecycle),
	}
}

func toEmployeeModel(e *EmployeeEntity) *model.Employee {
	return &model.Employee{
		ID:               e.ID,
		Name:             e.Name,
		Phone:            e.Phone,
		Role:             e.Role,
		Balance:          e.Balance,
		CommissionAmount: e.CommissionAmount,
		Lifecycle:        e.Lifecycle,
		CreatedAt:        e.CreatedAt,
	}
}

func toRepairmanModel(e *RepairmanEntity) *model.Repairman {
	return &model.Repairman{
		ID:        e.ID,
		Name:      e.Name,
		Phone:     e.Phone,
		Balance:   e.Balance,
		Lifecycle: e.Lifecycle,
		CreatedAt: e.CreatedAt,
	}
}

func toPaymentMethodModel(e *PaymentMethodEntity) *model.PaymentMethod {
	return &model.PaymentMethod{
		ID:        e.ID,
		Title:     e.Title,
		Balance:   e.Balance,
		IsOnline:  e.IsOnline,
		Lifecycle: e.Lifecycle,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}
