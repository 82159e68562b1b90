package model

import "time"

type Customer struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	Balance           int64     `json:"balance"`
	Discount          int       `json:"discount"`
	HasAccessToCourse bool      `json:"has_access_to_course"`
	Lifecycle         Lifecycle `json:"lifecycle"`
	CreatedAt         time.Time `json:"created_at"`
}

type Employee struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Phone            string    `json:"phone"`
	Role             string    `json:"role"`
	Balance          int64     `json:"balance"`
	CommissionAmount int       `json:"commission_amount"`
	Lifecycle        Lifecycle `json:"lifecycle"`
	CreatedAt        time.Time `json:"created_at"`
}

type Repairman struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Balance   int64     `json:"balance"`
	Lifecycle Lifecycle `json:"lifecycle"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentMethod struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Balance   int64     `json:"balance"`
	IsOnline  bool      `json:"is_online"`
	Lifecycle Lifecycle `json:"lifecycle"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PaymentMethodRequest struct {
	Title    string `json:"title" validate:"required,max=128"`
	IsOnline bool   `json:"is_online"`
}

// MoneyMovementRequest covers deposits and payouts against one payment method.
type MoneyMovementRequest struct {
	PaymentMethodID int64  `json:"payment_method_id" validate:"required,gt=0"`
	Amount          int64  `json:"amount" validate:"required,gt=0"`
	Description     string `json:"description" validate:"max=512"`
}

type Role string

const (
	RoleCustomer    Role = "customer"
	RoleEmployee    Role = "employee"
	RoleRepairman   Role = "repairman"
	RoleMainManager Role = "main_manager"
)

// Actor is the authenticated principal performing an operation.
type Actor struct {
	Role Role  `json:"role"`
	ID   int64 `json:"id"`
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleEmployee || a.Role == RoleMainManager
}

// Ref returns the ledger account of the actor when it holds a balance.
func (a Actor) Ref() (KnownUser, bool) {
	switch a.Role {
	case RoleCustomer:
		return KnownUser{Kind: AccountCustomer, ID: a.ID}, true
	case RoleEmployee, RoleMainManager:
		return KnownUser{Kind: AccountEmployee, ID: a.ID}, true
	case RoleRepairman:
		return KnownUser{Kind: AccountRepairman, ID: a.ID}, true
	}
	return KnownUser{}, false
}

type FinanceSummary struct {
	PaymentMethodTotal int64 `json:"payment_method_total"`
	CustomerCredit     int64 `json:"customer_credit"`
	CustomerDebt       int64 `json:"customer_debt"`
	EmployeeCredit     int64 `json:"employee_credit"`
	EmployeeDebt       int64 `json:"employee_debt"`
	RepairmanCredit    int64 `json:"repairman_credit"`
	RepairmanDebt      int64 `json:"repairman_debt"`
	NetBalance         int64 `json:"net_balance"`
	PendingCount       int64 `json:"pending_transactions"`
	WaitingCount       int64 `json:"waiting_transactions"`
}
