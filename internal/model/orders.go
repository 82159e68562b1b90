package model

import "time"

type OrderKind string

const (
	OrderKindProduct OrderKind = "product"
	OrderKindGame    OrderKind = "game"
	OrderKindRepair  OrderKind = "repair"
	OrderKindCourse  OrderKind = "course"
)

func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindProduct, OrderKindGame, OrderKindRepair, OrderKindCourse:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

// Origin is who opened the order.
type Origin string

const (
	OriginCustomer  Origin = "customer"
	OriginEmployee  Origin = "employee"
	OriginRepairman Origin = "repairman"
)

const DefaultCourseAmount int64 = 2_000_000

type OrderItem struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Price     int64 `json:"price"`
}

// Order is a product order.
type Order struct {
	ID            int64         `json:"id"`
	CustomerID    int64         `json:"customer_id"`
	Origin        Origin        `json:"order_type"`
	CreatedBy     *int64        `json:"created_by,omitempty"`
	Items         []OrderItem   `json:"items"`
	Amount        int64         `json:"amount"`
	Charged       int64         `json:"charged"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TransactionID *int64        `json:"transaction_id,omitempty"`
	Lifecycle     Lifecycle     `json:"lifecycle"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type ProductOrderCreateRequest struct {
	CustomerID int64              `json:"customer_id" validate:"required,gt=0"`
	Items      []ProductOrderLine `json:"items" validate:"required,min=1,dive"`
}

type ProductOrderLine struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type CourseOrder struct {
	ID            int64         `json:"id"`
	CustomerID    int64         `json:"customer_id"`
	Amount        int64         `json:"amount"`
	Charged       int64         `json:"charged"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	TransactionID *int64        `json:"transaction_id,omitempty"`
	Lifecycle     Lifecycle     `json:"lifecycle"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type CourseOrderCreateRequest struct {
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	Amount     *int64 `json:"amount" validate:"omitempty,gt=0"`
}

// Payable is what a gateway payment for an order must collect.
type Payable struct {
	Kind          OrderKind
	OrderID       int64
	CustomerID    int64
	Amount        int64
	PaymentStatus PaymentStatus
	TransactionID *int64
}
