package repository

import (
	"time"

	"github.com/nimasrn/drgame-ledger/internal/model"
)

type OrderEntity struct {
	ID            int64               `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID    int64               `gorm:"column:customer_id;not null;index"`
	OrderType     model.Origin        `gorm:"column:order_type;type:varchar(16);not null"`
	CreatedBy     *int64              `gorm:"column:created_by"`
	Amount        int64               `gorm:"column:amount;not null"`
	Charged       int64               `gorm:"column:charged;not null;default:0"`
	PaymentStatus model.PaymentStatus `gorm:"column:payment_status;type:varchar(16);not null"`
	TransactionID *int64              `gorm:"column:transaction_id;uniqueIndex"`
	Items         []OrderItemEntity   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Lifecycle     model.Lifecycle     `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderEntity) TableName() string { return "orders" }

type OrderItemEntity struct {
	ID        int64 `gorm:"primaryKey;autoIncrement;column:id"`
	OrderID   int64 `gorm:"column:order_id;not null;index"`
	ProductID int64 `gorm:"column:product_id;not null"`
	Quantity  int   `gorm:"column:quantity;not null"`
	Price     int64 `gorm:"column:price;not null"`
}

func (OrderItemEntity) TableName() string { return "order_items" }

type GameOrderEntity struct {
	ID            int64                 `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID    int64                 `gorm:"column:customer_id;not null;index"`
	Origin        model.Origin          `gorm:"column:origin;type:varchar(16);not null"`
	RecipientID   *int64                `gorm:"column:recipient_id"`
	ConsoleType   model.ConsoleType     `gorm:"column:order_console_type;type:varchar(16);not null"`
	Console       string                `gorm:"column:console"`
	Status        model.GameOrderStatus `gorm:"column:status;type:varchar(64);not null;index"`
	PaymentStatus model.PaymentStatus   `gorm:"column:payment_status;type:varchar(16);not null"`
	Amount        int64                 `gorm:"column:amount;not null"`
	Charged       int64                 `gorm:"column:charged;not null;default:0"`
	DeadLine      *time.Time            `gorm:"column:dead_line"`
	Description   string                `gorm:"column:description"`
	TransactionID *int64                `gorm:"column:transaction_id;uniqueIndex"`
	Items         []GameOrderItemEntity `gorm:"foreignKey:GameOrderID;constraint:OnDelete:CASCADE"`
	Lifecycle     model.Lifecycle       `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (GameOrderEntity) TableName() string { return "game_orders" }

type GameOrderItemEntity struct {
	ID              int64  `gorm:"primaryKey;autoIncrement;column:id"`
	GameOrderID     int64  `gorm:"column:game_order_id;not null;index"`
	GameID          int64  `gorm:"column:game_id;not null"`
	Amount          int64  `gorm:"column:amount;not null"`
	Account         bool   `gorm:"column:account;not null;default:false"`
	Data            bool   `gorm:"column:data;not null;default:false"`
	AccountSetterID *int64 `gorm:"column:account_setter_id"`
	DataUploaderID  *int64 `gorm:"column:data_uploader_id"`
}

func (GameOrderItemEntity) TableName() string { return "game_order_items" }

type RepairOrderEntity struct {
	ID            int64                   `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID    int64                   `gorm:"column:customer_id;not null;index"`
	RepairmanID   *int64                  `gorm:"column:repair_man_id;index"`
	Origin        model.Origin            `gorm:"column:origin;type:varchar(16);not null"`
	Device        string                  `gorm:"column:device;not null"`
	Problem       string                  `gorm:"column:problem"`
	Status        model.RepairOrderStatus `gorm:"column:status;type:varchar(64);not null;index"`
	PaymentStatus model.PaymentStatus     `gorm:"column:payment_status;type:varchar(16);not null"`
	Amount        *int64                  `gorm:"column:amount"`
	RepairmanFee  *int64                  `gorm:"column:repairman_fee"`
	Charged       int64                   `gorm:"column:charged;not null;default:0"`
	TransactionID *int64                  `gorm:"column:transaction_id;uniqueIndex"`
	Lifecycle     model.Lifecycle         `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (RepairOrderEntity) TableName() string { return "repair_orders" }

type CourseOrderEntity struct {
	ID            int64               `gorm:"primaryKey;autoIncrement;column:id"`
	CustomerID    int64               `gorm:"column:customer_id;not null;index"`
	Amount        int64               `gorm:"column:amount;not null"`
	Charged       int64               `gorm:"column:charged;not null;default:0"`
	PaymentStatus model.PaymentStatus `gorm:"column:payment_status;type:varchar(16);not null"`
	TransactionID *int64              `gorm:"column:transaction_id;uniqueIndex"`
	Lifecycle     model.Lifecycle     `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (CourseOrderEntity) TableName() string { return "course_orders" }

func toOrderModel(e *OrderEntity) *model.Order {
	m := &model.Order{
		ID:            e.ID,
		CustomerID:    e.CustomerID,
		Origin:        e.OrderType,
		CreatedBy:     e.CreatedBy,
		Amount:        e.Amount,
		Charged:       e.Charged,
		PaymentStatus: e.PaymentStatus,
		TransactionID: e.TransactionID,
		Lifecycle:     e.Lifecycle,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Items:         make([]model.OrderItem, len(e.Items)),
	}
	for i, it := range e.Items {
		m.Items[i] = model.OrderItem{ID: it.ID, ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	return m
}

func toOrderEntity(m *model.Order) *OrderEntity {
	e := &OrderEntity{
		CustomerID:    m.CustomerID,
		OrderType:     m.Origin,
		CreatedBy:     m.CreatedBy,
		Amount:        m.Amount,
		Charged:       m.Charged,
		PaymentStatus: m.PaymentStatus,
		Lifecycle:     lifecycleOrActive(m.Lifecycle),
		Items:         make([]OrderItemEntity, len(m.Items)),
	}
	for i, it := range m.Items {
		e.Items[i] = OrderItemEntity{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price}
	}
	return e
}

func toGameOrderModel(e *GameOrderEntity) *model.GameOrder {
	m := &model.GameOrder{
		ID:            e.ID,
		CustomerID:    e.CustomerID,
		Origin:        e.Origin,
		RecipientID:   e.RecipientID,
		ConsoleType:   e.ConsoleType,
		Console:       e.Console,
		Status:        e.Status,
		PaymentStatus: e.PaymentStatus,
		Amount:        e.Amount,
		Charged:       e.Charged,
		DeadLine:      e.DeadLine,
		Description:   e.Description,
		TransactionID: e.TransactionID,
		Lifecycle:     e.Lifecycle,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Items:         make([]model.GameOrderItem, len(e.Items)),
	}
	for i, it := range e.Items {
		m.Items[i] = toGameOrderItemModel(&it)
	}
	return m
}

func toGameOrderItemModel(e *GameOrderItemEntity) model.GameOrderItem {
	return model.GameOrderItem{
		ID:              e.ID,
		GameID:          e.GameID,
		Amount:          e.Amount,
		Account:         e.Account,
		Data:            e.Data,
		AccountSetterID: e.AccountSetterID,
		DataUploaderID:  e.DataUploaderID,
	}
}

func toGameOrderEntity(m *model.GameOrder) *GameOrderEntity {
	e := &GameOrderEntity{
		CustomerID:    m.CustomerID,
		Origin:        m.Origin,
		RecipientID:   m.RecipientID,
		ConsoleType:   m.ConsoleType,
		Console:       m.Console,
		Status:        m.Status,
		PaymentStatus: m.PaymentStatus,
		Amount:        m.Amount,
		Charged:       m.Charged,
		DeadLine:      m.DeadLine,
		Description:   m.Description,
		Lifecycle:     lifecycleOrActive(m.Lifecycle),
		Items:         make([]GameOrderItemEntity, len(m.Items)),
	}
	for i, it := range m.Items {
		e.Items[i] = GameOrderItemEntity{
			GameID:          it.GameID,
			Amount:          it.Amount,
			Account:         it.Account,
			Data:            it.Data,
			AccountSetterID: it.AccountSetterID,
			DataUploaderID:  it.DataUploaderID,
		}
	}
	return e
}

func toRepairOrderModel(e *RepairOrderEntity) *model.RepairOrder {
	return &model.RepairOrder{
		ID:            e.ID,
		CustomerID:    e.CustomerID,
		RepairmanID:   e.RepairmanID,
		Origin:        e.Origin,
		Device:        e.Device,
		Problem:       e.Problem,
		Status:        e.Status,
		PaymentStatus: e.PaymentStatus,
		Amount:        e.Amount,
		RepairmanFee:  e.RepairmanFee,
		Charged:       e.Charged,
		TransactionID: e.TransactionID,
		Lifecycle:     e.Lifecycle,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toCourseOrderModel(e *CourseOrderEntity) *model.CourseOrder {
	return &model.CourseOrder{
		ID:            e.ID,
		CustomerID:    e.CustomerID,
		Amount:        e.Amount,
		Charged:       e.Charged,
		PaymentStatus: e.PaymentStatus,
		TransactionID: e.TransactionID,
		Lifecycle:     e.Lifecycle,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
