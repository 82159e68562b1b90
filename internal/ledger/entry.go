package ledger

import (
	"time"

	"github.com/nimasrn/drgame-ledger/internal/model"
)

// EntryEntity is one journal line; a posting writes one per leg, sharing PostingID.
type EntryEntity struct {
	ID            int64             `gorm:"primaryKey;autoIncrement;column:id"`
	PostingID     string            `gorm:"column:posting_id;type:varchar(36);not null;index"`
	AccountKind   model.AccountKind `gorm:"column:account_kind;type:varchar(16);not null;index:idx_ledger_account"`
	AccountID     int64             `gorm:"column:account_id;not null;index:idx_ledger_account"`
	Delta         int64             `gorm:"column:delta;not null"`
	BalanceAfter  *int64            `gorm:"column:balance_after"`
	Reason        string            `gorm:"column:reason;not null"`
	TransactionID *int64            `gorm:"column:transaction_id;index"`
	OrderKind     *string           `gorm:"column:order_kind;type:varchar(16)"`
	OrderID       *int64            `gorm:"column:order_id"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (EntryEntity) TableName() string { return "ledger_entries" }

type Entry struct {
	PostingID     string            `json:"posting_id"`
	AccountKind   model.AccountKind `json:"account_kind"`
	AccountID     int64             `json:"account_id"`
	Delta         int64             `json:"delta"`
	BalanceAfter  *int64            `json:"balance_after,omitempty"`
	Reason        string            `json:"reason"`
	TransactionID *int64            `json:"transaction_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}
