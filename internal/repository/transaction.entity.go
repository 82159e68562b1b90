package repository

import (
	"time"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"gorm.io/datatypes"
)

// TransactionEntity persists each Party as either (kind, id) or a label; never both.
type TransactionEntity struct {
	ID              int64                   `gorm:"primaryKey;autoIncrement;column:id"`
	PayerKind       *string                 `gorm:"column:payer_kind;type:varchar(16)"`
	PayerID         *int64                  `gorm:"column:payer_id;index"`
	PayerStr        *string                 `gorm:"column:payer_str"`
	ReceiverKind    *string                 `gorm:"column:receiver_kind;type:varchar(16)"`
	ReceiverID      *int64                  `gorm:"column:receiver_id;index"`
	ReceiverStr     *string                 `gorm:"column:receiver_str"`
	PaymentMethodID *int64                  `gorm:"column:payment_method_id;index"`
	Amount          int64                   `gorm:"column:amount;not null"`
	Status          model.TransactionStatus `gorm:"column:status;type:varchar(16);not null;index"`
	InOut           bool                    `gorm:"column:in_out;not null"`
	Authority       *string                 `gorm:"column:authority;uniqueIndex"`
	RefID           string                  `gorm:"column:ref_id"`
	Description     string                  `gorm:"column:description"`
	OrderKind       *string                 `gorm:"column:order_kind;type:varchar(16)"`
	OrderID         *int64                  `gorm:"column:order_id;index"`
	Metadata        datatypes.JSONMap       `gorm:"column:metadata"`
	Lifecycle       model.Lifecycle         `gorm:"column:lifecycle;type:varchar(16);not null;default:active;index"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (TransactionEntity) TableName() string { return "transactions" }

func partyColumns(p model.Party) (kind *string, id *int64, label *string) {
	switch v := p.(type) {
	case model.KnownUser:
		k, i := string(v.Kind), v.ID
		return &k, &i, nil
	case model.FreeformLabel:
		t := v.Text
		return nil, nil, &t
	}
	return nil, nil, nil
}

func partyFromColumns(field string, kind *string, id *int64, label *string) (model.Party, error) {
	in := model.PartyInput{Label: label}
	if kind != nil || id != nil {
		u := model.KnownUser{}
		if kind != nil {
			u.Kind = model.AccountKind(*kind)
		}
		if id != nil {
			u.ID = *id
		}
		in.User = &u
	}
	return model.NewParty(field, in)
}

func strOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	e := &TransactionEntity{
		ID:              m.ID,
		PaymentMethodID: m.PaymentMethodID,
		Amount:          m.Amount,
		Status:          m.Status,
		InOut:           m.InOut,
		Authority:       strOrNil(m.Authority),
		RefID:           m.RefID,
		Description:     m.Description,
		OrderKind:       strOrNil(string(m.OrderKind)),
		OrderID:         m.OrderID,
		Lifecycle:       lifecycleOrActive(m.Lifecycle),
	}
	if m.Metadata != nil {
		e.Metadata = datatypes.JSONMap(m.Metadata)
	}
	e.PayerKind, e.PayerID, e.PayerStr = partyColumns(m.Payer)
	e.ReceiverKind, e.ReceiverID, e.ReceiverStr = partyColumns(m.Receiver)
	return e
}

func toTransactionModel(e *TransactionEntity) (*model.Transaction, error) {
	payer, err := partyFromColumns("payer", e.PayerKind, e.PayerID, e.PayerStr)
	if err != nil {
		return nil, err
	}
	receiver, err := partyFromColumns("receiver", e.ReceiverKind, e.ReceiverID, e.ReceiverStr)
	if err != nil {
		return nil, err
	}
	m := &model.Transaction{
		ID:              e.ID,
		Payer:           payer,
		Receiver:        receiver,
		PaymentMethodID: e.PaymentMethodID,
		Amount:          e.Amount,
		Status:          e.Status,
		InOut:           e.InOut,
		RefID:           e.RefID,
		Description:     e.Description,
		OrderID:         e.OrderID,
		Lifecycle:       e.Lifecycle,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if e.Authority != nil {
		m.Authority = *e.Authority
	}
	if e.OrderKind != nil {
		m.OrderKind = model.OrderKind(*e.OrderKind)
	}
	if e.Metadata != nil {
		m.Metadata = map[string]any(e.Metadata)
	}
	return m, nil
}
