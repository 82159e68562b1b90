package model

import (
	"encoding/json"
	"time"
)

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionWaiting TransactionStatus = "waiting"
	TransactionPaid    TransactionStatus = "paid"
	TransactionFailed  TransactionStatus = "failed"
)

func (s TransactionStatus) Terminal() bool {
	return s == TransactionPaid || s == TransactionFailed
}

// Transaction is a directed money movement. Paid transactions never change again.
type Transaction struct {
	ID              int64
	Payer           Party
	Receiver        Party
	PaymentMethodID *int64
	Amount          int64
	Status          TransactionStatus
	InOut           bool
	Authority       string
	RefID           string
	Description     string
	OrderKind       OrderKind
	OrderID         *int64
	Metadata        map[string]any
	Lifecycle       Lifecycle
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type transactionJSON struct {
	ID              int64             `json:"id"`
	Payer           PartyInput        `json:"payer"`
	Receiver        PartyInput        `json:"receiver"`
	PaymentMethodID *int64            `json:"payment_method_id,omitempty"`
	Amount          int64             `json:"amount"`
	Status          TransactionStatus `json:"status"`
	InOut           bool              `json:"in_out"`
	Authority       string            `json:"authority,omitempty"`
	RefID           string            `json:"ref_id,omitempty"`
	Description     string            `json:"description,omitempty"`
	OrderKind       OrderKind         `json:"order_kind,omitempty"`
	OrderID         *int64            `json:"order_id,omitempty"`
	Metadata        map[string]any    `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		ID:              t.ID,
		Payer:           ToInput(t.Payer),
		Receiver:        ToInput(t.Receiver),
		PaymentMethodID: t.PaymentMethodID,
		Amount:          t.Amount,
		Status:          t.Status,
		InOut:           t.InOut,
		Authority:       t.Authority,
		RefID:           t.RefID,
		Description:     t.Description,
		OrderKind:       t.OrderKind,
		OrderID:         t.OrderID,
		Metadata:        t.Metadata,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	})
}

// TransactionCreateRequest creates a transaction; Settled stores it as paid and posts it at once.
type TransactionCreateRequest struct {
	Payer           PartyInput `json:"payer"`
	Receiver        PartyInput `json:"receiver"`
	PaymentMethodID *int64     `json:"payment_method_id"`
	Amount          int64      `json:"amount" validate:"gte=0"`
	InOut           bool       `json:"in_out"`
	Description     string     `json:"description" validate:"max=512"`
	Settled         bool       `json:"settled"`
}

// Build checks the request and returns the unsaved transaction.
func (r TransactionCreateRequest) Build() (*Transaction, error) {
	payer, err := NewParty("payer", r.Payer)
	if err != nil {
		return nil, err
	}
	receiver, err := NewParty("receiver", r.Receiver)
	if err != nil {
		return nil, err
	}
	if r.Amount < 0 {
		return nil, ValidationError("amount", "must not be negative")
	}
	status := TransactionPending
	if r.Settled {
		status = TransactionPaid
	}
	return &Transaction{
		Payer:           payer,
		Receiver:        receiver,
		PaymentMethodID: r.PaymentMethodID,
		Amount:          r.Amount,
		Status:          status,
		InOut:           r.InOut,
		Description:     r.Description,
		Lifecycle:       LifecycleActive,
	}, nil
}

type SettleOutcome string

const (
	OutcomePaid   SettleOutcome = "paid"
	OutcomeFailed SettleOutcome = "failed"
)

func (o SettleOutcome) Valid() bool {
	return o == OutcomePaid || o == OutcomeFailed
}

func (o SettleOutcome) Status() TransactionStatus {
	if o == OutcomePaid {
		return TransactionPaid
	}
	return TransactionFailed
}

// CounterpartyRequest records a settled movement with one external or known counterparty.
type CounterpartyRequest struct {
	Party           PartyInput `json:"party"`
	PaymentMethodID int64      `json:"payment_method_id" validate:"required,gt=0"`
	Amount          int64      `json:"amount" validate:"required,gt=0"`
	Description     string     `json:"description" validate:"max=512"`
	OrderKind       OrderKind  `json:"order_kind" validate:"omitempty,oneof=product game repair course"`
	OrderID         *int64     `json:"order_id"`
}
