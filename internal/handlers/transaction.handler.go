package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/repository"
	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
)

type TransactionService interface {
	Create(ctx context.Context, req model.TransactionCreateRequest) (*model.Transaction, error)
	Settle(ctx context.Context, id int64, outcome model.SettleOutcome) (*model.Transaction, error)
	RecordIncoming(ctx context.Context, req model.CounterpartyRequest) (*model.Transaction, error)
	RecordOutgoing(ctx context.Context, req model.CounterpartyRequest) (*model.Transaction, error)
	CustomerDeposit(ctx context.Context, customerID int64, req model.MoneyMovementRequest) (*model.Transaction, error)
	EmployeePayout(ctx context.Context, employeeID int64, req model.MoneyMovementRequest) (*model.Transaction, error)
	RepairmanPayout(ctx context.Context, repairmanID int64, req model.MoneyMovementRequest) (*model.Transaction, error)
	Get(ctx context.Context, id int64) (*model.Transaction, error)
	List(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, int64, error)
}

type TransactionHandler struct {
	svc TransactionService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.POST("/transactions", h.Create)
	e.GET("/transactions", h.List)
	e.GET("/transactions/{id}", h.Get)
	e.POST("/transactions/{id}/settle", h.Settle)
	e.POST("/incoming-payments", h.RecordIncoming)
	e.POST("/outgoing-payments", h.RecordOutgoing)
	e.POST("/customers/{id}/deposit", h.CustomerDeposit)
	e.POST("/employees/{id}/payout", h.EmployeePayout)
	e.POST("/repairmen/{id}/payout", h.RepairmanPayout)
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type settleRequest struct {
	Outcome model.SettleOutcome `json:"outcome" validate:"required,oneof=paid failed"`
}

func (h *TransactionHandler) Create(ctx *xhttp.RequestCtx) {
	var req model.TransactionCreateRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	txn, err := h.svc.Create(ctx, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 201, txn)
}

func (h *TransactionHandler) Settle(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req settleRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	txn, err := h.svc.Settle(ctx, id, req.Outcome)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, txn)
}

func (h *TransactionHandler) RecordIncoming(ctx *xhttp.RequestCtx) {
	h.counterparty(ctx, h.svc.RecordIncoming)
}

func (h *TransactionHandler) RecordOutgoing(ctx *xhttp.RequestCtx) {
	h.counterparty(ctx, h.svc.RecordOutgoing)
}

func (h *TransactionHandler) counterparty(ctx *xhttp.RequestCtx, record func(context.Context, model.CounterpartyRequest) (*model.Transaction, error)) {
	var req model.CounterpartyRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	txn, err := record(ctx, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 201, txn)
}

func (h *TransactionHandler) CustomerDeposit(ctx *xhttp.RequestCtx) {
	h.movement(ctx, h.svc.CustomerDeposit)
}

func (h *TransactionHandler) EmployeePayout(ctx *xhttp.RequestCtx) {
	h.movement(ctx, h.svc.EmployeePayout)
}

func (h *TransactionHandler) RepairmanPayout(ctx *xhttp.RequestCtx) {
	h.movement(ctx, h.svc.RepairmanPayout)
}

func (h *TransactionHandler) movement(ctx *xhttp.RequestCtx, move func(context.Context, int64, model.MoneyMovementRequest) (*model.Transaction, error)) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.MoneyMovementRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	txn, err := move(ctx, id, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 201, txn)
}

func (h *TransactionHandler) Get(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	txn, err := h.svc.Get(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, txn)
}

func (h *TransactionHandler) List(ctx *xhttp.RequestCtx) {
	var f repository.TransactionFilter
	if v := query(ctx, "status"); v != "" {
		st := model.TransactionStatus(v)
		f.Status = &st
	}
	if v := query(ctx, "order_kind"); v != "" {
		k := model.OrderKind(v)
		f.OrderKind = &k
	}
	f.PaymentMethodID = queryInt64(ctx, "payment_method_id")
	f.OrderID = queryInt64(ctx, "order_id")
	f.Limit = queryInt(ctx, "limit")
	f.Offset = queryInt(ctx, "offset")

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listResponse[*model.Transaction]{Items: items, Total: total})
}
