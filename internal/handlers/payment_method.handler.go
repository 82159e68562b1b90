package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/drgame-ledger/internal/model"
	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
)

type PaymentMethodService interface {
	Create(ctx context.Context, req model.PaymentMethodRequest) (*model.PaymentMethod, error)
	Update(ctx context.Context, id int64, req model.PaymentMethodRequest) (*model.PaymentMethod, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*model.PaymentMethod, error)
	List(ctx context.Context) ([]*model.PaymentMethod, error)
}

type PaymentMethodHandler struct {
	svc PaymentMethodService
}

func RegisterPaymentMethodRoutes(e *router.Group, h *PaymentMethodHandler) {
	e.POST("/payment-methods", h.Create)
	e.GET("/payment-methods", h.List)
	e.GET("/payment-methods/{id}", h.Get)
	e.PUT("/payment-methods/{id}", h.Update)
	e.DELETE("/payment-methods/{id}", h.Delete)
}

func NewPaymentMethodHandler(svc PaymentMethodService) *PaymentMethodHandler {
	return &PaymentMethodHandler{svc: svc}
}

func (h *PaymentMethodHandler) Create(ctx *xhttp.RequestCtx) {
	var req model.PaymentMethodRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	pm, err := h.svc.Create(ctx, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 201, pm)
}

func (h *PaymentMethodHandler) Update(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.PaymentMethodRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	pm, err := h.svc.Update(ctx, id, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, pm)
}

func (h *PaymentMethodHandler) Delete(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.SetStatusCode(204)
}

func (h *PaymentMethodHandler) Get(ctx *xhttp.RequestCtx) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	pm, err := h.svc.Get(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, pm)
}

func (h *PaymentMethodHandler) List(ctx *xhttp.RequestCtx) {
	items, err := h.svc.List(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listResponse[*model.PaymentMethod]{Items: items, Total: int64(len(items))})
}
