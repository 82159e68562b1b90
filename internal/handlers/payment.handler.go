package handlers

import (
	"context"
	"net/url"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/services"
	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
)

type PaymentService interface {
	RequestPayment(ctx context.Context, kind model.OrderKind, orderID int64) (*services.PaymentResult, error)
	Callback(ctx context.Context, status, authority string) (*model.Transaction, error)
}

type OrderPaymentRecorder interface {
	RecordOrderPayment(ctx context.Context, kind model.OrderKind, orderID, paymentMethodID int64) (*model.Transaction, error)
}

type PaymentHandler struct {
	svc      PaymentService
	recorder OrderPaymentRecorder
	// redirectURL, when set, receives the customer's browser after the callback.
	redirectURL string
}

func RegisterPaymentRoutes(e *router.Group, h *PaymentHandler) {
	for kind, path := range orderPaths {
		e.POST(path+"/{id}/request-payment", h.RequestPayment(kind))
		e.POST(path+"/{id}/record-payment", h.RecordPayment(kind))
	}
	e.GET("/payments/callback", h.Callback)
}

func NewPaymentHandler(svc PaymentService, recorder OrderPaymentRecorder, redirectURL string) *PaymentHandler {
	return &PaymentHandler{svc: svc, recorder: recorder, redirectURL: redirectURL}
}

type recordPaymentRequest struct {
	PaymentMethodID int64 `json:"payment_method_id" validate:"required,gt=0"`
}

func (h *PaymentHandler) RequestPayment(kind model.OrderKind) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		id, err := pathID(ctx, "id")
		if err != nil {
			writeError(ctx, err)
			return
		}
		res, err := h.svc.RequestPayment(ctx, kind, id)
		if err != nil {
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, 200, res)
	}
}

func (h *PaymentHandler) RecordPayment(kind model.OrderKind) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		id, err := pathID(ctx, "id")
		if err != nil {
			writeError(ctx, err)
			return
		}
		var req recordPaymentRequest
		if err := bind(ctx, &req); err != nil {
			writeError(ctx, err)
			return
		}
		txn, err := h.recorder.RecordOrderPayment(ctx, kind, id, req.PaymentMethodID)
		if err != nil {
			writeError(ctx, err)
			return
		}
		writeJSON(ctx, 201, txn)
	}
}

// Callback is hit by the customer's browser coming back from the gateway.
func (h *PaymentHandler) Callback(ctx *xhttp.RequestCtx) {
	status, authority := query(ctx, "Status"), query(ctx, "Authority")
	if authority == "" {
		writeError(ctx, model.ValidationError("Authority", "required"))
		return
	}
	txn, err := h.svc.Callback(ctx, status, authority)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if h.redirectURL == "" {
		writeJSON(ctx, 200, txn)
		return
	}
	u, err := url.Parse(h.redirectURL)
	if err != nil {
		writeJSON(ctx, 200, txn)
		return
	}
	q := u.Query()
	q.Set("status", string(txn.Status))
	q.Set("transaction_id", strconv.FormatInt(txn.ID, 10))
	u.RawQuery = q.Encode()
	ctx.Redirect(u.String(), 302)
}
