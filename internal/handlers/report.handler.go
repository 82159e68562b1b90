package handlers

import (
	"context"
	"fmt"

	"github.com/fasthttp/router"
	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
)

type ReportService interface {
	FinanceSummary(ctx context.Context) (*model.FinanceSummary, error)
}

// Journal reads the ledger lines posted against one account.
type Journal interface {
	Entries(ctx context.Context, acct ledger.Account, limit int) ([]ledger.Entry, error)
}

type ReportHandler struct {
	svc     ReportService
	journal Journal
}

func RegisterReportRoutes(e *router.Group, h *ReportHandler) {
	e.GET("/reports/finance", h.Finance)
	e.GET("/reports/journal/{kind}/{id}", h.Journal)
}

func NewReportHandler(svc ReportService, journal Journal) *ReportHandler {
	return &ReportHandler{svc: svc, journal: journal}
}

func (h *ReportHandler) Finance(ctx *xhttp.RequestCtx) {
	sum, err := h.svc.FinanceSummary(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, sum)
}

// Journal lists the newest entries of a balance-holding account; limit defaults to 100.
func (h *ReportHandler) Journal(ctx *xhttp.RequestCtx) {
	raw, _ := ctx.UserValue("kind").(string)
	kind := model.AccountKind(raw)
	if !kind.HoldsBalance() && kind != model.AccountPaymentMethod {
		writeError(ctx, model.ValidationError("kind", fmt.Sprintf("unknown account kind %q", kind)))
		return
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	entries, err := h.journal.Entries(ctx, ledger.Account{Kind: kind, ID: id}, queryInt(ctx, "limit"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, listResponse[ledger.Entry]{Items: entries, Total: int64(len(entries))})
}
