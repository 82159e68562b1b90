package handlers

import (
	"context"
	"sort"

	"github.com/fasthttp/router"
	gateway "github.com/nimasrn/drgame-ledger/internal/gateways"
	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
)

// Pinger is any dependency the API cannot serve without.
type Pinger interface {
	Ping(ctx context.Context) error
}

// GatewayStats is implemented by gateway clients that keep request statistics.
type GatewayStats interface {
	Stats() gateway.Snapshot
}

type HealthHandler struct {
	deps  map[string]Pinger
	stats GatewayStats
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

// NewHealthHandler takes the named dependencies to ping; stats may be nil.
func NewHealthHandler(deps map[string]Pinger, stats GatewayStats) *HealthHandler {
	return &HealthHandler{deps: deps, stats: stats}
}

type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks,omitempty"`
	Gateway *gateway.Snapshot `json:"gateway,omitempty"`
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.deps))}
	names := make([]string, 0, len(h.deps))
	for name := range h.deps {
		names = append(names, name)
	}
	sort.Strings(names)

	code := 200
	for _, name := range names {
		if err := h.deps[name].Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			code = 503
			continue
		}
		resp.Checks[name] = "ok"
	}
	if h.stats != nil {
		snap := h.stats.Stats()
		resp.Gateway = &snap
	}
	writeJSON(ctx, code, resp)
}
