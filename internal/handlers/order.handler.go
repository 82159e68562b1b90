package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/drgame-ledger/internal/model"
	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
)

type GameOrderService interface {
	Create(ctx context.Context, actor model.Actor, req model.GameOrderCreateRequest) (*model.GameOrder, error)
	Transition(ctx context.Context, actor model.Actor, id int64, req model.GameOrderTransitionRequest) (*model.GameOrder, error)
	Get(ctx context.Context, id int64) (*model.GameOrder, error)
	CurrentAmount(ctx context.Context, id int64) (int64, error)
}

type RepairOrderService interface {
	Create(ctx context.Context, actor model.Actor, req model.RepairOrderCreateRequest) (*model.RepairOrder, error)
	Transition(ctx context.Context, actor model.Actor, id int64, req model.RepairOrderTransitionRequest) (*model.RepairOrder, error)
	Get(ctx context.Context, id int64) (*model.RepairOrder, error)
	CurrentAmount(ctx context.Context, id int64) (int64, error)
}

type ProductOrderService interface {
	Create(ctx context.Context, actor model.Actor, req model.ProductOrderCreateRequest) (*model.Order, error)
	Get(ctx context.Context, id int64) (*model.Order, error)
	CurrentAmount(ctx context.Context, id int64) (int64, error)
}

type CourseOrderService interface {
	Create(ctx context.Context, actor model.Actor, req model.CourseOrderCreateRequest) (*model.CourseOrder, error)
	Get(ctx context.Context, id int64) (*model.CourseOrder, error)
	CurrentAmount(ctx context.Context, id int64) (int64, error)
}

// orderPaths maps each order kind to its collection path.
var orderPaths = map[model.OrderKind]string{
	model.OrderKindGame:    "/game-orders",
	model.OrderKindRepair:  "/repair-orders",
	model.OrderKindProduct: "/orders",
	model.OrderKindCourse:  "/course-orders",
}

type OrderHandler struct {
	games    GameOrderService
	repairs  RepairOrderService
	products ProductOrderService
	courses  CourseOrderService
}

func RegisterOrderRoutes(e *router.Group, h *OrderHandler) {
	e.POST(orderPaths[model.OrderKindGame], h.CreateGameOrder)
	e.GET(orderPaths[model.OrderKindGame]+"/{id}", h.GetGameOrder)
	e.POST(orderPaths[model.OrderKindGame]+"/{id}/transition", h.TransitionGameOrder)

	e.POST(orderPaths[model.OrderKindRepair], h.CreateRepairOrder)
	e.GET(orderPaths[model.OrderKindRepair]+"/{id}", h.GetRepairOrder)
	e.POST(orderPaths[model.OrderKindRepair]+"/{id}/transition", h.TransitionRepairOrder)

	e.POST(orderPaths[model.OrderKindProduct], h.CreateProductOrder)
	e.GET(orderPaths[model.OrderKindProduct]+"/{id}", h.GetProductOrder)

	e.POST(orderPaths[model.OrderKindCourse], h.CreateCourseOrder)
	e.GET(orderPaths[model.OrderKindCourse]+"/{id}", h.GetCourseOrder)

	e.GET(orderPaths[model.OrderKindGame]+"/{id}/amount", h.GameOrderAmount)
	e.GET(orderPaths[model.OrderKindRepair]+"/{id}/amount", h.RepairOrderAmount)
	e.GET(orderPaths[model.OrderKindProduct]+"/{id}/amount", h.ProductOrderAmount)
	e.GET(orderPaths[model.OrderKindCourse]+"/{id}/amount", h.CourseOrderAmount)
}

func NewOrderHandler(games GameOrderService, repairs RepairOrderService, products ProductOrderService, courses CourseOrderService) *OrderHandler {
	return &OrderHandler{
		games:    games,
		repairs:  repairs,
		products: products,
		courses:  courses,
	}
}

/* ------------------------------- game orders -------------------------------- */

func (h *OrderHandler) CreateGameOrder(ctx *xhttp.RequestCtx) {
	actor, err := actorFrom(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.GameOrderCreateRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	o, err := h.games.Create(ctx, actor, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 201, o)
}

func (h *OrderHandler) TransitionGameOrder(ctx *xhttp.RequestCtx) {
	actor, id, err := actorAndID(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.GameOrderTransitionRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	o, err := h.games.Transition(ctx, actor, id, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, o)
}

func (h *OrderHandler) GetGameOrder(ctx *xhttp.RequestCtx) {
	getByID(ctx, h.games.Get)
}

/* ------------------------------ repair orders ------------------------------- */

func (h *OrderHandler) CreateRepairOrder(ctx *xhttp.RequestCtx) {
	actor, err := actorFrom(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.RepairOrderCreateRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	o, err := h.repairs.Create(ctx, actor, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 201, o)
}

func (h *OrderHandler) TransitionRepairOrder(ctx *xhttp.RequestCtx) {
	actor, id, err := actorAndID(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.RepairOrderTransitionRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	o, err := h.repairs.Transition(ctx, actor, id, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, o)
}

func (h *OrderHandler) GetRepairOrder(ctx *xhttp.RequestCtx) {
	getByID(ctx, h.repairs.Get)
}

/* ----------------------------- product / course ----------------------------- */

func (h *OrderHandler) CreateProductOrder(ctx *xhttp.RequestCtx) {
	actor, err := actorFrom(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.ProductOrderCreateRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	o, err := h.products.Create(ctx, actor, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 201, o)
}

func (h *OrderHandler) GetProductOrder(ctx *xhttp.RequestCtx) {
	getByID(ctx, h.products.Get)
}

func (h *OrderHandler) CreateCourseOrder(ctx *xhttp.RequestCtx) {
	actor, err := actorFrom(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var req model.CourseOrderCreateRequest
	if err := bind(ctx, &req); err != nil {
		writeError(ctx, err)
		return
	}
	o, err := h.courses.Create(ctx, actor, req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 201, o)
}

func (h *OrderHandler) GetCourseOrder(ctx *xhttp.RequestCtx) {
	getByID(ctx, h.courses.Get)
}

/* ---------------------------------- amounts --------------------------------- */

type orderAmountResponse struct {
	Kind   model.OrderKind `json:"kind"`
	ID     int64           `json:"id"`
	Amount int64           `json:"amount"`
}

func (h *OrderHandler) GameOrderAmount(ctx *xhttp.RequestCtx) {
	amountByID(ctx, model.OrderKindGame, h.games.CurrentAmount)
}

func (h *OrderHandler) RepairOrderAmount(ctx *xhttp.RequestCtx) {
	amountByID(ctx, model.OrderKindRepair, h.repairs.CurrentAmount)
}

func (h *OrderHandler) ProductOrderAmount(ctx *xhttp.RequestCtx) {
	amountByID(ctx, model.OrderKindProduct, h.products.CurrentAmount)
}

func (h *OrderHandler) CourseOrderAmount(ctx *xhttp.RequestCtx) {
	amountByID(ctx, model.OrderKindCourse, h.courses.CurrentAmount)
}

// amountByID reports the order amount as it stands now.
func amountByID(ctx *xhttp.RequestCtx, kind model.OrderKind, current func(context.Context, int64) (int64, error)) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	amount, err := current(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, orderAmountResponse{Kind: kind, ID: id, Amount: amount})
}

func actorAndID(ctx *xhttp.RequestCtx) (model.Actor, int64, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return model.Actor{}, 0, err
	}
	id, err := pathID(ctx, "id")
	if err != nil {
		return model.Actor{}, 0, err
	}
	return actor, id, nil
}

func getByID[T any](ctx *xhttp.RequestCtx, get func(context.Context, int64) (T, error)) {
	id, err := pathID(ctx, "id")
	if err != nil {
		writeError(ctx, err)
		return
	}
	v, err := get(ctx, id)
	if err != nil {
		writeError(ctx, err)
		return
	}
	writeJSON(ctx, 200, v)
}
