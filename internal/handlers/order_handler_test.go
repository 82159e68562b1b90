package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockGameOrderService struct {
	mock.Mock
}

func (m *MockGameOrderService) Create(ctx context.Context, actor model.Actor, req model.GameOrderCreateRequest) (*model.GameOrder, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GameOrder), args.Error(1)
}

func (m *MockGameOrderService) Transition(ctx context.Context, actor model.Actor, id int64, req model.GameOrderTransitionRequest) (*model.GameOrder, error) {
	args := m.Called(ctx, actor, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GameOrder), args.Error(1)
}

func (m *MockGameOrderService) Get(ctx context.Context, id int64) (*model.GameOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GameOrder), args.Error(1)
}

func (m *MockGameOrderService) CurrentAmount(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type MockRepairOrderService struct {
	mock.Mock
}

func (m *MockRepairOrderService) Create(ctx context.Context, actor model.Actor, req model.RepairOrderCreateRequest) (*model.RepairOrder, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RepairOrder), args.Error(1)
}

func (m *MockRepairOrderService) Transition(ctx context.Context, actor model.Actor, id int64, req model.RepairOrderTransitionRequest) (*model.RepairOrder, error) {
	args := m.Called(ctx, actor, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RepairOrder), args.Error(1)
}

func (m *MockRepairOrderService) Get(ctx context.Context, id int64) (*model.RepairOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RepairOrder), args.Error(1)
}

func (m *MockRepairOrderService) CurrentAmount(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type MockProductOrderService struct {
	mock.Mock
}

func (m *MockProductOrderService) Create(ctx context.Context, actor model.Actor, req model.ProductOrderCreateRequest) (*model.Order, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockProductOrderService) Get(ctx context.Context, id int64) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockProductOrderService) CurrentAmount(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type MockCourseOrderService struct {
	mock.Mock
}

func (m *MockCourseOrderService) Create(ctx context.Context, actor model.Actor, req model.CourseOrderCreateRequest) (*model.CourseOrder, error) {
	args := m.Called(ctx, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CourseOrder), args.Error(1)
}

func (m *MockCourseOrderService) Get(ctx context.Context, id int64) (*model.CourseOrder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CourseOrder), args.Error(1)
}

func (m *MockCourseOrderService) CurrentAmount(ctx context.Context, id int64) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type orderMocks struct {
	games    *MockGameOrderService
	repairs  *MockRepairOrderService
	products *MockProductOrderService
	courses  *MockCourseOrderService
}

func newOrderHandler() (*OrderHandler, orderMocks) {
	m := orderMocks{
		games:    new(MockGameOrderService),
		repairs:  new(MockRepairOrderService),
		products: new(MockProductOrderService),
		courses:  new(MockCourseOrderService),
	}
	return NewOrderHandler(m.games, m.repairs, m.products, m.courses), m
}

func TestOrderHandler_CreateGameOrder(t *testing.T) {
	t.Run("passes the actor through", func(t *testing.T) {
		h, m := newOrderHandler()
		actor := model.Actor{Role: model.RoleEmployee, ID: 4}
		m.games.On("Create", mock.Anything, actor, mock.MatchedBy(func(r model.GameOrderCreateRequest) bool {
			return r.CustomerID == 7 && r.ConsoleType == model.ConsoleOnlinePS5 && len(r.GameIDs) == 2
		})).Return(&model.GameOrder{ID: 1, CustomerID: 7, Amount: 800, Charged: 800}, nil)

		body := []byte(`{"customer_id":7,"console_type":"online_ps5","game_ids":[1,2]}`)
		ctx := withActor(setupTestContext("POST", "/game-orders", body), model.RoleEmployee, 4)
		h.CreateGameOrder(ctx)

		require.Equal(t, 201, ctx.Response.StatusCode())
		var o model.GameOrder
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &o))
		assert.Equal(t, int64(800), o.Charged)
		m.games.AssertExpectations(t)
	})

	t.Run("no actor", func(t *testing.T) {
		h, m := newOrderHandler()
		ctx := setupTestContext("POST", "/game-orders", []byte(`{"customer_id":7,"console_type":"online_ps5","game_ids":[1]}`))
		h.CreateGameOrder(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Equal(t, "actor", decodeError(t, ctx).Field)
		m.games.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("empty game list", func(t *testing.T) {
		h, m := newOrderHandler()
		ctx := withActor(setupTestContext("POST", "/game-orders", []byte(`{"customer_id":7,"console_type":"online_ps5","game_ids":[]}`)), model.RoleCustomer, 7)
		h.CreateGameOrder(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Equal(t, "game_ids", decodeError(t, ctx).Field)
		m.games.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unpriced console", func(t *testing.T) {
		h, m := newOrderHandler()
		m.games.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, model.PricingError("game_ids", "game 2 has no price for xbox"))

		ctx := withActor(setupTestContext("POST", "/game-orders", []byte(`{"customer_id":7,"console_type":"xbox","game_ids":[2]}`)), model.RoleCustomer, 7)
		h.CreateGameOrder(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		assert.Equal(t, "pricing_error", decodeError(t, ctx).Kind)
	})
}

func TestOrderHandler_TransitionGameOrder(t *testing.T) {
	h, m := newOrderHandler()
	actor := model.Actor{Role: model.RoleEmployee, ID: 2}
	m.games.On("Transition", mock.Anything, actor, int64(12), mock.MatchedBy(func(r model.GameOrderTransitionRequest) bool {
		return r.Status == model.GameDeliveredToCustomer
	})).Return(nil, model.StateConflict("status", "delivered_to_customer is reachable only from done"))

	ctx := withActor(setupTestContext("POST", "/game-orders/12/transition", []byte(`{"status":"delivered_to_customer"}`)), model.RoleEmployee, 2)
	ctx.SetUserValue("id", "12")
	h.TransitionGameOrder(ctx)

	assert.Equal(t, 409, ctx.Response.StatusCode())
	m.games.AssertExpectations(t)
}

func TestOrderHandler_TransitionRepairOrder(t *testing.T) {
	h, m := newOrderHandler()
	actor := model.Actor{Role: model.RoleRepairman, ID: 3}
	fee := int64(400)
	m.repairs.On("Transition", mock.Anything, actor, int64(5), model.RepairOrderTransitionRequest{
		Status:       model.RepairWaitingForAmount,
		RepairmanFee: &fee,
	}).Return(&model.RepairOrder{ID: 5, Status: model.RepairWaitingForAmount, RepairmanFee: &fee}, nil)

	ctx := withActor(setupTestContext("POST", "/repair-orders/5/transition", []byte(`{"status":"waiting_for_amount","repairman_fee":400}`)), model.RoleRepairman, 3)
	ctx.SetUserValue("id", "5")
	h.TransitionRepairOrder(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())
	m.repairs.AssertExpectations(t)
}

func TestOrderHandler_Get(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		h, m := newOrderHandler()
		m.products.On("Get", mock.Anything, int64(99)).Return(nil, model.NotFound("order", int64(99)))

		ctx := setupTestContext("GET", "/orders/99", nil)
		ctx.SetUserValue("id", "99")
		h.GetProductOrder(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("course order", func(t *testing.T) {
		h, m := newOrderHandler()
		m.courses.On("Get", mock.Anything, int64(3)).Return(&model.CourseOrder{ID: 3, Amount: 1000000}, nil)

		ctx := setupTestContext("GET", "/course-orders/3", nil)
		ctx.SetUserValue("id", "3")
		h.GetCourseOrder(ctx)

		require.Equal(t, 200, ctx.Response.StatusCode())
		var o model.CourseOrder
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &o))
		assert.Equal(t, int64(1000000), o.Amount)
	})
}

func TestOrderHandler_CurrentAmount(t *testing.T) {
	t.Run("repair order without an agreed amount", func(t *testing.T) {
		h, m := newOrderHandler()
		m.repairs.On("CurrentAmount", mock.Anything, int64(5)).Return(int64(0), nil)

		ctx := setupTestContext("GET", "/repair-orders/5/amount", nil)
		ctx.SetUserValue("id", "5")
		h.RepairOrderAmount(ctx)

		require.Equal(t, 200, ctx.Response.StatusCode())
		var got orderAmountResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, orderAmountResponse{Kind: model.OrderKindRepair, ID: 5}, got)
	})

	t.Run("game order", func(t *testing.T) {
		h, m := newOrderHandler()
		m.games.On("CurrentAmount", mock.Anything, int64(12)).Return(int64(1800), nil)

		ctx := setupTestContext("GET", "/game-orders/12/amount", nil)
		ctx.SetUserValue("id", "12")
		h.GameOrderAmount(ctx)

		require.Equal(t, 200, ctx.Response.StatusCode())
		var got orderAmountResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &got))
		assert.Equal(t, int64(1800), got.Amount)
		m.games.AssertExpectations(t)
	})

	t.Run("missing product order", func(t *testing.T) {
		h, m := newOrderHandler()
		m.products.On("CurrentAmount", mock.Anything, int64(99)).Return(int64(0), model.NotFound("order", int64(99)))

		ctx := setupTestContext("GET", "/orders/99/amount", nil)
		ctx.SetUserValue("id", "99")
		h.ProductOrderAmount(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("bad id", func(t *testing.T) {
		h, m := newOrderHandler()

		ctx := setupTestContext("GET", "/course-orders/x/amount", nil)
		ctx.SetUserValue("id", "x")
		h.CourseOrderAmount(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		m.courses.AssertNotCalled(t, "CurrentAmount", mock.Anything, mock.Anything)
	})
}
