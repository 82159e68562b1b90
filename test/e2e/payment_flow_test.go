package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	gateway "github.com/nimasrn/drgame-ledger/internal/gateways"
	"github.com/nimasrn/drgame-ledger/internal/handlers"
	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/processor"
	"github.com/nimasrn/drgame-ledger/internal/queue"
	"github.com/nimasrn/drgame-ledger/internal/repository"
	"github.com/nimasrn/drgame-ledger/internal/services"
	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"github.com/nimasrn/drgame-ledger/test/fixtures"
	"github.com/nimasrn/drgame-ledger/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

const startPayURL = "http://zarinpal.test/pg/StartPay/"

// recordingSender collects delivered notifications.
type recordingSender struct {
	channel model.NotificationChannel
	mu      sync.Mutex
	sent    []model.Notification
}

func (s *recordingSender) Channel() model.NotificationChannel { return s.channel }

func (s *recordingSender) Send(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSender) has(event, recipient string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.sent {
		if n.Event == event && (recipient == "" || n.Recipient == recipient) {
			return true
		}
	}
	return false
}

// fakeZarinpal answers request and verify; every authority it issued verifies once as 100.
type fakeZarinpal struct {
	mu       sync.Mutex
	seq      int
	amounts  map[string]int64
	verified map[string]bool
}

func (z *fakeZarinpal) handle(ctx *fasthttp.RequestCtx) {
	z.mu.Lock()
	defer z.mu.Unlock()

	var body struct {
		Amount    int64  `json:"amount"`
		Authority string `json:"authority"`
	}
	_ = json.Unmarshal(ctx.PostBody(), &body)

	var data map[string]any
	switch string(ctx.Path()) {
	case "/pg/v4/payment/request.json":
		z.seq++
		authority := fmt.Sprintf("A%035d", z.seq)
		z.amounts[authority] = body.Amount
		data = map[string]any{"code": 100, "message": "Success", "authority": authority, "fee": 0}
	case "/pg/v4/payment/verify.json":
		amount, ok := z.amounts[body.Authority]
		switch {
		case !ok:
			writeGatewayError(ctx, -11, "Request not found.")
			return
		case amount != body.Amount:
			writeGatewayError(ctx, -50, "Session is not valid, amounts values is not the same.")
			return
		}
		code := 100
		if z.verified[body.Authority] {
			code = 101
		}
		z.verified[body.Authority] = true
		data = map[string]any{"code": code, "message": "Paid", "ref_id": 201 + len(z.verified), "card_pan": "502229******5995"}
	default:
		ctx.SetStatusCode(404)
		return
	}
	b, _ := json.Marshal(map[string]any{"data": data, "errors": []any{}})
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}

func writeGatewayError(ctx *fasthttp.RequestCtx, code int, msg string) {
	b, _ := json.Marshal(map[string]any{"data": []any{}, "errors": map[string]any{"code": code, "message": msg}})
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}

type environment struct {
	db       *pg.DB
	catalog  fixtures.Catalog
	client   *fasthttp.Client
	telegram *recordingSender
	sms      *recordingSender
}

func inmemory(t *testing.T, handler fasthttp.RequestHandler) func(string) (net.Conn, error) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })
	return func(string) (net.Conn, error) { return ln.Dial() }
}

// setupEnvironment wires the api the way cmd/api does, with sqlite, miniredis, an
// in-memory Zarinpal and a notification processor draining the stream.
func setupEnvironment(t *testing.T) *environment {
	t.Helper()
	db := helpers.SetupTestDB(t)
	_, adapter := helpers.SetupTestRedis(t)

	qcfg := queue.QueueConfig{
		Name:          "notifications",
		ConsumerGroup: "notifiers",
		ConsumerName:  "e2e",
		PollInterval:  10 * time.Millisecond,
	}
	notifications, err := queue.NewQueue(context.Background(), adapter, qcfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = notifications.Stop(time.Second) })
	notifier := services.NewNotifier(notifications, model.ChannelTelegram)

	zp := &fakeZarinpal{amounts: map[string]int64{}, verified: map[string]bool{}}
	payGateway := gateway.NewZarinpalClient(gateway.Config{
		MerchantID:  "e2e-merchant",
		BaseURL:     "http://zarinpal.test/pg/v4",
		StartPayURL: startPayURL,
		CallbackURL: "http://shop.test/api/v1/payments/callback",
		Timeout:     time.Second,
		RetryDelay:  time.Millisecond,
		Dial:        inmemory(t, zp.handle),
	})

	guardCfg := processor.DefaultIdempotencyConfig()
	guardCfg.MaxRetries = 0
	guard := processor.NewIdempotencyService(adapter, guardCfg)

	customerRepo := repository.NewCustomerRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	repairmanRepo := repository.NewRepairmanRepository(db)
	methodRepo := repository.NewPaymentMethodRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	poster := ledger.NewPoster(db)

	gameOrders := services.NewGameOrderService(db, repository.NewGameOrderRepository(db), customerRepo, employeeRepo, catalogRepo, poster, notifier)
	repairOrders := services.NewRepairOrderService(db, repository.NewRepairOrderRepository(db), customerRepo, repairmanRepo, poster, notifier)
	productOrders := services.NewProductOrderService(db, repository.NewProductOrderRepository(db), customerRepo, catalogRepo, poster, notifier)
	courseOrders := services.NewCourseOrderService(db, repository.NewCourseOrderRepository(db), customerRepo, poster, notifier)
	settlers := services.NewSettlers(gameOrders, repairOrders, productOrders, courseOrders)

	transactionService := services.NewTransactionService(db, transactionRepo, methodRepo, poster, settlers, "shop", notifier)
	methodService := services.NewPaymentMethodService(db, methodRepo)
	paymentService := services.NewPaymentService(db, transactionRepo, methodRepo, customerRepo, settlers, payGateway, guard, poster, "shop", notifier)
	reportService := services.NewReportService(methodRepo, customerRepo, employeeRepo, repairmanRepo, transactionRepo)

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.TimeoutMiddleware(5 * time.Second))

	g := s.Router.Group("/api/v1")
	handlers.RegisterPaymentMethodRoutes(g, handlers.NewPaymentMethodHandler(methodService))
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(transactionService))
	handlers.RegisterOrderRoutes(g, handlers.NewOrderHandler(gameOrders, repairOrders, productOrders, courseOrders))
	handlers.RegisterPaymentRoutes(g, handlers.NewPaymentHandler(paymentService, transactionService, ""))
	handlers.RegisterReportRoutes(g, handlers.NewReportHandler(reportService, poster))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(map[string]handlers.Pinger{
		"postgres": db,
		"redis":    adapter,
	}, payGateway))
	s.DoRouting()

	telegram := &recordingSender{channel: model.ChannelTelegram}
	sms := &recordingSender{channel: model.ChannelSMS}
	workers := processor.NewProcessorService(adapter, processor.ServiceConfig{Queue: qcfg, Consumers: 1, Workers: 2},
		processor.NewNotificationProcessor(processor.NewIdempotencyService(adapter, processor.DefaultIdempotencyConfig()),
			processor.NewServiceMetrics(), telegram, sms))
	require.NoError(t, workers.Start())
	t.Cleanup(workers.Stop)

	return &environment{
		db:       db,
		catalog:  fixtures.SeedCatalog(t, db),
		client:   &fasthttp.Client{Dial: inmemory(t, s.Server.Handler)},
		telegram: telegram,
		sms:      sms,
	}
}

// call sends a JSON request to the api, acting as actor when it is non-nil.
func (e *environment) call(t *testing.T, method, path string, actor *model.Actor, body any, out any) int {
	t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://drgame.test/api/v1" + path)
	if actor != nil {
		req.Header.Set("X-Actor-Role", string(actor.Role))
		req.Header.Set("X-Actor-Id", strconv.FormatInt(actor.ID, 10))
	}
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req.Header.SetContentType("application/json")
		req.SetBody(b)
	}
	require.NoError(t, e.client.DoTimeout(req, resp, 5*time.Second))

	if out != nil && len(resp.Body()) > 0 {
		require.NoError(t, json.Unmarshal(resp.Body(), out), string(resp.Body()))
	}
	return resp.StatusCode()
}

type txnView struct {
	ID     int64                   `json:"id"`
	Status model.TransactionStatus `json:"status"`
	Amount int64                   `json:"amount"`
	RefID  string                  `json:"ref_id"`
}

func manager() *model.Actor { return &model.Actor{Role: model.RoleMainManager, ID: 1} }

func TestCoursePayment_SettlesThroughGateway(t *testing.T) {
	env := setupEnvironment(t)
	customerID := helpers.CreateCustomer(t, env.db, 100, 0)
	customer := &model.Actor{Role: model.RoleCustomer, ID: customerID}

	var pm model.PaymentMethod
	require.Equal(t, 201, env.call(t, "POST", "/payment-methods", manager(),
		model.PaymentMethodRequest{Title: "zarinpal", IsOnline: true}, &pm))

	var order model.CourseOrder
	require.Equal(t, 201, env.call(t, "POST", "/course-orders", customer,
		model.CourseOrderCreateRequest{CustomerID: customerID}, &order))
	assert.Equal(t, model.DefaultCourseAmount, order.Charged)
	assert.Equal(t, -model.DefaultCourseAmount, helpers.Balance(t, env.db, "customers", customerID))

	var session services.PaymentResult
	require.Equal(t, 200, env.call(t, "POST", fmt.Sprintf("/course-orders/%d/request-payment", order.ID), customer, nil, &session))
	assert.Equal(t, model.DefaultCourseAmount, session.Amount)
	assert.Equal(t, startPayURL+session.Authority, session.PaymentURL)

	var again map[string]any
	assert.Equal(t, 409, env.call(t, "POST", fmt.Sprintf("/course-orders/%d/request-payment", order.ID), customer, nil, &again),
		"a waiting payment blocks a second request")

	callback := "/payments/callback?Status=OK&Authority=" + session.Authority
	var txn txnView
	require.Equal(t, 200, env.call(t, "GET", callback, nil, nil, &txn))
	assert.Equal(t, model.TransactionPaid, txn.Status)
	assert.Equal(t, session.TransactionID, txn.ID)
	assert.NotEmpty(t, txn.RefID)

	assert.Equal(t, int64(0), helpers.Balance(t, env.db, "customers", customerID))
	assert.Equal(t, model.DefaultCourseAmount, helpers.Balance(t, env.db, "payment_methods", pm.ID))

	stored, err := repository.NewCustomerRepository(env.db).GetByID(context.Background(), customerID)
	require.NoError(t, err)
	assert.True(t, stored.HasAccessToCourse)

	var paid model.CourseOrder
	require.Equal(t, 200, env.call(t, "GET", fmt.Sprintf("/course-orders/%d", order.ID), customer, nil, &paid))
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)

	// a replayed callback changes nothing
	var replay txnView
	require.Equal(t, 200, env.call(t, "GET", callback, nil, nil, &replay))
	assert.Equal(t, model.TransactionPaid, replay.Status)
	assert.Equal(t, model.DefaultCourseAmount, helpers.Balance(t, env.db, "payment_methods", pm.ID))
	assert.Equal(t, int64(2), helpers.JournalCount(t, env.db, "transaction_settled"))

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		return env.sms.has("payment_settled", "09120000000") && env.telegram.has("payment_settled", "")
	}, "settlement notifications were not delivered")
}

func TestCoursePayment_FailedCallbackRefundsAndDeletes(t *testing.T) {
	env := setupEnvironment(t)
	customerID := helpers.CreateCustomer(t, env.db, 100, 500_000)
	helpers.CreatePaymentMethod(t, env.db, "zarinpal", true, 0)
	customer := &model.Actor{Role: model.RoleCustomer, ID: customerID}

	var order model.CourseOrder
	require.Equal(t, 201, env.call(t, "POST", "/course-orders", customer,
		model.CourseOrderCreateRequest{CustomerID: customerID}, &order))
	assert.Equal(t, 500_000-model.DefaultCourseAmount, helpers.Balance(t, env.db, "customers", customerID))

	var session services.PaymentResult
	require.Equal(t, 200, env.call(t, "POST", fmt.Sprintf("/course-orders/%d/request-payment", order.ID), customer, nil, &session))

	var txn txnView
	require.Equal(t, 200, env.call(t, "GET", "/payments/callback?Status=NOK&Authority="+session.Authority, nil, nil, &txn))
	assert.Equal(t, model.TransactionFailed, txn.Status)

	assert.Equal(t, int64(500_000), helpers.Balance(t, env.db, "customers", customerID))
	assert.Equal(t, 404, env.call(t, "GET", fmt.Sprintf("/course-orders/%d", order.ID), customer, nil, nil))

	// OK arriving after NOK cannot resurrect the payment
	assert.Equal(t, 200, env.call(t, "GET", "/payments/callback?Status=OK&Authority="+session.Authority, nil, nil, &txn))
	assert.Equal(t, model.TransactionFailed, txn.Status)
	assert.Equal(t, int64(500_000), helpers.Balance(t, env.db, "customers", customerID))

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		return env.sms.has("payment_failed", "09120000000")
	}, "failure sms was not delivered")
}

func TestGameOrder_LifecycleWithCommissionAndCashPayment(t *testing.T) {
	env := setupEnvironment(t)
	customerID := helpers.CreateCustomer(t, env.db, 100, 0)
	employeeID := helpers.CreateEmployee(t, env.db, 10, 0)
	cashID := helpers.CreatePaymentMethod(t, env.db, "cash", false, 0)
	employee := &model.Actor{Role: model.RoleEmployee, ID: employeeID}
	price := fixtures.GameFC25.Prices[model.ConsoleOnlinePS5]

	var order model.GameOrder
	require.Equal(t, 201, env.call(t, "POST", "/game-orders", employee, model.GameOrderCreateRequest{
		CustomerID:  customerID,
		ConsoleType: model.ConsoleOnlinePS5,
		GameIDs:     []int64{env.catalog.FC25},
	}, &order))
	assert.Equal(t, model.GameDeliveredToDrGame, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, price, order.Amount)
	assert.Equal(t, -price, helpers.Balance(t, env.db, "customers", customerID))

	var errResp map[string]any
	assert.Equal(t, 400, env.call(t, "POST", "/game-orders", employee, model.GameOrderCreateRequest{
		CustomerID:  customerID,
		ConsoleType: model.ConsoleOnlinePS5,
		GameIDs:     []int64{env.catalog.XboxOnly},
	}, &errResp), "a game without a price for the console is rejected")

	transition := fmt.Sprintf("/game-orders/%d/transition", order.ID)
	claim := model.GameOrderTransitionRequest{
		Status: model.GameDeliveredToDrGame,
		Items: []model.GameItemUpdate{{
			ItemID:             order.Items[0].ID,
			Account:            helpers.Ptr(true),
			ClaimAccountSetter: true,
		}},
	}
	var claimed model.GameOrder
	require.Equal(t, 200, env.call(t, "POST", transition, employee, claim, &claimed))
	require.NotNil(t, claimed.Items[0].AccountSetterID)
	assert.Equal(t, employeeID, *claimed.Items[0].AccountSetterID)
	assert.True(t, claimed.Items[0].Account)

	assert.Equal(t, 409, env.call(t, "POST", transition, employee,
		model.GameOrderTransitionRequest{Status: model.GameDeliveredToCustomer}, &errResp),
		"delivery requires done")

	var done model.GameOrder
	require.Equal(t, 200, env.call(t, "POST", transition, employee,
		model.GameOrderTransitionRequest{Status: model.GameDone}, &done))
	assert.Equal(t, model.GameDone, done.Status)
	assert.Equal(t, price/10, helpers.Balance(t, env.db, "employees", employeeID))

	assert.Equal(t, 409, env.call(t, "POST", transition, employee, model.GameOrderTransitionRequest{
		Status: model.GameDone,
		Items:  []model.GameItemUpdate{{ItemID: order.Items[0].ID, Amount: helpers.Ptr(int64(1))}},
	}, &errResp), "items are locked once done")

	require.Equal(t, 200, env.call(t, "POST", transition, employee,
		model.GameOrderTransitionRequest{Status: model.GameDeliveredToCustomer}, &done))

	var txn txnView
	require.Equal(t, 201, env.call(t, "POST", fmt.Sprintf("/game-orders/%d/record-payment", order.ID), employee,
		map[string]int64{"payment_method_id": cashID}, &txn))
	assert.Equal(t, price, txn.Amount)
	assert.Equal(t, model.TransactionPaid, txn.Status)

	assert.Equal(t, int64(0), helpers.Balance(t, env.db, "customers", customerID))
	assert.Equal(t, price, helpers.Balance(t, env.db, "payment_methods", cashID))

	var paid model.GameOrder
	require.Equal(t, 200, env.call(t, "GET", fmt.Sprintf("/game-orders/%d", order.ID), employee, nil, &paid))
	assert.Equal(t, model.PaymentPaid, paid.PaymentStatus)

	assert.Equal(t, 409, env.call(t, "POST", fmt.Sprintf("/game-orders/%d/record-payment", order.ID), employee,
		map[string]int64{"payment_method_id": cashID}, &errResp), "a paid order cannot be paid again")

	var report model.FinanceSummary
	require.Equal(t, 200, env.call(t, "GET", "/reports/finance", manager(), nil, &report))
	assert.Equal(t, price, report.PaymentMethodTotal)
	assert.Equal(t, price/10, report.EmployeeCredit)
	assert.Equal(t, int64(0), report.CustomerDebt)
	assert.Equal(t, price-price/10, report.NetBalance)

	var journal struct {
		Items []ledger.Entry `json:"items"`
	}
	require.Equal(t, 200, env.call(t, "GET", fmt.Sprintf("/reports/journal/employee/%d", employeeID), manager(), nil, &journal))
	require.Len(t, journal.Items, 1)
	assert.Equal(t, "commission", journal.Items[0].Reason)
	assert.Equal(t, price/10, journal.Items[0].Delta)

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		return env.telegram.has("game_order_created", "") && env.telegram.has("game_order_status", "")
	}, "order notifications were not delivered")
}

func TestHealth_ReportsDependencies(t *testing.T) {
	env := setupEnvironment(t)

	var body map[string]any
	require.Equal(t, 200, env.call(t, "GET", "/health", nil, nil, &body))
	assert.Equal(t, "ok", body["status"])
	assert.True(t, strings.Contains(fmt.Sprint(body["checks"]), "postgres"))
}
