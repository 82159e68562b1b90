package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	gateway "github.com/nimasrn/drgame-ledger/internal/gateways"
	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/processor"
	"github.com/nimasrn/drgame-ledger/internal/repository"
	"github.com/nimasrn/drgame-ledger/internal/services"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"github.com/nimasrn/drgame-ledger/test/helpers"
	"github.com/stretchr/testify/require"
)

const shopLabel = "DrGame"

// fakeGateway issues sequential authorities; errors are switched per test.
type fakeGateway struct {
	mu         sync.Mutex
	seq        int
	requestErr error
	verifyErr  error
	verified   []string
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) RequestPayment(_ context.Context, req gateway.PaymentRequest) (*gateway.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	f.seq++
	authority := fmt.Sprintf("A%08d", f.seq)
	return &gateway.PaymentSession{
		Authority:  authority,
		PaymentURL: "https://pay.test/StartPay/" + authority,
		Metadata:   map[string]any{"reference": req.Reference},
	}, nil
}

func (f *fakeGateway) VerifyPayment(_ context.Context, authority string, _ int64) (*gateway.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	f.verified = append(f.verified, authority)
	return &gateway.Verification{RefID: "ref-" + authority}, nil
}

func (f *fakeGateway) failRequests(err error) {
	f.mu.Lock()
	f.requestErr = err
	f.mu.Unlock()
}

func (f *fakeGateway) failVerify(err error) {
	f.mu.Lock()
	f.verifyErr = err
	f.mu.Unlock()
}

// recordingPublisher keeps every published notification.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (p *recordingPublisher) PublishJSON(_ context.Context, data interface{}, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, data.(model.Notification))
	return fmt.Sprintf("%d-0", len(p.sent)), nil
}

func (p *recordingPublisher) events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, n := range p.sent {
		out[i] = n.Event
	}
	return out
}

type env struct {
	db        *pg.DB
	catalog   *repository.CatalogRepository
	gw        *fakeGateway
	published *recordingPublisher

	games    *services.GameOrderService
	repairs  *services.RepairOrderService
	products *services.ProductOrderService
	courses  *services.CourseOrderService
	txns     *services.TransactionService
	methods  *services.PaymentMethodService
	payments *services.PaymentService
	reports  *services.ReportService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := helpers.SetupTestDB(t)
	_, redisAdapter := helpers.SetupTestRedis(t)

	guardCfg := processor.DefaultIdempotencyConfig()
	guardCfg.MaxRetries = 0
	guard := processor.NewIdempotencyService(redisAdapter, guardCfg)

	customers := repository.NewCustomerRepository(db)
	employees := repository.NewEmployeeRepository(db)
	repairmen := repository.NewRepairmanRepository(db)
	methodRepo := repository.NewPaymentMethodRepository(db)
	txnRepo := repository.NewTransactionRepository(db)
	catalog := repository.NewCatalogRepository(db)
	poster := ledger.NewPoster(db)

	published := &recordingPublisher{}
	notifier := services.NewNotifier(published, model.ChannelTelegram)

	e := &env{db: db, catalog: catalog, gw: &fakeGateway{}, published: published}
	e.games = services.NewGameOrderService(db, repository.NewGameOrderRepository(db), customers, employees, catalog, poster, notifier)
	e.repairs = services.NewRepairOrderService(db, repository.NewRepairOrderRepository(db), customers, repairmen, poster, notifier)
	e.products = services.NewProductOrderService(db, repository.NewProductOrderRepository(db), customers, catalog, poster, notifier)
	e.courses = services.NewCourseOrderService(db, repository.NewCourseOrderRepository(db), customers, poster, notifier)

	settlers := services.NewSettlers(e.games, e.repairs, e.products, e.courses)
	e.txns = services.NewTransactionService(db, txnRepo, methodRepo, poster, settlers, shopLabel, notifier)
	e.methods = services.NewPaymentMethodService(db, methodRepo)
	e.payments = services.NewPaymentService(db, txnRepo, methodRepo, customers, settlers, e.gw, guard, poster, shopLabel, notifier)
	e.reports = services.NewReportService(methodRepo, customers, employees, repairmen, txnRepo)
	return e
}

func (e *env) game(t *testing.T, prices map[model.ConsoleType]int64) int64 {
	t.Helper()
	g, err := e.catalog.CreateGame(context.Background(), &model.Game{Title: "game", Prices: prices})
	require.NoError(t, err)
	return g.ID
}

func (e *env) product(t *testing.T, price int64) int64 {
	t.Helper()
	p, err := e.catalog.CreateProduct(context.Background(), &model.Product{Title: "controller", Price: price})
	require.NoError(t, err)
	return p.ID
}

func (e *env) balance(t *testing.T, table string, id int64) int64 {
	t.Helper()
	return helpers.Balance(t, e.db, table, id)
}

func (e *env) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Read(context.Background()).Table(table).Count(&n).Error)
	return n
}

func customerActor(id int64) model.Actor  { return model.Actor{Role: model.RoleCustomer, ID: id} }
func employeeActor(id int64) model.Actor  { return model.Actor{Role: model.RoleEmployee, ID: id} }
func repairmanActor(id int64) model.Actor { return model.Actor{Role: model.RoleRepairman, ID: id} }
