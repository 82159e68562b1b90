package main

import (
	"context"
	"os"
	"time"

	"github.com/nimasrn/drgame-ledger/internal/config"
	gateway "github.com/nimasrn/drgame-ledger/internal/gateways"
	"github.com/nimasrn/drgame-ledger/internal/handlers"
	"github.com/nimasrn/drgame-ledger/internal/ledger"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/processor"
	"github.com/nimasrn/drgame-ledger/internal/queue"
	"github.com/nimasrn/drgame-ledger/internal/repository"
	"github.com/nimasrn/drgame-ledger/internal/services"
	xhttp "github.com/nimasrn/drgame-ledger/pkg/http"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
	"github.com/nimasrn/drgame-ledger/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(config.EnvPathFromArgs(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter(cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: cfg.AppName,
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)

	// notifications are best effort: without the stream the api still serves
	var notifier *services.Notifier
	notifications, err := queue.NewQueue(context.Background(), redisAdap, queue.QueueConfig{
		Name:          cfg.QueueName,
		ConsumerGroup: cfg.QueueConsumerGroup,
		MaxLen:        cfg.QueueMaxLen,
	})
	if err != nil {
		logger.Error("failed creating notification queue", "error", err)
	} else {
		notifier = services.NewNotifier(notifications, model.ChannelTelegram)
	}

	payGateway, stats := newPaymentGateway(cfg)

	guardCfg := processor.DefaultIdempotencyConfig()
	guardCfg.MaxRetries = 0
	guardCfg.LockTTL = cfg.SettlementLockTTL
	guard := processor.NewIdempotencyService(redisAdap, guardCfg)

	customerRepo := repository.NewCustomerRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	repairmanRepo := repository.NewRepairmanRepository(db)
	methodRepo := repository.NewPaymentMethodRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	poster := ledger.NewPoster(db)

	// services
	gameOrders := services.NewGameOrderService(db, repository.NewGameOrderRepository(db), customerRepo, employeeRepo, catalogRepo, poster, notifier)
	repairOrders := services.NewRepairOrderService(db, repository.NewRepairOrderRepository(db), customerRepo, repairmanRepo, poster, notifier)
	productOrders := services.NewProductOrderService(db, repository.NewProductOrderRepository(db), customerRepo, catalogRepo, poster, notifier)
	courseOrders := services.NewCourseOrderService(db, repository.NewCourseOrderRepository(db), customerRepo, poster, notifier)
	settlers := services.NewSettlers(gameOrders, repairOrders, productOrders, courseOrders)

	transactionService := services.NewTransactionService(db, transactionRepo, methodRepo, poster, settlers, cfg.ShopLabel, notifier)
	methodService := services.NewPaymentMethodService(db, methodRepo)
	paymentService := services.NewPaymentService(db, transactionRepo, methodRepo, customerRepo, settlers, payGateway, guard, poster, cfg.ShopLabel, notifier)
	reportService := services.NewReportService(methodRepo, customerRepo, employeeRepo, repairmanRepo, transactionRepo)

	// v1 handlers
	g := s.Router.Group("/api/v1")
	handlers.RegisterPaymentMethodRoutes(g, handlers.NewPaymentMethodHandler(methodService))
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(transactionService))
	handlers.RegisterOrderRoutes(g, handlers.NewOrderHandler(gameOrders, repairOrders, productOrders, courseOrders))
	handlers.RegisterPaymentRoutes(g, handlers.NewPaymentHandler(paymentService, transactionService, cfg.PaymentResultRedirectURL))
	handlers.RegisterReportRoutes(g, handlers.NewReportHandler(reportService, poster))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(map[string]handlers.Pinger{
		"postgres": db,
		"redis":    redisAdap,
	}, stats))

	s.CloseOnSignal(func() {
		if notifications != nil {
			_ = notifications.Stop(5 * time.Second)
		}
		if err := redisAdap.Close(); err != nil {
			logger.Error("failed closing redis", "error", err)
		}
		if err := db.Close(); err != nil {
			logger.Error("failed closing pg", "error", err)
		}
	})

	if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
		logger.Error("error in running http-server", "error", err)
	}
}

// newPaymentGateway builds the configured provider. Only the fasthttp-based
// Zarinpal client keeps request statistics for the health endpoint.
func newPaymentGateway(cfg *config.Config) (gateway.PaymentGateway, handlers.GatewayStats) {
	if cfg.GatewayProvider == "midtrans" {
		return gateway.NewMidtransClient(gateway.MidtransConfig{
			ServerKey:  cfg.MidtransServerKey,
			Production: cfg.MidtransProduction,
			Timeout:    cfg.GatewayTimeout,
		}), nil
	}
	z := gateway.NewZarinpalClient(gateway.Config{
		MerchantID:       cfg.GatewayMerchantID,
		BaseURL:          cfg.GatewayBaseURL,
		StartPayURL:      cfg.GatewayStartPayURL,
		CallbackURL:      cfg.GatewayCallbackURL,
		Timeout:          cfg.GatewayTimeout,
		MaxRetries:       cfg.GatewayMaxRetries,
		RetryDelay:       cfg.GatewayRetryDelay,
		BreakerThreshold: cfg.GatewayBreakerThreshold,
		BreakerCooldown:  cfg.GatewayBreakerCooldown,
	})
	return z, z
}
