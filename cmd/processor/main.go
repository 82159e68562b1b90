package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/drgame-ledger/internal/config"
	gateway "github.com/nimasrn/drgame-ledger/internal/gateways"
	"github.com/nimasrn/drgame-ledger/internal/processor"
	"github.com/nimasrn/drgame-ledger/internal/queue"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
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
	logger.Info("starting notification processor", "version", version, "commit", commit, "date", date)

	redisAdap, err := redis.NewRedisAdapter(cfg.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{cfg.RedisAddr},
		ClientName: cfg.AppName + "-processor",
		DB:         cfg.RedisDatabase,
		Username:   cfg.RedisUsername,
		Password:   cfg.RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	transport := gateway.Config{
		Timeout:          cfg.GatewayTimeout,
		MaxRetries:       cfg.GatewayMaxRetries,
		RetryDelay:       cfg.GatewayRetryDelay,
		BreakerThreshold: cfg.GatewayBreakerThreshold,
		BreakerCooldown:  cfg.GatewayBreakerCooldown,
	}
	var senders []gateway.Sender
	if cfg.TelegramBotToken != "" {
		senders = append(senders, gateway.NewTelegramSender(gateway.TelegramConfig{
			BaseURL:   cfg.TelegramBaseURL,
			BotToken:  cfg.TelegramBotToken,
			ChatID:    cfg.TelegramChatID,
			Transport: transport,
		}))
	}
	if cfg.SMSAPIKey != "" {
		senders = append(senders, gateway.NewSMSSender(gateway.SMSConfig{
			BaseURL:   cfg.SMSBaseURL,
			APIKey:    cfg.SMSAPIKey,
			From:      cfg.SMSSender,
			Transport: transport,
		}))
	}
	if len(senders) == 0 {
		logger.Warn("no notification channel is configured, messages will be dropped")
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

	idempotency := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())
	metrics := processor.NewServiceMetrics()
	notificationProcessor := processor.NewNotificationProcessor(idempotency, metrics, senders...)

	consumerName := cfg.QueueConsumerName
	if consumerName == "" {
		consumerName = hostname
	}
	service := processor.NewProcessorService(redisAdap, processor.ServiceConfig{
		Queue: queue.QueueConfig{
			Name:              cfg.QueueName,
			ConsumerGroup:     cfg.QueueConsumerGroup,
			ConsumerName:      consumerName,
			MaxRetries:        cfg.QueueMaxRetries,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			PollInterval:      cfg.QueuePollInterval,
			BatchSize:         cfg.QueueBatchSize,
			MaxLen:            cfg.QueueMaxLen,
			EnableDLQ:         cfg.QueueEnableDLQ,
		},
		Consumers: 2,
		Workers:   cfg.NotifierWorkers,
	}, notificationProcessor)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	<-c
	service.Stop()
	if err := redisAdap.Close(); err != nil {
		logger.Error("failed closing redis", "error", err)
	}
}
