package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/drgame-ledger/internal/queue"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/redis"
	"github.com/nimasrn/drgame-ledger/pkg/worker"
)

const (
	ProcessingTimeout = 10 * time.Second
	HealthInterval    = 30 * time.Second
	MetricsInterval   = 30 * time.Second
	ShutdownTimeout   = time.Minute

	// pending entries above this are logged as lag
	lagThreshold = 10_000
)

// Processor handles one queue message. Returning nil acks it.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

type ServiceConfig struct {
	Queue     queue.QueueConfig
	Consumers int
	Workers   int
}

// ProcessorService reads the notification stream with several consumers and hands every
// message to a fixed worker pool.
type ProcessorService struct {
	adapter   redis.RedisAdapter
	config    ServiceConfig
	queues    []*queue.Queue
	processor Processor
	metrics   *ServiceMetrics
	worker    *worker.WorkerManager[*job]
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

type job struct {
	ctx    context.Context
	msg    *queue.Message
	result chan error
}

func NewProcessorService(adapter redis.RedisAdapter, config ServiceConfig, processor Processor) *ProcessorService {
	if config.Consumers <= 0 {
		config.Consumers = 1
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &ProcessorService{
		adapter:   adapter,
		config:    config,
		processor: processor,
		metrics:   NewServiceMetrics(),
		worker:    worker.NewWorkerManager[*job](config.Workers*4, config.Workers),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.worker.SetWorker(s.workerHandler)
	return s
}

func (s *ProcessorService) Metrics() *ServiceMetrics { return s.metrics }

func (s *ProcessorService) Start() error {
	logger.Info("starting processor service", "processor", s.processor.GetType(),
		"consumers", s.config.Consumers, "workers", s.config.Workers)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker.Start(s.ctx)
	}()

	for i := 0; i < s.config.Consumers; i++ {
		cfg := s.config.Queue
		cfg.ConsumerName = fmt.Sprintf("%s-instance-%d", cfg.ConsumerName, i)

		q, err := queue.NewQueue(s.ctx, s.adapter, cfg)
		if err != nil {
			return fmt.Errorf("create queue consumer %d: %w", i, err)
		}
		if err := q.Consume(s.messageHandler); err != nil {
			return fmt.Errorf("start queue consumer %d: %w", i, err)
		}
		s.queues = append(s.queues, q)
	}

	s.wg.Add(2)
	go s.every(MetricsInterval, s.reportMetrics)
	go s.every(HealthInterval, s.performHealthCheck)

	logger.Info("processor service started", "queue", s.config.Queue.Name, "consumers", len(s.queues))
	return nil
}

func (s *ProcessorService) every(interval time.Duration, fn func()) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fn()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("processor metrics",
		"total_processed", stats.Processed,
		"total_failed", stats.Failed,
		"rate_per_second", stats.RatePerSecond,
		"avg_duration_ms", stats.AvgDurationMs,
		"uptime_seconds", stats.UptimeSeconds)
	for channel, c := range stats.Channels {
		logger.Info("channel metrics", "channel", channel, "sent", c.Sent, "failed", c.Failed)
	}
}

func (s *ProcessorService) performHealthCheck() {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.adapter.Ping(ctx); err != nil {
		logger.Error("health check failed: redis unreachable", "error", err)
		return
	}
	for i, q := range s.queues {
		stats, err := q.GetStats(ctx)
		if err != nil {
			logger.Warn("health check: queue stats unavailable", "consumer", i, "error", err)
			continue
		}
		if stats.PendingMessages > lagThreshold {
			logger.Warn("health check: queue lag", "consumer", i, "pending", stats.PendingMessages)
		}
	}
	logger.Debug("health check ok", "worker_backlog", s.worker.Pending())
}

// Stop stops the consumers first so no new work arrives, then the pool.
func (s *ProcessorService) Stop() {
	logger.Info("stopping processor service")

	var qwg sync.WaitGroup
	for i, q := range s.queues {
		qwg.Add(1)
		go func(i int, q *queue.Queue) {
			defer qwg.Done()
			if err := q.Stop(ShutdownTimeout); err != nil {
				logger.Error("queue consumer did not stop", "consumer", i, "error", err)
			}
		}(i, q)
	}
	qwg.Wait()

	s.cancel()
	s.wg.Wait()
	s.reportMetrics()
	logger.Info("processor service stopped")
}

// messageHandler blocks the consumer until a worker has processed msg, so the ack
// decision stays with the queue.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	msgCtx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	j := &job{ctx: msgCtx, msg: msg, result: make(chan error, 1)}
	if err := s.worker.Enqueue(msgCtx, j); err != nil {
		return fmt.Errorf("enqueue message %s: %w", msg.ID, err)
	}

	select {
	case err := <-j.result:
		return err
	case <-msgCtx.Done():
		return fmt.Errorf("waiting for worker on message %s: %w", msg.ID, msgCtx.Err())
	}
}

func (s *ProcessorService) workerHandler(_ context.Context, index int, j *job) {
	if j.ctx.Err() != nil {
		logger.Warn("message expired before processing", "worker", index, "id", j.msg.ID)
		return
	}

	start := time.Now()
	err := s.processor.Process(j.ctx, j.msg)
	if err != nil {
		s.metrics.RecordFailure()
		logger.Error("message processing failed", "worker", index, "id", j.msg.ID, "error", err)
	} else {
		s.metrics.RecordSuccess(time.Since(start))
	}
	// buffered; never blocks
	j.result <- err
}
