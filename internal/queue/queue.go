package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/redis"
)

const metaPrefix = "meta_"

// Message is one stream entry handed to a consumer.
type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
	acked     bool
	nacked    bool
	queue     *Queue
}

// Ack marks the message as handled and removes it from the pending list.
func (m *Message) Ack(ctx context.Context) error {
	if m.acked {
		return errors.New("message already acknowledged")
	}
	if m.nacked {
		return errors.New("message already rejected")
	}
	m.acked = true
	return m.queue.ackMessage(ctx, m.ID)
}

// Nack leaves the message pending; it is reclaimed after the visibility timeout.
func (m *Message) Nack() error {
	if m.acked {
		return errors.New("message already acknowledged")
	}
	if m.nacked {
		return errors.New("message already rejected")
	}
	m.nacked = true
	return nil
}

// MessageHandler returning nil acks the message; an error leaves it for redelivery.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

// Queue is a redis stream with one consumer group.
type Queue struct {
	adapter    redis.RedisAdapter
	config     QueueConfig
	handler    MessageHandler
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	processing map[string]struct{}
}

type QueueStats struct {
	TotalMessages   int64
	PendingMessages int64
	ConsumerCount   int64
}

func NewQueue(ctx context.Context, adapter redis.RedisAdapter, config QueueConfig) (*Queue, error) {
	if config.Name == "" {
		return nil, errors.New("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	if err := adapter.XGroupCreateMkStream(ctx, config.Name, config.ConsumerGroup, "0"); err != nil {
		return nil, fmt.Errorf("create consumer group %s: %w", config.ConsumerGroup, err)
	}

	qctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		adapter:    adapter,
		config:     config,
		ctx:        qctx,
		cancel:     cancel,
		processing: make(map[string]struct{}),
	}, nil
}

func (q *Queue) Name() string { return q.config.Name }

func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
		"attempts":  0,
	}
	for k, v := range metadata {
		values[metaPrefix+k] = v
	}

	id, err := q.adapter.XAdd(ctx, q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", q.config.Name, err)
	}
	if q.config.MaxLen > 0 {
		if err := q.adapter.XTrimApprox(ctx, q.config.Name, q.config.MaxLen); err != nil {
			logger.Warn("stream trim failed", "queue", q.config.Name, "error", err)
		}
	}
	return id, nil
}

func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}
	return q.Publish(ctx, raw, metadata)
}

// Consume starts the poll loop in the background. Stop ends it.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return errors.New("message handler is required")
	}
	q.handler = handler
	q.wg.Add(1)
	go q.consumeLoop()
	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processMessages()
			q.claimStuckMessages()
		}
	}
}

func (q *Queue) processMessages() {
	messages, err := q.adapter.XReadGroup(q.ctx, q.config.ConsumerGroup, q.config.ConsumerName, q.config.Name, ">", q.config.BatchSize)
	if err != nil {
		if !errors.Is(err, redis.NilError) && q.ctx.Err() == nil {
			logger.Error("stream read failed", "queue", q.config.Name, "error", err)
		}
		return
	}
	for _, sm := range messages {
		q.handleMessage(q.toMessage(sm))
	}
}

// claimStuckMessages takes over entries left pending longer than the visibility timeout.
func (q *Queue) claimStuckMessages() {
	pending, err := q.adapter.XPending(q.ctx, q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	ext, err := q.adapter.XPendingExt(q.ctx, q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(ext) == 0 {
		return
	}

	var ids []string
	deliveries := make(map[string]int64, len(ext))
	for _, p := range ext {
		if p.Idle >= q.config.VisibilityTimeout {
			ids = append(ids, p.ID)
			deliveries[p.ID] = p.RetryCount
		}
	}
	if len(ids) == 0 {
		return
	}

	claimed, err := q.adapter.XClaim(q.ctx, q.config.Name, q.config.ConsumerGroup, q.config.ConsumerName, q.config.VisibilityTimeout, ids...)
	if err != nil {
		logger.Warn("stream claim failed", "queue", q.config.Name, "error", err)
		return
	}
	for _, sm := range claimed {
		msg := q.toMessage(sm)
		msg.Attempts = int(deliveries[sm.ID])
		q.handleMessage(msg)
	}
}

func (q *Queue) handleMessage(msg *Message) {
	q.mu.Lock()
	if _, busy := q.processing[msg.ID]; busy {
		q.mu.Unlock()
		return
	}
	q.processing[msg.ID] = struct{}{}
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.processing, msg.ID)
		q.mu.Unlock()
	}()

	if msg.Attempts >= q.config.MaxRetries {
		q.moveToDeadLetterQueue(msg)
		if err := q.ackMessage(q.ctx, msg.ID); err != nil {
			logger.Warn("ack after dead-letter failed", "queue", q.config.Name, "id", msg.ID, "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		logger.Debug("message left pending", "queue", q.config.Name, "id", msg.ID, "error", err)
		return
	}
	if err := q.ackMessage(ctx, msg.ID); err != nil {
		logger.Warn("ack failed", "queue", q.config.Name, "id", msg.ID, "error", err)
	}
}

func (q *Queue) ackMessage(ctx context.Context, id string) error {
	return q.adapter.XAck(ctx, q.config.Name, q.config.ConsumerGroup, id)
}

func (q *Queue) moveToDeadLetterQueue(msg *Message) {
	if !q.config.EnableDLQ {
		return
	}
	values := map[string]interface{}{
		"data":           string(msg.Data),
		"original_id":    msg.ID,
		"attempts":       msg.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range msg.Metadata {
		values[metaPrefix+k] = v
	}
	if _, err := q.adapter.XAdd(q.ctx, q.config.Name+":dlq", values); err != nil {
		logger.Error("dead-letter publish failed", "queue", q.config.Name, "id", msg.ID, "error", err)
		return
	}
	logger.Warn("message dead-lettered", "queue", q.config.Name, "id", msg.ID, "attempts", msg.Attempts)
}

func (q *Queue) toMessage(sm redis.StreamMessage) *Message {
	msg := &Message{
		ID:       sm.ID,
		Metadata: make(map[string]string),
		queue:    q,
	}
	for k, v := range sm.Values {
		s, _ := v.(string)
		switch {
		case k == "data":
			msg.Data = []byte(s)
		case k == "timestamp":
			if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
				msg.Timestamp = time.Unix(unix, 0)
			}
		case strings.HasPrefix(k, metaPrefix):
			msg.Metadata[strings.TrimPrefix(k, metaPrefix)] = s
		}
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	return msg
}

func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return errors.New("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats(ctx context.Context) (*QueueStats, error) {
	total, err := q.adapter.XLen(ctx, q.config.Name)
	if err != nil {
		return nil, err
	}
	stats := &QueueStats{TotalMessages: total}

	pending, err := q.adapter.XPending(ctx, q.config.Name, q.config.ConsumerGroup)
	if err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}
	return stats, nil
}
