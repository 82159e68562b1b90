package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	gateway "github.com/nimasrn/drgame-ledger/internal/gateways"
	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/queue"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/prom"
)

var errLockHeld = errors.New("lock held by another consumer")

// NotificationProcessor delivers queued notifications through the sender for their channel.
// A stream id is delivered at most once while its processed marker lives.
type NotificationProcessor struct {
	senders     map[model.NotificationChannel]gateway.Sender
	idempotency *IdempotencyService
	metrics     *ServiceMetrics
}

func NewNotificationProcessor(idempotency *IdempotencyService, metrics *ServiceMetrics, senders ...gateway.Sender) *NotificationProcessor {
	p := &NotificationProcessor{
		senders:     make(map[model.NotificationChannel]gateway.Sender, len(senders)),
		idempotency: idempotency,
		metrics:     metrics,
	}
	for _, s := range senders {
		p.senders[s.Channel()] = s
	}
	return p
}

func (p *NotificationProcessor) GetType() string {
	return "notification"
}

func (p *NotificationProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var n model.Notification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		// left pending; the queue dead-letters it after its retries
		logger.Error("malformed notification", "id", msg.ID, "error", err)
		return fmt.Errorf("decode notification %s: %w", msg.ID, err)
	}

	sender, ok := p.senders[n.Channel]
	if !ok {
		logger.Warn("no sender for channel, dropping", "id", msg.ID, "channel", n.Channel, "event", n.Event)
		return nil
	}

	pc, err := p.idempotency.AcquireProcessingLock(ctx, "notification:"+msg.ID)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		logger.Error("notification abandoned", "id", msg.ID, "channel", n.Channel, "event", n.Event)
		return nil
	case errors.Is(err, ErrLockAcquireFailed):
		return errLockHeld
	case err != nil:
		return err
	}
	defer func() { _ = p.idempotency.ReleaseLock(ctx, pc) }()

	if err := sender.Send(ctx, n); err != nil {
		p.record(n.Channel, false)
		logger.Error("notification delivery failed", "id", msg.ID, "channel", n.Channel,
			"event", n.Event, "retry_count", pc.RetryCount, "error", err)
		if markErr := p.idempotency.MarkFailure(ctx, pc, err); markErr != nil {
			logger.Error("failed to mark failure", "id", msg.ID, "error", markErr)
		}
		return err
	}

	p.record(n.Channel, true)
	logger.Info("notification delivered", "id", msg.ID, "channel", n.Channel, "event", n.Event)
	if err := p.idempotency.MarkSuccess(ctx, pc); err != nil {
		logger.Error("failed to mark success", "id", msg.ID, "error", err)
	}
	return nil
}

func (p *NotificationProcessor) record(channel model.NotificationChannel, ok bool) {
	prom.ObserveNotification(string(channel), !ok)
	if p.metrics != nil {
		p.metrics.RecordDelivery(channel, ok)
	}
}
