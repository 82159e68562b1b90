package services

import (
	"context"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
)

type Publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// Notifier hands notifications to the delivery queue. It never fails the caller.
type Notifier struct {
	publisher Publisher
	channel   model.NotificationChannel
}

// NewNotifier returns a notifier publishing on channel; a nil publisher disables it.
func NewNotifier(publisher Publisher, channel model.NotificationChannel) *Notifier {
	return &Notifier{publisher: publisher, channel: channel}
}

func (n *Notifier) Notify(ctx context.Context, event, text string) {
	if n == nil {
		return
	}
	n.send(ctx, model.Notification{Channel: n.channel, Event: event, Text: text})
}

// NotifyCustomer sends an SMS to the customer's phone when one is known.
func (n *Notifier) NotifyCustomer(ctx context.Context, phone, event, text string) {
	if phone == "" {
		return
	}
	n.send(ctx, model.Notification{Channel: model.ChannelSMS, Recipient: phone, Event: event, Text: text})
}

func (n *Notifier) send(ctx context.Context, msg model.Notification) {
	if n == nil || n.publisher == nil {
		return
	}
	id, err := n.publisher.PublishJSON(ctx, msg, map[string]string{"event": msg.Event})
	if err != nil {
		logger.Error("failed to publish notification", "event", msg.Event, "channel", msg.Channel, "error", err)
		return
	}
	logger.Debug("notification queued", "event", msg.Event, "stream_id", id)
}
