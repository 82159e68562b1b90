package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/queue"
	"github.com/nimasrn/drgame-ledger/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
	channel model.NotificationChannel
}

func (m *mockSender) Channel() model.NotificationChannel { return m.channel }

func (m *mockSender) Send(ctx context.Context, n model.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func notificationMessage(t *testing.T, id string, n model.Notification) *queue.Message {
	t.Helper()
	data, err := json.Marshal(n)
	require.NoError(t, err)
	return &queue.Message{ID: id, Data: data, Timestamp: time.Now()}
}

func TestNotificationProcessor_Delivers(t *testing.T) {
	ctx := context.Background()
	telegram := &mockSender{channel: model.ChannelTelegram}
	n := model.Notification{Channel: model.ChannelTelegram, Event: "payment_settled", Text: "Payment #1 settled"}
	telegram.On("Send", mock.Anything, n).Return(nil).Once()

	metrics := NewServiceMetrics()
	p := NewNotificationProcessor(newTestIdempotency(t, nil), metrics, telegram)

	require.NoError(t, p.Process(ctx, notificationMessage(t, "1-0", n)))
	// redelivery of the same stream id is skipped
	require.NoError(t, p.Process(ctx, notificationMessage(t, "1-0", n)))

	telegram.AssertExpectations(t)
	assert.Equal(t, ChannelStats{Sent: 1}, metrics.GetStats().Channels[model.ChannelTelegram])
}

func TestNotificationProcessor_RoutesByChannel(t *testing.T) {
	ctx := context.Background()
	telegram := &mockSender{channel: model.ChannelTelegram}
	sms := &mockSender{channel: model.ChannelSMS}
	sms.On("Send", mock.Anything, mock.MatchedBy(func(n model.Notification) bool {
		return n.Recipient == "09120000000"
	})).Return(nil).Once()

	p := NewNotificationProcessor(newTestIdempotency(t, nil), nil, telegram, sms)
	err := p.Process(ctx, notificationMessage(t, "2-0", model.Notification{
		Channel: model.ChannelSMS, Recipient: "09120000000", Event: "payment_failed", Text: "x",
	}))
	require.NoError(t, err)

	sms.AssertExpectations(t)
	telegram.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNotificationProcessor_FailureIsRetried(t *testing.T) {
	ctx := context.Background()
	sms := &mockSender{channel: model.ChannelSMS}
	n := model.Notification{Channel: model.ChannelSMS, Recipient: "0912", Event: "e", Text: "t"}
	sms.On("Send", mock.Anything, n).Return(errors.New("provider down")).Once()
	sms.On("Send", mock.Anything, n).Return(nil).Once()

	metrics := NewServiceMetrics()
	idem := newTestIdempotency(t, nil)
	p := NewNotificationProcessor(idem, metrics, sms)

	require.Error(t, p.Process(ctx, notificationMessage(t, "3-0", n)))
	retries, err := idem.GetRetryCount(ctx, "notification:3-0")
	require.NoError(t, err)
	assert.Equal(t, 1, retries)

	require.NoError(t, p.Process(ctx, notificationMessage(t, "3-0", n)))
	sms.AssertExpectations(t)
	assert.Equal(t, ChannelStats{Sent: 1, Failed: 1}, metrics.GetStats().Channels[model.ChannelSMS])
}

func TestNotificationProcessor_GivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	sms := &mockSender{channel: model.ChannelSMS}
	n := model.Notification{Channel: model.ChannelSMS, Recipient: "0912", Event: "e", Text: "t"}
	sms.On("Send", mock.Anything, n).Return(errors.New("provider down")).Twice()

	p := NewNotificationProcessor(newTestIdempotency(t, func(c *IdempotencyConfig) { c.MaxRetries = 2 }), nil, sms)

	assert.Error(t, p.Process(ctx, notificationMessage(t, "4-0", n)))
	assert.Error(t, p.Process(ctx, notificationMessage(t, "4-0", n)))
	assert.NoError(t, p.Process(ctx, notificationMessage(t, "4-0", n)), "abandoned messages are acked")
	sms.AssertExpectations(t)
}

func TestNotificationProcessor_UnknownChannelAndBadPayload(t *testing.T) {
	ctx := context.Background()
	p := NewNotificationProcessor(newTestIdempotency(t, nil), nil)

	assert.NoError(t, p.Process(ctx, notificationMessage(t, "5-0", model.Notification{Channel: "fax", Text: "x"})))
	assert.Error(t, p.Process(ctx, &queue.Message{ID: "6-0", Data: []byte("{not json")}))
}

func TestNotificationProcessor_ConcurrentHolder(t *testing.T) {
	ctx := context.Background()
	sms := &mockSender{channel: model.ChannelSMS}
	idem := newTestIdempotency(t, nil)
	p := NewNotificationProcessor(idem, nil, sms)

	_, err := idem.AcquireProcessingLock(ctx, "notification:7-0")
	require.NoError(t, err)

	err = p.Process(ctx, notificationMessage(t, "7-0", model.Notification{Channel: model.ChannelSMS, Recipient: "1", Text: "x"}))
	assert.ErrorIs(t, err, errLockHeld)
	sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestProcessorService_ConsumesStream(t *testing.T) {
	_, adapter := helpers.SetupTestRedis(t)
	telegram := &mockSender{channel: model.ChannelTelegram}
	telegram.On("Send", mock.Anything, mock.Anything).Return(nil)

	idem := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	metrics := NewServiceMetrics()
	qcfg := queue.QueueConfig{
		Name:          "notifications",
		ConsumerGroup: "notifiers",
		ConsumerName:  "test",
		PollInterval:  10 * time.Millisecond,
	}
	svc := NewProcessorService(adapter, ServiceConfig{Queue: qcfg, Consumers: 2, Workers: 2},
		NewNotificationProcessor(idem, metrics, telegram))
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)

	pub, err := queue.NewQueue(context.Background(), adapter, qcfg)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := pub.PublishJSON(context.Background(), model.Notification{
			Channel: model.ChannelTelegram, Event: "game_order_created", Text: "order",
		}, map[string]string{"event": "game_order_created"})
		require.NoError(t, err)
	}

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		return metrics.GetStats().Channels[model.ChannelTelegram].Sent == 5 &&
			svc.Metrics().GetStats().Processed == 5
	}, "all notifications should be delivered once")
	telegram.AssertNumberOfCalls(t, "Send", 5)
}
