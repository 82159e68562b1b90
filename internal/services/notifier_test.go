package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/nimasrn/drgame-ledger/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

func TestNotifier_Notify(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishJSON", mock.Anything, model.Notification{
		Channel: model.ChannelTelegram, Event: "game_order_created", Text: "New game order #1",
	}, map[string]string{"event": "game_order_created"}).Return("1-0", nil).Once()

	n := services.NewNotifier(pub, model.ChannelTelegram)
	n.Notify(context.Background(), "game_order_created", "New game order #1")

	pub.AssertExpectations(t)
}

func TestNotifier_NotifyCustomer(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishJSON", mock.Anything, mock.MatchedBy(func(n model.Notification) bool {
		return n.Channel == model.ChannelSMS && n.Recipient == "09121112233"
	}), mock.Anything).Return("2-0", nil).Once()

	n := services.NewNotifier(pub, model.ChannelTelegram)
	n.NotifyCustomer(context.Background(), "09121112233", "payment_settled", "paid")
	n.NotifyCustomer(context.Background(), "", "payment_settled", "no phone, no sms")

	pub.AssertExpectations(t)
	pub.AssertNumberOfCalls(t, "PublishJSON", 1)
}

func TestNotifier_PublishErrorsAreSwallowed(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("redis down"))

	n := services.NewNotifier(pub, model.ChannelTelegram)
	assert.NotPanics(t, func() { n.Notify(context.Background(), "payment_failed", "x") })
	pub.AssertNumberOfCalls(t, "PublishJSON", 1)
}

func TestNotifier_Disabled(t *testing.T) {
	var nilNotifier *services.Notifier
	assert.NotPanics(t, func() { nilNotifier.Notify(context.Background(), "e", "t") })

	n := services.NewNotifier(nil, model.ChannelTelegram)
	assert.NotPanics(t, func() { n.NotifyCustomer(context.Background(), "0912", "e", "t") })
}
