package gateway

import (
	"context"
	"strings"

	"github.com/nimasrn/drgame-ledger/internal/model"
	"github.com/pkg/errors"
)

// Sender delivers one notification over a single channel.
type Sender interface {
	Channel() model.NotificationChannel
	Send(ctx context.Context, n model.Notification) error
}

type TelegramConfig struct {
	BaseURL   string
	BotToken  string
	ChatID    string
	Transport Config
}

type TelegramSender struct {
	url    string
	chatID string
	t      *transport
}

func NewTelegramSender(cfg TelegramConfig) *TelegramSender {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	return &TelegramSender{
		url:    base + "/bot" + cfg.BotToken + "/sendMessage",
		chatID: cfg.ChatID,
		t:      newTransport("telegram", cfg.Transport),
	}
}

func (s *TelegramSender) Channel() model.NotificationChannel { return model.ChannelTelegram }

func (s *TelegramSender) Send(ctx context.Context, n model.Notification) error {
	chatID := n.Recipient
	if chatID == "" {
		chatID = s.chatID
	}
	body := map[string]any{
		"chat_id":    chatID,
		"text":       n.Text,
		"parse_mode": "HTML",
	}
	var resp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := s.t.postJSON(ctx, "sendMessage", s.url, nil, body, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return errors.Wrap(ErrRejected, resp.Description)
	}
	return nil
}

type SMSConfig struct {
	BaseURL   string
	APIKey    string
	From      string
	Transport Config
}

// SMSSender posts to an IPPanel-style web service.
type SMSSender struct {
	cfg SMSConfig
	t   *transport
}

func NewSMSSender(cfg SMSConfig) *SMSSender {
	return &SMSSender{cfg: cfg, t: newTransport("sms", cfg.Transport)}
}

func (s *SMSSender) Channel() model.NotificationChannel { return model.ChannelSMS }

func (s *SMSSender) Send(ctx context.Context, n model.Notification) error {
	if n.Recipient == "" {
		return errors.Wrap(ErrRejected, "sms recipient is empty")
	}
	body := map[string]any{
		"sending_type": "webservice",
		"from_number":  s.cfg.From,
		"message":      n.Text,
		"params": map[string]any{
			"recipients": []string{n.Recipient},
		},
	}
	var resp struct {
		Meta struct {
			Status  bool   `json:"status"`
			Message string `json:"message"`
		} `json:"meta"`
	}
	headers := map[string]string{"Authorization": s.cfg.APIKey}
	if err := s.t.postJSON(ctx, "send", s.cfg.BaseURL, headers, body, &resp); err != nil {
		return err
	}
	if !resp.Meta.Status {
		return errors.Wrap(ErrRejected, resp.Meta.Message)
	}
	return nil
}
