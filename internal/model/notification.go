package model

type NotificationChannel string

const (
	ChannelTelegram NotificationChannel = "telegram"
	ChannelSMS      NotificationChannel = "sms"
)

// Notification is a fire-and-forget message; delivery failures never reach the caller.
type Notification struct {
	Channel   NotificationChannel `json:"channel"`
	Recipient string              `json:"recipient,omitempty"`
	Text      string              `json:"text"`
	Event     string              `json:"event"`
}
