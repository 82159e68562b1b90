package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/valyala/fasthttp"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrRejected means the provider answered but refused the operation.
	ErrRejected = errors.New("rejected by provider")
)

type PaymentRequest struct {
	Amount      int64
	Description string
	Mobile      string
	// Reference is our transaction id; providers that need a unique order id derive it from this.
	Reference string
}

type PaymentSession struct {
	Authority  string
	PaymentURL string
	Metadata   map[string]any
}

type Verification struct {
	RefID    string
	Metadata map[string]any
}

// PaymentGateway is the external payment provider contract.
type PaymentGateway interface {
	Name() string
	RequestPayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	VerifyPayment(ctx context.Context, authority string, amount int64) (*Verification, error)
}

type Config struct {
	MerchantID       string
	BaseURL          string
	StartPayURL      string
	CallbackURL      string
	Timeout          time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	// Dial overrides the connection dialer; tests point it at an in-memory listener.
	Dial fasthttp.DialFunc
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	return c
}
