package config

import (
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/pg"
	"github.com/pkg/errors"
)

var config *Config

// Config is the only place configuration is read into. Nothing else touches the environment.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"drgame_ledger"`
	AppDebug            bool   `env:"APP_DEBUG" default:"false"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR" default:":9100"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI" default:"/metrics"`
	ShopLabel           string `env:"SHOP_LABEL" default:"DrGame"`

	HttpListenAddr     string        `env:"HTTP_LISTEN_ADDR" default:":8080"`
	HttpRequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" default:"15s"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT" default:"5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT" default:"5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR" default:"localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX" default:"drgame:"`

	PromNamespace string `env:"PROM_NAMESPACE" default:"drgame"`

	QueueName              string        `env:"QUEUE_NAME" default:"notifications"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP" default:"notifiers"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES" default:"5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" default:"30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL" default:"1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE" default:"20"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN" default:"100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ" default:"true"`
	NotifierWorkers        int           `env:"NOTIFIER_WORKERS" default:"4"`

	GatewayProvider         string        `env:"GATEWAY_PROVIDER" default:"zarinpal"`
	GatewayMerchantID       string        `env:"GATEWAY_MERCHANT_ID"`
	GatewayBaseURL          string        `env:"GATEWAY_BASE_URL" default:"https://payment.zarinpal.com/pg/v4"`
	GatewayStartPayURL      string        `env:"GATEWAY_START_PAY_URL" default:"https://payment.zarinpal.com/pg/StartPay/"`
	GatewayCallbackURL      string        `env:"GATEWAY_CALLBACK_URL"`
	GatewayTimeout          time.Duration `env:"GATEWAY_TIMEOUT" default:"10s"`
	GatewayMaxRetries       int           `env:"GATEWAY_MAX_RETRIES" default:"2"`
	GatewayRetryDelay       time.Duration `env:"GATEWAY_RETRY_DELAY" default:"500ms"`
	GatewayBreakerThreshold int           `env:"GATEWAY_BREAKER_THRESHOLD" default:"5"`
	GatewayBreakerCooldown  time.Duration `env:"GATEWAY_BREAKER_COOLDOWN" default:"30s"`

	MidtransServerKey  string `env:"MIDTRANS_SERVER_KEY"`
	MidtransProduction bool   `env:"MIDTRANS_PRODUCTION" default:"false"`

	PaymentResultRedirectURL string        `env:"PAYMENT_RESULT_REDIRECT_URL"`
	SettlementLockTTL        time.Duration `env:"SETTLEMENT_LOCK_TTL" default:"30s"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `env:"TELEGRAM_CHAT_ID"`
	TelegramBaseURL  string `env:"TELEGRAM_BASE_URL" default:"https://api.telegram.org"`
	SMSBaseURL       string `env:"SMS_BASE_URL" default:"https://edge.ippanel.com/v1/api/send"`
	SMSAPIKey        string `env:"SMS_API_KEY"`
	SMSSender        string `env:"SMS_SENDER"`
}

func Load(path string) error {
	logger.Info("loading configs", "path", path)
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	c := &Config{}
	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to configuration")
	}
	if err := c.validate(); err != nil {
		return err
	}

	config = c
	return nil
}

func (c *Config) validate() error {
	switch c.GatewayProvider {
	case "zarinpal", "midtrans":
	default:
		return errors.Errorf("unknown GATEWAY_PROVIDER %q", c.GatewayProvider)
	}
	if c.GatewayProvider == "midtrans" && c.MidtransServerKey == "" {
		return errors.New("MIDTRANS_SERVER_KEY is required for the midtrans provider")
	}
	return nil
}

func Get() *Config {
	if config == nil {
		panic("config is not initialized")
	}
	return config
}

// Set replaces the loaded configuration; used by tests and tools.
func Set(c *Config) {
	config = c
}

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		User:     c.PostgresReadUser,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		User:     c.PostgresWriteUser,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
	}
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production") || strings.EqualFold(c.AppEnv, "prod")
}

// EnvPathFromArgs extracts --env=path from the process arguments.
func EnvPathFromArgs(args []string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, "--env=") {
			return strings.TrimPrefix(arg, "--env=")
		}
	}
	return ""
}
