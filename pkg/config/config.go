package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "SHOPFLOW"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "SHOPFLOW_APP_ENV"
	EnvPort         = "SHOPFLOW_APP_PORT"
	EnvDBDSN        = "SHOPFLOW_DB_DSN"
	EnvDBHost       = "SHOPFLOW_DB_HOST"
	EnvDBUser       = "SHOPFLOW_DB_USER"
	EnvDBName       = "SHOPFLOW_DB_NAME"
	EnvRedisURL     = "SHOPFLOW_REDIS_URL"
	EnvJWTSecret    = "SHOPFLOW_JWT_SECRET"
	EnvJWTIssuer    = "SHOPFLOW_JWT_ISSUER"
	EnvBroker       = "SHOPFLOW_EVENTING_BROKER"
	EnvGCPProjectID = "SHOPFLOW_GCP_PROJECT_ID"
	EnvKafkaBrokers = "SHOPFLOW_KAFKA_BROKERS"

	BrokerPubSub = "pubsub"
	BrokerKafka  = "kafka"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Kafka         KafkaConfig
	Sendgrid      SendgridConfig
	Outbox        OutboxConfig
	Orders        OrdersConfig
	Inventory     InventoryConfig
	Notifications NotificationsConfig
	Cron          CronConfig
}

// Load reads the SHOPFLOW_* environment, derives the DSN when only the
// discrete DB variables are set, and checks broker settings.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	dsn, err := cfg.DB.resolveDSN()
	if err != nil {
		return nil, err
	}
	cfg.DB.DSN = dsn
	cfg.Eventing.Broker = strings.ToLower(strings.TrimSpace(cfg.Eventing.Broker))
	if err := cfg.Eventing.validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPFLOW_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHOPFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPFLOW_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"SHOPFLOW_LOG_FORMAT" default:"json"`

	CORSAllowedOrigins []string `envconfig:"SHOPFLOW_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPFLOW_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"SHOPFLOW_DB_DSN"`

	LegacyHost     string `envconfig:"SHOPFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPFLOW_DB_USER"`
	LegacyPassword string `envconfig:"SHOPFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"SHOPFLOW_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPFLOW_REDIS_URL"`
	Address      string        `envconfig:"SHOPFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"SHOPFLOW_REDIS_KEY_PREFIX" default:"sf"`
}

type JWTConfig struct {
	Secret string `envconfig:"SHOPFLOW_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"SHOPFLOW_JWT_ISSUER" required:"true"`

	ExpirationMinutes int `envconfig:"SHOPFLOW_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SHOPFLOW_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	Broker         string        `envconfig:"SHOPFLOW_EVENTING_BROKER" default:"pubsub"`
	IdempotencyTTL time.Duration `envconfig:"SHOPFLOW_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (e EventingConfig) validate(cfg Config) error {
	switch e.Broker {
	case BrokerPubSub:
		if cfg.GCP.ProjectID == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGCPProjectID, EnvBroker, BrokerPubSub)
		}
	case BrokerKafka:
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("%s is required when %s=%s", EnvKafkaBrokers, EnvBroker, BrokerKafka)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvBroker, e.Broker)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SHOPFLOW_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SHOPFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SHOPFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"SHOPFLOW_PUBSUB_ORDERS_TOPIC" default:"shopflow-order-events"`
	PaymentsTopic            string `envconfig:"SHOPFLOW_PUBSUB_PAYMENTS_TOPIC" default:"shopflow-payment-events"`
	InventoryTopic           string `envconfig:"SHOPFLOW_PUBSUB_INVENTORY_TOPIC" default:"shopflow-inventory-events"`
	NotificationSubscription string `envconfig:"SHOPFLOW_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"shopflow-order-notifications"`
}

type KafkaConfig struct {
	Brokers           []string      `envconfig:"SHOPFLOW_KAFKA_BROKERS"`
	ClientID          string        `envconfig:"SHOPFLOW_KAFKA_CLIENT_ID" default:"shopflow-outbox"`
	NotificationGroup string        `envconfig:"SHOPFLOW_KAFKA_NOTIFICATION_GROUP" default:"shopflow-order-notifications"`
	RedeliveryBackoff time.Duration `envconfig:"SHOPFLOW_KAFKA_REDELIVERY_BACKOFF" default:"5s"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"SHOPFLOW_SENDGRID_API_KEY"`
	BaseURL     string `envconfig:"SHOPFLOW_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
	DefaultFrom string `envconfig:"SHOPFLOW_SENDGRID_FROM_EMAIL" default:"orders@shopflow.local"`
	FromName    string `envconfig:"SHOPFLOW_SENDGRID_FROM_NAME" default:"Shopflow"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"SHOPFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"SHOPFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"SHOPFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"SHOPFLOW_OUTBOX_RETENTION" default:"720h"`
}

// OrdersConfig is the delivery pricing policy applied at order creation.
type OrdersConfig struct {
	StandardDeliveryCost decimal.Decimal `envconfig:"SHOPFLOW_ORDERS_STANDARD_DELIVERY_COST" default:"5.00"`
	StandardDeliveryDays int             `envconfig:"SHOPFLOW_ORDERS_STANDARD_DELIVERY_DAYS" default:"5"`
	ExpressDeliveryCost  decimal.Decimal `envconfig:"SHOPFLOW_ORDERS_EXPRESS_DELIVERY_COST" default:"15.00"`
	ExpressDeliveryDays  int             `envconfig:"SHOPFLOW_ORDERS_EXPRESS_DELIVERY_DAYS" default:"2"`
	CreateRateLimit      int             `envconfig:"SHOPFLOW_ORDERS_CREATE_RATE_LIMIT" default:"10"`
	CreateRateWindow     time.Duration   `envconfig:"SHOPFLOW_ORDERS_CREATE_RATE_WINDOW" default:"1m"`
}

type InventoryConfig struct {
	DefaultLowStockThreshold int `envconfig:"SHOPFLOW_INVENTORY_LOW_STOCK_THRESHOLD" default:"5"`
}

type NotificationsConfig struct {
	SendAttempts   int           `envconfig:"SHOPFLOW_NOTIFICATIONS_SEND_ATTEMPTS" default:"3"`
	InitialBackoff time.Duration `envconfig:"SHOPFLOW_NOTIFICATIONS_INITIAL_BACKOFF" default:"500ms"`
	MaxBackoff     time.Duration `envconfig:"SHOPFLOW_NOTIFICATIONS_MAX_BACKOFF" default:"10s"`
	BackoffFactor  float64       `envconfig:"SHOPFLOW_NOTIFICATIONS_BACKOFF_FACTOR" default:"2"`
	StorefrontURL  string        `envconfig:"SHOPFLOW_STOREFRONT_URL" default:"https://shop.example.com"`
}

type CronConfig struct {
	Interval   time.Duration `envconfig:"SHOPFLOW_CRON_INTERVAL" default:"15m"`
	LockTTL    time.Duration `envconfig:"SHOPFLOW_CRON_LOCK_TTL" default:"10m"`
	JobTimeout time.Duration `envconfig:"SHOPFLOW_CRON_JOB_TIMEOUT" default:"5m"`
}

func (db DBConfig) resolveDSN() (string, error) {
	if db.DSN != "" {
		return db.DSN, nil
	}
	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.User(db.LegacyUser),
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacyPassword != "" {
		u.User = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	if db.LegacySSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	return u.String(), nil
}
