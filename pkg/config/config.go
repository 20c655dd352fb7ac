package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	Square    SquareConfig
	Pricing   PricingConfig
	Retailers RetailerConfig
	Outbox    OutboxConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Dispatch  DispatchConfig
	Flags     FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Retailers.parse(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BUILDRELAY_APP_ENV" required:"true"`
	Port         string `envconfig:"BUILDRELAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BUILDRELAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BUILDRELAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BUILDRELAY_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BUILDRELAY_DB_DSN"`
	Driver string `envconfig:"BUILDRELAY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BUILDRELAY_DB_HOST"`
	Port     int    `envconfig:"BUILDRELAY_DB_PORT" default:"5432"`
	User     string `envconfig:"BUILDRELAY_DB_USER"`
	Password string `envconfig:"BUILDRELAY_DB_PASSWORD"`
	Name     string `envconfig:"BUILDRELAY_DB_NAME"`
	SSLMode  string `envconfig:"BUILDRELAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BUILDRELAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BUILDRELAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BUILDRELAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BUILDRELAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BUILDRELAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BUILDRELAY_REDIS_ADDR"`
	Password     string        `envconfig:"BUILDRELAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"BUILDRELAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BUILDRELAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BUILDRELAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BUILDRELAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BUILDRELAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BUILDRELAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type SquareConfig struct {
	AccessToken   string `envconfig:"BUILDRELAY_SQUARE_ACCESS_TOKEN"`
	LocationID    string `envconfig:"BUILDRELAY_SQUARE_LOCATION_ID"`
	WebhookSecret string `envconfig:"BUILDRELAY_SQUARE_WEBHOOK_SECRET"`
	Env           string `envconfig:"BUILDRELAY_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type PricingConfig struct {
	// DefaultDiscountRate is the contractor discount assumed when a retailer
	// has no configured rate. Expressed as a fraction (0.10 = 10%).
	DefaultDiscountRate float64 `envconfig:"BUILDRELAY_PRICING_DEFAULT_DISCOUNT_RATE" default:"0.10"`
	Currency            string  `envconfig:"BUILDRELAY_PRICING_CURRENCY" default:"USD"`
}

// RetailerConfig carries the configured retail partners. Partners are
// declared as a JSON array so a retailer can be added without a deploy of
// new code.
type RetailerConfig struct {
	PartnersJSON  string        `envconfig:"BUILDRELAY_RETAILER_PARTNERS_JSON"`
	SubmitTimeout time.Duration `envconfig:"BUILDRELAY_RETAILER_SUBMIT_TIMEOUT" default:"30s"`

	Partners []RetailerPartner `ignored:"true"`
}

// RetailerPartner describes one retail partner integration.
type RetailerPartner struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	BaseURL              string  `json:"base_url"`
	APIKey               string  `json:"api_key"`
	DiscountRate         float64 `json:"discount_rate"`
	TaxExemptCertificate string  `json:"tax_exempt_certificate"`
	ProAccountID         string  `json:"pro_account_id,omitempty"`
}

func (r *RetailerConfig) parse() error {
	raw := strings.TrimSpace(r.PartnersJSON)
	if raw == "" {
		return nil
	}
	var partners []RetailerPartner
	if err := json.Unmarshal([]byte(raw), &partners); err != nil {
		return fmt.Errorf("parsing %s: %w", EnvRetailerPartners, err)
	}
	for i, partner := range partners {
		if strings.TrimSpace(partner.ID) == "" {
			return fmt.Errorf("%s: partner %d is missing an id", EnvRetailerPartners, i)
		}
		if partner.DiscountRate < 0 || partner.DiscountRate >= 1 {
			return fmt.Errorf("%s: partner %q discount rate must be in [0,1)", EnvRetailerPartners, partner.ID)
		}
	}
	r.Partners = partners
	return nil
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BUILDRELAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BUILDRELAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BUILDRELAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"BUILDRELAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"BUILDRELAY_PUBSUB_ORDERS_TOPIC" default:"br-order-events"`
	OrdersSubscription string `envconfig:"BUILDRELAY_PUBSUB_ORDERS_SUBSCRIPTION" default:"br-order-events-worker"`
}

type DispatchConfig struct {
	// SweepInterval controls how often the worker re-scans for orders stuck
	// in paid status (payment captured but dispatch never ran).
	SweepInterval time.Duration `envconfig:"BUILDRELAY_DISPATCH_SWEEP_INTERVAL" default:"1m"`
	SweepCutoff   time.Duration `envconfig:"BUILDRELAY_DISPATCH_SWEEP_CUTOFF" default:"2m"`
	// PaymentLockTTL bounds the redis lock held while a capture is in flight.
	PaymentLockTTL time.Duration `envconfig:"BUILDRELAY_DISPATCH_PAYMENT_LOCK_TTL" default:"2m"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BUILDRELAY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BUILDRELAY_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
