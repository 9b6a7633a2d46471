package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Postgres  PostgresConfig
	Catalog   CatalogConfig
	Kafka     KafkaConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	Stripe    StripeConfig
	Pricing   PricingConfig
	Checkout  CheckoutConfig
	Mail      MailConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

type HTTPConfig struct {
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	AllowedOrigins     []string
	// AuthRateLimit is requests per second per client on the authentication routes.
	AuthRateLimit float64
	AuthRateBurst int
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

type CatalogConfig struct {
	DBPath         string
	MigrationsPath string
	SeedFile       string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CookieConfig struct {
	Name     string
	Domain   string
	Secure   bool
	SameSite string
}

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	Currency       string
}

// Enabled reports whether online payments can be taken.
func (s StripeConfig) Enabled() bool {
	return s.SecretKey != ""
}

type PricingConfig struct {
	TaxRate               decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

type CheckoutConfig struct {
	PendingPaymentTTL time.Duration
	OutboxInterval    time.Duration
	RecoveryInterval  time.Duration
}

type MailConfig struct {
	// Provider is "sendgrid", "postmark" or "log".
	Provider            string
	SendGridAPIKey      string
	PostmarkServerToken string
	SenderEmail         string
	SenderName          string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type TelemetryConfig struct {
	Enabled       bool
	Endpoint      string
	SamplingRatio float64
	Insecure      bool
}

// Load reads .env (if present), config.toml (if present) and STOREFRONT_* environment variables.
func Load() (*Config, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("http.request_timeout", "30s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.max_request_body_size", 1<<20)
	v.SetDefault("http.allowed_origins", "http://localhost:3000")
	v.SetDefault("http.auth_rate_limit", 5)
	v.SetDefault("http.auth_rate_burst", 10)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "storefront")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "orders")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.migrations_dir", "internal/orders/repository/migrations")

	v.SetDefault("catalog.db_path", "catalog.db")
	v.SetDefault("catalog.migrations_path", "internal/catalog/repository/migrations")

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "order-events")

	v.SetDefault("jwt.expiration", "72h")
	v.SetDefault("jwt.issuer", "storefront")

	v.SetDefault("cookie.name", "jwt")
	v.SetDefault("cookie.same_site", "lax")

	v.SetDefault("stripe.currency", "usd")

	v.SetDefault("pricing.tax_rate", "0.10")
	v.SetDefault("pricing.shipping_fee", "10.00")
	v.SetDefault("pricing.free_shipping_threshold", "100.00")

	v.SetDefault("checkout.pending_payment_ttl", "30m")
	v.SetDefault("checkout.outbox_interval", "1s")
	v.SetDefault("checkout.recovery_interval", "1m")

	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.sender_email", "orders@storefront.local")
	v.SetDefault("mail.sender_name", "Storefront")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.insecure", true)
}

func fromViper(v *viper.Viper) (*Config, error) {
	taxRate, err := decimalValue(v, "pricing.tax_rate")
	if err != nil {
		return nil, err
	}
	shippingFee, err := decimalValue(v, "pricing.shipping_fee")
	if err != nil {
		return nil, err
	}
	threshold, err := decimalValue(v, "pricing.free_shipping_threshold")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			RequestTimeout:     v.GetDuration("http.request_timeout"),
			ShutdownTimeout:    v.GetDuration("http.shutdown_timeout"),
			MaxRequestBodySize: v.GetInt64("http.max_request_body_size"),
			AllowedOrigins:     splitList(v.GetString("http.allowed_origins")),
			AuthRateLimit:      v.GetFloat64("http.auth_rate_limit"),
			AuthRateBurst:      v.GetInt("http.auth_rate_burst"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongo.uri"),
			Database: v.GetString("mongo.database"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Postgres: PostgresConfig{
			Host:              v.GetString("postgres.host"),
			Port:              v.GetInt("postgres.port"),
			User:              v.GetString("postgres.user"),
			Password:          v.GetString("postgres.password"),
			DBName:            v.GetString("postgres.dbname"),
			SSLMode:           v.GetString("postgres.sslmode"),
			MigrationsDirPath: v.GetString("postgres.migrations_dir"),
		},
		Catalog: CatalogConfig{
			DBPath:         v.GetString("catalog.db_path"),
			MigrationsPath: v.GetString("catalog.migrations_path"),
			SeedFile:       v.GetString("catalog.seed_file"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(v.GetString("kafka.brokers")),
			Topic:   v.GetString("kafka.topic"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
			Issuer:     v.GetString("jwt.issuer"),
		},
		Cookie: CookieConfig{
			Name:     v.GetString("cookie.name"),
			Domain:   v.GetString("cookie.domain"),
			Secure:   v.GetBool("cookie.secure"),
			SameSite: v.GetString("cookie.same_site"),
		},
		Stripe: StripeConfig{
			SecretKey:      v.GetString("stripe.secret_key"),
			PublishableKey: v.GetString("stripe.publishable_key"),
			WebhookSecret:  v.GetString("stripe.webhook_secret"),
			Currency:       v.GetString("stripe.currency"),
		},
		Pricing: PricingConfig{
			TaxRate:               taxRate,
			ShippingFee:           shippingFee,
			FreeShippingThreshold: threshold,
		},
		Checkout: CheckoutConfig{
			PendingPaymentTTL: v.GetDuration("checkout.pending_payment_ttl"),
			OutboxInterval:    v.GetDuration("checkout.outbox_interval"),
			RecoveryInterval:  v.GetDuration("checkout.recovery_interval"),
		},
		Mail: MailConfig{
			Provider:            strings.ToLower(v.GetString("mail.provider")),
			SendGridAPIKey:      v.GetString("mail.sendgrid_api_key"),
			PostmarkServerToken: v.GetString("mail.postmark_server_token"),
			SenderEmail:         v.GetString("mail.sender_email"),
			SenderName:          v.GetString("mail.sender_name"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:       v.GetBool("telemetry.enabled"),
			Endpoint:      v.GetString("telemetry.endpoint"),
			SamplingRatio: v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:      v.GetBool("telemetry.insecure"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	if len(c.JWT.Secret) < 16 {
		return errors.New("config: jwt.secret must be at least 16 characters")
	}
	if port, err := strconv.Atoi(c.App.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("config: invalid app.port %q", c.App.Port)
	}
	if c.Pricing.TaxRate.IsNegative() || c.Pricing.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("config: pricing.tax_rate must be within [0,1], got %s", c.Pricing.TaxRate)
	}
	if c.Pricing.ShippingFee.IsNegative() {
		return errors.New("config: pricing.shipping_fee must not be negative")
	}
	if c.Stripe.Enabled() {
		if !strings.HasPrefix(c.Stripe.SecretKey, "sk_test") && !strings.HasPrefix(c.Stripe.SecretKey, "sk_live") {
			return errors.New("config: stripe.secret_key is not a Stripe secret key")
		}
		if c.Stripe.Currency == "" {
			return errors.New("config: stripe.currency is required")
		}
	}
	switch c.Mail.Provider {
	case "log":
	case "sendgrid":
		if c.Mail.SendGridAPIKey == "" {
			return errors.New("config: mail.sendgrid_api_key is required for the sendgrid provider")
		}
	case "postmark":
		if c.Mail.PostmarkServerToken == "" {
			return errors.New("config: mail.postmark_server_token is required for the postmark provider")
		}
	default:
		return fmt.Errorf("config: unknown mail.provider %q", c.Mail.Provider)
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("config: kafka.brokers is required")
	}
	return nil
}

// IsProduction reports whether the app runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func decimalValue(v *viper.Viper, key string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.GetString(key))
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
