package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`
	GRPCPort string `mapstructure:"GRPC_PORT"`

	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	MigrationsPath string `mapstructure:"MIGRATIONS_PATH"`

	CatalogDBPath         string `mapstructure:"CATALOG_DB_PATH"`
	CatalogMigrationsPath string `mapstructure:"CATALOG_MIGRATIONS_PATH"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	OutboxTopic  string `mapstructure:"OUTBOX_TOPIC"`

	RazorpayKeyID     string        `mapstructure:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string        `mapstructure:"RAZORPAY_KEY_SECRET"`
	RazorpayBaseURL   string        `mapstructure:"RAZORPAY_BASE_URL"`
	GatewayTimeout    time.Duration `mapstructure:"GATEWAY_TIMEOUT"`

	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	JWTSecret          string `mapstructure:"JWT_SECRET"`
	DefaultCurrency    string `mapstructure:"DEFAULT_CURRENCY"`
	DeliveryCharge     string `mapstructure:"DELIVERY_CHARGE"`
	PaymentCallbackURL string `mapstructure:"PAYMENT_CALLBACK_URL"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]any{
	"HTTP_PORT":               "8080",
	"GRPC_PORT":               "9090",
	"DB_HOST":                 "localhost",
	"DB_PORT":                 "5432",
	"DB_USER":                 "postgres",
	"DB_PASSWORD":             "postgres",
	"DB_NAME":                 "emart",
	"MIGRATIONS_PATH":         "migrations/postgres",
	"CATALOG_DB_PATH":         "catalog.db",
	"CATALOG_MIGRATIONS_PATH": "migrations/catalog",
	"REDIS_ADDR":              "localhost:6379",
	"REDIS_PASSWORD":          "",
	"MONGO_URI":               "mongodb://localhost:27017",
	"MONGO_DB_NAME":           "emart_audit",
	"KAFKA_BROKERS":           "",
	"OUTBOX_TOPIC":            "emart.events",
	"RAZORPAY_KEY_ID":         "",
	"RAZORPAY_KEY_SECRET":     "",
	"RAZORPAY_BASE_URL":       "https://api.razorpay.com",
	"GATEWAY_TIMEOUT":         "10s",
	"REQUEST_TIMEOUT":         "15s",
	"SHUTDOWN_TIMEOUT":        "10s",
	"JWT_SECRET":              "",
	"DEFAULT_CURRENCY":        "INR",
	"DELIVERY_CHARGE":         "0",
	"PAYMENT_CALLBACK_URL":    "/api/v1/payment/callback",
	"LOG_LEVEL":               "info",
}

// Load reads configuration from the optional file at path (typically .env)
// and the environment. Environment variables win over the file.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil && !isMissing(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}

func (c Config) validate() error {
	var missing []string
	if c.RazorpayKeyID == "" {
		missing = append(missing, "RAZORPAY_KEY_ID")
	}
	if c.RazorpayKeySecret == "" {
		missing = append(missing, "RAZORPAY_KEY_SECRET")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if _, err := decimal.NewFromString(c.DeliveryCharge); err != nil {
		return fmt.Errorf("invalid DELIVERY_CHARGE %q: %w", c.DeliveryCharge, err)
	}
	return nil
}

// PostgresDSN is the lib/pq connection string for the orders database.
func (c Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}

func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// DeliveryChargeAmount is the flat delivery charge. validate guarantees it
// parses.
func (c Config) DeliveryChargeAmount() decimal.Decimal {
	d, _ := decimal.NewFromString(c.DeliveryCharge)
	return d
}
