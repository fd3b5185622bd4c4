package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageMongo  = "mongo"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	TaxRate            decimal.Decimal
	DefaultPrepMinutes int
	TickInterval       time.Duration
	CatalogTTL         time.Duration
	SessionIdleTimeout time.Duration

	CartStorage  string
	CartMaxBytes int
	CartTTL      time.Duration

	RedisAddr     string
	RedisPassword string
	MongoURI      string
	MongoDBName   string

	CatalogDBPath string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	KafkaBrokers       []string
	KafkaGroupID       string
	OrderStatusTopic   string
	OrderStatusChannel string

	LogLevel       string
	LogDevelopment bool
}

// Load reads configuration from the environment, falling back to defaults
// suitable for local development.
func Load() (*Config, error) {
	var errs []string
	fail := func(key string, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", key, err))
	}

	cfg := &Config{
		HTTPPort:           getenv("HTTP_PORT", "8080"),
		MaxRequestBodySize: 1 << 20, // 1MB
		CartStorage:        strings.ToLower(getenv("CART_STORAGE", StorageMemory)),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		MongoURI:           getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:        getenv("MONGO_DB_NAME", "storefront"),
		CatalogDBPath:      getenv("CATALOG_DB_PATH", "catalog.db"),
		PostgresHost:       getenv("POSTGRES_HOST", "localhost"),
		PostgresUser:       getenv("POSTGRES_USER", "postgres"),
		PostgresPassword:   getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:         getenv("POSTGRES_DB", "orders"),
		KafkaBrokers:       splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaGroupID:       getenv("KAFKA_GROUP_ID", "storefront"),
		OrderStatusTopic:   getenv("ORDER_STATUS_TOPIC", "order-status"),
		OrderStatusChannel: os.Getenv("ORDER_STATUS_CHANNEL"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", 30*time.Second); err != nil {
		fail("REQUEST_TIMEOUT", err)
	}
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		fail("SHUTDOWN_TIMEOUT", err)
	}
	if cfg.TickInterval, err = parseDuration("TICK_INTERVAL", time.Second); err != nil {
		fail("TICK_INTERVAL", err)
	}
	if cfg.CatalogTTL, err = parseDuration("CATALOG_TTL", time.Minute); err != nil {
		fail("CATALOG_TTL", err)
	}
	if cfg.SessionIdleTimeout, err = parseDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		fail("SESSION_IDLE_TIMEOUT", err)
	}
	if cfg.CartTTL, err = parseDuration("CART_TTL", 30*24*time.Hour); err != nil {
		fail("CART_TTL", err)
	}
	if cfg.DefaultPrepMinutes, err = parseInt("DEFAULT_PREP_MINUTES", 15); err != nil {
		fail("DEFAULT_PREP_MINUTES", err)
	}
	if cfg.CartMaxBytes, err = parseInt("CART_MAX_BYTES", 512<<10); err != nil {
		fail("CART_MAX_BYTES", err)
	}
	if cfg.PostgresPort, err = parseInt("POSTGRES_PORT", 5432); err != nil {
		fail("POSTGRES_PORT", err)
	}
	if cfg.LogDevelopment, err = parseBool("LOG_DEVELOPMENT", false); err != nil {
		fail("LOG_DEVELOPMENT", err)
	}

	cfg.TaxRate = decimal.RequireFromString("0.0875")
	if v := os.Getenv("TAX_RATE"); v != "" {
		rate, errRate := decimal.NewFromString(v)
		switch {
		case errRate != nil:
			fail("TAX_RATE", errRate)
		case rate.IsNegative():
			fail("TAX_RATE", fmt.Errorf("must not be negative"))
		default:
			cfg.TaxRate = rate
		}
	}

	switch cfg.CartStorage {
	case StorageMemory, StorageRedis, StorageMongo:
	default:
		fail("CART_STORAGE", fmt.Errorf("unknown backend %q", cfg.CartStorage))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getenv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue, err
	}
	if d <= 0 {
		return defaultValue, fmt.Errorf("must be positive")
	}
	return d, nil
}

func parseInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, err
	}
	return n, nil
}

func parseBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(v)
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
