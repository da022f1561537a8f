package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod

	StoreDriver string // postgres / memory

	DatabaseURL      string // あれば最優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret    string // JWT署名シークレット
	JWTAccessTTL time.Duration

	FrontendURL string // 決済後のコールバック先

	PaystackAPIURL    string
	PaystackSecretKey string
	PaystackTimeout   time.Duration

	KafkaBrokers    string // カンマ区切り。空なら無効
	KafkaOrderTopic string

	PendingOrderTTL   time.Duration // これより古いPENDINGはキャンセル
	ReconcileInterval time.Duration // 0なら無効

	LogLevel  string
	LogFormat string // json / text
}

func (c Config) IsProduction() bool {
	return c.GoEnv == "production" || c.GoEnv == "prod"
}

// Loadは.envを読んでから環境変数で組み立てる。.envが無いのは許容。
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}
	return FromEnv()
}

// FromEnvは環境変数だけから設定を作る
func FromEnv() (Config, error) {
	var err error
	cfg := Config{
		Port:        getenv("PORT", "8080"),
		GoEnv:       getenv("GO_ENV", "development"),
		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", StoreDriverPostgres)),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "storefront"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		FrontendURL: strings.TrimRight(getenv("FRONTEND_URL", "http://localhost:5173"), "/"),

		PaystackAPIURL:    strings.TrimRight(getenv("PAYSTACK_API_URL", "https://api.paystack.co"), "/"),
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),

		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaOrderTopic: getenv("KAFKA_ORDER_TOPIC", "orders"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "json"),
	}

	if cfg.PostgresPort, err = atoiDefault("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.JWTAccessTTL, err = durationDefault("JWT_ACCESS_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.PaystackTimeout, err = durationDefault("PAYSTACK_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PendingOrderTTL, err = durationDefault("PENDING_ORDER_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.ReconcileInterval, err = durationDefault("RECONCILE_INTERVAL", 15*time.Minute); err != nil {
		return Config{}, err
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.PaystackSecretKey == "" {
		return Config{}, fmt.Errorf("PAYSTACK_SECRET_KEY is required")
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}
	if cfg.PaystackTimeout <= 0 {
		return Config{}, fmt.Errorf("PAYSTACK_TIMEOUT must be positive")
	}
	if cfg.PendingOrderTTL <= 0 {
		return Config{}, fmt.Errorf("PENDING_ORDER_TTL must be positive")
	}

	return cfg, nil
}

// DSN はpostgres接続文字列を返す
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}
