package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_x")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 5432, cfg.PostgresPort)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 15*time.Second, cfg.PaystackTimeout)
	assert.Equal(t, 24*time.Hour, cfg.PendingOrderTTL)
	assert.Equal(t, "https://api.paystack.co", cfg.PaystackAPIURL)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=storefront sslmode=disable", cfg.DSN())
}

func TestFromEnv_DatabaseURLWins(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5433/x")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db:5433/x", cfg.DSN())
}

func TestFromEnv_RequiredKeys(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PAYSTACK_SECRET_KEY", "sk")
	_, err := FromEnv()
	assert.EqualError(t, err, "JWT_SECRET is required")

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("PAYSTACK_SECRET_KEY", "")
	_, err = FromEnv()
	assert.EqualError(t, err, "PAYSTACK_SECRET_KEY is required")
}

func TestFromEnv_InvalidValues(t *testing.T) {
	setRequired(t)

	t.Setenv("POSTGRES_PORT", "abc")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "POSTGRES_PORT must be number")

	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("PAYSTACK_TIMEOUT", "soon")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "PAYSTACK_TIMEOUT must be duration")

	t.Setenv("PAYSTACK_TIMEOUT", "")
	t.Setenv("STORE_DRIVER", "mysql")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "STORE_DRIVER must be")
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nPAYSTACK_SECRET_KEY=sk_file\nPORT=9090\n"), 0o600))

	// godotenvは既存の環境変数を上書きしない
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PAYSTACK_SECRET_KEY", "")
	t.Setenv("PORT", "")
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("PAYSTACK_SECRET_KEY")
	os.Unsetenv("PORT")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "9090", cfg.Port)
}
