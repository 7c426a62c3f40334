package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"storefront/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CHAPA_SECRET_KEY", "CHASECK_TEST")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, config.BrokerRabbitMQ, cfg.Events.Broker)
	assert.Equal(t, config.GatewayChapa, cfg.Chapa.Gateway)
	assert.Equal(t, "https://api.chapa.co", cfg.Chapa.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Chapa.Timeout)
	assert.Equal(t, "ETB", cfg.Checkout.Currency)
	assert.Equal(t, "ECOM", cfg.Checkout.TxRefPrefix)
	assert.Equal(t, 2000.0, cfg.Checkout.RewardThreshold)
	assert.Equal(t, 10, cfg.Checkout.RewardDiscountPercent)
	assert.Equal(t, 30*24*time.Hour, cfg.Checkout.CouponValidity)
	assert.Zero(t, cfg.Sweeper.Interval)
	assert.True(t, cfg.Auth.RequireVerifiedEmail)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("EVENTS_BROKER", "KAFKA")
	t.Setenv("REWARD_THRESHOLD", "500.5")
	t.Setenv("SWEEP_INTERVAL", "1m")
	t.Setenv("CHAPA_BASE_URL", "http://chapa.local/")
	t.Setenv("CHAPA_SECRET_KEY", "")
	t.Setenv("PAYMENT_GATEWAY", "Mock")
	t.Setenv("AUTH_REQUIRE_VERIFIED_EMAIL", "false")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, config.BrokerKafka, cfg.Events.Broker)
	assert.Equal(t, 500.5, cfg.Checkout.RewardThreshold)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, "http://chapa.local", cfg.Chapa.BaseURL)
	assert.Equal(t, config.GatewayMock, cfg.Chapa.Gateway)
	assert.False(t, cfg.Auth.RequireVerifiedEmail)
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CHAPA_SECRET_KEY", "CHASECK_TEST")
	// Registered so t.Setenv restores the variable godotenv sets.
	t.Setenv("TX_REF_PREFIX", "")
	require.NoError(t, os.Unsetenv("TX_REF_PREFIX"))

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TX_REF_PREFIX=SHOP\n"), 0o600))

	cfg, err := config.Load(envFile)
	require.NoError(t, err)
	assert.Equal(t, "SHOP", cfg.Checkout.TxRefPrefix)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("unknown broker", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("EVENTS_BROKER", "nats")
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "EVENTS_BROKER")
	})

	t.Run("discount out of range", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("REWARD_DISCOUNT_PERCENT", "120")
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "REWARD_DISCOUNT_PERCENT")
	})

	t.Run("chapa without secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("CHAPA_SECRET_KEY", "")
		t.Setenv("PAYMENT_GATEWAY", "")
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "CHAPA_SECRET_KEY")
	})

	t.Run("unknown gateway", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("PAYMENT_GATEWAY", "stripe")
		_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
		assert.ErrorContains(t, err, "PAYMENT_GATEWAY")
	})
}
