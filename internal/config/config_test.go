package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "LKR", cfg.Payment.Currency)
	assert.Equal(t, "15", cfg.Payment.PlatformFeePercent.String())
	assert.Equal(t, "30", cfg.Payment.DepositPercent.String())
	assert.Equal(t, 24*time.Hour, cfg.Payment.Expiry)
	assert.Equal(t, 3, cfg.Payment.ConflictRetries)
	assert.Equal(t, 5, cfg.Payment.ReferenceAttempts)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaConfig.Brokers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("BOOKING_PLATFORM_FEE_PERCENT", "12.5")
	t.Setenv("BOOKING_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("BOOKING_NOTIFY_TRANSPORT", "RabbitMQ")
	t.Setenv("BOOKING_PAYMENT_EXPIRY", "2h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "12.5", cfg.Payment.PlatformFeePercent.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, TransportRabbitMQ, cfg.NotifyTransport)
	assert.Equal(t, 2*time.Hour, cfg.Payment.Expiry)
}

func TestLoad_RejectsInvalidPolicy(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"fee above 100", "BOOKING_PLATFORM_FEE_PERCENT", "120"},
		{"non numeric deposit", "BOOKING_DEPOSIT_PERCENT", "thirty"},
		{"unknown transport", "BOOKING_NOTIFY_TRANSPORT", "carrier-pigeon"},
		{"zero retries", "BOOKING_CONFLICT_RETRIES", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
