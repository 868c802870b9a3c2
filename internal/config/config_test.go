package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "postgres://localhost/whispr_test")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("KAFKA_BROKERS", "localhost:9092, localhost:9093")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/whispr_test", cfg.DatabaseURL)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "friend-events", cfg.KafkaTopic)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.KafkaBrokerList())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "postgres://localhost/whispr_test")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestKafkaBrokerListEmpty(t *testing.T) {
	cfg := &Config{}
	assert.Nil(t, cfg.KafkaBrokerList())

	cfg.KafkaBrokers = " , "
	assert.Empty(t, cfg.KafkaBrokerList())
}
