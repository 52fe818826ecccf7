package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServiceDefaults(t *testing.T) {
	t.Setenv("POSTGRES", "host=localhost port=5432 user=postgres dbname=postgres sslmode=disable")

	service, err := loadService()
	require.NoError(t, err)
	assert.Equal(t, 65535, service.Port)
	assert.Equal(t, "info", service.LogLevel)
	assert.Equal(t, 3, service.MaxConnections)
	assert.Equal(t, 5*time.Second, service.AcquireTimeout)
	assert.False(t, service.CascadeDeletes)
	assert.Empty(t, service.KafkaBrokers)
	assert.Equal(t, "hikingclubs.changes", service.KafkaTopic)
	assert.Equal(t, "./public", service.StaticDir)
}

func TestLoadService(t *testing.T) {
	t.Setenv("POSTGRES", "host=db")
	t.Setenv("PORT", "8080")
	t.Setenv("DB_ACQUIRE_TIMEOUT", "250ms")
	t.Setenv("CASCADE_DELETES", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	service, err := loadService()
	require.NoError(t, err)
	assert.Equal(t, 8080, service.Port)
	assert.Equal(t, 250*time.Millisecond, service.AcquireTimeout)
	assert.True(t, service.CascadeDeletes)
	assert.Equal(t, "k1:9092,k2:9092", service.KafkaBrokers)
}
