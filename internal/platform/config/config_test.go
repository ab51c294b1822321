package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.IssuanceMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.AvailabilityCacheTTL)
	assert.Equal(t, "ticket.exchange", cfg.TicketExchange)
	assert.Equal(t, []string{"*"}, cfg.CORSOriginList())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("SWEEP_INTERVAL", "15s")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOriginList())
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "firestore")

	_, err := Load()

	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC, App{TimeZone: "Not/AZone"}.Location())
	assert.Equal(t, "America/Sao_Paulo", App{TimeZone: "America/Sao_Paulo"}.Location().String())
}
