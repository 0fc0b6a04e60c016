package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars-long"

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDecode_Defaults(t *testing.T) {
	cfg, err := decode(newViper(map[string]any{
		"security.jwtsecret": testSecret,
		"database.dsn":       "postgres://localhost/krishi",
	}))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Security.JWTTTL)
	assert.Equal(t, 12, cfg.Security.BcryptCost)
	assert.Equal(t, AlgorithmBcrypt, cfg.Security.PasswordAlgorithm)
	assert.Equal(t, 5, cfg.RateLimit.AuthLimit)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.AuthWindow)
	assert.True(t, cfg.RateLimit.AuthFailClosed)
	assert.Equal(t, 100, cfg.RateLimit.GeneralLimit)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.GeneralWindow)
	assert.Equal(t, "auth:events", cfg.Events.Stream)
	assert.Equal(t, int64(5), cfg.Worker.MaxDeliveries)
	assert.Equal(t, "auth:events:dead", cfg.Worker.DeadLetterStream)
	assert.Equal(t, 20, cfg.Redis.PoolSize)
	assert.True(t, cfg.RedisRequired())
}

func TestDecode_MissingSecret(t *testing.T) {
	_, err := decode(newViper(map[string]any{
		"database.driver": DriverMemory,
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security.jwtsecret is required")
}

func TestDecode_ShortSecret(t *testing.T) {
	_, err := decode(newViper(map[string]any{
		"security.jwtsecret": "short",
		"database.driver":    DriverMemory,
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 bytes")
}

func TestDecode_InvalidSettings(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		wantErr   string
	}{
		{
			name:      "postgres without dsn",
			overrides: map[string]any{},
			wantErr:   "database.dsn is required",
		},
		{
			name:      "unknown driver",
			overrides: map[string]any{"database.driver": "sqlite"},
			wantErr:   "unknown database.driver",
		},
		{
			name:      "unknown limiter backend",
			overrides: map[string]any{"database.driver": DriverMemory, "ratelimit.backend": "etcd"},
			wantErr:   "unknown ratelimit.backend",
		},
		{
			name:      "bcrypt cost too low",
			overrides: map[string]any{"database.driver": DriverMemory, "security.bcryptcost": 2},
			wantErr:   "out of range",
		},
		{
			name:      "unknown password algorithm",
			overrides: map[string]any{"database.driver": DriverMemory, "security.passwordalgorithm": "md5"},
			wantErr:   "unknown security.passwordalgorithm",
		},
		{
			name:      "zero auth limit",
			overrides: map[string]any{"database.driver": DriverMemory, "ratelimit.authlimit": 0},
			wantErr:   "limits must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.overrides["security.jwtsecret"] = testSecret
			_, err := decode(newViper(tt.overrides))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecode_CommaSeparatedOrigins(t *testing.T) {
	cfg, err := decode(newViper(map[string]any{
		"security.jwtsecret": testSecret,
		"database.driver":    DriverMemory,
		"allowcorsorigins":   "https://app.example.com,https://admin.example.com",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowCORSOrigins)
}

func TestRedisRequired(t *testing.T) {
	cfg := &AppConfig{RateLimit: RateLimitConfig{Backend: BackendMemory}}
	assert.False(t, cfg.RedisRequired())

	cfg.Security.RevokeOnLogout = true
	assert.True(t, cfg.RedisRequired())
}
