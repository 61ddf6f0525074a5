package bootstrap_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stop-game/internal/bootstrap"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Arrange
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "secret")

	// Act
	cfg, err := bootstrap.LoadConfig()

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "sg:", cfg.KeyPrefix)
	assert.Equal(t, 2*time.Hour, cfg.RoomTTL)
	assert.Equal(t, "@every 10m", cfg.CleanupSchedule)
	assert.False(t, cfg.DatabaseEnabled(), "未配置 DB_HOST 时不启用数据库")

	opts := cfg.ServiceOptions()
	assert.Equal(t, 10*time.Second, opts.Lock.Hold)
	assert.Equal(t, 5*time.Second, opts.Lock.MaxWait)
	assert.Equal(t, time.Second, opts.Lock.Retry)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("ROOM_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGIN", "http://a.test,http://b.test")
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := bootstrap.LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.True(t, cfg.DatabaseEnabled())
	assert.Equal(t, 30*time.Minute, cfg.RoomTTL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "info", cfg.LogLevel, "非法日志级别回退为 info")
	assert.Equal(t, "postgres", cfg.DBConfig().Driver)
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("JWT_SECRET", "secret")

	_, err := bootstrap.LoadConfig()

	assert.Error(t, err, "REDIS_ADDR 为必填项")
}

func TestLoadConfig_UnsupportedDriver(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "sqlite")

	_, err := bootstrap.LoadConfig()

	assert.Error(t, err)
}
