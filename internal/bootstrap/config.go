package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"stop-game/internal/infra/setup"
	"stop-game/internal/repository"
	"stop-game/internal/service"
)

// Config 从环境变量（以及可选的 .env 文件）加载的配置
type Config struct {
	AppEnv     string `env:"APP_ENV" envDefault:"development"`
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// DBHost 为空时不连接数据库，房间使用内置默认话题
	DBDriver   string `env:"DB_DRIVER" envDefault:"mysql"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT"`
	DBName     string `env:"DB_NAME"`

	RedisAddr     string `env:"REDIS_ADDR,required,notEmpty"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix     string `env:"REDIS_KEY_PREFIX" envDefault:"sg:"`

	JWTSecret        string `env:"JWT_SECRET,required,notEmpty"`
	TokenExpiryHours int    `env:"TOKEN_EXPIRY_HOURS" envDefault:"24"`

	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGIN" envSeparator:","`

	RoomTTL   time.Duration `env:"ROOM_TTL" envDefault:"2h"`
	LockHold  time.Duration `env:"LOCK_HOLD" envDefault:"10s"`
	LockWait  time.Duration `env:"LOCK_WAIT" envDefault:"5s"`
	LockRetry time.Duration `env:"LOCK_RETRY" envDefault:"1s"`

	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"10"`
	CleanupSchedule   string `env:"CLEANUP_SCHEDULE" envDefault:"@every 10m"`
}

// LoadConfig 优先加载 .env 文件（如果存在），再解析环境变量
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	if cfg.DBDriver != "mysql" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.RoomTTL <= 0 || cfg.LockHold <= 0 || cfg.LockWait <= 0 || cfg.LockRetry <= 0 {
		return nil, fmt.Errorf("ROOM_TTL and LOCK_* durations must be positive")
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// DatabaseEnabled 是否配置了话题目录数据库
func (c *Config) DatabaseEnabled() bool {
	return c.DBHost != ""
}

func (c *Config) DBConfig() setup.DBConfig {
	return setup.DBConfig{
		Driver:   c.DBDriver,
		User:     c.DBUser,
		Password: c.DBPassword,
		Host:     c.DBHost,
		Port:     c.DBPort,
		Name:     c.DBName,
	}
}

// ServiceOptions 房间会话的时间参数
func (c *Config) ServiceOptions() service.Options {
	return service.Options{
		RoomTTL: c.RoomTTL,
		Lock: repository.LockOptions{
			Hold:    c.LockHold,
			MaxWait: c.LockWait,
			Retry:   c.LockRetry,
		},
	}
}
