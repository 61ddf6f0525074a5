package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "stop-game/internal/handler/http"
	wsHandler "stop-game/internal/handler/websocket"
	"stop-game/internal/hub"
	gormpersistence "stop-game/internal/infra/persistence/gorm"
	"stop-game/internal/infra/setup"
	redisstate "stop-game/internal/infra/state/redis"
	"stop-game/internal/middleware"
	"stop-game/internal/repository"
	"stop-game/internal/service"
	"stop-game/internal/tasks"
	"stop-game/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB // 未配置数据库时为 nil
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Scheduler   *worker.Scheduler
	Hub         *hub.Hub
	HttpServer  *http.Server
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := newLogger(cfg)
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	log.Info("Initializing infrastructure...")
	var db *gorm.DB
	if cfg.DatabaseEnabled() {
		db, err = setup.InitDB(cfg.DBConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to init DB: %w", err)
		}
		if err := setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
		log.Infof("Database initialized (%s)", cfg.DBDriver)
	} else {
		log.Warn("DB_HOST not set, topic catalog disabled and built-in default topics will be used")
	}

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Infrastructure initialized successfully")

	// 4. 初始化 Repositories
	log.Info("Initializing repositories...")
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
	locker := redisstate.NewRedisLocker(redisClient, cfg.KeyPrefix)
	var topicRepo repository.TopicRepository
	if db != nil {
		gormTopics := gormpersistence.NewGormTopicRepository(db)
		seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := setup.SeedDefaultTopics(seedCtx, gormTopics)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to seed default topics: %w", err)
		}
		topicRepo = gormTopics
	}
	log.Info("Repositories initialized")

	// 5. 初始化 Hub 与 Services。Hub 是服务层的 Notifier，同时需要 RoomService 处理客户端消息。
	log.Info("Initializing hub and services...")
	hubInstance := hub.NewHub(stateRepo)
	dispatcher := tasks.NewDispatcher(asynqClient)
	opts := cfg.ServiceOptions()
	roomService := service.NewRoomService(stateRepo, locker, topicRepo, hubInstance, dispatcher, opts)
	submissionService := service.NewAnswerSubmissionService(stateRepo, locker, hubInstance, dispatcher, opts)
	hubInstance.SetRoomActions(roomService)
	tokenService, err := service.NewTokenService(cfg.JWTSecret, cfg.TokenExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create TokenService: %w", err)
	}
	var topicService *service.TopicService
	if topicRepo != nil {
		topicService = service.NewTopicService(topicRepo)
	}
	log.Info("Hub and services initialized")

	// 6. 初始化 Handlers
	log.Info("Initializing handlers...")
	roomHandler := httpHandler.NewRoomHandler(roomService, tokenService)
	var topicHandler *httpHandler.TopicHandler
	if topicService != nil {
		topicHandler = httpHandler.NewTopicHandler(topicService)
	}
	wsConnHandler := wsHandler.NewWebSocketHandler(hubInstance, roomService, cfg.CORSOrigins)
	log.Info("Handlers initialized")

	// 7. 初始化 Worker Server 与 Scheduler
	log.Info("Initializing worker server...")
	workerServer := worker.NewWorkerServer(redisClientOpt, cfg.WorkerConcurrency, submissionService, roomService, roomService, log)
	scheduler, err := worker.NewScheduler(redisClientOpt, cfg.CleanupSchedule, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	log.Info("Worker server initialized")

	// 8. 初始化 Gin Engine 和路由
	log.Info("Setting up Gin router...")
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(middleware.RateLimit(stateRepo, cfg.RateLimitMax, cfg.RateLimitWindow))

	httpHandler.RegisterRoutes(router, roomHandler, topicHandler, tokenService)
	wsRoutes := router.Group("/ws").Use(middleware.PlayerAuth(tokenService), middleware.RequireRoomMatch())
	{
		wsRoutes.GET("/rooms/:code", wsConnHandler.HandleConnection)
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	// 9. 初始化 HTTP Server
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 10. 组装 App 对象
	app := &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		AsynqServer: workerServer,
		Scheduler:   scheduler,
		Hub:         hubInstance,
		HttpServer:  httpServer,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

func newLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // LoadConfig 已校验
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)

	// 各包通过 logrus 包级函数记录日志，保持与 App logger 一致
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(logLevel)
	log.Infof("Logger initialized (Level: %s, Format: %T)", logLevel.String(), log.Formatter)
	return log
}

// corsConfig 未配置来源时允许任意来源（不携带凭据）
func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		config.AllowAllOrigins = true
		return config
	}
	config.AllowOrigins = origins
	config.AllowCredentials = true
	return config
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	go a.Scheduler.Start()
	a.Log.Info("Asynq worker server and scheduler routines started")

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止接收新请求
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	// 2. 停止 Hub 的房间订阅
	if a.Hub != nil {
		a.Hub.StopAllSubscriptions()
	}

	// 3. 停止调度器与 Worker
	if a.Scheduler != nil {
		a.Scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	// 4. 关闭 Asynq Client
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		} else {
			a.Log.Info("Asynq client closed.")
		}
	}

	// 5. 关闭 Redis 连接
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		} else {
			a.Log.Info("Redis connection closed.")
		}
	}

	// 6. 关闭数据库连接池
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			} else {
				a.Log.Info("Database connection closed.")
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		// token 可能出现在查询参数中，只记录路径
		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
		})

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
