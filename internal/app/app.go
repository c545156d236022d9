package app

import (
	"assessment_engine/internal/config"
	"assessment_engine/internal/controller"
	"assessment_engine/internal/repository"
	"assessment_engine/internal/service"
	"assessment_engine/internal/util"
	"assessment_engine/pkg/configwatcher"
	"assessment_engine/pkg/database"
	"assessment_engine/pkg/logger"
	"assessment_engine/pkg/monitoring"
	"assessment_engine/pkg/security"
	"assessment_engine/pkg/tracing"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigDir       string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	stopWatch       chan struct{}
	configCallbacks []func(*config.Config)
}

type repositories struct {
	assessment *repository.AssessmentRepository
	attempt    *repository.AttemptRepository
}

type services struct {
	bank        service.QuestionBank
	permissions *service.RolePermissions
	notifier    *service.AsyncNotifier
	assessment  *service.AssessmentService
}

type controllers struct {
	assessment *controller.AssessmentController
	clock      *controller.ClockController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		assessment: repository.NewAssessmentRepository(db),
		attempt:    repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	bank, err := newQuestionBank(repos, cfg, rdb)
	if err != nil {
		return nil, err
	}
	s.bank = bank

	sink, err := newEventSink(cfg, rdb)
	if err != nil {
		return nil, err
	}
	s.notifier = service.NewAsyncNotifier(sink, cfg.Notification.BufferSize, cfg.Notification.Workers)
	s.permissions = service.NewRolePermissions(cfg.Permissions)
	s.assessment = service.NewAssessmentService(s.bank, repos.attempt, s.permissions, s.notifier, &cfg.Assessment)

	// 热更新：权限表与作答参数
	a.RegisterConfigCallback(func(c *config.Config) {
		s.permissions.Reload(c.Permissions)
		s.assessment.SetConfig(&c.Assessment)
	})
	return s, nil
}

func newQuestionBank(repos *repositories, cfg *config.Config, rdb *redis.Client) (service.QuestionBank, error) {
	var bank service.QuestionBank
	switch cfg.QuestionBank.Source {
	case util.QuestionBankObject:
		storage, err := service.NewStorageProvider(&cfg.Storage)
		if err != nil {
			return nil, err
		}
		bank = service.NewObjectQuestionBank(storage, cfg.QuestionBank.Prefix)
	case util.QuestionBankDatabase, "":
		bank = repos.assessment
	default:
		return nil, fmt.Errorf("unknown question_bank.source %q", cfg.QuestionBank.Source)
	}

	if rdb != nil && cfg.QuestionBank.CacheTTLSeconds > 0 {
		ttl := time.Duration(cfg.QuestionBank.CacheTTLSeconds) * time.Second
		bank = service.NewCachedQuestionBank(bank, rdb, ttl)
	}
	return bank, nil
}

func newEventSink(cfg *config.Config, rdb *redis.Client) (service.EventSink, error) {
	var sinks service.MultiSink
	for _, name := range cfg.Notification.Sinks {
		switch name {
		case util.SinkLog:
			sinks = append(sinks, service.LogEventSink{})
		case util.SinkRedis:
			if rdb == nil {
				logger.Log.Warn("Redis event sink configured but redis is disabled, skipping")
				continue
			}
			sinks = append(sinks, service.NewRedisEventSink(rdb, cfg.Notification.Channel))
		case util.SinkSES:
			ses, err := service.NewSESEventSink(context.Background(), &cfg.Notification.SES)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, ses)
		default:
			return nil, fmt.Errorf("unknown notification sink %q", name)
		}
	}
	if len(sinks) == 0 {
		return service.LogEventSink{}, nil
	}
	return sinks, nil
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		assessment: controller.NewAssessmentController(s.assessment),
		clock:      controller.NewClockController(s.assessment),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// watchConfig 配置文件变化时依次执行已注册的回调
func (a *App) watchConfig() {
	if a.ConfigDir == "" {
		return
	}
	a.stopWatch = make(chan struct{})
	file := filepath.Join(a.ConfigDir, "config.yaml")
	go configwatcher.WatchConfig(file, func(c *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(c)
		}
	}, a.stopWatch)
}

func NewApp(cfg *config.Config, configDir string) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.ForceMigrate || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config:    cfg,
		ConfigDir: configDir,
		DB:        db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	services, err := app.initServices(repos, cfg, rdb)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("assessment-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)
	app.watchConfig()

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.stopWatch != nil {
		close(a.stopWatch)
	}
	// 等待未发送的事件投递完
	if a.services != nil && a.services.notifier != nil {
		a.services.notifier.Close()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
