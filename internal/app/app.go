package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"survey_analytics_backend/internal/config"
	"survey_analytics_backend/internal/controller"
	"survey_analytics_backend/internal/repository"
	"survey_analytics_backend/internal/service"
	"survey_analytics_backend/pkg/cache"
	"survey_analytics_backend/pkg/database"
	"survey_analytics_backend/pkg/logger"
	"survey_analytics_backend/pkg/monitoring"
	"survey_analytics_backend/pkg/security"
	"survey_analytics_backend/pkg/tracing"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	survey    *repository.SurveyRepository
	response  *repository.ResponseRepository
	analytics *repository.AnalyticsRepository
	feedback  *repository.FeedbackRepository
}

type services struct {
	auth      *service.AuthService
	survey    *service.SurveyService
	analytics *service.AnalyticsService
	quality   *service.QualityService
	insight   *service.InsightService
	feedback  *service.FeedbackService
	dashboard *service.DashboardService
}

type controllers struct {
	auth      *controller.AuthController
	survey    *controller.SurveyController
	analytics *controller.AnalyticsController
	feedback  *controller.FeedbackController
	dashboard *controller.DashboardController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		survey:    repository.NewSurveyRepository(db, rdb),
		response:  repository.NewResponseRepository(db),
		analytics: repository.NewAnalyticsRepository(db),
		feedback:  repository.NewFeedbackRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	llm := service.NewLLMService(cfg.AI)
	insightCache := cache.New(cfg.Cache.InsightCapacity, time.Duration(cfg.Cache.InsightTTLHours)*time.Hour)
	designCache := cache.New(cfg.Cache.DesignCapacity, time.Duration(cfg.Cache.DesignTTLHours)*time.Hour)

	s.auth = service.NewAuthService(repos.user, cfg.JWT)
	s.survey = service.NewSurveyService(repos.survey, repos.response)
	s.analytics = service.NewAnalyticsService(repos.analytics)
	s.quality = service.NewQualityService(repos.analytics, llm, designCache)
	s.insight = service.NewInsightService(s.analytics, repos.analytics, llm, insightCache)
	s.feedback = service.NewFeedbackService(repos.feedback, repos.response)
	s.dashboard = service.NewDashboardService(repos.analytics)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		survey:    controller.NewSurveyController(s.survey),
		analytics: controller.NewAnalyticsController(s.analytics, s.quality, s.insight, s.survey),
		feedback:  controller.NewFeedbackController(s.feedback, s.survey),
		dashboard: controller.NewDashboardController(s.dashboard, s.survey),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("survey-platform", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
