package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"survey_analytics_backend/docs"
	"survey_analytics_backend/internal/config"
	"survey_analytics_backend/internal/middleware"
	"survey_analytics_backend/internal/model"
	"survey_analytics_backend/pkg/monitoring"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerCreatorRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
	}

	// 投放链接入口:游客可答卷，登录用户自动带上身份
	publicAPI := router.Group("/api/public")
	publicAPI.Use(middleware.TryAuthMiddleware(cfg))
	{
		publicAPI.GET("/surveys/:token", c.survey.GetPublic)
		publicAPI.POST("/surveys/:token/responses", c.survey.SubmitResponse)
		publicAPI.POST("/feedback", c.feedback.Submit)
	}
}

func (a *App) registerCreatorRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/auth/profile", c.auth.Profile)
	rg.GET("/dashboard/creator", c.dashboard.GetCreatorDashboard)

	surveys := rg.Group("/surveys")
	{
		surveys.POST("", c.survey.Create)
		surveys.GET("", c.survey.List)
		surveys.GET("/:surveyId", c.survey.Get)
		surveys.PUT("/:surveyId/status", c.survey.UpdateStatus)
		surveys.DELETE("/:surveyId", c.survey.Delete)
		surveys.GET("/:surveyId/export", c.survey.ExportCSV)
		surveys.GET("/:surveyId/feedback", c.feedback.GetStats)
	}

	analytics := rg.Group("/analytics/surveys/:surveyId")
	{
		analytics.GET("/overview", c.analytics.GetOverview)
		analytics.GET("/questions", c.analytics.GetQuestionAnalysis)
		analytics.GET("/dropoff", c.analytics.GetDropOff)
		analytics.GET("/segments", c.analytics.GetSegments)
		analytics.GET("/segment-analysis", c.analytics.GetSegmentAnalysis)
		analytics.GET("/quality", c.analytics.GetQualityScore)
		analytics.GET("/insights", c.analytics.GetInsights)
		analytics.POST("/chat", c.analytics.ChatWithData)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/dashboard")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/admin", c.dashboard.GetAdminDashboard)
	}
}
