package app

import (
	"assessment_engine/docs"
	"assessment_engine/internal/config"
	"assessment_engine/internal/middleware"
	"assessment_engine/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerAssessmentRoutes(authGroup, c)
	}
}

func (a *App) registerAssessmentRoutes(rg *gin.RouterGroup, c *controllers) {
	assessments := rg.Group("/assessments")
	{
		assessments.POST("/:id/start", c.assessment.Start)
		assessments.GET("/:id/attempts", c.assessment.ListAttempts)
		assessments.POST("/:id/preview", c.assessment.PreviewScore)
	}

	attempts := rg.Group("/attempts")
	{
		attempts.GET("/:id", c.assessment.GetAttempt)
		attempts.POST("/:id/answers", c.assessment.RecordAnswer)
		attempts.POST("/:id/submit", c.assessment.Submit)
		attempts.GET("/:id/clock", c.clock.HandleClock)
	}

	// 请求体携带 ID 的兼容形式
	body := rg.Group("/assessment")
	{
		body.POST("/start", c.assessment.StartByBody)
		body.POST("/record_answer", c.assessment.RecordAnswerByBody)
		body.POST("/submit", c.assessment.SubmitByBody)
	}
}
