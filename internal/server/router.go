package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"payment-core/internal/handler"
	"payment-core/internal/server/middleware"
	"payment-core/pkg/monitor"
)

// NewHTTPRouter 初始化并返回一个 Gin Engine
// /health /metrics /swagger 公开；/api/v1 走共享密钥鉴权
func NewHTTPRouter(apiKey string, deposits *handler.DepositHandler, users *handler.UserHandler) *gin.Engine {
	// 0. 初始化监控指标 (含业务指标)
	monitor.Init()

	// 1. 创建 Engine (使用默认中间件: Logger, Recovery)
	r := gin.Default()

	// 2. 注册通用中间件
	r.Use(monitor.PrometheusMiddleware())

	// 3. 注册基础路由
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 4. 注册 API 路由组
	api := r.Group("/api/v1")
	api.Use(middleware.AccessToken(apiKey))
	{
		d := api.Group("/deposit")
		{
			d.POST("", deposits.Create)
			d.GET("/status", deposits.Status)
			d.GET("/detail", deposits.Detail)
			d.POST("/cancel", deposits.Cancel)
		}

		u := api.Group("/user")
		{
			u.POST("", users.Upsert)
			u.GET("/balance", users.Balance)
		}
	}

	return r
}
