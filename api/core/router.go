package core

import (
	"net/http"

	"github.com/anoixa/catdex/api/common"
	"github.com/anoixa/catdex/api/handler/cats"
	"github.com/anoixa/catdex/api/middleware"
	"github.com/anoixa/catdex/config"
	"github.com/anoixa/catdex/internal/worker"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RouterDependencies 路由注册依赖
type RouterDependencies struct {
	DB            *gorm.DB
	Cache         HealthChecker
	Images        HealthChecker
	Pool          *worker.Pool
	Cats          cats.Dependencies
	StaticDir     string
	StaticListing bool

	UploadRateLimiter *middleware.IPRateLimiter
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *RouterDependencies) {
	// 基础路由
	registerBasicRoutes(router, deps)

	// 静态文件，目录浏览按配置开启
	if deps.StaticDir != "" {
		router.StaticFS("/static", gin.Dir(deps.StaticDir, deps.StaticListing))
	}

	// 页面路由
	var uploadMiddleware []gin.HandlerFunc
	if deps.UploadRateLimiter != nil {
		uploadMiddleware = append(uploadMiddleware, deps.UploadRateLimiter.Middleware())
	}
	cats.NewHandler(deps.Cats).RegisterRoutes(router, uploadMiddleware...)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *RouterDependencies) {
	healthHandler := NewHealthHandler(deps.DB, deps.Cache, deps.Images)
	router.GET("/health", healthHandler.Handle)

	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	router.GET("/metrics", func(context *gin.Context) {
		metrics := gin.H{"http": middleware.GetMetrics()}
		if deps.Pool != nil {
			metrics["worker"] = deps.Pool.GetStats()
		}
		context.JSON(http.StatusOK, metrics)
	})
}
