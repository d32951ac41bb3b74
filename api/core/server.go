package core

import (
	"net/http"
	"time"

	"github.com/anoixa/catdex/api/middleware"
	"github.com/anoixa/catdex/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// multipartMemory 解析表单时留在内存中的上限，超出部分写入临时文件
const multipartMemory = 8 << 20

// ServerDependencies 服务器依赖项
type ServerDependencies = RouterDependencies

// setupRouter 创建 gin 引擎并注册中间件与路由，返回的 cleanup 停止限流器的后台清理
func setupRouter(cfg *config.Config, deps *ServerDependencies) (*gin.Engine, func()) {
	if !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// 全局中间件
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics())

	// 未配置来源时不启用跨域，页面与表单同源提交
	if len(cfg.CorsAllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CorsAllowedOrigins,
			AllowMethods: []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Length", "Content-Type", middleware.RequestIDHeader},
			MaxAge:       12 * time.Hour,
		}))
	}

	_ = router.SetTrustedProxies(nil)

	// 表单超过该值的部分写入临时文件，单次上传的总大小由 UploadMaxBytes 限制
	router.MaxMultipartMemory = multipartMemory

	// 并发限制，避免内存过载
	concurrencyLimiter := middleware.NewConcurrencyLimiter(cfg.MaxConcurrency)
	router.Use(concurrencyLimiter.Middleware())

	// 上传限流
	uploadLimiter := middleware.NewIPRateLimiter(cfg.RateLimitUploadRPS, cfg.RateLimitUploadBurst, cfg.RateLimitExpireTime)
	routeDeps := *deps
	routeDeps.UploadRateLimiter = uploadLimiter
	if routeDeps.Cats.UploadMaxBytes == 0 {
		routeDeps.Cats.UploadMaxBytes = cfg.UploadMaxBytes()
	}

	RegisterRoutes(router, &routeDeps)

	return router, uploadLimiter.StopCleanup
}

// NewServer 创建 http.Server
func NewServer(cfg *config.Config, deps *ServerDependencies) (*http.Server, func()) {
	router, cleanup := setupRouter(cfg, deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, cleanup
}
