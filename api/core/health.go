package core

import (
	"context"
	"net/http"
	"time"

	"github.com/anoixa/catdex/config"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var startTime = time.Now()

const healthCheckTimeout = 3 * time.Second

// HealthChecker 可做健康检查的组件
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	db     *gorm.DB
	cache  HealthChecker
	images HealthChecker
}

// NewHealthHandler 健康检查处理器，cache 或 images 为 nil 时报告 not initialized
func NewHealthHandler(db *gorm.DB, cache, images HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, images: images}
}

// Handle GET /health
func (h *HealthHandler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{
		"database": checkDatabaseHealth(ctx, h.db),
		"cache":    checkHealth(ctx, h.cache),
		"images":   checkHealth(ctx, h.images),
	}

	status := "ok"
	httpStatus := http.StatusOK
	for _, result := range checks {
		if result != "ok" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"version": config.BuildInfo(),
		"checks":  checks,
	})
}

func checkDatabaseHealth(ctx context.Context, db *gorm.DB) string {
	if db == nil {
		return "not initialized"
	}
	sqlDB, err := db.DB()
	if err != nil {
		return "error: " + err.Error()
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return "unavailable"
	}
	return "ok"
}

func checkHealth(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return "not initialized"
	}
	if err := checker.Health(ctx); err != nil {
		return "unavailable"
	}
	return "ok"
}
