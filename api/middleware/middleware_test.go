package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

// TestRequestLogger_SetsRequestID 响应头带请求 ID，且处理器能从 ctx 取到 logger
func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())

	var ctxLoggerFound bool
	r.GET("/", func(c *gin.Context) {
		ctxLoggerFound = log.Ctx(c.Request.Context()) != &log.Logger
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
	assert.True(t, ctxLoggerFound)
}

// TestRequestLogger_KeepsIncomingID 合法的上游请求 ID 原样沿用
func TestRequestLogger_KeepsIncomingID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	id := uuid.NewString()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, id)
	r.ServeHTTP(w, req)

	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid\r\n")
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid\r\n", w.Header().Get(RequestIDHeader))
}

// TestRecovery_Returns500 panic 被捕获，返回通用 500，服务继续处理后续请求
func TestRecovery_Returns500(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := serve(r, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), w.Body.String())
	assert.NotContains(t, w.Body.String(), "boom")

	w = serve(r, http.MethodGet, "/ok")
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestRecovery_AbortHandler http.ErrAbortHandler 继续向上抛给 net/http，不写 500 页面
func TestRecovery_AbortHandler(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic(http.ErrAbortHandler) })

	w := httptest.NewRecorder()
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Empty(t, w.Body.String())
}

// TestConcurrencyLimiter 并发满时立即返回 503
func TestConcurrencyLimiter(t *testing.T) {
	limiter := NewConcurrencyLimiter(1)

	entered := make(chan struct{})
	release := make(chan struct{})

	r := gin.New()
	r.Use(limiter.Middleware())
	r.GET("/", func(c *gin.Context) {
		select {
		case entered <- struct{}{}:
			<-release
		default:
		}
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	var first *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = serve(r, http.MethodGet, "/")
	}()
	<-entered

	w := serve(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	close(release)
	wg.Wait()
	assert.Equal(t, http.StatusOK, first.Code)

	w = serve(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestConcurrencyLimiter_BlockTimeout 等待超时返回 503
func TestConcurrencyLimiter_BlockTimeout(t *testing.T) {
	limiter := NewConcurrencyLimiter(1)
	require.True(t, limiter.sem.TryAcquire(1))
	defer limiter.sem.Release(1)

	r := gin.New()
	r.Use(limiter.MiddlewareWithBlock(20 * time.Millisecond))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestIPRateLimiter 超过 burst 后返回 429
func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2, time.Minute)
	defer limiter.StopCleanup()

	r := gin.New()
	r.Use(limiter.Middleware())
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/").Code)

	w := serve(r, http.MethodPost, "/")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, http.StatusText(http.StatusTooManyRequests), w.Body.String())
}

// TestIPRateLimiter_Disabled rps 为 0 时不限流
func TestIPRateLimiter_Disabled(t *testing.T) {
	limiter := NewIPRateLimiter(0, 1, time.Minute)
	defer limiter.StopCleanup()

	r := gin.New()
	r.Use(limiter.Middleware())
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/").Code)
	}
}

// TestIPRateLimiter_Evict 过期客户端被清理
func TestIPRateLimiter_Evict(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1, time.Minute)
	defer limiter.StopCleanup()
	limiter.StopCleanup()

	now := time.Now()
	limiter.allow("10.0.0.1", now.Add(-2*time.Minute))
	limiter.allow("10.0.0.2", now)

	limiter.evict(now)

	_, stale := limiter.limiterMap.Load("10.0.0.1")
	_, fresh := limiter.limiterMap.Load("10.0.0.2")
	assert.False(t, stale)
	assert.True(t, fresh)
}

// TestMetrics 统计请求数与 5xx 数
func TestMetrics(t *testing.T) {
	ResetMetrics()
	defer ResetMetrics()

	r := gin.New()
	r.Use(Metrics())
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, http.MethodGet, "/ok")
	serve(r, http.MethodGet, "/ok")
	serve(r, http.MethodGet, "/fail")

	m := GetMetrics()
	assert.Equal(t, int64(3), m["request_count"])
	assert.Equal(t, int64(1), m["error_count"])
}
