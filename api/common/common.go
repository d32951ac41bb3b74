package common

import (
	"net/http"

	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/anoixa/catdex/utils"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Response struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

func Respond(c *gin.Context, httpStatus int, status string, message string, data interface{}) {
	c.JSON(httpStatus, Response{
		Status: status,
		Msg:    message,
		Data:   data,
	})
}

// RespondSuccess sends a success response with data.
func RespondSuccess(c *gin.Context, data interface{}) {
	Respond(c, http.StatusOK, "success", "", data)
}

// RespondHTML 返回渲染好的页面
func RespondHTML(c *gin.Context, html string) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// RespondStatusAbort 只返回通用状态文本并中止后续处理
func RespondStatusAbort(c *gin.Context, httpStatus int) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.AbortWithStatus(httpStatus)
	_, _ = c.Writer.WriteString(http.StatusText(httpStatus))
}

// RespondError 按错误类别返回状态码。错误细节只记录日志，不返回给客户端
func RespondError(c *gin.Context, err error) {
	status := apperrors.StatusCode(err)
	_ = c.Error(err)

	// 只有当前请求自己的 ctx 已结束才视为客户端断开，不再写响应
	if c.Request.Context().Err() != nil && utils.IsClientDisconnect(err) {
		log.Ctx(c.Request.Context()).Debug().Err(err).Str("path", c.FullPath()).Msg("Client disconnected")
		c.Abort()
		return
	}

	event := log.Ctx(c.Request.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = log.Ctx(c.Request.Context()).Error()
	}
	event.Err(err).Int("status", status).Str("path", c.FullPath()).Msg("Request failed")

	RespondStatusAbort(c, status)
}
