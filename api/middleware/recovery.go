package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"

	"github.com/anoixa/catdex/api/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Recovery 捕获处理器中的 panic，记录堆栈后返回 500，进程继续运行
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}

			// 交给 net/http 静默断开连接
			if e, ok := err.(error); ok && errors.Is(e, http.ErrAbortHandler) {
				c.Abort()
				panic(err)
			}

			if isBrokenPipe(err) {
				log.Ctx(c.Request.Context()).Debug().Interface("error", err).Msg("client connection lost")
				c.Abort()
				return
			}

			log.Ctx(c.Request.Context()).Error().
				Str("panic", fmt.Sprintf("%v", err)).
				Str("stack_trace", string(debug.Stack())).
				Msg("panic occurred")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			common.RespondStatusAbort(c, http.StatusInternalServerError)
		}()
		c.Next()
	}
}

// isBrokenPipe 客户端提前断开时写响应会 panic，不需要记录堆栈
func isBrokenPipe(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if errors.As(err, &ne) {
		var se *os.SyscallError
		if errors.As(ne, &se) {
			msg := strings.ToLower(se.Error())
			return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
		}
	}
	return false
}
