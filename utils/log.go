package utils

import (
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger 初始化全局 zerolog 日志
// format: "json" 输出结构化日志，其余值输出控制台格式
func InitLogger(level, format string) {
	InitLoggerWithWriter(level, format, os.Stderr)
}

// InitLoggerWithWriter 使用指定 writer 初始化全局日志
func InitLoggerWithWriter(level, format string, w io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	// 没有携带 logger 的 ctx 回落到全局 logger
	zerolog.DefaultContextLogger = &log.Logger
}

// SanitizeLogMessage 去掉不可打印字符，避免用户输入污染日志
func SanitizeLogMessage(msg string) string {
	var sb strings.Builder
	for _, r := range msg {
		if r == '\n' || r == '\t' {
			sb.WriteRune(' ')
		} else if unicode.IsPrint(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
