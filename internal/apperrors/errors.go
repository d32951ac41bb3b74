// Package apperrors 定义请求处理链路中的错误分类，以及到 HTTP 状态码的映射。
// 组件返回的错误都用 fmt.Errorf("...: %w", ErrXxx) 包装其中一个哨兵，
// 处理器只通过 errors.Is 判断类别，不解析错误文本。
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrUnavailable 连接池耗尽或数据库不可达
	ErrUnavailable = errors.New("store unavailable")
	// ErrQuery 数据库拒绝执行语句
	ErrQuery = errors.New("query failed")
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("not found")
	// ErrMissingField 表单缺少必填字段
	ErrMissingField = errors.New("missing form field")
	// ErrStorageIO 文件写入失败
	ErrStorageIO = errors.New("storage io failure")
	// ErrTemplateNotFound 模板未注册
	ErrTemplateNotFound = errors.New("template not found")
	// ErrRender 模板执行失败
	ErrRender = errors.New("render failed")
	// ErrBadRequest 路径参数或请求体格式错误
	ErrBadRequest = errors.New("bad request")
)

// StatusCode 将错误映射为 HTTP 状态码
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
