package config

import "fmt"

// 构建时通过 -ldflags "-X" 注入
var (
	Version    string = "dev"
	CommitHash string = ""
)

// IsDevelopment 判断是否为开发构建
func IsDevelopment() bool {
	return Version == "dev"
}

// BuildInfo 返回版本描述，用于启动日志和 health 接口
func BuildInfo() string {
	if CommitHash == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, CommitHash)
}
