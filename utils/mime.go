package utils

import (
	"mime"
	"path/filepath"
	"strings"
)

// GetExtensionFromFilename 从文件名获取扩展名（小写）
func GetExtensionFromFilename(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ContentTypeFor 根据扩展名推断 Content-Type，未知类型返回 application/octet-stream
func ContentTypeFor(filename string) string {
	switch ext := GetExtensionFromFilename(filename); ext {
	case "":
		return "application/octet-stream"
	case ".gz", ".tgz":
		return "application/gzip"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
