package generator

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// fallbackName 原始文件名清洗后为空时使用
const fallbackName = "image"

// maxBaseLen 清洗后文件名的最大长度（不含 uuid 前缀）
const maxBaseLen = 128

// NameGenerator 上传文件的存储名生成器
type NameGenerator struct {
	keepOriginal bool
	newID        func() string
}

// NewNameGenerator keepOriginal 为 true 时直接使用原始文件名，同名上传会互相覆盖
func NewNameGenerator(keepOriginal bool) *NameGenerator {
	return &NameGenerator{
		keepOriginal: keepOriginal,
		newID:        func() string { return uuid.NewString() },
	}
}

// Generate 返回存储名，默认格式为 <uuid>-<清洗后的原始文件名>
func (g *NameGenerator) Generate(original string) string {
	base := BaseName(original)
	if g.keepOriginal && base != "" {
		return base
	}
	return g.newID() + "-" + SanitizeBaseName(original)
}

// BaseName 取客户端提交的文件名的最后一段，兼容 Windows 风格的路径
func BaseName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	if base == "." || base == ".." || base == "/" || strings.ContainsRune(base, 0) {
		return ""
	}
	return base
}

// SanitizeBaseName 只保留 [A-Za-z0-9._-]，其余字符替换为下划线
func SanitizeBaseName(original string) string {
	base := BaseName(original)

	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	name := strings.TrimLeft(b.String(), ".")
	if len(name) > maxBaseLen {
		name = name[len(name)-maxBaseLen:]
	}
	if name == "" {
		return fallbackName
	}
	return name
}
