package validator

import (
	"io"

	"github.com/h2non/filetype"
)

// allowedImageMimeTypes Allowed image types
var allowedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// headerSize 文件头检测读取的字节数
const headerSize = 262

// IsImage 读取文件头判断是否为允许的图片类型，完成后把流重置到开头
// 不是图片时返回的类型为空
func IsImage(file io.ReadSeeker) (bool, string, error) {
	buffer := make([]byte, headerSize)
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false, "", err
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return false, "", err
	}

	ok, mimeType := IsImageBytes(buffer[:n])
	return ok, mimeType, nil
}

// IsImageBytes 字节切片版本
func IsImageBytes(data []byte) (bool, string) {
	if len(data) == 0 {
		return false, ""
	}
	kind, err := filetype.Image(data)
	if err != nil || kind == filetype.Unknown {
		return false, ""
	}
	if allowedImageMimeTypes[kind.MIME.Value] {
		return true, kind.MIME.Value
	}
	return false, ""
}
