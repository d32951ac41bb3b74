package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/anoixa/catdex/utils/pool"
)

// LocalStorage 上传图片目录，平铺存放，不建子目录
type LocalStorage struct {
	dir         string // 配置中的目录，用于拼接 image_path
	absBasePath string
}

// NewLocalStorage 创建本地存储，目录不存在则创建，并确认目录可写
func NewLocalStorage(dir string) (*LocalStorage, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", dir, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory '%s': %w", absPath, err)
	}

	testFile := filepath.Join(absPath, ".write_test_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	f, err := os.Create(testFile)
	if err != nil {
		return nil, fmt.Errorf("images directory '%s' is not writable: %w", absPath, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	return &LocalStorage{
		dir:         filepath.Clean(dir),
		absBasePath: absPath + string(os.PathSeparator),
	}, nil
}

// resolve 校验文件名并返回绝对路径
func (s *LocalStorage) resolve(name string) (string, error) {
	if !IsValidFileName(name) {
		return "", fmt.Errorf("%w: invalid file name: %q", apperrors.ErrStorageIO, name)
	}
	fullPath := filepath.Join(s.absBasePath, name)
	if !strings.HasPrefix(fullPath, s.absBasePath) {
		return "", fmt.Errorf("%w: invalid file path, potential directory traversal: %q", apperrors.ErrStorageIO, name)
	}
	return fullPath, nil
}

// SaveWithContext 写入文件，同名文件会被覆盖；写入失败时删除残留文件
func (s *LocalStorage) SaveWithContext(ctx context.Context, name string, file io.Reader) error {
	dstPath, err := s.resolve(name)
	if err != nil {
		return err
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStorageIO, err)
	}

	bufPtr := pool.SharedBufferPool.Get().(*[]byte)
	defer pool.SharedBufferPool.Put(bufPtr)

	if _, err := io.CopyBuffer(dst, file, *bufPtr); err != nil {
		_ = dst.Close()
		_ = os.Remove(dstPath)
		return fmt.Errorf("%w: copy to '%s': %w", apperrors.ErrStorageIO, dstPath, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dstPath)
		return fmt.Errorf("%w: close '%s': %w", apperrors.ErrStorageIO, dstPath, err)
	}
	return nil
}

// GetWithContext 打开文件
func (s *LocalStorage) GetWithContext(ctx context.Context, name string) (io.ReadSeeker, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s", apperrors.ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStorageIO, err)
	}
	return file, nil
}

// DeleteWithContext 删除文件
func (s *LocalStorage) DeleteWithContext(ctx context.Context, name string) error {
	fullPath, err := s.resolve(name)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: file %s", apperrors.ErrNotFound, name)
		}
		return fmt.Errorf("%w: %w", apperrors.ErrStorageIO, err)
	}
	return nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(ctx context.Context, name string) (bool, error) {
	fullPath, err := s.resolve(name)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", apperrors.ErrStorageIO, err)
	}
	return true, nil
}

// FileInfo 图片目录中的文件
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// List 列出目录下的普通文件，跳过隐藏文件，按文件名排序
func (s *LocalStorage) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.absBasePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrStorageIO, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// 列举与删除并发时文件可能已经消失
			continue
		}
		files = append(files, FileInfo{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Health 检查目录是否可读
func (s *LocalStorage) Health(ctx context.Context) error {
	_, err := os.ReadDir(s.absBasePath)
	return err
}

// Name 返回存储名称
func (s *LocalStorage) Name() string {
	return "local"
}

// ImagePath 文件在库中记录的路径，相对于工作目录，例如 static/images/whiskers.png
func (s *LocalStorage) ImagePath(name string) string {
	return filepath.ToSlash(filepath.Join(s.dir, name))
}

// NameFromImagePath ImagePath 的逆操作，不属于本目录时返回 false
func (s *LocalStorage) NameFromImagePath(imagePath string) (string, bool) {
	dir, name := filepath.Split(filepath.FromSlash(imagePath))
	if filepath.Clean(dir) != s.dir || name == "" {
		return "", false
	}
	return name, true
}

// BasePath 返回存储的绝对路径
func (s *LocalStorage) BasePath() string {
	return s.absBasePath
}

// IsValidFileName 只接受单层文件名，不允许分隔符和 . / ..
func IsValidFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.Base(name) == name
}
