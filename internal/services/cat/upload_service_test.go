package cat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/anoixa/catdex/utils/generator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) uploadService(keepOriginal bool) *UploadService {
	return NewUploadService(e.count, e.store, e.pool, generator.NewNameGenerator(keepOriginal))
}

func (e *testEnv) imageFiles(t *testing.T) []string {
	t.Helper()
	files, err := e.store.List(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

func TestUpload_Success(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService(false)

	form := buildForm(t, map[string]string{"name": "Whiskers"}, "whiskers.png", pngBytes)
	cat, err := svc.Upload(context.Background(), form)
	require.NoError(t, err)

	assert.NotZero(t, cat.ID)
	assert.Equal(t, "Whiskers", cat.Name)
	assert.True(t, strings.HasSuffix(cat.ImagePath, "whiskers.png"), cat.ImagePath)

	content, err := os.ReadFile(filepath.FromSlash(cat.ImagePath))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, content)

	stored, err := env.repo.GetCatByID(context.Background(), cat.ID)
	require.NoError(t, err)
	assert.Equal(t, cat.ImagePath, stored.ImagePath)
}

func TestUpload_MissingFields(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		field    string
	}{
		{"missing name", nil, "whiskers.png", FieldName},
		{"blank name", map[string]string{"name": "   "}, "whiskers.png", FieldName},
		{"missing image", map[string]string{"name": "Whiskers"}, "", FieldImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			svc := env.uploadService(false)

			_, err := svc.Upload(context.Background(), buildForm(t, tt.fields, tt.filename, pngBytes))
			require.ErrorIs(t, err, apperrors.ErrMissingField)
			assert.Contains(t, err.Error(), tt.field)

			assert.Empty(t, env.imageFiles(t), "no file may be written")
			assert.Equal(t, int32(0), env.count.inserts.Load(), "no insert may happen")
		})
	}
}

func TestUpload_NilForm(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.uploadService(false).Upload(context.Background(), nil)
	assert.ErrorIs(t, err, apperrors.ErrMissingField)
}

// TestUpload_UnwritableDestination 图片写入失败时不插入记录
func TestUpload_UnwritableDestination(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService(false)

	base := strings.TrimSuffix(env.store.BasePath(), string(os.PathSeparator))
	require.NoError(t, os.RemoveAll(base))
	require.NoError(t, os.WriteFile(base, []byte("not a directory"), 0o644))

	_, err := svc.Upload(context.Background(), buildForm(t, map[string]string{"name": "Whiskers"}, "whiskers.png", pngBytes))
	require.ErrorIs(t, err, apperrors.ErrStorageIO)
	assert.Equal(t, int32(0), env.count.inserts.Load())

	list, err := env.repo.ListCats(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestUpload_InsertFailureLeavesFile 插入失败后记录不存在、图片保留
func TestUpload_InsertFailureLeavesFile(t *testing.T) {
	env := newTestEnv(t)
	env.count.insertErr = fmt.Errorf("insert cat: %w", apperrors.ErrQuery)
	svc := env.uploadService(false)

	_, err := svc.Upload(context.Background(), buildForm(t, map[string]string{"name": "Whiskers"}, "whiskers.png", pngBytes))
	require.ErrorIs(t, err, apperrors.ErrQuery)

	files := env.imageFiles(t)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], "whiskers.png"))

	list, err := env.repo.ListCats(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestUpload_ConcurrentSameName 同名并发上传互不覆盖
func TestUpload_ConcurrentSameName(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService(false)

	const n = 10

	var wg sync.WaitGroup
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		form := buildForm(t, map[string]string{"name": fmt.Sprintf("cat-%d", i)}, "whiskers.png", []byte(fmt.Sprintf("image %d", i)))
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cat, err := svc.Upload(context.Background(), form)
			if assert.NoError(t, err) {
				paths[i] = cat.ImagePath
			}
		}(i)
	}
	wg.Wait()

	unique := make(map[string]struct{})
	for i, p := range paths {
		unique[p] = struct{}{}
		content, err := os.ReadFile(filepath.FromSlash(p))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("image %d", i), string(content))
	}
	assert.Len(t, unique, n)
	assert.Len(t, env.imageFiles(t), n)
}

func TestUpload_KeepOriginalName(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService(true)

	cat, err := svc.Upload(context.Background(), buildForm(t, map[string]string{"name": "Whiskers"}, "whiskers.png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, env.store.ImagePath("whiskers.png"), cat.ImagePath)
}

// TestUpload_CanceledContext 请求已取消时不写文件也不插入
func TestUpload_CanceledContext(t *testing.T) {
	env := newTestEnv(t)
	svc := env.uploadService(false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Upload(ctx, buildForm(t, map[string]string{"name": "Whiskers"}, "whiskers.png", pngBytes))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, env.imageFiles(t))
	assert.Equal(t, int32(0), env.count.inserts.Load())
}
