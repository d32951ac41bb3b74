package cat

import (
	"bytes"
	"context"
	"mime/multipart"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/anoixa/catdex/database/models"
	"github.com/anoixa/catdex/database/repo/cats"
	"github.com/anoixa/catdex/internal/worker"
	"github.com/anoixa/catdex/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// countingRepo 统计调用次数，可注入插入错误
type countingRepo struct {
	inner     cats.RepositoryInterface
	inserts   atomic.Int32
	gets      atomic.Int32
	insertErr error
}

func (r *countingRepo) ListCats(ctx context.Context, limit int) ([]models.Cat, error) {
	return r.inner.ListCats(ctx, limit)
}

func (r *countingRepo) GetCatByID(ctx context.Context, id int64) (*models.Cat, error) {
	r.gets.Add(1)
	return r.inner.GetCatByID(ctx, id)
}

func (r *countingRepo) InsertCat(ctx context.Context, newCat models.NewCat) (*models.Cat, error) {
	r.inserts.Add(1)
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	return r.inner.InsertCat(ctx, newCat)
}

type testEnv struct {
	repo  *cats.Repository
	count *countingRepo
	store *storage.LocalStorage
	pool  *worker.Pool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "cats.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Cat{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store, err := storage.NewLocalStorage(filepath.Join(dir, "static", "images"))
	require.NoError(t, err)

	pool := worker.NewPool(4, 64)
	t.Cleanup(pool.Stop)

	repo := cats.NewRepository(db, 0)
	return &testEnv{
		repo:  repo,
		count: &countingRepo{inner: repo},
		store: store,
		pool:  pool,
	}
}

// buildForm 构造 multipart 表单，filename 为空时不带文件字段
func buildForm(t *testing.T, fields map[string]string, filename string, content []byte) *multipart.Form {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile(FieldImage, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form
}

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 'm', 'e', 'o', 'w'}
