package cats

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/anoixa/catdex/database/models"
	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	path := filepath.Join(t.TempDir(), "cats.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Cat{}))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestInsertCat_ThenGetByID(t *testing.T) {
	repo := NewRepository(setupTestDB(t), 0)
	ctx := context.Background()

	inputs := []models.NewCat{
		{Name: "Whiskers", ImagePath: "static/images/whiskers.png"},
		{Name: "Mr. Bigglesworth", ImagePath: "static/images/a b&c.jpg"},
		{Name: "Ünïcødé 猫", ImagePath: "static/images/neko.gif"},
	}

	for _, in := range inputs {
		t.Run(in.Name, func(t *testing.T) {
			created, err := repo.InsertCat(ctx, in)
			require.NoError(t, err)
			assert.NotZero(t, created.ID)

			got, err := repo.GetCatByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, in.Name, got.Name)
			assert.Equal(t, in.ImagePath, got.ImagePath)
			assert.Equal(t, created.ID, got.ID)
		})
	}
}

func TestGetCatByID_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t), 0)

	cat, err := repo.GetCatByID(context.Background(), 999999)
	assert.Nil(t, cat)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListCats_Limit(t *testing.T) {
	repo := NewRepository(setupTestDB(t), 0)
	ctx := context.Background()

	empty, err := repo.ListCats(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 0; i < 5; i++ {
		_, err := repo.InsertCat(ctx, models.NewCat{
			Name:      fmt.Sprintf("cat-%d", i),
			ImagePath: fmt.Sprintf("static/images/cat-%d.png", i),
		})
		require.NoError(t, err)
	}

	tests := []struct {
		limit int
		want  int
	}{
		{limit: 1, want: 1},
		{limit: 3, want: 3},
		{limit: 5, want: 5},
		{limit: 100, want: 5},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit_%d", tt.limit), func(t *testing.T) {
			cats, err := repo.ListCats(ctx, tt.limit)
			require.NoError(t, err)
			assert.Len(t, cats, tt.want)
			// 插入顺序
			for i, c := range cats {
				assert.Equal(t, fmt.Sprintf("cat-%d", i), c.Name)
			}
		})
	}
}

func TestListCats_InvalidLimit(t *testing.T) {
	repo := NewRepository(setupTestDB(t), 0)

	_, err := repo.ListCats(context.Background(), 0)
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestRepository_ClosedPoolIsUnavailable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, 0)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = repo.ListCats(context.Background(), 10)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)

	_, err = repo.InsertCat(context.Background(), models.NewCat{Name: "x", ImagePath: "y"})
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestRepository_CanceledContextIsUnavailable(t *testing.T) {
	repo := NewRepository(setupTestDB(t), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetCatByID(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestInsertCat_QueryError(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db, 0)
	require.NoError(t, db.Migrator().DropTable(&models.Cat{}))

	_, err := repo.InsertCat(context.Background(), models.NewCat{Name: "x", ImagePath: "y"})
	assert.ErrorIs(t, err, apperrors.ErrQuery)
	assert.NotErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestListImagePaths_AndEachBatch(t *testing.T) {
	repo := NewRepository(setupTestDB(t), 0)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := repo.InsertCat(ctx, models.NewCat{
			Name:      fmt.Sprintf("cat-%d", i),
			ImagePath: fmt.Sprintf("static/images/%d.png", i),
		})
		require.NoError(t, err)
	}

	paths, err := repo.ListImagePaths(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 7)
	assert.Contains(t, paths, "static/images/3.png")

	var seen, batches int
	err = repo.EachBatch(ctx, 3, func(batch []models.Cat) error {
		batches++
		seen += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, seen)
	assert.Equal(t, 3, batches)
}
