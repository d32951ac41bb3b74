package cats

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/anoixa/catdex/database/models"
	"github.com/anoixa/catdex/internal/apperrors"
	"gorm.io/gorm"
)

// DefaultAcquireTimeout 获取连接并执行语句的默认等待时间
const DefaultAcquireTimeout = 5 * time.Second

// Repository 猫咪记录仓库
// 每个操作都是一条独立语句，连接在语句结束后由 database/sql 归还连接池
type Repository struct {
	db             *gorm.DB
	acquireTimeout time.Duration
}

// NewRepository 创建新的猫咪仓库
func NewRepository(db *gorm.DB, acquireTimeout time.Duration) *Repository {
	if acquireTimeout <= 0 {
		acquireTimeout = DefaultAcquireTimeout
	}
	return &Repository{db: db, acquireTimeout: acquireTimeout}
}

// ListCats 按插入顺序返回至多 limit 条记录
func (r *Repository) ListCats(ctx context.Context, limit int) ([]models.Cat, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list limit %d: %w", limit, apperrors.ErrBadRequest)
	}

	ctx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	cats := make([]models.Cat, 0, min(limit, 128))
	if err := r.db.WithContext(ctx).Order("id asc").Limit(limit).Find(&cats).Error; err != nil {
		return nil, classify("list cats", err)
	}
	return cats, nil
}

// GetCatByID 通过ID获取记录，不存在时返回 ErrNotFound
func (r *Repository) GetCatByID(ctx context.Context, id int64) (*models.Cat, error) {
	ctx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	var cat models.Cat
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&cat).Error; err != nil {
		return nil, classify(fmt.Sprintf("get cat %d", id), err)
	}
	return &cat, nil
}

// InsertCat 插入记录并返回带有数据库分配 id 的完整行
func (r *Repository) InsertCat(ctx context.Context, newCat models.NewCat) (*models.Cat, error) {
	ctx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	cat := &models.Cat{
		Name:      newCat.Name,
		ImagePath: newCat.ImagePath,
	}
	if err := r.db.WithContext(ctx).Create(cat).Error; err != nil {
		return nil, classify("insert cat", err)
	}
	return cat, nil
}

// ListImagePaths 返回所有记录引用的图片路径，用于孤儿文件清理
func (r *Repository) ListImagePaths(ctx context.Context) ([]string, error) {
	var paths []string
	if err := r.db.WithContext(ctx).Model(&models.Cat{}).Pluck("image_path", &paths).Error; err != nil {
		return nil, classify("list image paths", err)
	}
	return paths, nil
}

// EachBatch 按 id 顺序分批遍历全部记录
func (r *Repository) EachBatch(ctx context.Context, batchSize int, fn func([]models.Cat) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	var batch []models.Cat
	result := r.db.WithContext(ctx).FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	if result.Error != nil {
		return classify("iterate cats", result.Error)
	}
	return nil
}

// classify 将数据库错误归类到 apperrors
func classify(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	case isUnavailable(err):
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrQuery, err)
	}
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	// database/sql 未导出该错误
	return strings.Contains(err.Error(), "sql: database is closed")
}
