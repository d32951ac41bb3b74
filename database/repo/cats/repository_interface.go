package cats

import (
	"context"

	"github.com/anoixa/catdex/database/models"
)

// RepositoryInterface 猫咪仓库接口
type RepositoryInterface interface {
	// ListCats 按插入顺序返回至多 limit 条记录
	ListCats(ctx context.Context, limit int) ([]models.Cat, error)
	// GetCatByID 通过ID获取记录
	GetCatByID(ctx context.Context, id int64) (*models.Cat, error)
	// InsertCat 插入记录
	InsertCat(ctx context.Context, newCat models.NewCat) (*models.Cat, error)
}

// 确保 Repository 实现了 RepositoryInterface
var _ RepositoryInterface = (*Repository)(nil)
