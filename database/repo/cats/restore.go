package cats

import (
	"context"
	"fmt"

	"github.com/anoixa/catdex/database/models"
	"gorm.io/gorm/clause"
)

// ImportCats 按原 id 写入记录，id 已存在的行跳过，返回实际写入的行数
func (r *Repository) ImportCats(ctx context.Context, batch []models.Cat) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&batch)
	if result.Error != nil {
		return 0, classify("import cats", result.Error)
	}
	return result.RowsAffected, nil
}

// SyncSequence 显式写入 id 后让自增序列越过当前最大 id
// SQLite 的 AUTOINCREMENT 自动跟随，只有 PostgreSQL 需要处理
func (r *Repository) SyncSequence(ctx context.Context) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}

	var maxID int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Cat{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error; err != nil {
		return classify("max cat id", err)
	}
	if maxID == 0 {
		return nil
	}

	table := models.Cat{}.TableName()
	sql := fmt.Sprintf("SELECT setval(pg_get_serial_sequence('%s', 'id'), ?)", table)
	if err := db.Exec(sql, maxID).Error; err != nil {
		return classify("sync cat sequence", err)
	}
	return nil
}

// CountCats 记录总数
func (r *Repository) CountCats(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Cat{}).Count(&n).Error; err != nil {
		return 0, classify("count cats", err)
	}
	return n, nil
}
