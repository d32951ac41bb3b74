package database

import (
	"context"
	"fmt"

	"github.com/anoixa/catdex/database/models"
	"github.com/rs/zerolog/log"
)

// CatReader 按 id 顺序分批读取记录
type CatReader interface {
	EachBatch(ctx context.Context, batchSize int, fn func([]models.Cat) error) error
}

// CatWriter 保留 id 写入记录
type CatWriter interface {
	ImportCats(ctx context.Context, batch []models.Cat) (int64, error)
	SyncSequence(ctx context.Context) error
}

// CopyCats 把 src 的全部记录复制到 dst，目标中已存在的 id 跳过
func CopyCats(ctx context.Context, src CatReader, dst CatWriter, batchSize int) (copied, skipped int64, err error) {
	err = src.EachBatch(ctx, batchSize, func(batch []models.Cat) error {
		n, err := dst.ImportCats(ctx, batch)
		if err != nil {
			return err
		}
		copied += n
		skipped += int64(len(batch)) - n
		log.Debug().Int64("copied", copied).Int64("skipped", skipped).Msg("Copied batch")
		return nil
	})
	if err != nil {
		return copied, skipped, fmt.Errorf("failed to copy cats: %w", err)
	}

	if copied > 0 {
		if err := dst.SyncSequence(ctx); err != nil {
			return copied, skipped, fmt.Errorf("failed to update target id sequence: %w", err)
		}
	}
	return copied, skipped, nil
}
