package backup

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anoixa/catdex/database/models"
	"github.com/anoixa/catdex/storage"
	"github.com/rs/zerolog/log"
)

// ErrInvalidArchive 归档缺少必要文件或格式错误
var ErrInvalidArchive = errors.New("invalid backup archive")

// CatSink 还原目标，id 已存在的记录由实现跳过
type CatSink interface {
	ImportCats(ctx context.Context, batch []models.Cat) (int64, error)
	SyncSequence(ctx context.Context) error
}

// ImageSink 图片还原目标
type ImageSink interface {
	Exists(ctx context.Context, name string) (bool, error)
	SaveWithContext(ctx context.Context, name string, file io.Reader) error
}

// RestoreStats 还原统计
type RestoreStats struct {
	Metadata      *Metadata
	CatsRestored  int64
	CatsSkipped   int64
	ImagesWritten int
	ImagesSkipped int
	DryRun        bool
}

// Restore 从 r 读取归档写回数据库和上传目录，已有的记录和同名图片保持不变
func Restore(ctx context.Context, r io.Reader, cats CatSink, images ImageSink, dryRun bool) (*RestoreStats, error) {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	defer func() { _ = gzReader.Close() }()

	stats := &RestoreStats{DryRun: dryRun}
	sawCats := false
	tarReader := tar.NewReader(gzReader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			log.Warn().Str("entry", header.Name).Msg("Skipping backup entry with insecure path")
			stats.ImagesSkipped++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("%w: %w", ErrInvalidArchive, err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		switch {
		case header.Name == MetadataFile:
			var meta Metadata
			if err := json.NewDecoder(tarReader).Decode(&meta); err != nil {
				return stats, fmt.Errorf("%w: metadata: %w", ErrInvalidArchive, err)
			}
			stats.Metadata = &meta

		case header.Name == CatsFile:
			sawCats = true
			if err := restoreCats(ctx, tarReader, cats, stats); err != nil {
				return stats, err
			}

		case strings.HasPrefix(header.Name, ImagesDir+"/"):
			if err := restoreImage(ctx, tarReader, strings.TrimPrefix(header.Name, ImagesDir+"/"), images, stats); err != nil {
				return stats, err
			}

		default:
			log.Warn().Str("entry", header.Name).Msg("Skipping unknown backup entry")
		}
	}

	if !sawCats {
		return stats, fmt.Errorf("%w: missing %s", ErrInvalidArchive, CatsFile)
	}

	if !dryRun && stats.CatsRestored > 0 {
		if err := cats.SyncSequence(ctx); err != nil {
			return stats, fmt.Errorf("failed to update id sequence: %w", err)
		}
	}

	log.Info().
		Bool("dry_run", dryRun).
		Int64("cats_restored", stats.CatsRestored).
		Int64("cats_skipped", stats.CatsSkipped).
		Int("images_written", stats.ImagesWritten).
		Int("images_skipped", stats.ImagesSkipped).
		Msg("Restore finished")
	return stats, nil
}

func restoreCats(ctx context.Context, r io.Reader, cats CatSink, stats *RestoreStats) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	batch := make([]models.Cat, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if stats.DryRun {
			stats.CatsRestored += int64(len(batch))
		} else {
			n, err := cats.ImportCats(ctx, batch)
			if err != nil {
				return fmt.Errorf("failed to import cats: %w", err)
			}
			stats.CatsRestored += n
			stats.CatsSkipped += int64(len(batch)) - n
		}
		batch = batch[:0]
		return nil
	}

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var cat models.Cat
		if err := json.Unmarshal([]byte(line), &cat); err != nil {
			return fmt.Errorf("%w: %s line %d: %w", ErrInvalidArchive, CatsFile, lineNum, err)
		}
		if cat.ID <= 0 {
			return fmt.Errorf("%w: %s line %d: missing id", ErrInvalidArchive, CatsFile, lineNum)
		}
		batch = append(batch, cat)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArchive, err)
	}
	return flush()
}

func restoreImage(ctx context.Context, r io.Reader, name string, images ImageSink, stats *RestoreStats) error {
	if !storage.IsValidFileName(name) {
		log.Warn().Str("name", name).Msg("Skipping image with invalid name")
		stats.ImagesSkipped++
		return nil
	}

	exists, err := images.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		stats.ImagesSkipped++
		return nil
	}

	if !stats.DryRun {
		if err := images.SaveWithContext(ctx, name, r); err != nil {
			return fmt.Errorf("failed to restore image %s: %w", name, err)
		}
	}
	stats.ImagesWritten++
	return nil
}
