// Package backup 把猫咪记录和图片打包成 tar.gz，并能从归档还原。
//
// 归档布局:
//
//	metadata.json   备份元数据
//	cats.jsonl      每行一条记录，按 id 升序
//	images/<name>   上传目录中的图片
package backup

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/anoixa/catdex/config"
	"github.com/anoixa/catdex/database/models"
	"github.com/anoixa/catdex/storage"
	"github.com/rs/zerolog/log"
)

// 归档内的固定文件名
const (
	FormatVersion = "1.0"
	MetadataFile  = "metadata.json"
	CatsFile      = "cats.jsonl"
	ImagesDir     = "images"
)

const batchSize = 500

// Metadata 备份元数据
type Metadata struct {
	Version     string    `json:"version"`
	AppVersion  string    `json:"app_version"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
	ProjectName string    `json:"project_name"`
	UploadDir   string    `json:"upload_dir"`
	CatCount    int64     `json:"cat_count"`
	ImageCount  int       `json:"image_count"`
	ImageBytes  int64     `json:"image_bytes"`
}

// CatSource 按 id 顺序分批遍历记录
type CatSource interface {
	EachBatch(ctx context.Context, batchSize int, fn func([]models.Cat) error) error
}

// ImageSource 上传目录
type ImageSource interface {
	List(ctx context.Context) ([]storage.FileInfo, error)
	GetWithContext(ctx context.Context, name string) (io.ReadSeeker, error)
}

// Write 把全部记录和图片写入 w，返回填好计数的元数据
func Write(ctx context.Context, w io.Writer, cats CatSource, images ImageSource, meta Metadata) (*Metadata, error) {
	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)

	meta.Version = FormatVersion
	meta.AppVersion = config.BuildInfo()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}

	// tar 头需要提前知道大小，记录部分先缓冲在内存
	var records bytes.Buffer
	encoder := json.NewEncoder(&records)
	err := cats.EachBatch(ctx, batchSize, func(batch []models.Cat) error {
		for _, cat := range batch {
			if err := encoder.Encode(cat); err != nil {
				return err
			}
			meta.CatCount++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cats: %w", err)
	}
	if err := writeEntry(tarWriter, CatsFile, meta.Timestamp, records.Bytes()); err != nil {
		return nil, err
	}

	files, err := images.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeImage(ctx, tarWriter, images, file); err != nil {
			return nil, err
		}
		meta.ImageCount++
		meta.ImageBytes += file.Size
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeEntry(tarWriter, MetadataFile, meta.Timestamp, metaBytes); err != nil {
		return nil, err
	}

	if err := tarWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close tar writer: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	log.Info().
		Int64("cats", meta.CatCount).
		Int("images", meta.ImageCount).
		Msg("Backup archive written")
	return &meta, nil
}

func writeEntry(tw *tar.Writer, name string, modTime time.Time, data []byte) error {
	header := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(data)),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func writeImage(ctx context.Context, tw *tar.Writer, images ImageSource, file storage.FileInfo) error {
	reader, err := images.GetWithContext(ctx, file.Name)
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", file.Name, err)
	}
	if closer, ok := reader.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	header := &tar.Header{
		Name:     path.Join(ImagesDir, file.Name),
		Mode:     0o644,
		Size:     file.Size,
		ModTime:  file.ModTime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write image header %s: %w", file.Name, err)
	}
	if _, err := io.CopyN(tw, reader, file.Size); err != nil {
		return fmt.Errorf("failed to archive image %s: %w", file.Name, err)
	}
	return nil
}

// FileName 默认归档文件名
func FileName(now time.Time) string {
	return fmt.Sprintf("backup_%s.tar.gz", now.Format("20060102_150405"))
}
