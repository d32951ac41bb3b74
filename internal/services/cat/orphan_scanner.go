package cat

import (
	"context"
	"errors"
	"path"
	"path/filepath"
	"time"

	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/anoixa/catdex/internal/worker"
	"github.com/anoixa/catdex/storage"
	"github.com/anoixa/catdex/utils"
	"github.com/anoixa/catdex/utils/format"
	"github.com/rs/zerolog/log"
)

// ImagePathLister 列出所有记录引用的图片路径
type ImagePathLister interface {
	ListImagePaths(ctx context.Context) ([]string, error)
}

// ScanResult 一次孤儿扫描的结果
type ScanResult struct {
	Scanned int
	Orphans []storage.FileInfo
	Removed int
	Freed   int64
	DryRun  bool
}

// OrphanScanner 孤儿图片扫描器
// 图片先于记录写入，插入失败或进程在两步之间退出都会留下没有记录引用的文件。
// 修改时间晚于 minAge 的文件可能属于仍在进行中的上传，不会被视为孤儿。
type OrphanScanner struct {
	paths    ImagePathLister
	images   *storage.LocalStorage
	pool     *worker.Pool
	minAge   time.Duration
	interval time.Duration
	now      func() time.Time
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewOrphanScanner 创建孤儿图片扫描器
// minAge: 文件至少存在多久才会被清理
// interval: 后台扫描间隔，Start 使用
func NewOrphanScanner(paths ImagePathLister, images *storage.LocalStorage, pool *worker.Pool, minAge, interval time.Duration) *OrphanScanner {
	return &OrphanScanner{
		paths:    paths,
		images:   images,
		pool:     pool,
		minAge:   minAge,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Scan 找出并删除孤儿图片，dryRun 时只报告不删除
func (s *OrphanScanner) Scan(ctx context.Context, dryRun bool) (*ScanResult, error) {
	// 先列文件再读记录：列举之后才提交的上传一定能在记录中找到
	var files []storage.FileInfo
	if err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		files, err = s.images.List(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	var paths []string
	if err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		paths, err = s.paths.ListImagePaths(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	// 目录写法不同的记录（相对与绝对路径、从其他部署恢复）按文件名保护
	referenced := make(map[string]struct{}, len(paths))
	foreign := 0
	for _, p := range paths {
		name, ok := s.images.NameFromImagePath(p)
		if !ok {
			name = path.Base(filepath.ToSlash(p))
			foreign++
		}
		if storage.IsValidFileName(name) {
			referenced[name] = struct{}{}
		}
	}
	if foreign > 0 {
		log.Debug().Int("count", foreign).Str("dir", s.images.ImagePath("")).
			Msg("[OrphanScanner] Rows reference images outside the upload directory, matched by file name")
	}

	result := &ScanResult{Scanned: len(files), DryRun: dryRun}
	cutoff := s.now().Add(-s.minAge)
	for _, f := range files {
		if _, ok := referenced[f.Name]; ok || f.ModTime.After(cutoff) {
			continue
		}
		result.Orphans = append(result.Orphans, f)
	}

	if dryRun {
		return result, nil
	}

	for _, f := range result.Orphans {
		name := f.Name
		err := s.pool.Do(ctx, func(ctx context.Context) error {
			return s.images.DeleteWithContext(ctx, name)
		})
		switch {
		case err == nil:
			result.Removed++
			result.Freed += f.Size
		case errors.Is(err, apperrors.ErrNotFound):
			// 已被其他进程删除
		default:
			return result, err
		}
	}

	if result.Removed > 0 {
		log.Info().
			Int("removed", result.Removed).
			Str("freed", format.HumanReadableSize(result.Freed)).
			Msg("[OrphanScanner] Orphan images removed")
	}
	return result, nil
}

// Start 启动后台扫描，interval 不大于 0 时不启动
func (s *OrphanScanner) Start() {
	if s.interval <= 0 || s.started {
		return
	}
	s.started = true

	ticker := time.NewTicker(s.interval)
	utils.SafeGo(func() {
		defer close(s.doneCh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Scan(context.Background(), false); err != nil {
					log.Warn().Err(err).Msg("[OrphanScanner] Scan failed")
				}
			case <-s.stopCh:
				return
			}
		}
	})
	log.Info().Dur("interval", s.interval).Dur("min_age", s.minAge).Msg("[OrphanScanner] Started")
}

// Stop 停止后台扫描并等待当前扫描结束
func (s *OrphanScanner) Stop() {
	if !s.started {
		return
	}
	select {
	case <-s.stopCh:
		return
	default:
		close(s.stopCh)
	}
	<-s.doneCh
}
