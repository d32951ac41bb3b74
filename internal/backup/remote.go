package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/anoixa/catdex/storage"
	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

// 远端上传重试参数
var (
	uploadAttempts uint = 3
	uploadDelay         = time.Second
)

// Remote 备份远端
type Remote interface {
	SaveWithContext(ctx context.Context, name string, file io.Reader) error
	GetWithContext(ctx context.Context, name string) (io.ReadSeeker, error)
	Name() string
}

var _ Remote = (storage.Provider)(nil)

// Upload 把本地归档上传到远端，远端对象名为归档文件名
// 失败时按退避重试，每次从文件开头重新上传
func Upload(ctx context.Context, remote Remote, archivePath string) (string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = file.Close() }()

	name := filepath.Base(archivePath)
	err = retry.Do(func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return retry.Unrecoverable(err)
		}
		return remote.SaveWithContext(ctx, name, file)
	},
		retry.Context(ctx),
		retry.Attempts(uploadAttempts),
		retry.Delay(uploadDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("remote", remote.Name()).Msg("Backup upload failed, retrying")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to %s: %w", remote.Name(), err)
	}

	log.Info().Str("remote", remote.Name()).Str("object", name).Msg("Backup archive uploaded")
	return name, nil
}

// Download 从远端取回归档
func Download(ctx context.Context, remote Remote, name string) (io.Reader, func(), error) {
	reader, err := remote.GetWithContext(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch %s from %s: %w", name, remote.Name(), err)
	}
	release := func() {
		if closer, ok := reader.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	return reader, release, nil
}
