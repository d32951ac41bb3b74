package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
)

// 备份远端类型
const (
	RemoteMinio  = "minio"
	RemoteWebDAV = "webdav"
)

// DecodeOptions 把 backup_* 选项解码为具体配置，字符串形式的布尔值、数字和时长会被转换
func DecodeOptions(opts map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(opts)
}

// NewRemote 根据类型创建备份远端
func NewRemote(ctx context.Context, kind string, opts map[string]interface{}) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case RemoteMinio:
		var cfg MinioConfig
		if err := DecodeOptions(opts, &cfg); err != nil {
			return nil, fmt.Errorf("invalid minio options: %w", err)
		}
		provider, err = NewMinioStorage(ctx, cfg)
	case RemoteWebDAV:
		var cfg WebDAVConfig
		if err := DecodeOptions(opts, &cfg); err != nil {
			return nil, fmt.Errorf("invalid webdav options: %w", err)
		}
		provider, err = NewWebDAVStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported backup target: %q", kind)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("remote", provider.Name()).Msg("Backup remote initialized")
	return provider, nil
}
