package cat

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/anoixa/catdex/database/models"
	"github.com/anoixa/catdex/database/repo/cats"
	"github.com/anoixa/catdex/internal/apperrors"
	"github.com/anoixa/catdex/internal/worker"
	"github.com/anoixa/catdex/utils"
	"github.com/anoixa/catdex/utils/generator"
	"github.com/anoixa/catdex/utils/validator"
	"github.com/rs/zerolog/log"
)

// 表单字段名
const (
	FieldName  = "name"
	FieldImage = "image"
)

// ImageStore 上传图片的存放位置
type ImageStore interface {
	SaveWithContext(ctx context.Context, name string, file io.Reader) error
	ImagePath(name string) string
}

// UploadService 处理新增猫咪表单：先写图片，再插入记录
type UploadService struct {
	repo  cats.RepositoryInterface
	store ImageStore
	pool  *worker.Pool
	names *generator.NameGenerator
}

// NewUploadService 创建上传服务
func NewUploadService(repo cats.RepositoryInterface, store ImageStore, pool *worker.Pool, names *generator.NameGenerator) *UploadService {
	return &UploadService{
		repo:  repo,
		store: store,
		pool:  pool,
		names: names,
	}
}

// Upload 校验表单、写入图片并插入记录。
// 图片写入失败时不会插入；插入失败时已写入的图片保留在目录中，由孤儿清理回收。
func (s *UploadService) Upload(ctx context.Context, form *multipart.Form) (*models.Cat, error) {
	if form == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingField, FieldName)
	}

	name, ok := firstValue(form.Value[FieldName])
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingField, FieldName)
	}

	files := form.File[FieldImage]
	if len(files) == 0 || files[0] == nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrMissingField, FieldImage)
	}
	header := files[0]

	storedName := s.names.Generate(header.Filename)
	if err := s.pool.Do(ctx, func(ctx context.Context) error {
		return s.save(ctx, header, storedName)
	}); err != nil {
		return nil, err
	}

	newCat := models.NewCat{Name: name, ImagePath: s.store.ImagePath(storedName)}

	var cat *models.Cat
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		cat, err = s.repo.InsertCat(ctx, newCat)
		return err
	})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("image_path", newCat.ImagePath).Msg("Insert failed after image was written, file left for orphan cleanup")
		return nil, err
	}

	log.Ctx(ctx).Info().Int64("id", cat.ID).Str("name", utils.SanitizeLogMessage(cat.Name)).Str("image_path", cat.ImagePath).Msg("Cat added")
	return cat, nil
}

// save 把上传的文件写入图片目录
func (s *UploadService) save(ctx context.Context, header *multipart.FileHeader, storedName string) error {
	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("%w: open upload: %w", apperrors.ErrStorageIO, err)
	}
	defer func() { _ = file.Close() }()

	// 只记录类型，不拒绝非图片文件
	isImage, contentType, err := validator.IsImage(file)
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStorageIO, err)
	}
	if !isImage {
		log.Ctx(ctx).Warn().
			Str("file", utils.SanitizeLogMessage(header.Filename)).
			Msg("Uploaded file is not a recognized image, storing anyway")
	}
	log.Ctx(ctx).Debug().
		Str("file", utils.SanitizeLogMessage(header.Filename)).
		Str("stored_as", storedName).
		Str("content_type", contentType).
		Int64("size", header.Size).
		Msg("Saving uploaded image")

	return s.store.SaveWithContext(ctx, storedName, file)
}

// firstValue 返回第一个非空白的值
func firstValue(values []string) (string, bool) {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
