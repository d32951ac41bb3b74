package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/catdex/api/core"
	"github.com/anoixa/catdex/api/handler/cats"
	"github.com/anoixa/catdex/cache"
	"github.com/anoixa/catdex/config"
	"github.com/anoixa/catdex/database"
	catsrepo "github.com/anoixa/catdex/database/repo/cats"
	catsvc "github.com/anoixa/catdex/internal/services/cat"
	"github.com/anoixa/catdex/internal/view"
	"github.com/anoixa/catdex/internal/worker"
	"github.com/anoixa/catdex/storage"
	"github.com/anoixa/catdex/utils/generator"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Container 依赖注入容器，管理进程内共享资源的生命周期
type Container struct {
	config *config.Config

	DB       *gorm.DB
	Pool     *worker.Pool
	Cache    cache.Provider
	Images   *storage.LocalStorage
	Renderer *view.Renderer

	CatsRepo      *catsrepo.Repository
	QueryService  *catsvc.QueryService
	UploadService *catsvc.UploadService
	OrphanScanner *catsvc.OrphanScanner
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Config 返回容器使用的配置
func (c *Container) Config() *config.Config {
	return c.config
}

// Init 初始化服务运行所需的全部依赖，任一步失败都视为启动失败
func (c *Container) Init() error {
	if err := c.InitDatabase(); err != nil {
		return err
	}
	if err := c.InitStorage(); err != nil {
		return err
	}
	if err := c.InitServices(); err != nil {
		return err
	}
	return nil
}

// InitDatabase 连接数据库并创建仓库
func (c *Container) InitDatabase() error {
	if err := c.config.Validate(); err != nil {
		return err
	}

	db, err := database.NewDB(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.DB = db
	c.CatsRepo = catsrepo.NewRepository(db, c.config.DBAcquireTimeout)

	log.Debug().Msg("Database initialized")
	return nil
}

// InitStorage 准备上传目录
func (c *Container) InitStorage() error {
	images, err := storage.NewLocalStorage(c.config.UploadDir)
	if err != nil {
		return fmt.Errorf("failed to initialize images directory: %w", err)
	}
	c.Images = images

	log.Debug().Str("dir", images.BasePath()).Msg("Images directory initialized")
	return nil
}

// InitServices 加载模板并创建协程池、缓存和业务服务
func (c *Container) InitServices() error {
	if c.DB == nil || c.Images == nil {
		return errors.New("database and storage must be initialized before services")
	}

	renderer, err := view.New(c.config.TemplateDir)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}
	c.Renderer = renderer

	cacheProvider, err := cache.New(c.config)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.Cache = cacheProvider

	c.Pool = worker.NewPool(c.config.GetWorkerCount(), c.config.WorkerQueueSize)

	c.QueryService = catsvc.NewQueryService(c.CatsRepo, c.Pool, c.Cache, c.config.CacheTTL)
	c.UploadService = catsvc.NewUploadService(
		c.CatsRepo,
		c.Images,
		c.Pool,
		generator.NewNameGenerator(c.config.UploadKeepOriginalName),
	)
	c.OrphanScanner = catsvc.NewOrphanScanner(
		c.CatsRepo,
		c.Images,
		c.Pool,
		c.config.OrphanMinAge,
		c.config.OrphanScanInterval,
	)

	log.Debug().Strs("templates", renderer.Names()).Msg("Services initialized")
	return nil
}

// ServerDependencies 组装 HTTP 层依赖
func (c *Container) ServerDependencies() *core.ServerDependencies {
	return &core.ServerDependencies{
		DB:     c.DB,
		Cache:  c.Cache,
		Images: c.Images,
		Pool:   c.Pool,
		Cats: cats.Dependencies{
			Renderer:       c.Renderer,
			Query:          c.QueryService,
			Upload:         c.UploadService,
			ProjectName:    c.config.ProjectName,
			UploadMaxBytes: c.config.UploadMaxBytes(),
		},
		StaticDir:     c.config.StaticDir,
		StaticListing: c.config.StaticListing,
	}
}

// Migrate 同步表结构
func (c *Container) Migrate(ctx context.Context) error {
	if c.DB == nil {
		return errors.New("database not initialized")
	}
	return database.AutoMigrate(c.DB.WithContext(ctx))
}

// Close 按依赖的逆序释放资源：先停扫描器和协程池，再关缓存和数据库
func (c *Container) Close() error {
	var errs []error

	if c.OrphanScanner != nil {
		c.OrphanScanner.Stop()
	}
	if c.Pool != nil {
		c.Pool.Stop()
	}
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if c.DB != nil {
		if err := database.Close(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	return errors.Join(errs...)
}
