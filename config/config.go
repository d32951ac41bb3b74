package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig Config
	once         sync.Once
)

// ErrMissingDatabaseURL DATABASE_URL 未设置
var ErrMissingDatabaseURL = errors.New("DATABASE_URL must be set")

// backupPrefix 远程备份配置项前缀
const backupPrefix = "backup_"

// Config 扁平化配置结构体
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`
	ProjectName        string        `mapstructure:"project_name"`
	CorsAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`

	// 数据库配置
	DatabaseURL       string        `mapstructure:"database_url"`
	DBMaxOpenConns    int           `mapstructure:"db_max_open_conns"`
	DBMaxIdleConns    int           `mapstructure:"db_max_idle_conns"`
	DBConnMaxLifetime int           `mapstructure:"db_conn_max_lifetime"`
	DBAcquireTimeout  time.Duration `mapstructure:"db_acquire_timeout"`

	// 页面与静态资源
	TemplateDir   string `mapstructure:"template_dir"`
	StaticDir     string `mapstructure:"static_dir"`
	StaticListing bool   `mapstructure:"static_listing"`

	// 上传配置
	UploadDir              string `mapstructure:"upload_dir"`
	UploadMaxSizeMB        int    `mapstructure:"upload_max_size_mb"`
	UploadKeepOriginalName bool   `mapstructure:"upload_keep_original_name"`

	// 孤儿图片清理，扫描间隔为 0 时只能通过 clean 命令手动清理
	OrphanMinAge       time.Duration `mapstructure:"orphan_min_age"`
	OrphanScanInterval time.Duration `mapstructure:"orphan_scan_interval"`

	// 缓存配置
	CacheType          string        `mapstructure:"cache_type"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	CacheMaxCost       int64         `mapstructure:"cache_max_cost"`
	CacheRedisAddr     string        `mapstructure:"cache_redis_addr"`
	CacheRedisPassword string        `mapstructure:"cache_redis_password"`
	CacheRedisDB       int           `mapstructure:"cache_redis_db"`

	// 限流配置
	RateLimitUploadRPS   float64       `mapstructure:"rate_limit_upload_rps"`
	RateLimitUploadBurst int           `mapstructure:"rate_limit_upload_burst"`
	RateLimitExpireTime  time.Duration `mapstructure:"rate_limit_expire_time"`
	MaxConcurrency       int64         `mapstructure:"max_concurrency"`

	// Worker 配置
	WorkerCount     int `mapstructure:"worker_count"`
	WorkerQueueSize int `mapstructure:"worker_queue_size"`

	// 日志配置
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// 备份远端，backup_* 原样保留，由 storage.NewRemote 解码
	BackupTarget  string                 `mapstructure:"backup_target"`
	BackupOptions map[string]interface{} `mapstructure:"-"`
}

// InitConfig Initialize configuration
func InitConfig() {
	InitConfigFrom(".env")
}

// InitConfigFrom 从指定 env 文件初始化全局配置，只生效一次
func InitConfigFrom(envFile string) {
	once.Do(func() {
		loadConfig(envFile)
	})
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig(envFile string) {
	cfg, err := Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to load config, %v\n", err)
		os.Exit(1)
	}
	globalConfig = *cfg
}

// Load 从指定 env 文件和环境变量加载配置，文件不存在时只使用默认值和环境变量
func Load(envFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "Info: .env file not found, using defaults and environment variables")
		} else {
			fmt.Fprintln(os.Stderr, "Info: Loaded configuration from .env file")
		}
	}

	v.AutomaticEnv()
	for _, key := range v.AllKeys() {
		_ = v.BindEnv(key)
	}
	// 没有默认值的 backup_* 键只能从环境变量中发现
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if key := strings.ToLower(name); strings.HasPrefix(key, backupPrefix) {
			_ = v.BindEnv(key, name)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	cfg.BackupOptions = make(map[string]interface{})
	for _, key := range v.AllKeys() {
		if strings.HasPrefix(key, backupPrefix) && key != "backup_target" {
			cfg.BackupOptions[strings.TrimPrefix(key, backupPrefix)] = v.Get(key)
		}
	}

	// WorkerCount: -1 = 使用 CPU 线程数, 0 = 使用默认值 (max(2, CPU核心数)), >0 = 使用指定值
	switch {
	case cfg.WorkerCount < 0:
		cfg.WorkerCount = runtime.GOMAXPROCS(0)
	case cfg.WorkerCount == 0:
		cfg.WorkerCount = getCpus()
	}

	return &cfg, nil
}

// Validate 检查启动所必需的配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return ErrMissingDatabaseURL
	}
	if c.TemplateDir == "" {
		return errors.New("template_dir must not be empty")
	}
	if c.UploadDir == "" {
		return errors.New("upload_dir must not be empty")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// 服务器配置默认值
	v.SetDefault("server_host", "127.0.0.1")
	v.SetDefault("server_port", 8080)
	v.SetDefault("server_read_timeout", "15s")
	v.SetDefault("server_write_timeout", "30s")
	v.SetDefault("server_idle_timeout", "120s")
	v.SetDefault("project_name", "Catdex")
	v.SetDefault("cors_allowed_origins", []string{})

	// 数据库配置默认值，database_url 没有默认值
	v.SetDefault("database_url", "")
	v.SetDefault("db_max_open_conns", 20)
	v.SetDefault("db_max_idle_conns", 5)
	v.SetDefault("db_conn_max_lifetime", 3600)
	v.SetDefault("db_acquire_timeout", "5s")

	v.SetDefault("template_dir", "./templates")
	v.SetDefault("static_dir", "./static")
	v.SetDefault("static_listing", true)

	// 上传配置默认值
	v.SetDefault("upload_dir", "static/images")
	v.SetDefault("upload_max_size_mb", 20)
	v.SetDefault("upload_keep_original_name", false)
	v.SetDefault("orphan_min_age", "10m")
	v.SetDefault("orphan_scan_interval", "0s")

	// 缓存配置默认值
	v.SetDefault("cache_type", "memory")
	v.SetDefault("cache_ttl", "10m")
	v.SetDefault("cache_max_cost", 10000)
	v.SetDefault("cache_redis_addr", "localhost:6379")
	v.SetDefault("cache_redis_password", "")
	v.SetDefault("cache_redis_db", 0)

	// 限流配置默认值
	v.SetDefault("rate_limit_upload_rps", 2.0)
	v.SetDefault("rate_limit_upload_burst", 10)
	v.SetDefault("rate_limit_expire_time", "10m")
	v.SetDefault("max_concurrency", 100)

	// Worker 配置默认值
	v.SetDefault("worker_count", 0) // 0 表示使用默认值
	v.SetDefault("worker_queue_size", 256)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetDefault("backup_target", "")
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// UploadMaxBytes 单次上传的最大字节数
func (c *Config) UploadMaxBytes() int64 {
	if c.UploadMaxSizeMB <= 0 {
		return 20 << 20
	}
	return int64(c.UploadMaxSizeMB) << 20
}

// GetWorkerCount 返回 worker 数量
func (c *Config) GetWorkerCount() int {
	if c.WorkerCount <= 0 {
		return getCpus()
	}
	return c.WorkerCount
}

// getCpus 获取默认线程数量
func getCpus() int {
	n := runtime.GOMAXPROCS(0)
	if n < 2 {
		return 2
	}
	return n
}
