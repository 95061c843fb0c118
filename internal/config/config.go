// Package config loads the application configuration from file and
// environment through viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultAppEnv         = "development"
	defaultAppName        = "crawler"
	defaultServerAddress  = ":8080"
	defaultReadTimeout    = 30 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultDBHost         = "localhost"
	defaultDBPort         = 5432
	defaultDBUser         = "postgres"
	defaultDBName         = "crawler"
	defaultDBSSLMode      = "disable"
	defaultDBMaxOpenConns = 25
	defaultDBMaxIdleConns = 5
	defaultMinioEndpoint  = "localhost:9000"
	defaultMinioBucket    = "crawler-content"
	defaultUserAgent      = "leobrain-crawler/1.0"
	defaultConcurrency    = 2
	defaultMaxRetries     = 3
	defaultFetchTimeout   = 30 * time.Second
	defaultSitesFile      = "sites.yml"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
)

// Config is the full application configuration.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Minio    MinioConfig
	Crawl    CrawlConfig
	Logging  LoggingConfig
}

// AppConfig identifies the running service.
type AppConfig struct {
	Env   string
	Name  string
	Debug bool
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// MinioConfig holds the object store connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// CrawlConfig holds the crawl-wide defaults shared by every site.
type CrawlConfig struct {
	UserAgent string
	// Concurrency caps connections to one remote host across all
	// concurrent crawl runs. Per-run fetch parallelism is configured per
	// site in the sites file.
	Concurrency   int
	MaxRetries    int
	FetchTimeout  time.Duration
	RespectRobots bool
	RenderEnabled bool
	SitesFile     string
}

// LoggingConfig holds the log output settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// New returns a Config with default values.
func New() *Config {
	return &Config{
		App: AppConfig{
			Env:  defaultAppEnv,
			Name: defaultAppName,
		},
		Server: ServerConfig{
			Address:      defaultServerAddress,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		Database: DatabaseConfig{
			Host:         defaultDBHost,
			Port:         defaultDBPort,
			User:         defaultDBUser,
			DBName:       defaultDBName,
			SSLMode:      defaultDBSSLMode,
			MaxOpenConns: defaultDBMaxOpenConns,
			MaxIdleConns: defaultDBMaxIdleConns,
		},
		Minio: MinioConfig{
			Endpoint: defaultMinioEndpoint,
			Bucket:   defaultMinioBucket,
		},
		Crawl: CrawlConfig{
			UserAgent:     defaultUserAgent,
			Concurrency:   defaultConcurrency,
			MaxRetries:    defaultMaxRetries,
			FetchTimeout:  defaultFetchTimeout,
			RespectRobots: true,
			SitesFile:     defaultSitesFile,
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Load returns the defaults overlaid with every value the given viper
// instance has from its config file or bound environment.
func Load(v *viper.Viper) *Config {
	cfg := New()
	loadApp(v, &cfg.App)
	loadServer(v, &cfg.Server)
	loadDatabase(v, &cfg.Database)
	loadMinio(v, &cfg.Minio)
	loadCrawl(v, &cfg.Crawl)
	loadLogging(v, &cfg.Logging)
	return cfg
}

func loadApp(v *viper.Viper, cfg *AppConfig) {
	if v.IsSet("app.env") {
		cfg.Env = v.GetString("app.env")
	}
	if v.IsSet("app.name") {
		cfg.Name = v.GetString("app.name")
	}
	if v.IsSet("app.debug") {
		cfg.Debug = v.GetBool("app.debug")
	}
}

func loadServer(v *viper.Viper, cfg *ServerConfig) {
	if v.IsSet("server.address") {
		cfg.Address = v.GetString("server.address")
	}
	if v.IsSet("server.read_timeout") {
		cfg.ReadTimeout = v.GetDuration("server.read_timeout")
	}
	if v.IsSet("server.write_timeout") {
		cfg.WriteTimeout = v.GetDuration("server.write_timeout")
	}
	if v.IsSet("server.idle_timeout") {
		cfg.IdleTimeout = v.GetDuration("server.idle_timeout")
	}
}

func loadDatabase(v *viper.Viper, cfg *DatabaseConfig) {
	if v.IsSet("database.host") {
		cfg.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.max_open_conns") {
		cfg.MaxOpenConns = v.GetInt("database.max_open_conns")
	}
	if v.IsSet("database.max_idle_conns") {
		cfg.MaxIdleConns = v.GetInt("database.max_idle_conns")
	}
}

func loadMinio(v *viper.Viper, cfg *MinioConfig) {
	if v.IsSet("minio.endpoint") {
		cfg.Endpoint = v.GetString("minio.endpoint")
	}
	if v.IsSet("minio.access_key") {
		cfg.AccessKey = v.GetString("minio.access_key")
	}
	if v.IsSet("minio.secret_key") {
		cfg.SecretKey = v.GetString("minio.secret_key")
	}
	if v.IsSet("minio.bucket") {
		cfg.Bucket = v.GetString("minio.bucket")
	}
	if v.IsSet("minio.region") {
		cfg.Region = v.GetString("minio.region")
	}
	if v.IsSet("minio.use_ssl") {
		cfg.UseSSL = v.GetBool("minio.use_ssl")
	}
}

func loadCrawl(v *viper.Viper, cfg *CrawlConfig) {
	if v.IsSet("crawl.user_agent") {
		cfg.UserAgent = v.GetString("crawl.user_agent")
	}
	if v.IsSet("crawl.concurrency") {
		cfg.Concurrency = v.GetInt("crawl.concurrency")
	}
	if v.IsSet("crawl.max_retries") {
		cfg.MaxRetries = v.GetInt("crawl.max_retries")
	}
	if v.IsSet("crawl.fetch_timeout") {
		cfg.FetchTimeout = v.GetDuration("crawl.fetch_timeout")
	}
	if v.IsSet("crawl.respect_robots") {
		cfg.RespectRobots = v.GetBool("crawl.respect_robots")
	}
	if v.IsSet("crawl.render_enabled") {
		cfg.RenderEnabled = v.GetBool("crawl.render_enabled")
	}
	if v.IsSet("crawl.sites_file") {
		cfg.SitesFile = v.GetString("crawl.sites_file")
	}
}

func loadLogging(v *viper.Viper, cfg *LoggingConfig) {
	if v.IsSet("logging.level") {
		cfg.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.format") {
		cfg.Format = v.GetString("logging.format")
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d is out of range", c.Database.Port)
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Minio.Endpoint == "" {
		return errors.New("minio.endpoint is required")
	}
	if c.Minio.Bucket == "" {
		return errors.New("minio.bucket is required")
	}
	if c.Crawl.Concurrency < 1 {
		return fmt.Errorf("crawl.concurrency must be at least 1, got %d", c.Crawl.Concurrency)
	}
	if c.Crawl.MaxRetries < 1 {
		return fmt.Errorf("crawl.max_retries must be at least 1, got %d", c.Crawl.MaxRetries)
	}
	if c.Crawl.FetchTimeout <= 0 {
		return errors.New("crawl.fetch_timeout must be positive")
	}
	if c.Crawl.SitesFile == "" {
		return errors.New("crawl.sites_file is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q is not json or console", c.Logging.Format)
	}
	return nil
}
