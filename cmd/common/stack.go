package common

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/leobrain/crawler/internal/config"
	"github.com/leobrain/crawler/internal/database"
	"github.com/leobrain/crawler/internal/engine"
	"github.com/leobrain/crawler/internal/fetcher"
	"github.com/leobrain/crawler/internal/logger"
	"github.com/leobrain/crawler/internal/metrics"
	"github.com/leobrain/crawler/internal/pipeline"
	"github.com/leobrain/crawler/internal/renderer"
	"github.com/leobrain/crawler/internal/sources"
	"github.com/leobrain/crawler/internal/spider"
	"github.com/leobrain/crawler/internal/storage"
)

// CrawlStack bundles the infrastructure behind crawl runs: the site
// registry, Postgres, MinIO, metrics, and the crawl engine. Both the httpd
// and crawl commands build one; release it with Close.
type CrawlStack struct {
	Sites    *sources.Registry
	DB       *sqlx.DB
	Repo     *database.ContentRepository
	Storage  *storage.Service
	Pipeline *pipeline.Pipeline
	Engine   *engine.Engine
	Metrics  *metrics.Collector

	// Registry is the Prometheus registry all collectors live on; the
	// httpd command serves it.
	Registry *prometheus.Registry

	log logger.Interface
}

// NewCrawlStack loads the sites file, connects Postgres and MinIO, ensures
// the schema and bucket exist, and assembles the crawl engine. ctx bounds
// the connection and ensure calls.
func NewCrawlStack(ctx context.Context, deps CommandDeps) (*CrawlStack, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	log := deps.Logger
	cfg := deps.Config

	registry, err := sources.Load(cfg.Crawl.SitesFile)
	if err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}
	log.Info("Sites loaded", "file", cfg.Crawl.SitesFile, "count", registry.Len())

	db, err := database.NewPostgresConnection(ctx, databaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if schemaErr := database.EnsureSchema(ctx, db); schemaErr != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", schemaErr)
	}
	log.Info("Postgres ready", "host", cfg.Database.Host, "database", cfg.Database.DBName)

	store, err := storage.New(minioConfig(cfg), log)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if bucketErr := store.EnsureBucket(ctx); bucketErr != nil {
		db.Close()
		return nil, fmt.Errorf("ensure bucket: %w", bucketErr)
	}
	log.Info("Object storage ready", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)

	promRegistry := prometheus.NewRegistry()
	collector := metrics.New(promRegistry)

	fetch := fetcher.New(fetcherConfig(cfg), log, collector)

	var rend engine.Renderer
	if cfg.Crawl.RenderEnabled {
		rend = renderer.NewChrome(renderer.Config{UserAgent: cfg.Crawl.UserAgent}, log)
	}

	repo := database.NewContentRepository(db)
	pipe := pipeline.New(store, repo, log, collector)
	eng := engine.New(fetch, rend, pipe, log, collector)

	return &CrawlStack{
		Sites:    registry,
		DB:       db,
		Repo:     repo,
		Storage:  store,
		Pipeline: pipe,
		Engine:   eng,
		Metrics:  collector,
		Registry: promRegistry,
		log:      log,
	}, nil
}

// Crawl runs one crawl for the named site and reports how many items were
// newly stored. It satisfies scheduler.CrawlFunc.
func (s *CrawlStack) Crawl(ctx context.Context, site string) (int, error) {
	siteCfg, err := s.Sites.Get(site)
	if err != nil {
		return 0, err
	}
	sp, err := spider.FromConfig(siteCfg, s.log)
	if err != nil {
		return 0, err
	}
	return s.Engine.CrawlSpider(ctx, sp, siteCfg)
}

// Close releases the stack's connections. Stop the scheduler and HTTP
// server first so running crawls and requests can drain.
func (s *CrawlStack) Close() error {
	closeErr := s.Engine.Close()
	if dbErr := s.DB.Close(); dbErr != nil && closeErr == nil {
		closeErr = dbErr
	}
	return closeErr
}

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		DBName:       cfg.Database.DBName,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}
}

func minioConfig(cfg *config.Config) storage.Config {
	return storage.Config{
		Endpoint:  cfg.Minio.Endpoint,
		AccessKey: cfg.Minio.AccessKey,
		SecretKey: cfg.Minio.SecretKey,
		Bucket:    cfg.Minio.Bucket,
		Region:    cfg.Minio.Region,
		UseSSL:    cfg.Minio.UseSSL,
	}
}

func fetcherConfig(cfg *config.Config) fetcher.Config {
	return fetcher.Config{
		UserAgent:       cfg.Crawl.UserAgent,
		RequestTimeout:  cfg.Crawl.FetchTimeout,
		MaxRetries:      cfg.Crawl.MaxRetries,
		RespectRobots:   cfg.Crawl.RespectRobots,
		MaxConnsPerHost: cfg.Crawl.Concurrency,
	}
}
