package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Parallel()

	cfg := New()

	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "crawler", cfg.Database.DBName)
	assert.Equal(t, "localhost:9000", cfg.Minio.Endpoint)
	assert.Equal(t, "crawler-content", cfg.Minio.Bucket)
	assert.False(t, cfg.Minio.UseSSL)
	assert.Equal(t, 2, cfg.Crawl.Concurrency)
	assert.True(t, cfg.Crawl.RespectRobots)
	assert.False(t, cfg.Crawl.RenderEnabled)
	assert.Equal(t, "sites.yml", cfg.Crawl.SitesFile)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoadOverlaysSetValues(t *testing.T) {
	t.Parallel()

	v := viper.New()
	v.Set("server.address", ":9090")
	v.Set("database.password", "hunter2")
	v.Set("minio.use_ssl", true)
	v.Set("crawl.concurrency", 8)
	v.Set("logging.level", "debug")

	cfg := Load(v)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.True(t, cfg.Minio.UseSSL)
	assert.Equal(t, 8, cfg.Crawl.Concurrency)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "crawler-content", cfg.Minio.Bucket)
	assert.Equal(t, 30*time.Second, cfg.Crawl.FetchTimeout)
}

func TestLoadReadsConfigFile(t *testing.T) {
	t.Parallel()

	const doc = `
server:
  address: ":8060"
  read_timeout: 15s
database:
  host: db.internal
  port: 5433
  user: crawler
  password: secret
  dbname: content
minio:
  endpoint: minio.internal:9000
  access_key: key
  secret_key: secret
  bucket: bodies
crawl:
  fetch_timeout: 45s
  respect_robots: false
  sites_file: /etc/crawler/sites.yml
logging:
  level: warn
  format: console
`
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))

	cfg := Load(v)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8060", cfg.Server.Address)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "content", cfg.Database.DBName)
	assert.Equal(t, "minio.internal:9000", cfg.Minio.Endpoint)
	assert.Equal(t, "bodies", cfg.Minio.Bucket)
	assert.Equal(t, 45*time.Second, cfg.Crawl.FetchTimeout)
	assert.False(t, cfg.Crawl.RespectRobots)
	assert.Equal(t, "/etc/crawler/sites.yml", cfg.Crawl.SitesFile)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:    "empty server address",
			mutate:  func(cfg *Config) { cfg.Server.Address = "" },
			wantErr: "server.address",
		},
		{
			name:    "database port out of range",
			mutate:  func(cfg *Config) { cfg.Database.Port = 70000 },
			wantErr: "database.port",
		},
		{
			name:    "missing database user",
			mutate:  func(cfg *Config) { cfg.Database.User = "" },
			wantErr: "database.user",
		},
		{
			name:    "missing minio bucket",
			mutate:  func(cfg *Config) { cfg.Minio.Bucket = "" },
			wantErr: "minio.bucket",
		},
		{
			name:    "zero concurrency",
			mutate:  func(cfg *Config) { cfg.Crawl.Concurrency = 0 },
			wantErr: "crawl.concurrency",
		},
		{
			name:    "negative fetch timeout",
			mutate:  func(cfg *Config) { cfg.Crawl.FetchTimeout = -time.Second },
			wantErr: "crawl.fetch_timeout",
		},
		{
			name:    "unknown log level",
			mutate:  func(cfg *Config) { cfg.Logging.Level = "verbose" },
			wantErr: "logging.level",
		},
		{
			name:    "unknown log format",
			mutate:  func(cfg *Config) { cfg.Logging.Format = "xml" },
			wantErr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := New()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
