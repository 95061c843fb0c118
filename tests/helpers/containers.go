// Package helpers provides disposable backend containers for integration
// tests.
package helpers

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/leobrain/crawler/internal/database"
	"github.com/leobrain/crawler/internal/storage"
)

const (
	postgresImage = "postgres:16-alpine"
	minioImage    = "minio/minio:RELEASE.2024-01-16T16-07-38Z"

	containerStartTimeout = 60 * time.Second

	testUser     = "crawler"
	testPassword = "crawler"
	testDBName   = "crawler_test"

	minioRootUser     = "minioadmin"
	minioRootPassword = "minioadmin"
	testBucket        = "crawler-content-test"
)

// PostgresContainer runs a disposable Postgres server.
type PostgresContainer struct {
	container testcontainers.Container

	// Config connects to the containerized server.
	Config database.Config
}

// StartPostgres launches a Postgres container and waits until it accepts
// connections.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
			"POSTGRES_DB":       testDBName,
		},
		// The init scripts restart the server once, so wait for the
		// second ready line.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(containerStartTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, fmt.Errorf("postgres mapped port: %w", err)
	}

	return &PostgresContainer{
		container: container,
		Config: database.Config{
			Host:     host,
			Port:     port.Int(),
			User:     testUser,
			Password: testPassword,
			DBName:   testDBName,
			SSLMode:  "disable",
		},
	}, nil
}

// Stop terminates the container.
func (c *PostgresContainer) Stop(ctx context.Context) error {
	return c.container.Terminate(ctx)
}

// MinioContainer runs a disposable MinIO server.
type MinioContainer struct {
	container testcontainers.Container

	// Config connects to the containerized server.
	Config storage.Config
}

// StartMinio launches a MinIO container and waits until its API answers
// health checks.
func StartMinio(ctx context.Context) (*MinioContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        minioImage,
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioRootUser,
			"MINIO_ROOT_PASSWORD": minioRootPassword,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").
			WithPort("9000/tcp").
			WithStartupTimeout(containerStartTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start minio container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("minio container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "9000/tcp")
	if err != nil {
		return nil, fmt.Errorf("minio mapped port: %w", err)
	}

	return &MinioContainer{
		container: container,
		Config: storage.Config{
			Endpoint:  fmt.Sprintf("%s:%d", host, port.Int()),
			AccessKey: minioRootUser,
			SecretKey: minioRootPassword,
			Bucket:    testBucket,
			UseSSL:    false,
		},
	}, nil
}

// Stop terminates the container.
func (c *MinioContainer) Stop(ctx context.Context) error {
	return c.container.Terminate(ctx)
}
