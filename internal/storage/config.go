package storage

import "errors"

// Config holds the connection settings for the object store.
type Config struct {
	// Endpoint is the host:port of the MinIO server, without a scheme.
	Endpoint  string
	AccessKey string
	SecretKey string
	// Bucket is the single bucket all content bodies live in.
	Bucket string
	// Region is passed through to the client; leave empty to let the
	// server report its own location.
	Region string
	UseSSL bool
}

func (c Config) validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.AccessKey == "" {
		return errors.New("access key is required")
	}
	if c.SecretKey == "" {
		return errors.New("secret key is required")
	}
	if c.Bucket == "" {
		return errors.New("bucket is required")
	}
	return nil
}
