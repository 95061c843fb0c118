package storage

import "errors"

var (
	// ErrObjectNotFound indicates the requested object does not exist in the bucket.
	ErrObjectNotFound = errors.New("object not found")
	// ErrBucketNotFound indicates the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
)
