// Package storage persists grid snapshots as named blobs on local disk, in
// memory, or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	ModeLocal  = "local"
	ModeMemory = "memory"
	ModeS3     = "s3"
)

// ErrNotFound is returned by Read when the key does not exist.
var ErrNotFound = errors.New("blob not found")

// Store is a flat key/value blob store.
type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

// Config selects and configures a Store.
type Config struct {
	Mode string
	Path string
	S3   S3Config
}

// Open creates the Store named by cfg.Mode.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Mode) {
	case ModeS3:
		if cfg.S3.Bucket == "" || cfg.S3.AccessKeyID == "" || cfg.S3.SecretAccessKey == "" {
			return nil, fmt.Errorf("missing required S3 configuration: bucket, access key id, secret access key")
		}
		return NewS3(ctx, cfg.S3)
	case ModeMemory:
		return NewMemory(), nil
	case ModeLocal, "":
		path := cfg.Path
		if path == "" {
			path = "./data"
		}
		return NewLocal(path), nil
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s (supported: local, s3, memory)", cfg.Mode)
	}
}
