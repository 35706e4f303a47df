package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

type Object struct {
	Name string
	Size int64
}

// Provider is the blob store holding uploaded report files. Keys are opaque
// to callers outside the file registry.
type Provider interface {
	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	// GetObject returns an error wrapping ErrObjectNotFound if the key is absent.
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	DeleteObject(ctx context.Context, bucket, key string) error

	// DeleteObjects removes every object under prefix.
	DeleteObjects(ctx context.Context, bucket, prefix string) error

	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)
}
