package storage

import (
	"context"
	"io"
)

type ObjectStore interface {
	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	DeleteObject(ctx context.Context, bucket, key string) error

	// ObjectURL returns the address under which a stored object can be fetched
	// again, suitable for persisting in image records.
	ObjectURL(bucket, key string) string
}
