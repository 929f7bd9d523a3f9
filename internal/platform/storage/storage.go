// Package storage stores closeout evidence objects.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotExist indicates the object is already gone.
var ErrObjectNotExist = errors.New("platform/storage: object does not exist")

// ObjectStore writes and removes blobs in a single bucket.
type ObjectStore interface {
	Bucket() string
	Put(ctx context.Context, path, contentType string, body io.Reader) error
	Delete(ctx context.Context, path string) error
}
