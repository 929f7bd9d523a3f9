package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *gcs.Client
	bucket string
}

// NewGCS opens a client for bucket. Explicit credentials JSON wins over application default
// credentials.
func NewGCS(ctx context.Context, bucket, credentialsJSON string) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("platform/storage: bucket required")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("platform/storage: new client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Bucket returns the bucket name.
func (g *GCS) Bucket() string { return g.bucket }

// Put uploads body to path.
func (g *GCS) Put(ctx context.Context, path, contentType string, body io.Reader) error {
	w := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("platform/storage: write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("platform/storage: close %s: %w", path, err)
	}
	return nil
}

// Delete removes path. A missing object reports ErrObjectNotExist.
func (g *GCS) Delete(ctx context.Context, path string) error {
	err := g.client.Bucket(g.bucket).Object(path).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrObjectNotExist
	}
	return err
}

// Close releases the client.
func (g *GCS) Close() error {
	return g.client.Close()
}
