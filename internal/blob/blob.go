// Package blob stores uploaded report pages. Keys follow the layout
// <op-id>/<page>-<original-name> so one business key groups all media
// of a record.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"
)

// Driver identifies a concrete blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem (default, dev)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// PutOptions specifies optional parameters for Put.
type PutOptions struct {
	ContentType string
}

// Info describes a stored blob.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the media storage boundary. Put overwrites an existing key;
// resubmitting a report replaces its pages, matching the overwrite
// semantics of the record store.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("blob not found")

// MediaKey builds the storage key for one page of a record.
func MediaKey(opID string, page int, originalName string) string {
	return fmt.Sprintf("%s/%d-%s", opID, page, path.Base(originalName))
}
