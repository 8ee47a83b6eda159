// Package storage defines the blob store contract consumed by the
// orchestrator and sweeper, and its S3-compatible implementation.
package storage

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Name         string
	LastModified time.Time
	Size         int64
}

// BlobStore is the object-store collaborator. Containers hold named blobs.
// DeleteBlob and CreateContainer are idempotent: deleting a missing blob and
// creating an existing container both succeed.
type BlobStore interface {
	CreateContainer(ctx context.Context, container string) error
	DeleteContainer(ctx context.Context, container string) error

	// ListBlobs returns the blobs in container whose names start with
	// prefix. An empty prefix lists the whole container. A missing
	// container yields ErrContainerNotFound.
	ListBlobs(ctx context.Context, container, prefix string) ([]BlobInfo, error)

	Get(ctx context.Context, container, name string) (io.ReadCloser, error)
	Upload(ctx context.Context, container, name string, body io.Reader, overwrite bool) error
	Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error
	DeleteBlob(ctx context.Context, container, name string) error
	Exists(ctx context.Context, container, name string) (bool, error)

	// ContainerURI returns the address of a container in the form the
	// translation job expects.
	ContainerURI(container string) string
}
