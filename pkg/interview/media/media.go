// Package media stores uploaded interview recordings on the local disk or
// in S3 and hands out download locations for them.
package media

import (
	"context"
	"io"
	"time"
)

// Storage backend identifiers, persisted on each recording row.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// PutInfo describes an upload.
type PutInfo struct {
	SessionToken string
	Filename     string
	ContentType  string
	Size         int64
}

// Locator says where a stored object ended up. Exactly one of Path and
// ObjectKey is set, matching Storage.
type Locator struct {
	Storage   string
	Path      string
	ObjectKey string
}

// Download is a way to retrieve a stored object: either a redirect URL or a
// local file path to serve.
type Download struct {
	URL  string
	Path string
}

// Store is a recording backend. DownloadFor may be called long after Put,
// including after a process restart.
type Store interface {
	Put(ctx context.Context, r io.Reader, info PutInfo) (*Locator, error)
	DownloadFor(ctx context.Context, loc Locator, expiry time.Duration) (*Download, error)
	Delete(ctx context.Context, loc Locator) error
}
