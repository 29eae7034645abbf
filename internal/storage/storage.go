// Package storage holds the durable blob backends attachments are relayed into.
package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

// BlobStore writes an object under key and returns its public URL.
// Writing the same key twice overwrites the object and yields the same URL.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// ErrNotFound is returned by OpenFile for an unknown key.
var ErrNotFound = errors.New("object not found")

// FileServer is implemented by backends whose URLs point at this service's
// own /files route.
type FileServer interface {
	OpenFile(ctx context.Context, key string) (io.ReadCloser, string, int64, error)
}

func joinURL(base, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
