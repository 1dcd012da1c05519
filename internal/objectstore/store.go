// Package objectstore uploads staged attachments to a bucket.
package objectstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUploadFailed wraps every failed upload.
	ErrUploadFailed = errors.New("upload failed")

	// ErrObjectNotFound is returned by ObjectSize for a missing key.
	ErrObjectNotFound = errors.New("object not found")
)

// Store is the destination of a migration. Implementations must be safe for
// concurrent use.
type Store interface {
	// Upload copies the local file at sourcePath to key and returns the
	// object's canonical URL. An empty contentType is detected from the file.
	Upload(ctx context.Context, key, sourcePath, contentType string) (string, error)

	// ObjectSize reports the stored length of key.
	ObjectSize(ctx context.Context, key string) (int64, error)
}

// Key builds the object key [prefix/]project/issue/filename. Separators are
// always forward slashes and the key never starts with one.
func Key(prefix, projectKey, issueKey, filename string) string {
	parts := make([]string, 0, 4)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, projectKey, issueKey, filename)
	return strings.Join(parts, "/")
}
