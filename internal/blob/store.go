// Package blob stores podcast audio and image files outside the database.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	ErrNotFound   = errors.New("blob not found")
	ErrInvalidRef = errors.New("invalid blob reference")
	// ErrInUse is returned by stores when a reference already belongs to
	// another podcast or is waiting to be deleted.
	ErrInUse = errors.New("blob already referenced")
)

// Store is implemented by the local and S3 backends.
type Store interface {
	Put(ctx context.Context, ref string, body io.Reader, size int64, contentType string) error
	// URL returns a URL the browser can fetch the blob from.
	URL(ctx context.Context, ref string) (string, error)
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, ref string) error
}

var refPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateRef rejects references that could escape the storage root.
func ValidateRef(ref string) error {
	if !refPattern.MatchString(ref) || strings.Contains(ref, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}
