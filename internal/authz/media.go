package authz

import (
	"errors"
	"fmt"
)

// Media validation runs after, and in addition to, the upload_media check.

const (
	MaxImageBytes = 15 << 20
	MaxVideoBytes = 60 << 20
)

var (
	ErrMediaType     = errors.New("file type is not allowed")
	ErrMediaTooLarge = errors.New("file exceeds the size limit for its type")
)

var imageMimeTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

var videoMimeTypes = map[string]struct{}{
	"video/mp4":       {},
	"video/webm":      {},
	"video/quicktime": {},
}

// ValidateMedia rejects files outside the MIME allow-list or over the
// type-specific size ceiling.
func ValidateMedia(mimeType string, sizeBytes int64) error {
	if _, ok := imageMimeTypes[mimeType]; ok {
		if sizeBytes > MaxImageBytes {
			return fmt.Errorf("%w: images are capped at 15 MB", ErrMediaTooLarge)
		}
		return nil
	}
	if _, ok := videoMimeTypes[mimeType]; ok {
		if sizeBytes > MaxVideoBytes {
			return fmt.Errorf("%w: videos are capped at 60 MB", ErrMediaTooLarge)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMediaType, mimeType)
}
