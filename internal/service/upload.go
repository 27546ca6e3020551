package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// BlobStore stores uploaded files and returns their public URL.
type BlobStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// Upload is an image received from a client.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// imageKey builds the object key for an upload under prefix, rejecting
// content types that are not images.
func imageKey(prefix, userID, contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	ext, ok := imageExtensions[ct]
	if !ok {
		return "", ErrUnsupportedImage
	}
	return fmt.Sprintf("%s/%s/%s%s", prefix, userID, uuid.NewString(), ext), nil
}

// storeImage uploads u under prefix and returns the public URL.
func storeImage(ctx context.Context, blobs BlobStore, prefix, userID string, u *Upload) (string, error) {
	if blobs == nil {
		return "", ErrUploadsDisabled
	}
	key, err := imageKey(prefix, userID, u.ContentType)
	if err != nil {
		return "", err
	}
	url, err := blobs.Upload(ctx, key, u.Body, u.Size, u.ContentType)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return url, nil
}
