// Package blobstore stores inspection photos and videos.
package blobstore

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// ErrBucketNotFound means the storage container itself is missing. Callers
// treat it as a degraded mode rather than a failed upload.
var ErrBucketNotFound = errors.New("storage bucket not found")

type Store interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader, size int64) error
	PublicURL(ctx context.Context, objectPath string) (string, error)
}

// ObjectPath is the storage key of an attachment:
// {propertyId}/{inspectionId}/{zoneId}/{fileName}.
func ObjectPath(propertyID, inspectionID, zoneID, fileName string) string {
	return path.Join(propertyID, inspectionID, zoneID, fileName)
}

func Extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "video/mp4":
		return ".mp4"
	case "video/quicktime":
		return ".mov"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}

func ContentType(objectPath string) string {
	switch strings.ToLower(filepath.Ext(objectPath)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
