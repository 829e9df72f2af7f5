// Package services holds the clients for everything outside the store:
// asset storage, email, translation, object detection and background jobs.
package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/engboost/snaplang-api/models"
	"github.com/engboost/snaplang-api/utils"
)

type AssetKind string

const (
	ImageAsset AssetKind = "image"
	VideoAsset AssetKind = "video"
)

const (
	MaxImageSize = 10 * 1024 * 1024
	MaxVideoSize = 500 * 1024 * 1024
)

var (
	imageExtensions = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true, "webp": true}
	videoExtensions = map[string]bool{"mp4": true, "mov": true, "avi": true, "wmv": true, "mkv": true, "webm": true}
)

// StoredAsset describes a blob after upload.
type StoredAsset struct {
	URL    string `json:"url"`
	ID     string `json:"public_id"`
	Format string `json:"format"`
	Bytes  int64  `json:"bytes"`
}

// AssetRef points at a stored blob that may need deleting.
type AssetRef struct {
	ID   string
	Kind AssetKind
}

// AssetStore is a key-value blob store.
type AssetStore interface {
	Upload(ctx context.Context, body io.Reader, kind AssetKind, filename, contentType string) (*StoredAsset, error)
	Delete(ctx context.Context, id string, kind AssetKind) error
}

// ValidateUpload checks the extension and size limits for kind.
func ValidateUpload(filename string, size int64, kind AssetKind) error {
	ext := extension(filename)
	switch kind {
	case VideoAsset:
		if !videoExtensions[ext] {
			return utils.BadRequest("Video file format not allowed. Allowed formats: mp4, mov, avi, wmv, mkv, webm")
		}
		if size > MaxVideoSize {
			return utils.PayloadTooLarge(fmt.Sprintf("Video file too large. Maximum size: %dMB", MaxVideoSize>>20))
		}
	case ImageAsset:
		if !imageExtensions[ext] {
			return utils.UnsupportedMediaType("Image file format not allowed. Allowed formats: jpg, jpeg, png, gif, webp")
		}
		if size > MaxImageSize {
			return utils.PayloadTooLarge(fmt.Sprintf("Image file too large. Maximum size: %dMB", MaxImageSize>>20))
		}
	default:
		return fmt.Errorf("unknown asset kind %q", kind)
	}
	return nil
}

// DecodeDataURI decodes an inline base64 image such as
// "data:image/png;base64,iVBOR...". It returns the payload, its content
// type and a file name carrying the matching extension.
func DecodeDataURI(uri string) ([]byte, string, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", "", utils.BadRequest("Image is not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", "", utils.BadRequest("Image data URI must be base64 encoded")
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", "", utils.UnsupportedMediaType("Inline data must be an image")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", "", utils.BadRequest("Image data URI is not valid base64")
	}

	ext := strings.TrimPrefix(contentType, "image/")
	if ext == "jpeg" {
		ext = "jpg"
	}
	if err := ValidateUpload("inline."+ext, int64(len(data)), ImageAsset); err != nil {
		return nil, "", "", err
	}
	return data, contentType, "inline." + ext, nil
}

// IsDataURI reports whether s carries inline data rather than a URL.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// objectKey names a new blob: "<kind>s/<id>.<ext>".
func objectKey(kind AssetKind, filename string) (string, error) {
	id, err := models.NewID()
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%ss/%s", kind, id)
	if ext := extension(filename); ext != "" {
		key += "." + ext
	}
	return key, nil
}

func contentTypeFor(filename, contentType string) string {
	if contentType != "" {
		return contentType
	}
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func readAll(body io.Reader) (*bytes.Reader, int64, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read content: %w", err)
	}
	return bytes.NewReader(data), int64(len(data)), nil
}
