package services

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/engboost/snaplang-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		size       int64
		kind       AssetKind
		wantStatus int
	}{
		{"image ok", "cat.PNG", 1024, ImageAsset, 0},
		{"image bad extension", "cat.bmp", 1024, ImageAsset, http.StatusUnsupportedMediaType},
		{"image too large", "cat.jpg", MaxImageSize + 1, ImageAsset, http.StatusRequestEntityTooLarge},
		{"video ok", "lesson.mp4", 100 << 20, VideoAsset, 0},
		{"video bad extension", "lesson.flv", 1024, VideoAsset, http.StatusBadRequest},
		{"video too large", "lesson.mkv", MaxVideoSize + 1, VideoAsset, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.filename, tt.size, tt.kind)
			if tt.wantStatus == 0 {
				assert.NoError(t, err)
				return
			}
			apiErr, ok := utils.AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, apiErr.Status)
		})
	}
}

func TestDecodeDataURI(t *testing.T) {
	payload := []byte("\x89PNG\r\n\x1a\nfake")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	data, contentType, filename, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "inline.png", filename)

	_, _, filename, err = DecodeDataURI("data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload))
	require.NoError(t, err)
	assert.Equal(t, "inline.jpg", filename)

	for _, bad := range []string{
		"https://example.com/cat.png",
		"data:image/png,raw",
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png;base64,!!!",
		"data:image/tiff;base64,aGVsbG8=",
	} {
		_, _, _, err := DecodeDataURI(bad)
		assert.Error(t, err, bad)
	}

	assert.True(t, IsDataURI(uri))
	assert.False(t, IsDataURI("https://example.com/cat.png"))
}

func TestFileSystemAssetStore(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileSystemAssetStore(root, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	asset, err := store.Upload(context.Background(), strings.NewReader("hello"), ImageAsset, "cat.png", "image/png")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(asset.ID, "images/"))
	assert.True(t, strings.HasSuffix(asset.ID, ".png"))
	assert.Equal(t, "http://localhost:8080/uploads/"+asset.ID, asset.URL)
	assert.Equal(t, int64(5), asset.Bytes)
	assert.Equal(t, "png", asset.Format)

	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(asset.ID)))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	require.NoError(t, store.Delete(context.Background(), asset.ID, ImageAsset))
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(asset.ID)))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, store.Delete(context.Background(), asset.ID, ImageAsset), "second delete")
	assert.Error(t, store.Delete(context.Background(), "../outside.txt", ImageAsset))
	assert.Error(t, store.Delete(context.Background(), "/etc/passwd", ImageAsset))
}
