package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/soilsheet/internal/domain"
	"github.com/DukeRupert/soilsheet/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestUploads(t *testing.T, cfg UploadConfig) (UploadService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, discardLogger())
	require.NoError(t, err)
	return NewUploadService(store, nil, cfg, discardLogger()), store
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// fileHeaders builds multipart headers the way net/http parses them.
func fileHeaders(t *testing.T, files map[string]string) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["files"]
}

func TestUploadPlan(t *testing.T) {
	uploads, store := newTestUploads(t, UploadConfig{PlanMaxDimension: 50})
	ctx := context.Background()

	url, key, err := uploads.UploadPlan(ctx, pngDataURL(t, 200, 100))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "plans/"))
	assert.Equal(t, "http://localhost:8080/files/"+key, url)

	rc, info, err := store.Open(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, "image/png", info.ContentType)

	img, err := png.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx(), "plan is fitted to the maximum dimension")
	assert.Equal(t, 25, img.Bounds().Dy())
}

func TestUploadPlan_InvalidInput(t *testing.T) {
	uploads, _ := newTestUploads(t, UploadConfig{})

	tests := []struct {
		name    string
		dataURL string
	}{
		{"empty", ""},
		{"not a data url", "http://example.com/plan.png"},
		{"not base64", "data:image/png,abc"},
		{"bad base64", "data:image/png;base64,!!!"},
		{"wrong type", "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte("<svg/>"))},
		{"not an image", "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := uploads.UploadPlan(context.Background(), tt.dataURL)
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
		})
	}
}

func TestUploadAttachments(t *testing.T) {
	uploads, store := newTestUploads(t, UploadConfig{})
	ctx := context.Background()

	got, err := uploads.UploadAttachments(ctx, fileHeaders(t, map[string]string{
		"lab results.txt": "arsenic 10 mg/kg",
	}))
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, "lab results.txt", a.Name)
	assert.Equal(t, int64(16), a.Size)
	assert.True(t, strings.HasSuffix(a.Key, "/lab-results.txt"))
	assert.Equal(t, "http://localhost:8080/files/"+a.Key, a.URL)

	rc, _, err := store.Open(ctx, a.Key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "arsenic 10 mg/kg", string(body))

	require.NoError(t, uploads.Delete(ctx, a.Key))
	_, _, err = store.Open(ctx, a.Key)
	assert.True(t, storage.IsNotFound(err))
}

func TestUploadAttachments_PartialFailure(t *testing.T) {
	uploads, _ := newTestUploads(t, UploadConfig{MaxAttachmentSize: 8})

	got, err := uploads.UploadAttachments(context.Background(), fileHeaders(t, map[string]string{
		"small.txt": "ok",
		"large.txt": "this is far too long",
	}))
	require.Error(t, err)
	assert.Equal(t, domain.ETOOLARGE, domain.ErrorCode(err))
	require.Len(t, got, 1)
	assert.Equal(t, "small.txt", got[0].Name)
}

func TestUploadAttachments_NoFiles(t *testing.T) {
	uploads, _ := newTestUploads(t, UploadConfig{})

	_, err := uploads.UploadAttachments(context.Background(), nil)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestDecodeDataURL(t *testing.T) {
	ct, raw, err := decodeDataURL("data:IMAGE/PNG;base64," + base64.StdEncoding.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, []byte("abc"), raw)

	_, _, err = decodeDataURL("data:;base64,")
	assert.Error(t, err)
}
