package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestLocalStorage_PutOpenDelete(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	info, err := s.Put(ctx, "attachments/abc/lab.txt", strings.NewReader("hello"), PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Contains(t, info.ContentType, "text/plain")

	rc, got, err := s.Open(ctx, "attachments/abc/lab.txt")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, int64(5), got.Size)

	url, err := s.URL(ctx, "attachments/abc/lab.txt")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/attachments/abc/lab.txt", url)

	require.NoError(t, s.Delete(ctx, "attachments/abc/lab.txt"))
	require.NoError(t, s.Delete(ctx, "attachments/abc/lab.txt"), "delete is idempotent")

	_, _, err = s.Open(ctx, "attachments/abc/lab.txt")
	assert.True(t, IsNotFound(err))
}

func TestLocalStorage_PutRespectsOverwrite(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "plans/a.png", strings.NewReader("one"), PutOptions{})
	require.NoError(t, err)

	_, err = s.Put(ctx, "plans/a.png", strings.NewReader("two"), PutOptions{})
	assert.True(t, errors.Is(err, ErrKeyExists))

	_, err = s.Put(ctx, "plans/a.png", strings.NewReader("two"), PutOptions{Overwrite: true})
	assert.NoError(t, err)
}

func TestLocalStorage_PutTooLarge(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	_, err := s.Put(ctx, "attachments/x/big.bin", strings.NewReader("0123456789"), PutOptions{MaxSize: 4})
	assert.True(t, IsTooLarge(err))

	_, _, err = s.Open(ctx, "attachments/x/big.bin")
	assert.True(t, IsNotFound(err), "oversized uploads leave nothing behind")

	_, err = s.Put(ctx, "attachments/x/ok.bin", strings.NewReader("0123"), PutOptions{MaxSize: 4})
	assert.NoError(t, err)
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"", "../etc/passwd", "plans/../../x", "/abs", "plans//x", "plans/./x"} {
		_, err := s.Put(ctx, key, strings.NewReader("x"), PutOptions{})
		assert.True(t, IsInvalidKey(err), "key %q", key)
	}
}

func TestAttachmentKey(t *testing.T) {
	tests := []struct {
		filename string
		suffix   string
	}{
		{"lab results.pdf", "/lab-results.pdf"},
		{`C:\Users\me\bore log.xlsx`, "/bore-log.xlsx"},
		{"../../etc/passwd", "/passwd"},
		{"...", "/file"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			key := AttachmentKey(tt.filename)
			assert.True(t, strings.HasPrefix(key, "attachments/"), key)
			assert.True(t, strings.HasSuffix(key, tt.suffix), key)
			assert.NoError(t, validateKey(key))
		})
	}

	long := AttachmentKey(strings.Repeat("a", 300) + ".pdf")
	assert.True(t, strings.HasSuffix(long, ".pdf"))
	assert.LessOrEqual(t, len(long[strings.LastIndex(long, "/")+1:]), 100)
}

func TestPlanKey(t *testing.T) {
	a, b := PlanKey(), PlanKey()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "plans/"))
	assert.True(t, strings.HasSuffix(a, ".png"))
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/png", DetectContentType("image/png", "x.bin", nil))
	assert.Equal(t, "application/pdf", DetectContentType("", "lab.pdf", nil))
	assert.Equal(t, "image/png", DetectContentType("", "noext", strings.NewReader("\x89PNG\r\n\x1a\n0000")))
	assert.Equal(t, "application/octet-stream", DetectContentType("", "noext", nil))
}

func TestIsPlanImageType(t *testing.T) {
	assert.True(t, IsPlanImageType("image/png"))
	assert.True(t, IsPlanImageType("IMAGE/JPEG; charset=binary"))
	assert.False(t, IsPlanImageType("image/svg+xml"))
	assert.False(t, IsPlanImageType("application/pdf"))
}
