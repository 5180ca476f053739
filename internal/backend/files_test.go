package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskFileStore_UploadDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewDiskFileStore(dir, "http://localhost:5005/uploads/")

	url, err := s.Upload(ctx, "avatars/1/a.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5005/uploads/avatars/1/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "avatars", "1", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, "avatars", "1", "a.png"))
	assert.True(t, os.IsNotExist(err))

	// 重复删除不报错
	assert.NoError(t, s.Delete(ctx, url))
}

func TestDiskFileStore_StaysInsideRoot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewDiskFileStore(filepath.Join(dir, "root"), "http://x/uploads")

	url, err := s.Upload(ctx, "../../escape.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://x/uploads/escape.txt", url)
	_, err = os.Stat(filepath.Join(dir, "root", "escape.txt"))
	assert.NoError(t, err)

	assert.Error(t, s.Delete(ctx, "http://elsewhere/escape.txt"))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap("op", nil))
	assert.Equal(t, ErrNotAuthenticated, Wrap("op", ErrNotAuthenticated))

	inner := Wrap("inner", os.ErrPermission)
	assert.Same(t, inner, Wrap("outer", inner))
	assert.Equal(t, os.ErrPermission.Error(), inner.Error())
}
