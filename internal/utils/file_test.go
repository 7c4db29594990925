package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a.JPG"))
	assert.True(t, IsImageFile("dir/b.webp"))
	assert.False(t, IsImageFile("notes.txt"))
	assert.False(t, IsImageFile("noext"))
}

func TestImageID(t *testing.T) {
	assert.Equal(t, "0a1b-2c", ImageID("/data/images/0a1b-2c.jpg"))
	assert.Equal(t, "archive.tar", ImageID("archive.tar.gz"))
}

func TestListImageFilesSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.png", "a.jpg", "b.txt", "B.jpeg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755))

	files, err := ListImageFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "B.jpeg"),
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "c.png"),
	}, files)

	_, err = ListImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestEnsureDirAndFileExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "x", "y")
	require.NoError(t, EnsureDir(dir))
	assert.False(t, FileExists(dir))

	path := OutputPath(dir, "3", ".jpg")
	assert.Equal(t, filepath.Join(dir, "3.jpg"), path)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.True(t, FileExists(path))
}
