package loader

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/catalog-prep/pkg/imageio"
	"github.com/menta2k/catalog-prep/pkg/types"
)

func writeArray(t *testing.T, dir, id string, size int, fill float64) string {
	t.Helper()
	data := make([]float64, size*size)
	for i := range data {
		data[i] = fill
	}
	n, err := types.NewNormalizedImage(mat.NewDense(size, size, data), 1)
	require.NoError(t, err)
	path := filepath.Join(dir, id+"."+imageio.ArrayExt)
	require.NoError(t, imageio.WriteArray(path, n))
	return path
}

func TestLoadAndFlattenArray(t *testing.T) {
	dir := t.TempDir()
	n, err := types.NewNormalizedImage(mat.NewDense(2, 2, []float64{0.1, 0.2, 0.3, 0.4}), 1)
	require.NoError(t, err)
	path := filepath.Join(dir, "a.mat")
	require.NoError(t, imageio.WriteArray(path, n))

	v, err := LoadAndFlatten(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, v)
}

func TestLoadAndFlattenImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.NRGBA{255, 0, 51, 255})
		}
	}
	path := filepath.Join(t.TempDir(), "0.png")
	require.NoError(t, imaging.Save(img, path))

	v, err := New(255).LoadAndFlatten(path)
	require.NoError(t, err)
	require.Len(t, v, 12)
	assert.InDelta(t, 1.0, v[0], 1e-9)
	assert.InDelta(t, 0.0, v[1], 1e-9)
	assert.InDelta(t, 0.2, v[2], 1e-9)
}

func TestLoadDatasetPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeArray(t, dir, "c", 3, 0.3),
		writeArray(t, dir, "a", 3, 0.1),
		writeArray(t, dir, "b", 3, 0.2),
	}

	m, err := LoadDataset(paths)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 9, c)
	assert.Equal(t, 0.3, m.At(0, 0))
	assert.Equal(t, 0.1, m.At(1, 8))
	assert.Equal(t, 0.2, m.At(2, 4))
}

func TestLoadDatasetShapeMismatch(t *testing.T) {
	dir := t.TempDir()
	bad := writeArray(t, dir, "b", 4, 0.5)
	_, err := LoadDataset([]string{writeArray(t, dir, "a", 3, 0.5), bad})
	assert.ErrorIs(t, err, types.ErrShapeMismatch)
	assert.Contains(t, err.Error(), bad)
}

func TestLoadDatasetErrors(t *testing.T) {
	m, err := LoadDataset(nil)
	require.NoError(t, err)
	assert.True(t, m.IsEmpty())

	_, err = LoadDataset([]string{filepath.Join(t.TempDir(), "missing.mat")})
	var ioErr *types.IOError
	assert.ErrorAs(t, err, &ioErr)

	_, err = New(0).Load(filepath.Join(t.TempDir(), "x.png"))
	assert.ErrorIs(t, err, types.ErrConfiguration)
}
