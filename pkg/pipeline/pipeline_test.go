package pipeline

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/catalog-prep/pkg/imageio"
	"github.com/menta2k/catalog-prep/pkg/labels"
	"github.com/menta2k/catalog-prep/pkg/types"
)

func writeTestImage(t *testing.T, dir, name string, width, height int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 7), uint8(y * 5), 120, 255})
		}
	}
	require.NoError(t, imaging.Save(img, filepath.Join(dir, name)))
}

func grayscaleConfig(root string) Config {
	return Config{
		Mode:         ModeGrayscaleCrop,
		SourceDir:    filepath.Join(root, "images"),
		TargetDir:    filepath.Join(root, "out"),
		ManifestPath: filepath.Join(root, "out", "images.csv"),
		TargetSize:   8,
		DataRange:    255,
		Workers:      2,
	}
}

func testJoiner() *labels.Joiner {
	return labels.NewJoiner(
		labels.ProductIndex{"a": "p1", "b": "p2", "c": "p1", "d": "p3", "e": "p9"},
		labels.ProductLabels{"p1": 0, "p2": 1, "p3": 2},
	)
}

func setupImages(t *testing.T, root string, names ...string) {
	t.Helper()
	src := filepath.Join(root, "images")
	require.NoError(t, os.MkdirAll(src, 0o755))
	for _, n := range names {
		writeTestImage(t, src, n, 12, 10)
	}
}

func TestRunGrayscaleCrop(t *testing.T) {
	root := t.TempDir()
	setupImages(t, root, "d.png", "a.png", "e.png", "c.png", "b.png")
	cfg := grayscaleConfig(root)

	p := New(cfg, testJoiner())
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, 4, report.Retained())
	assert.Equal(t, 1, report.Excluded())
	assert.Empty(t, report.Failures)
	assert.Equal(t, "e", report.Exclusions[0].ID)
	assert.ErrorIs(t, report.Exclusions[0].Reason, labels.ErrProductNotLabeled)

	m, err := ReadManifest(cfg.ManifestPath)
	require.NoError(t, err)
	assert.True(t, m.Labeled)
	ids := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, []int{0, 1, 0, 2}, m.Labels())

	for _, e := range m.Entries {
		arr, err := imageio.ReadArray(e.Path)
		require.NoError(t, err)
		assert.Equal(t, 8, arr.Size())
		assert.Equal(t, 1, arr.Channels())
		for _, v := range arr.Flatten() {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
	// nothing is written for an excluded image
	_, err = os.Stat(filepath.Join(cfg.TargetDir, "e."+imageio.ArrayExt))
	assert.True(t, os.IsNotExist(err))

	promFile := filepath.Join(root, "run.prom")
	require.NoError(t, p.Metrics().WriteTextfile(promFile))
	data, err := os.ReadFile(promFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "catalog_prep_images_processed_total 5")
	assert.Contains(t, string(data), "catalog_prep_images_retained_total 4")
	assert.Contains(t, string(data), `catalog_prep_images_excluded_total{reason="product_not_labeled"} 1`)
}

func TestRunFailuresAreIsolated(t *testing.T) {
	root := t.TempDir()
	setupImages(t, root, "a.png", "b.png")
	src := filepath.Join(root, "images")
	require.NoError(t, os.WriteFile(filepath.Join(src, "c.jpg"), []byte("not a jpeg"), 0o644))
	writeTestImage(t, src, "d.png", 4, 4)

	report, err := New(grayscaleConfig(root), testJoiner()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 2, report.Retained())
	require.Len(t, report.Failures, 2)

	byID := map[string]types.ImageFailure{}
	for _, f := range report.Failures {
		byID[f.ID] = f
	}
	assert.Contains(t, byID, "c")
	assert.Contains(t, byID, "d")
	assert.Error(t, byID["d"].Err)
}

func TestRunDuplicateIDsFail(t *testing.T) {
	root := t.TempDir()
	setupImages(t, root, "a.jpg", "a.png", "b.png", "c.png")
	cfg := grayscaleConfig(root)
	cfg.Workers = 4

	report, err := New(cfg, testJoiner()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 2, report.Retained())
	require.Len(t, report.Failures, 2)
	for i, ext := range []string{".jpg", ".png"} {
		assert.Equal(t, "a", report.Failures[i].ID)
		assert.Equal(t, filepath.Join(cfg.SourceDir, "a"+ext), report.Failures[i].Path)
		assert.ErrorIs(t, report.Failures[i].Err, ErrDuplicateImageID)
		assert.ErrorIs(t, report.Failures[i].Err, types.ErrMalformedInput)
	}

	m, err := ReadManifest(cfg.ManifestPath)
	require.NoError(t, err)
	for _, e := range m.Entries {
		assert.NotEqual(t, "a", e.ID)
	}
	assert.NoFileExists(t, filepath.Join(cfg.TargetDir, "a."+imageio.ArrayExt))
}

func TestRunDeterministicAcrossWorkers(t *testing.T) {
	var manifests [][][]string
	for _, workers := range []int{1, 4} {
		root := t.TempDir()
		setupImages(t, root, "a.png", "b.png", "c.png", "d.png", "e.png")
		cfg := grayscaleConfig(root)
		cfg.Workers = workers
		_, err := New(cfg, testJoiner()).Run(context.Background())
		require.NoError(t, err)

		m, err := ReadManifest(cfg.ManifestPath)
		require.NoError(t, err)
		for i := range m.Entries {
			m.Entries[i].Path = filepath.Base(m.Entries[i].Path)
		}
		manifests = append(manifests, m.Frame().Rows)
	}
	assert.Equal(t, manifests[0], manifests[1])
}

func TestRunResizePad(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "images")
	require.NoError(t, os.MkdirAll(src, 0o755))
	writeTestImage(t, src, "wide.png", 40, 10)
	writeTestImage(t, src, "tall.jpg", 10, 30)

	cfg := Config{
		Mode:         ModeResizePad,
		SourceDir:    src,
		TargetDir:    filepath.Join(root, "out"),
		ManifestPath: filepath.Join(root, "out", "manifest.csv"),
		TargetSize:   16,
		DataRange:    255,
		OutputFormat: imageio.FormatPNG,
		Quality:      90,
		Workers:      2,
	}
	report, err := New(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Retained())

	m, err := ReadManifest(cfg.ManifestPath)
	require.NoError(t, err)
	assert.False(t, m.Labeled)
	// enumeration is sorted: tall.jpg is index 0, wide.png index 1
	assert.Equal(t, "tall", m.Entries[0].ID)
	assert.Equal(t, filepath.Join(cfg.TargetDir, "0.png"), m.Entries[0].Path)
	assert.Equal(t, filepath.Join(cfg.TargetDir, "1.png"), m.Entries[1].Path)

	for _, path := range m.Paths() {
		img, err := imageio.LoadImage(path)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	root := t.TempDir()
	cfg := grayscaleConfig(root)

	_, err := New(cfg, nil).Run(context.Background())
	assert.ErrorIs(t, err, types.ErrConfiguration)

	cfg.TargetSize = 0
	_, err = New(cfg, testJoiner()).Run(context.Background())
	assert.ErrorIs(t, err, types.ErrConfiguration)

	cfg = grayscaleConfig(root)
	cfg.Mode = ModeResizePad
	cfg.OutputFormat = "gif"
	cfg.Quality = 90
	_, err = New(cfg, nil).Run(context.Background())
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = ParseMode("sepia")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestRunMissingSourceDir(t *testing.T) {
	_, err := New(grayscaleConfig(t.TempDir()), testJoiner()).Run(context.Background())
	var ioErr *types.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	setupImages(t, root, "a.png", "b.png")
	cfg := grayscaleConfig(root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(cfg, testJoiner()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(cfg.ManifestPath)
	assert.True(t, os.IsNotExist(statErr))
}
