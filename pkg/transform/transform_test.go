package transform

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/catalog-prep/pkg/types"
)

// createTestImage creates a gradient RGB image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 200, 255})
		}
	}
	return img
}

func createGrayImage(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y*width) % 256)})
		}
	}
	return img
}

func TestResizeToSquareDimensions(t *testing.T) {
	cases := []struct {
		name          string
		width, height int
	}{
		{"square", 300, 300},
		{"portrait", 120, 480},
		{"landscape", 640, 90},
		{"tiny", 3, 1},
		{"upscale", 20, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, size := range []int{1, 64, 256} {
				out, err := ResizeToSquare(createTestImage(tc.width, tc.height), size)
				require.NoError(t, err)
				assert.Equal(t, size, out.Bounds().Dx())
				assert.Equal(t, size, out.Bounds().Dy())
			}
		})
	}
}

func TestResizeToSquarePadsWithBlack(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			src.Set(x, y, color.RGBA{255, 255, 255, 255})
		}
	}

	out, err := ResizeToSquare(src, 100)
	require.NoError(t, err)

	// Content is 100x50, pasted at y=25.
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, out.NRGBAAt(50, 10))
	assert.Equal(t, color.NRGBA{0, 0, 0, 255}, out.NRGBAAt(50, 90))
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, out.NRGBAAt(50, 50))
}

func TestResizeToSquareRejectsBadSize(t *testing.T) {
	_, err := ResizeToSquare(createTestImage(10, 10), 0)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = ResizeToSquare(image.NewRGBA(image.Rect(0, 0, 0, 5)), 10)
	assert.Error(t, err)
}

func TestCenterCrop(t *testing.T) {
	src := createGrayImage(10, 8)

	out, err := CenterCrop(src, 4, 4)
	require.NoError(t, err)
	gray, ok := out.(*image.Gray)
	require.True(t, ok, "grayscale input should stay grayscale")
	assert.Equal(t, image.Rect(0, 0, 4, 4), gray.Bounds())
	// Offset is (3, 2).
	assert.Equal(t, src.GrayAt(3, 2), gray.GrayAt(0, 0))
	assert.Equal(t, src.GrayAt(6, 5), gray.GrayAt(3, 3))
}

func TestCenterCropOddRemainder(t *testing.T) {
	src := createTestImage(5, 5)
	out, err := CenterCrop(src, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Bounds().Dx())

	r1, g1, b1, _ := out.At(0, 0).RGBA()
	r2, g2, b2, _ := src.At(1, 1).RGBA()
	assert.Equal(t, []uint32{r2, g2, b2}, []uint32{r1, g1, b1})
}

func TestCenterCropOutOfBounds(t *testing.T) {
	_, err := CenterCrop(createTestImage(100, 40), 50, 50)
	assert.ErrorIs(t, err, ErrCropOutOfBounds)

	_, err = CenterCrop(createTestImage(100, 100), 0, 50)
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestCenterCropGray16StaysSingleChannel(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 6, 6))
	for i := 0; i < 6; i++ {
		img.SetGray16(i, i, color.Gray16{Y: 0xFFFF})
	}
	cropped, err := CenterCrop(ToGrayscale(img), 4, 4)
	require.NoError(t, err)
	assert.IsType(t, &image.Gray{}, cropped)
	assert.Equal(t, uint8(255), cropped.(*image.Gray).GrayAt(0, 0).Y)

	n, err := Normalize(cropped, 255)
	require.NoError(t, err)
	assert.Equal(t, 1, n.Channels())
}

func TestToGrayscale(t *testing.T) {
	gray := createGrayImage(4, 4)
	assert.Same(t, gray, ToGrayscale(gray).(*image.Gray))

	out := ToGrayscale(createTestImage(6, 3))
	g, ok := out.(*image.Gray)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 6, 3), g.Bounds())
	assert.True(t, IsGray(out))
}

func TestNormalizeRange(t *testing.T) {
	rgb, err := Normalize(createTestImage(16, 16), 255)
	require.NoError(t, err)
	assert.Equal(t, 3, rgb.Channels())
	assert.Equal(t, 16, rgb.Size())
	for _, v := range rgb.Flatten() {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.InDelta(t, 200.0/255.0, rgb.At(0, 0, 2), 1e-12)

	gray, err := Normalize(createGrayImage(8, 8), 255)
	require.NoError(t, err)
	assert.Equal(t, 1, gray.Channels())
	assert.InDelta(t, 1.0/255.0, gray.At(1, 0, 0), 1e-12)
}

func TestNormalizeArrayUnitRangeIsNoOp(t *testing.T) {
	n, err := Normalize(createGrayImage(8, 8), 255)
	require.NoError(t, err)

	again, err := NormalizeArray(n, 1)
	require.NoError(t, err)
	assert.Equal(t, n.Flatten(), again.Flatten())
	assert.Equal(t, n.Channels(), again.Channels())
}

func TestNormalizeRejects(t *testing.T) {
	_, err := Normalize(createTestImage(4, 4), 0)
	assert.ErrorIs(t, err, types.ErrConfiguration)

	_, err = Normalize(createTestImage(4, 3), 255)
	assert.ErrorIs(t, err, types.ErrShapeMismatch)
}

func BenchmarkResizeToSquare(b *testing.B) {
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ResizeToSquare(img, 256)
	}
}

func BenchmarkGrayscaleCropNormalize(b *testing.B) {
	img := createTestImage(1024, 768)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cropped, _ := CenterCrop(ToGrayscale(img), 512, 512)
		Normalize(cropped, 255)
	}
}
