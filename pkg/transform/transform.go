// Package transform holds the per-image geometric and photometric
// operations used to turn arbitrary product photos into fixed-size arrays.
// Every function is pure: inputs are never modified.
package transform

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/catalog-prep/pkg/types"
)

// ErrCropOutOfBounds is returned when a crop target exceeds the source size.
var ErrCropOutOfBounds = errors.New("crop target exceeds image bounds")

// Canvas is the fill used around a resized image.
var Canvas = color.NRGBA{0, 0, 0, 255}

// ResizeToSquare scales img so that its longer side equals targetSize and
// pastes it centered on a black targetSize x targetSize canvas.
func ResizeToSquare(img image.Image, targetSize int) (*image.NRGBA, error) {
	if targetSize <= 0 {
		return nil, types.Configuration("target size must be positive, got %d", targetSize)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", w, h)
	}

	longest := max(w, h)
	nw := max(w*targetSize/longest, 1)
	nh := max(h*targetSize/longest, 1)

	resized := imaging.Resize(img, nw, nh, imaging.Lanczos)
	canvas := imaging.New(targetSize, targetSize, Canvas)
	return imaging.Paste(canvas, resized, image.Pt((targetSize-nw)/2, (targetSize-nh)/2)), nil
}

// CenterCrop extracts the centered targetWidth x targetHeight rectangle.
// The source must be at least as large as the target on both axes; when the
// leftover is odd the extra pixel stays on the right or bottom.
// Grayscale sources stay grayscale.
func CenterCrop(img image.Image, targetWidth, targetHeight int) (image.Image, error) {
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, types.Configuration("crop size must be positive, got %dx%d", targetWidth, targetHeight)
	}
	b := img.Bounds()
	if b.Dx() < targetWidth || b.Dy() < targetHeight {
		return nil, fmt.Errorf("%w: %dx%d from %dx%d", ErrCropOutOfBounds, targetWidth, targetHeight, b.Dx(), b.Dy())
	}

	x0 := b.Min.X + (b.Dx()-targetWidth)/2
	y0 := b.Min.Y + (b.Dy()-targetHeight)/2
	rect := image.Rect(x0, y0, x0+targetWidth, y0+targetHeight)

	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, targetWidth, targetHeight))
		for y := 0; y < targetHeight; y++ {
			src := g.PixOffset(rect.Min.X, rect.Min.Y+y)
			copy(out.Pix[y*out.Stride:y*out.Stride+targetWidth], g.Pix[src:src+targetWidth])
		}
		return out, nil
	}
	if g, ok := img.(*image.Gray16); ok {
		out := image.NewGray(image.Rect(0, 0, targetWidth, targetHeight))
		for y := 0; y < targetHeight; y++ {
			for x := 0; x < targetWidth; x++ {
				out.SetGray(x, y, color.GrayModel.Convert(g.Gray16At(rect.Min.X+x, rect.Min.Y+y)).(color.Gray))
			}
		}
		return out, nil
	}
	return imaging.Crop(img, rect), nil
}

// ToGrayscale returns the luminance version of img. Single-channel images
// are returned as they are.
func ToGrayscale(img image.Image) image.Image {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return img
	}

	lum := imaging.Grayscale(img)
	b := lum.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		row := lum.Pix[y*lum.Stride : y*lum.Stride+b.Dx()*4]
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = row[x*4]
		}
	}
	return out
}

// IsGray reports whether img carries a single channel.
func IsGray(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

// Normalize converts a square image to floating point intensities by
// dividing every 8-bit channel value by dataRange. Grayscale images yield
// one channel, everything else three (alpha is dropped).
func Normalize(img image.Image, dataRange float64) (types.NormalizedImage, error) {
	if dataRange <= 0 {
		return types.NormalizedImage{}, types.Configuration("data range must be positive, got %g", dataRange)
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w != h {
		return types.NormalizedImage{}, fmt.Errorf("%w: expected a square image, got %dx%d", types.ErrShapeMismatch, w, h)
	}

	if IsGray(img) {
		data := mat.NewDense(h, w, nil)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
				data.Set(y, x, float64(v)/dataRange)
			}
		}
		return types.NewNormalizedImage(data, 1)
	}

	nrgba := imaging.Clone(img)
	data := mat.NewDense(h, w*3, nil)
	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
		for x := 0; x < w; x++ {
			for c := 0; c < 3; c++ {
				data.Set(y, x*3+c, float64(row[x*4+c])/dataRange)
			}
		}
	}
	return types.NewNormalizedImage(data, 3)
}

// NormalizeArray divides an already normalized image by dataRange.
// A dataRange of 1 returns an identical copy.
func NormalizeArray(n types.NormalizedImage, dataRange float64) (types.NormalizedImage, error) {
	if dataRange <= 0 {
		return types.NormalizedImage{}, types.Configuration("data range must be positive, got %g", dataRange)
	}
	var out mat.Dense
	out.Scale(1/dataRange, n.Data)
	return types.NewNormalizedImage(&out, n.Channels())
}
