package types

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NormalizedImage is a square array of intensities in [0,1].
// Pixels are stored row-major in a Size x (Size*Channels) matrix with
// channels interleaved, so row y holds x0c0 x0c1 x0c2 x1c0 ...
type NormalizedImage struct {
	Data     *mat.Dense
	channels int
}

// NewNormalizedImage wraps data as an image with the given channel count.
func NewNormalizedImage(data *mat.Dense, channels int) (NormalizedImage, error) {
	if channels != 1 && channels != 3 {
		return NormalizedImage{}, fmt.Errorf("unsupported channel count %d", channels)
	}
	r, c := data.Dims()
	if c%channels != 0 || c/channels != r {
		return NormalizedImage{}, fmt.Errorf("%w: %dx%d array is not square for %d channel(s)", ErrShapeMismatch, r, c, channels)
	}
	return NormalizedImage{Data: data, channels: channels}, nil
}

// Size returns the side length in pixels.
func (n NormalizedImage) Size() int {
	if n.Data == nil {
		return 0
	}
	r, _ := n.Data.Dims()
	return r
}

// Channels returns 1 for grayscale and 3 for RGB.
func (n NormalizedImage) Channels() int {
	return n.channels
}

// At returns the value of channel c at pixel (x, y).
func (n NormalizedImage) At(x, y, c int) float64 {
	return n.Data.At(y, x*n.channels+c)
}

// Flatten returns a row-major copy of the pixel values.
func (n NormalizedImage) Flatten() []float64 {
	r, c := n.Data.Dims()
	out := make([]float64, 0, r*c)
	for y := 0; y < r; y++ {
		out = append(out, n.Data.RawRowView(y)...)
	}
	return out
}

// ManifestEntry ties a processed image to its label and storage location.
type ManifestEntry struct {
	ID    string
	Label int
	Path  string
}

// ImageFailure records a source image that could not be processed.
type ImageFailure struct {
	ID   string
	Path string
	Err  error
}

func (f ImageFailure) Error() string {
	return fmt.Sprintf("image %s (%s): %v", f.ID, f.Path, f.Err)
}

// Exclusion records an image dropped because its label did not resolve.
type Exclusion struct {
	ID     string
	Reason error
}
