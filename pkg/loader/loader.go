// Package loader reads persisted images back and stacks them into a
// feature matrix, one flattened row per image.
package loader

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/catalog-prep/internal/utils"
	"github.com/menta2k/catalog-prep/pkg/imageio"
	"github.com/menta2k/catalog-prep/pkg/transform"
	"github.com/menta2k/catalog-prep/pkg/types"
)

// Loader flattens persisted images. DataRange is applied to re-encoded
// image files only; persisted arrays are already normalized.
type Loader struct {
	DataRange float64
}

// New returns a loader for the given pixel value range.
func New(dataRange float64) *Loader {
	return &Loader{DataRange: dataRange}
}

// Load reads one persisted image.
func (l *Loader) Load(path string) (types.NormalizedImage, error) {
	if strings.EqualFold(utils.GetFileExtension(path), imageio.ArrayExt) {
		return imageio.ReadArray(path)
	}
	if l.DataRange <= 0 {
		return types.NormalizedImage{}, types.Configuration("data range must be positive, got %g", l.DataRange)
	}
	img, err := imageio.LoadImage(path)
	if err != nil {
		return types.NormalizedImage{}, err
	}
	n, err := transform.Normalize(img, l.DataRange)
	if err != nil {
		return types.NormalizedImage{}, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// LoadAndFlatten reads one persisted image as a row-major vector.
func (l *Loader) LoadAndFlatten(path string) ([]float64, error) {
	n, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	return n.Flatten(), nil
}

// LoadDataset stacks the flattened images into an len(paths) x pixels
// matrix in input order. Every image must have the shape of the first.
func (l *Loader) LoadDataset(paths []string) (*mat.Dense, error) {
	if len(paths) == 0 {
		return &mat.Dense{}, nil
	}

	var out *mat.Dense
	var size, channels int
	for i, path := range paths {
		n, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		if out == nil {
			size, channels = n.Size(), n.Channels()
			out = mat.NewDense(len(paths), size*size*channels, nil)
		} else if n.Size() != size || n.Channels() != channels {
			return nil, fmt.Errorf("%w: %s is %dx%dx%d, expected %dx%dx%d",
				types.ErrShapeMismatch, path, n.Size(), n.Size(), n.Channels(), size, size, channels)
		}
		out.SetRow(i, n.Flatten())
	}
	return out, nil
}

// LoadAndFlatten reads a persisted image with the default 8-bit range.
func LoadAndFlatten(path string) ([]float64, error) {
	return New(255).LoadAndFlatten(path)
}

// LoadDataset stacks persisted images with the default 8-bit range.
func LoadDataset(paths []string) (*mat.Dense, error) {
	return New(255).LoadDataset(paths)
}
