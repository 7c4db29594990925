// Package imageio reads source photos, writes re-encoded images and
// persists normalized arrays.
//
// Normalized arrays use the gonum binary matrix encoding of a
// Size x (Size*Channels) matrix; the channel count is recovered from the
// shape on load.
package imageio

import (
	"bufio"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/catalog-prep/pkg/types"
)

// ArrayExt is the file extension of persisted normalized arrays.
const ArrayExt = "mat"

// Output formats for re-encoded images.
const (
	FormatJPG  = "jpg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// SupportedFormats lists the accepted output formats.
var SupportedFormats = []string{FormatJPG, FormatPNG, FormatWebP}

// LoadImage decodes an image file, applying EXIF orientation. WebP files
// that the registered decoder rejects are retried with libwebp.
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	if !strings.EqualFold(filepath.Ext(path), ".webp") {
		if os.IsNotExist(err) || os.IsPermission(err) {
			return nil, types.WrapIO("open", path, err)
		}
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	f, ferr := os.Open(path)
	if ferr != nil {
		return nil, types.WrapIO("open", path, ferr)
	}
	defer f.Close()
	img, werr := webp.Decode(bufio.NewReader(f))
	if werr != nil {
		return nil, fmt.Errorf("decode %s: %w", path, werr)
	}
	return img, nil
}

// SaveImage encodes img to path in the given format.
func SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case FormatWebP:
		f, err := os.Create(path)
		if err != nil {
			return types.WrapIO("create", path, err)
		}
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		if err := webp.Encode(f, img, opts); err != nil {
			f.Close()
			return types.WrapIO("encode", path, err)
		}
		return types.WrapIO("close", path, f.Close())
	case FormatPNG:
		return types.WrapIO("save", path, imaging.Save(img, path))
	case FormatJPG, "jpeg":
		return types.WrapIO("save", path, imaging.Save(img, path, imaging.JPEGQuality(quality)))
	default:
		return types.Configuration("unsupported output format %q", format)
	}
}

// IsSupportedFormat reports whether format can be written by SaveImage.
func IsSupportedFormat(format string) bool {
	if strings.EqualFold(format, "jpeg") {
		return true
	}
	for _, f := range SupportedFormats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// WriteArray persists a normalized image to path.
func WriteArray(path string, n types.NormalizedImage) error {
	f, err := os.Create(path)
	if err != nil {
		return types.WrapIO("create", path, err)
	}
	w := bufio.NewWriter(f)
	if _, err := n.Data.MarshalBinaryTo(w); err != nil {
		f.Close()
		return types.WrapIO("write", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return types.WrapIO("write", path, err)
	}
	return types.WrapIO("close", path, f.Close())
}

// ReadArray loads a normalized image written by WriteArray.
func ReadArray(path string) (types.NormalizedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.NormalizedImage{}, types.WrapIO("open", path, err)
	}
	defer f.Close()

	var data mat.Dense
	if _, err := data.UnmarshalBinaryFrom(bufio.NewReader(f)); err != nil {
		return types.NormalizedImage{}, types.WrapIO("read", path, err)
	}
	r, c := data.Dims()
	if r == 0 || c%r != 0 {
		return types.NormalizedImage{}, fmt.Errorf("%s: %w: stored array is %dx%d", path, types.ErrShapeMismatch, r, c)
	}
	n, err := types.NewNormalizedImage(&data, c/r)
	if err != nil {
		return types.NormalizedImage{}, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}
