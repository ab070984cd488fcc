package transform

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/iconforge/internal/domain"
)

const (
	blurSigma    = 5.0
	sharpenSigma = 1.0
)

func ApplyFilter(src image.Image, kind domain.FilterKind) (*image.NRGBA, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", domain.ErrConversion)
	}

	switch kind {
	case domain.FilterGrayscale:
		return Grayscale(src), nil
	case domain.FilterBlur:
		return imaging.Blur(src, blurSigma), nil
	case domain.FilterSharpen:
		return imaging.Sharpen(src, sharpenSigma), nil
	case domain.FilterInvert:
		return imaging.Invert(src), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownFilter, kind)
	}
}

// Grayscale reduces src to luminance and gives the result a fully opaque
// alpha channel. Applying it to its own output is a no-op.
func Grayscale(src image.Image) *image.NRGBA {
	return forceOpaque(imaging.Grayscale(src))
}

func forceOpaque(img *image.NRGBA) *image.NRGBA {
	for y := 0; y < img.Rect.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+img.Rect.Dx()*4]
		for i := 3; i < len(row); i += 4 {
			row[i] = 0xff
		}
	}
	return img
}
