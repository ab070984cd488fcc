package transform

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/iconforge/internal/domain"
)

// NormalizeColor forces src into plain three-channel RGB by dropping alpha.
// Embedded ICC profiles are ignored, not converted.
func NormalizeColor(src image.Image) (*image.NRGBA, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", domain.ErrConversion)
	}
	return forceOpaque(imaging.Clone(src)), nil
}
