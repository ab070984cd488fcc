package transform

import (
	"fmt"
	"image"

	"github.com/dunamismax/iconforge/internal/domain"
)

// Resize resamples src to exactly width x height. Aspect ratio is not kept.
func Resize(src image.Image, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: resize target %dx%d", domain.ErrInvalidSpec, width, height)
	}
	if src == nil || src.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty source image", domain.ErrConversion)
	}
	return resample(src, width, height), nil
}

type Icon struct {
	Size  domain.IconSize
	Image *image.NRGBA
}

// IconSet renders every entry of domain.IconSizeTable from one source, in
// table order. The first failure aborts the whole set.
func IconSet(src image.Image) ([]Icon, error) {
	icons := make([]Icon, 0, len(domain.IconSizeTable))
	for _, size := range domain.IconSizeTable {
		px := size.Pixels()
		img, err := Resize(src, px, px)
		if err != nil {
			return nil, fmt.Errorf("icon %s: %w", size.Filename(), err)
		}
		icons = append(icons, Icon{Size: size, Image: img})
	}
	return icons, nil
}
