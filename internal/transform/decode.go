package transform

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/dunamismax/iconforge/internal/domain"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Source is a decoded upload. It lives for one request.
type Source struct {
	Image  image.Image
	Format string
	Width  int
	Height int
	Mode   string
}

// Decode reads the image header first and refuses anything whose declared
// pixel count exceeds maxPixels, so oversized uploads are rejected before
// any pixel buffer is allocated. maxPixels <= 0 disables the check.
func Decode(data []byte, maxPixels int) (Source, error) {
	if len(data) == 0 {
		return Source{}, fmt.Errorf("%w: empty image data", domain.ErrConversion)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Source{}, fmt.Errorf("%w: read image header: %w", domain.ErrConversion, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Source{}, fmt.Errorf("%w: invalid dimensions %dx%d", domain.ErrConversion, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return Source{}, fmt.Errorf("%w: %dx%d exceeds %d pixels", domain.ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Source{}, fmt.Errorf("%w: decode %s: %w", domain.ErrConversion, format, err)
	}

	bounds := img.Bounds()
	return Source{
		Image:  img,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Mode:   colorMode(img),
	}, nil
}

func colorMode(img image.Image) string {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "gray"
	case *image.Paletted:
		return "paletted"
	case *image.CMYK:
		return "cmyk"
	case *image.YCbCr:
		return "ycbcr"
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return "rgb"
	}
	return "rgba"
}
