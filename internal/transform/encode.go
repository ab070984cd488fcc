package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/dunamismax/iconforge/internal/domain"
)

const ContentTypePNG = "image/png"

// EncodePNG writes img as PNG. Fully opaque RGBA/NRGBA images are written
// as three-channel truecolor by the encoder.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encode png: %w", domain.ErrConversion, err)
	}
	return buf.Bytes(), nil
}
