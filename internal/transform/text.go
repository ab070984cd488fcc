package transform

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/dunamismax/iconforge/internal/domain"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	TypographyWidth  = 1200
	TypographyHeight = 200
)

var (
	typographyBackground = color.NRGBA{R: 255, G: 255, B: 255, A: 0}
	typographyInk        = color.NRGBA{A: 255}
)

// RenderText draws text in black on a transparent 1200x200 canvas, centered
// on the glyphs' measured bounding box.
func RenderText(fontData []byte, text string, size int) (*image.NRGBA, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: font size %d", domain.ErrInvalidSpec, size)
	}

	parsed, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("%w: parse font: %w", domain.ErrConversion, err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: build font face: %w", domain.ErrConversion, err)
	}
	defer face.Close()

	canvas := image.NewNRGBA(image.Rect(0, 0, TypographyWidth, TypographyHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(typographyBackground), image.Point{}, draw.Src)

	bounds, _ := font.BoundString(face, text)
	textW := (bounds.Max.X - bounds.Min.X).Ceil()
	textH := (bounds.Max.Y - bounds.Min.Y).Ceil()
	x := (TypographyWidth-textW)/2 - bounds.Min.X.Floor()
	y := (TypographyHeight-textH)/2 - bounds.Min.Y.Floor()

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(typographyInk),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)

	return canvas, nil
}
