package transform

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/dunamismax/iconforge/internal/domain"
)

// Fixed placements inside the bundled mockup assets.
const (
	homescreenIconSize = 180
	frameDisplayWidth  = 600
	frameDisplayHeight = 1300
)

var (
	homescreenIconOffset = image.Pt(100, 300)
	frameDisplayOffset   = image.Pt(200, 300)
)

// HomescreenMockup scales icon to home-screen size and alpha-composites it
// onto background.
func HomescreenMockup(background, icon image.Image) (*image.NRGBA, error) {
	if err := requireImages(background, icon); err != nil {
		return nil, err
	}
	scaled, err := Resize(icon, homescreenIconSize, homescreenIconSize)
	if err != nil {
		return nil, err
	}
	return imaging.Overlay(background, scaled, homescreenIconOffset, 1.0), nil
}

// FrameScreenshot stretches screenshot over the display area of a device
// frame. The screenshot replaces the pixels underneath, alpha included.
func FrameScreenshot(frame, screenshot image.Image) (*image.NRGBA, error) {
	if err := requireImages(frame, screenshot); err != nil {
		return nil, err
	}
	scaled, err := Resize(screenshot, frameDisplayWidth, frameDisplayHeight)
	if err != nil {
		return nil, err
	}
	return imaging.Paste(frame, scaled, frameDisplayOffset), nil
}

// LaunchScreen scales foreground to half the background in each dimension
// and centers it.
func LaunchScreen(background, foreground image.Image) (*image.NRGBA, error) {
	if err := requireImages(background, foreground); err != nil {
		return nil, err
	}
	bg := background.Bounds()
	fgW, fgH := bg.Dx()/2, bg.Dy()/2
	scaled, err := Resize(foreground, fgW, fgH)
	if err != nil {
		return nil, err
	}
	offset := image.Pt((bg.Dx()-fgW)/2, (bg.Dy()-fgH)/2)
	return imaging.Overlay(background, scaled, offset, 1.0), nil
}

func requireImages(images ...image.Image) error {
	for _, img := range images {
		if img == nil || img.Bounds().Empty() {
			return fmt.Errorf("%w: empty image", domain.ErrConversion)
		}
	}
	return nil
}
