package assets

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/dunamismax/iconforge/internal/transform"
)

// Relative locations of the bundled assets under the library root.
const (
	HomescreenMockupPath = "mockups/homescreen_mockup.png"
	IPhoneFramePath      = "frames/iphone_frame.png"
	LaunchBackgroundPath = "backgrounds/launch_background.png"
	TypographyFontPath   = "fonts/SanFrancisco.ttf"
)

// Library reads bundled images and fonts from a directory. A missing file
// is reported as domain.ErrUnavailable so callers can degrade gracefully.
type Library struct {
	dir       string
	maxPixels int
}

func NewLibrary(dir string, maxPixels int) *Library {
	return &Library{dir: dir, maxPixels: maxPixels}
}

func (l *Library) HomescreenMockup() (image.Image, error) {
	return l.image(HomescreenMockupPath)
}

func (l *Library) IPhoneFrame() (image.Image, error) {
	return l.image(IPhoneFramePath)
}

func (l *Library) LaunchBackground() (image.Image, error) {
	return l.image(LaunchBackgroundPath)
}

func (l *Library) TypographyFont() ([]byte, error) {
	return l.read(TypographyFontPath)
}

func (l *Library) image(rel string) (image.Image, error) {
	data, err := l.read(rel)
	if err != nil {
		return nil, err
	}
	src, err := transform.Decode(data, l.maxPixels)
	if err != nil {
		return nil, fmt.Errorf("bundled asset %s: %w", rel, err)
	}
	return src.Image, nil
}

func (l *Library) read(rel string) ([]byte, error) {
	path := filepath.Join(l.dir, filepath.FromSlash(rel))
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: bundled asset %s is missing", domain.ErrUnavailable, rel)
		}
		return nil, fmt.Errorf("read bundled asset %s: %w", rel, err)
	}
	return data, nil
}
