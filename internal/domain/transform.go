package domain

import (
	"fmt"
	"strings"
	"time"
)

type Operation string

const (
	OpConvert      Operation = "convert"
	OpIconSet      Operation = "icon_set"
	OpFilter       Operation = "filter"
	OpHomescreen   Operation = "homescreen_mockup"
	OpFrame        Operation = "frame_screenshot"
	OpColorProfile Operation = "color_profile"
	OpLaunchScreen Operation = "launch_screen"
	OpTypography   Operation = "typography"
)

type FilterKind string

const (
	FilterGrayscale FilterKind = "grayscale"
	FilterBlur      FilterKind = "blur"
	FilterSharpen   FilterKind = "sharpen"
	FilterInvert    FilterKind = "invert"
)

const (
	DefaultIconSize  = 1024
	DefaultText      = "Hello, iOS!"
	DefaultFontSize  = 72
	maxTextRunes     = 200
	maxFontSize      = 512
	maxTargetEdgePix = 8192
)

// ParseFilterKind maps a form value to a FilterKind. An empty value selects
// grayscale; anything unrecognized is rejected.
func ParseFilterKind(raw string) (FilterKind, error) {
	switch kind := FilterKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "":
		return FilterGrayscale, nil
	case FilterGrayscale, FilterBlur, FilterSharpen, FilterInvert:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFilter, raw)
	}
}

// TransformSpec names one operation and its parameters.
type TransformSpec struct {
	Op       Operation
	Width    int
	Height   int
	Filter   FilterKind
	Text     string
	FontSize int
}

func ResizeSpec(width, height int) TransformSpec {
	if width <= 0 {
		width = DefaultIconSize
	}
	if height <= 0 {
		height = width
	}
	return TransformSpec{Op: OpConvert, Width: width, Height: height}
}

func TypographySpec(text string, fontSize int) TransformSpec {
	if strings.TrimSpace(text) == "" {
		text = DefaultText
	}
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	return TransformSpec{Op: OpTypography, Text: text, FontSize: fontSize}
}

func (s TransformSpec) Validate() error {
	switch s.Op {
	case OpConvert:
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("%w: resize requires width and height > 0", ErrInvalidSpec)
		}
		if s.Width > maxTargetEdgePix || s.Height > maxTargetEdgePix {
			return fmt.Errorf("%w: resize target exceeds %dpx", ErrInvalidSpec, maxTargetEdgePix)
		}
	case OpFilter:
		if _, err := ParseFilterKind(string(s.Filter)); err != nil || s.Filter == "" {
			return fmt.Errorf("%w: filter %q", ErrUnknownFilter, s.Filter)
		}
	case OpTypography:
		if s.FontSize <= 0 || s.FontSize > maxFontSize {
			return fmt.Errorf("%w: font_size must be between 1 and %d", ErrInvalidSpec, maxFontSize)
		}
		if len([]rune(s.Text)) > maxTextRunes {
			return fmt.Errorf("%w: text longer than %d characters", ErrInvalidSpec, maxTextRunes)
		}
	case OpIconSet, OpHomescreen, OpFrame, OpColorProfile, OpLaunchScreen:
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidSpec, s.Op)
	}
	return nil
}

// OutputName is the filename a derived asset is stored under inside its
// request token.
func (s TransformSpec) OutputName() string {
	switch s.Op {
	case OpConvert:
		return "converted_image.png"
	case OpIconSet:
		return IconSetArchiveName
	case OpFilter:
		return fmt.Sprintf("filtered_%s.png", s.Filter)
	case OpHomescreen:
		return "homescreen_preview.png"
	case OpFrame:
		return "framed_screenshot.png"
	case OpColorProfile:
		return "srgb_converted.png"
	case OpLaunchScreen:
		return "launch_screen.png"
	case OpTypography:
		return "typography_preview.png"
	default:
		return "output.png"
	}
}

// DerivedAsset describes one file produced by a transform.
type DerivedAsset struct {
	Token       string    `json:"token"`
	Operation   Operation `json:"operation"`
	Filename    string    `json:"filename"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	Width       int       `json:"width,omitempty"`
	Height      int       `json:"height,omitempty"`
	Bytes       int       `json:"bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
