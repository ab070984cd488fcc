package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IconSize is one entry of the Apple app icon matrix: a logical point size
// rendered at a display scale.
type IconSize struct {
	Base  float64
	Scale int
}

// IconSizeTable lists the iOS icon sizes in the order they are generated.
var IconSizeTable = []IconSize{
	{Base: 20, Scale: 1}, {Base: 20, Scale: 2}, {Base: 20, Scale: 3},
	{Base: 29, Scale: 1}, {Base: 29, Scale: 2}, {Base: 29, Scale: 3},
	{Base: 40, Scale: 1}, {Base: 40, Scale: 2}, {Base: 40, Scale: 3},
	{Base: 60, Scale: 2}, {Base: 60, Scale: 3},
	{Base: 76, Scale: 1}, {Base: 76, Scale: 2},
	{Base: 83.5, Scale: 2},
	{Base: 1024, Scale: 1},
}

const IconSetArchiveName = "ios_app_icons.zip"

// Pixels is the edge length in pixels, rounded to the nearest integer.
func (s IconSize) Pixels() int {
	return int(math.Round(s.Base * float64(s.Scale)))
}

// Filename returns a name like icon_20x20@2x.png. Fractional base sizes are
// written with "p" in place of the decimal point (83.5 -> 83p5).
func (s IconSize) Filename() string {
	base := strings.ReplaceAll(strconv.FormatFloat(s.Base, 'f', -1, 64), ".", "p")
	return fmt.Sprintf("icon_%sx%s@%dx.png", base, base, s.Scale)
}
