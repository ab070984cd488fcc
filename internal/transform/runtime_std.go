//go:build !govips || !cgo

package transform

import (
	"image"

	"github.com/disintegration/imaging"
)

func Startup() error {
	return nil
}

func Shutdown() {}

func resample(src image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(src, width, height, imaging.Lanczos)
}
