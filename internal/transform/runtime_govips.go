//go:build govips && cgo

package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	startupOnce sync.Once
	shutdownMu  sync.Mutex
	started     bool
)

func Startup() error {
	startupOnce.Do(func() {
		vips.Startup(&vips.Config{
			MaxCacheFiles: 0,
			MaxCacheMem:   128 * 1024 * 1024,
			MaxCacheSize:  100,
		})

		shutdownMu.Lock()
		started = true
		shutdownMu.Unlock()
	})
	return nil
}

func Shutdown() {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if !started {
		return
	}
	vips.Shutdown()
	started = false
}

// resample uses libvips when it is running and falls back to the pure Go
// kernel otherwise. Either way the result has exactly the requested size.
func resample(src image.Image, width, height int) *image.NRGBA {
	shutdownMu.Lock()
	ready := started
	shutdownMu.Unlock()
	if !ready {
		return imaging.Resize(src, width, height, imaging.Lanczos)
	}

	out, err := resampleVips(src, width, height)
	if err != nil {
		return imaging.Resize(src, width, height, imaging.Lanczos)
	}
	return out
}

func resampleVips(src image.Image, width, height int) (*image.NRGBA, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("stage source for vips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load vips image: %w", err)
	}
	defer ref.Close()

	bounds := src.Bounds()
	hScale := float64(width) / float64(bounds.Dx())
	vScale := float64(height) / float64(bounds.Dy())
	if err := ref.ResizeWithVScale(hScale, vScale, vips.KernelLanczos3); err != nil {
		return nil, fmt.Errorf("vips resize: %w", err)
	}

	data, _, err := ref.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("vips export png: %w", err)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode vips output: %w", err)
	}

	// vips rounds scale factors; trim to the exact target.
	if b := out.Bounds(); b.Dx() != width || b.Dy() != height {
		return imaging.Resize(out, width, height, imaging.Lanczos), nil
	}
	return imaging.Clone(out), nil
}
