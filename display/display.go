package display

import (
	"image"

	"github.com/kbinani/screenshot"
)

// Fallback when no display can be queried (headless test runs, CI).
var defaultSize = image.Pt(1920, 1080)

// CanvasSize returns the pixel size of the primary display, which is what the
// full-screen overlay canvas covers.
func CanvasSize() image.Point {
	if screenshot.NumActiveDisplays() == 0 {
		return defaultSize
	}
	b := screenshot.GetDisplayBounds(0)
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return defaultSize
	}
	return image.Pt(b.Dx(), b.Dy())
}

// VirtualSize returns the union of all active display bounds, for setups that
// stretch the overlay across monitors.
func VirtualSize() image.Point {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return defaultSize
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	if union.Dx() <= 0 || union.Dy() <= 0 {
		return defaultSize
	}
	return image.Pt(union.Dx(), union.Dy())
}
