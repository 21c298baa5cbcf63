// Package crop computes the padded bounding region of a drawing and renders
// it into a raster suitable for the recognition service. The package is pure:
// identical inputs always produce identical rectangles and pixels.
package crop

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/vector"

	"ink2tex/canvas"
)

// ErrEmptyInput signals a conversion attempt with no strokes on the canvas.
var ErrEmptyInput = errors.New("nothing drawn to convert")

// Options control crop geometry and rendering. Zero values fall back to the
// package defaults below.
type Options struct {
	Padding     int        // margin added around the ink bounds, pixels
	MinSize     int        // minimum crop width/height after padding
	StrokeWidth float64    // rendered pen width, pixels
	Ink         color.RGBA // pen color
	Background  color.RGBA // crop background fill
}

const (
	DefaultPadding     = 30
	DefaultMinSize     = 100
	DefaultStrokeWidth = 3
)

func (o Options) withDefaults() Options {
	if o.Padding <= 0 {
		o.Padding = DefaultPadding
	}
	if o.MinSize <= 0 {
		o.MinSize = DefaultMinSize
	}
	if o.StrokeWidth <= 0 {
		o.StrokeWidth = DefaultStrokeWidth
	}
	if o.Ink == (color.RGBA{}) {
		o.Ink = color.RGBA{B: 255, A: 255}
	}
	if o.Background == (color.RGBA{}) {
		o.Background = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return o
}

// ComputeCropRect returns the union bounding box of all stroke points,
// expanded by the padding margin, grown to the minimum crop size, and clipped
// to [0,0)-(canvasSize). A single-point stroke counts as a 1x1 box before
// padding. With no completed strokes it returns ErrEmptyInput.
func ComputeCropRect(strokes []canvas.Stroke, canvasSize image.Point, opts Options) (image.Rectangle, error) {
	if canvasSize.X <= 0 || canvasSize.Y <= 0 {
		return image.Rectangle{}, fmt.Errorf("invalid canvas size %dx%d", canvasSize.X, canvasSize.Y)
	}
	opts = opts.withDefaults()

	var (
		have         bool
		minPt, maxPt canvas.Point
	)
	for _, s := range strokes {
		smin, smax, ok := s.Bounds()
		if !ok {
			continue
		}
		if !have {
			minPt, maxPt, have = smin, smax, true
			continue
		}
		if smin.X < minPt.X {
			minPt.X = smin.X
		}
		if smin.Y < minPt.Y {
			minPt.Y = smin.Y
		}
		if smax.X > maxPt.X {
			maxPt.X = smax.X
		}
		if smax.Y > maxPt.Y {
			maxPt.Y = smax.Y
		}
	}
	if !have {
		return image.Rectangle{}, ErrEmptyInput
	}

	// Inclusive point bounds to a half-open pixel rectangle, then pad.
	x0 := minPt.X - opts.Padding
	y0 := minPt.Y - opts.Padding
	x1 := maxPt.X + 1 + opts.Padding
	y1 := maxPt.Y + 1 + opts.Padding

	// Grow to the minimum size around the center so tiny glyphs still yield
	// an image the recognition model can work with.
	if w := x1 - x0; w < opts.MinSize {
		extra := opts.MinSize - w
		x0 -= extra / 2
		x1 += extra - extra/2
	}
	if h := y1 - y0; h < opts.MinSize {
		extra := opts.MinSize - h
		y0 -= extra / 2
		y1 += extra - extra/2
	}

	r := image.Rect(x0, y0, x1, y1).Intersect(image.Rect(0, 0, canvasSize.X, canvasSize.Y))
	if r.Empty() {
		// Strokes recorded entirely outside the canvas.
		return image.Rectangle{}, ErrEmptyInput
	}
	return r, nil
}

// Rasterize renders the strokes intersecting rect into a new RGBA buffer
// sized to rect, on the background color with a fixed pen. Stroke coordinates
// are canvas-local; the result is translated so rect.Min maps to (0,0).
func Rasterize(strokes []canvas.Stroke, rect image.Rectangle, opts Options) *image.RGBA {
	opts = opts.withDefaults()

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)

	hw := float32(opts.StrokeWidth) / 2
	reach := int(math.Ceil(opts.StrokeWidth/2)) + 1
	clip := rect.Inset(-reach)

	rz := vector.NewRasterizer(rect.Dx(), rect.Dy())
	var drew bool
	for _, s := range strokes {
		smin, smax, ok := s.Bounds()
		if !ok || !image.Rect(smin.X, smin.Y, smax.X+1, smax.Y+1).Overlaps(clip) {
			continue
		}
		appendStroke(rz, s, rect.Min, hw)
		drew = true
	}
	if drew {
		rz.Draw(dst, dst.Bounds(), image.NewUniform(opts.Ink), image.Point{})
	}
	return dst
}

// appendStroke adds one stroke as a sequence of stroked-segment quads. A
// single-point stroke becomes a square dot of the pen width.
func appendStroke(rz *vector.Rasterizer, s canvas.Stroke, origin image.Point, hw float32) {
	at := func(p canvas.Point) (float32, float32) {
		return float32(p.X-origin.X) + 0.5, float32(p.Y-origin.Y) + 0.5
	}

	if len(s.Points) == 1 {
		x, y := at(s.Points[0])
		rz.MoveTo(x-hw, y-hw)
		rz.LineTo(x+hw, y-hw)
		rz.LineTo(x+hw, y+hw)
		rz.LineTo(x-hw, y+hw)
		rz.ClosePath()
		return
	}

	for i := 1; i < len(s.Points); i++ {
		x0, y0 := at(s.Points[i-1])
		x1, y1 := at(s.Points[i])
		dx, dy := x1-x0, y1-y0
		l := float32(math.Hypot(float64(dx), float64(dy)))
		if l == 0 {
			continue
		}
		// Unit normal scaled to the pen half-width, plus a half-width cap
		// extension along the segment so joins do not leave notches.
		nx, ny := -dy/l*hw, dx/l*hw
		ex, ey := dx/l*hw, dy/l*hw
		rz.MoveTo(x0-ex+nx, y0-ey+ny)
		rz.LineTo(x1+ex+nx, y1+ey+ny)
		rz.LineTo(x1+ex-nx, y1+ey-ny)
		rz.LineTo(x0-ex-nx, y0-ey-ny)
		rz.ClosePath()
	}
}

// EncodePNG serializes the crop raster for transmission.
func EncodePNG(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode crop as PNG: %v", err)
	}
	return buf.Bytes(), nil
}
