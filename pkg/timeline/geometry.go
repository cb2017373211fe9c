package timeline

import (
	"math"

	"github.com/reeledit/reeledit/pkg/models"
)

// AspectRatio selects one of the fixed canvas pixel rectangles.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
	AspectSquare    AspectRatio = "1:1"
)

func (a AspectRatio) IsValid() bool {
	switch a {
	case AspectLandscape, AspectPortrait, AspectSquare:
		return true
	}
	return false
}

// Canvas is the pixel rectangle overlays are laid out on.
type Canvas struct {
	Width  float64
	Height float64
}

func (a AspectRatio) Canvas() Canvas {
	switch a {
	case AspectPortrait:
		return Canvas{Width: 1080, Height: 1920}
	case AspectSquare:
		return Canvas{Width: 1080, Height: 1080}
	default:
		return Canvas{Width: 1280, Height: 720}
	}
}

// minDimension is the smallest width/height an overlay may clamp down to.
const minDimension = 16

type rect struct {
	left   float64
	top    float64
	width  float64
	height float64
}

func (r rect) finite() bool {
	for _, v := range []float64{r.left, r.top, r.width, r.height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// defaultSize returns the type-specific pixel size used when a layer carries
// a position but no bounding box.
func defaultSize(t models.OverlayType, c Canvas) (w, h float64) {
	switch t {
	case models.OverlayTypeText:
		return c.Width * 0.4, c.Height * 0.12
	case models.OverlayTypeCaption:
		return c.Width * 0.8, c.Height * 0.1
	case models.OverlayTypeImage, models.OverlayTypeShape:
		return c.Width * 0.15, c.Width * 0.15
	default:
		return c.Width, c.Height
	}
}

// resolveRect computes pixel geometry for a layer. Priority order: bounding
// box, then position with a type default size, then a centered default.
func resolveRect(layer models.LayerRecord, t models.OverlayType, c Canvas) rect {
	if bb := layer.BoundingBox; bb != nil && bb.Width > 0 && bb.Height > 0 {
		return rect{
			left:   bb.X * c.Width,
			top:    bb.Y * c.Height,
			width:  bb.Width * c.Width,
			height: bb.Height * c.Height,
		}
	}

	w, h := defaultSize(t, c)
	if pos := layer.Position; pos != nil {
		return rect{
			left:   pos.X * c.Width,
			top:    pos.Y * c.Height,
			width:  w,
			height: h,
		}
	}

	return rect{
		left:   (c.Width - w) / 2,
		top:    (c.Height - h) / 2,
		width:  w,
		height: h,
	}
}

// clampRect forces the rectangle fully inside the canvas, enforcing minimum
// dimensions.
func clampRect(r rect, c Canvas) rect {
	r.width = math.Min(math.Max(r.width, minDimension), c.Width)
	r.height = math.Min(math.Max(r.height, minDimension), c.Height)
	r.left = math.Min(math.Max(r.left, 0), c.Width-r.width)
	r.top = math.Min(math.Max(r.top, 0), c.Height-r.height)
	return r
}

// normalizeRect derives the normalized position/bounding box back from
// clamped pixel geometry so both representations stay consistent.
func normalizeRect(r rect, c Canvas) (models.Position, models.BoundingBox) {
	pos := models.Position{
		X: r.left / c.Width,
		Y: r.top / c.Height,
	}
	bb := models.BoundingBox{
		X:      r.left / c.Width,
		Y:      r.top / c.Height,
		Width:  r.width / c.Width,
		Height: r.height / c.Height,
	}
	return pos, bb
}
