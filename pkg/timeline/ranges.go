package timeline

import (
	"math"

	"github.com/reeledit/reeledit/pkg/models"
)

// BuildRanges derives the absolute frame span of each scene with a
// cumulative scan over scene durations. The result is contiguous and
// strictly increasing: no gaps, no overlaps.
func BuildRanges(scenes []models.SceneEntry, fps float64) []models.SceneFrameRange {
	ranges := make([]models.SceneFrameRange, 0, len(scenes))

	start := 0
	for _, sc := range scenes {
		durationFrames := int(math.Round(sc.DurationSeconds * fps))
		if durationFrames < 0 {
			durationFrames = 0
		}

		ranges = append(ranges, models.SceneFrameRange{
			SceneNumber:    sc.SceneNumber,
			StartFrame:     start,
			EndFrame:       start + durationFrames,
			DurationFrames: durationFrames,
		})
		start += durationFrames
	}

	return ranges
}

// Locate resolves an absolute frame to its owning scene number. Membership
// is [start, end) for every range except the last, which is closed so that
// a frame exactly at the global end still resolves to the final scene.
func Locate(frame int, ranges []models.SceneFrameRange) (int, bool) {
	for i, r := range ranges {
		last := i == len(ranges)-1
		if frame >= r.StartFrame && (frame < r.EndFrame || (last && frame == r.EndFrame)) {
			return r.SceneNumber, true
		}
	}
	return 0, false
}

// RangeFor returns the frame range owning the given absolute frame.
func RangeFor(frame int, ranges []models.SceneFrameRange) (models.SceneFrameRange, bool) {
	for i, r := range ranges {
		last := i == len(ranges)-1
		if frame >= r.StartFrame && (frame < r.EndFrame || (last && frame == r.EndFrame)) {
			return r, true
		}
	}
	return models.SceneFrameRange{}, false
}

// Relative converts an absolute frame to a scene-relative offset, clamped at
// the scene start.
func Relative(frame int, r models.SceneFrameRange) int {
	rel := frame - r.StartFrame
	if rel < 0 {
		return 0
	}
	return rel
}
