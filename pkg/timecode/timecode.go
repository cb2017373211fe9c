// Package timecode converts between frame counts and HH:MM:SS timestamps.
//
// The timestamp format truncates to whole seconds, so round-tripping through
// ToTime and ToFrames is lossy below one second. That matches the remote
// store's time format and is intentional.
package timecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const zeroTime = "00:00:00"

// ToFrames parses an HH:MM:SS timestamp into a frame count at the given
// frame rate. Any parse failure yields 0.
func ToFrames(t string, fps float64) int {
	parts := strings.Split(t, ":")
	if len(parts) != 3 {
		return 0
	}

	var secs int
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0
		}
		secs = secs*60 + v
	}

	f := float64(secs) * fps
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return int(math.Round(f))
}

// ToTime renders a frame count as an HH:MM:SS timestamp, flooring to whole
// seconds. A non-finite intermediate (zero or non-finite fps) yields
// "00:00:00" rather than propagating NaN into the output.
func ToTime(frames int, fps float64) string {
	secs := math.Floor(float64(frames) / fps)
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
		return zeroTime
	}

	total := int(secs)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
