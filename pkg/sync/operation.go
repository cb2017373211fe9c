package sync

import (
	"fmt"
	"reflect"

	"gopkg.in/guregu/null.v4"

	"github.com/reeledit/reeledit/pkg/models"
	"github.com/reeledit/reeledit/pkg/timecode"
	"github.com/reeledit/reeledit/pkg/timeline"
)

type opKind int

const (
	opAdd opKind = iota
	opUpdate
	opDelete
)

func (k opKind) String() string {
	switch k {
	case opAdd:
		return "add"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	}
	return "unknown"
}

// remoteOp is one pending write against the layer store: a closed union over
// the operation kinds dispatched by the engine.
type remoteOp struct {
	kind    opKind
	scene   int
	name    models.LayerName
	overlay models.OverlayItem

	// add
	layer models.LayerRecord

	// update/delete
	selector models.LayerSelector
	updates  map[string]interface{}
}

// sceneTiming renders an overlay's frame span as the remote store's
// scene-relative HH:MM:SS pair.
func (e *Engine) sceneTiming(o models.OverlayItem, ranges []models.SceneFrameRange) (start string, end string, err error) {
	r, ok := timeline.RangeFor(o.From, ranges)
	if !ok || r.SceneNumber != o.SceneNumber {
		// The overlay may start outside its scene (absolute-timed kinds
		// dragged across a boundary); address by the owning scene instead.
		found := false
		for _, cand := range ranges {
			if cand.SceneNumber == o.SceneNumber {
				r = cand
				found = true
				break
			}
		}
		if !found {
			return "", "", fmt.Errorf("overlay %s: no frame range for scene %d", o.ID, o.SceneNumber)
		}
	}

	start = timecode.ToTime(timeline.Relative(o.From, r), e.fps)
	end = timecode.ToTime(timeline.Relative(o.From+o.DurationInFrames, r), e.fps)
	return start, end, nil
}

// buildLayerRecord assembles the full add payload for an overlay.
func (e *Engine) buildLayerRecord(o models.OverlayItem, name models.LayerName, ranges []models.SceneFrameRange) (models.LayerRecord, error) {
	start, end, err := e.sceneTiming(o, ranges)
	if err != nil {
		return models.LayerRecord{}, err
	}

	rec := models.LayerRecord{
		Name:        name,
		Timing:      &models.Timing{Start: start, End: null.StringFrom(end)},
		Position:    &o.Position,
		BoundingBox: &o.BoundingBox,
	}

	switch o.Type {
	case models.OverlayTypeText, models.OverlayTypeCaption:
		rec.Content = null.StringFrom(o.Content)
		rec.Style = normalizedStyles(o)
	case models.OverlayTypeSound:
		rec.URL = null.StringFrom(o.Src)
		rec.Volume = null.FloatFrom(o.Volume)
	default:
		rec.URL = null.StringFrom(o.Src)
		if o.Type == models.OverlayTypeVideo {
			rec.Volume = null.FloatFrom(o.Volume)
		}
		if o.Opacity != 0 {
			rec.Opacity = null.FloatFrom(o.Opacity)
		}
		if o.Rotation != 0 {
			rec.Rotation = null.FloatFrom(o.Rotation)
		}
	}

	return rec, nil
}

// buildUpdates emits only the fields that actually changed between the
// snapshot record and the live overlay.
func (e *Engine) buildUpdates(cur, prev models.OverlayItem, ranges []models.SceneFrameRange) (map[string]interface{}, error) {
	a := Normalize(cur)
	b := Normalize(prev)

	updates := make(map[string]interface{})

	if a.From != b.From || a.DurationInFrames != b.DurationInFrames {
		start, end, err := e.sceneTiming(cur, ranges)
		if err != nil {
			return nil, err
		}
		updates["start_time"] = start
		updates["end_time"] = end
	}

	if a.Left != b.Left || a.Top != b.Top || a.Width != b.Width || a.Height != b.Height {
		updates["position"] = cur.Position
		updates["bounding_box"] = cur.BoundingBox
	}

	if a.Content != b.Content {
		updates["content"] = a.Content
	}
	if a.Src != b.Src {
		updates["url"] = a.Src
	}
	if a.Volume != b.Volume {
		updates["volume"] = a.Volume
	}
	if a.Opacity != b.Opacity {
		updates["opacity"] = a.Opacity
	}
	if a.Rotation != b.Rotation {
		updates["rotation"] = a.Rotation
	}
	if !reflect.DeepEqual(a.Styles, b.Styles) {
		updates["style"] = normalizedStyles(cur)
	}

	return updates, nil
}

func normalizedStyles(o models.OverlayItem) map[string]string {
	rec := Normalize(o)
	return rec.Styles
}
