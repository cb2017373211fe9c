package models

import (
	"gopkg.in/guregu/null.v4"
)

// Position is a normalized [0,1] coordinate pair measured from the canvas
// top-left corner.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox is a normalized [0,1] rectangle on the canvas.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Timing holds a layer's HH:MM:SS start/end. A null end means the layer runs
// to the end of its scene.
type Timing struct {
	Start string      `json:"start"`
	End   null.String `json:"end"`
}

// LayerRecord is one named layer inside a scene document.
type LayerRecord struct {
	Name        LayerName         `json:"name"`
	URL         null.String       `json:"url"`
	Timing      *Timing           `json:"timing"`
	Position    *Position         `json:"position"`
	BoundingBox *BoundingBox      `json:"bounding_box"`
	Content     null.String       `json:"content"`
	Volume      null.Float        `json:"volume"`
	Opacity     null.Float        `json:"opacity"`
	Rotation    null.Float        `json:"rotation"`
	Animation   null.String       `json:"animation"`
	Style       map[string]string `json:"style"`
}

// SceneEntry is one scene/video unit of the composition. Entries are
// constructed fresh on every session parse and never mutated afterwards; a
// new list fully replaces the old one.
type SceneEntry struct {
	// SceneNumber is the canonical 1-based number after normalization.
	// Source documents may repeat numbers across API sources; the parser
	// renumbers by position and keeps the declared value in SourceNumber.
	SceneNumber     int
	SourceNumber    int
	DurationSeconds float64
	BaseVideoURL    string
	Layers          []LayerRecord
}

// SceneFrameRange is the derived absolute frame span of a scene. The full
// list is strictly increasing and contiguous and is regenerated from scene
// durations on every build.
type SceneFrameRange struct {
	SceneNumber    int
	StartFrame     int
	EndFrame       int
	DurationFrames int
}
