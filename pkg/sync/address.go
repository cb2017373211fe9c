package sync

import (
	"fmt"

	"github.com/reeledit/reeledit/pkg/models"
)

// addressResolver rebuilds the ordering the remote store holds for a
// (scene, layer-name) array from the snapshot, so that updates and deletes
// can be addressed by index. The remote arrays carry no ids; position is
// the only stable address.
type addressResolver struct {
	snapshot *models.Snapshot
}

// resolve returns the remote selector for an overlay recorded in the
// snapshot. Singleton kinds are addressed by name alone.
func (r addressResolver) resolve(o models.OverlayItem, name models.LayerName) (models.LayerSelector, error) {
	if name.Singleton() {
		return models.LayerSelector{Name: name}, nil
	}

	ordered := r.snapshot.SceneLayerItems(o.SceneNumber, name)
	for i, item := range ordered {
		if item.ID == o.ID {
			idx := i
			return models.LayerSelector{Name: name, Index: &idx}, nil
		}
	}

	return models.LayerSelector{}, fmt.Errorf("overlay %s not found among %s entries of scene %d", o.ID, name, o.SceneNumber)
}

// classify maps an overlay's capability tag to the remote layer name.
// Overlays produced by a build carry their source kind; editor-created
// overlays fall back to the capability heuristic: captions are subtitles,
// text is a text overlay, video is a chart, sound is audio, and images and
// rasterized shapes are custom stickers (the logo slot is only ever filled
// from the source document).
func classify(o models.OverlayItem) (models.LayerName, error) {
	if o.Layer.IsValid() {
		return o.Layer, nil
	}

	switch o.Type {
	case models.OverlayTypeCaption:
		return models.LayerSubtitles, nil
	case models.OverlayTypeText:
		return models.LayerTextOverlay, nil
	case models.OverlayTypeVideo:
		return models.LayerChart, nil
	case models.OverlayTypeSound:
		return models.LayerAudio, nil
	case models.OverlayTypeImage, models.OverlayTypeShape:
		return models.LayerCustomSticker, nil
	}

	return "", fmt.Errorf("overlay %s has unclassifiable type %q", o.ID, o.Type)
}
