package remote

import (
	"context"
	"fmt"

	"gopkg.in/guregu/null.v4"

	"github.com/reeledit/reeledit/pkg/logger"
	"github.com/reeledit/reeledit/pkg/models"
)

type sessionDocument struct {
	Scenes []sceneDocument `json:"scenes"`
}

type sceneDocument struct {
	SceneNumber     int             `json:"scene_number"`
	DurationSeconds null.Float      `json:"duration_seconds"`
	BaseVideoURL    null.String     `json:"base_video_url"`
	Layers          []layerDocument `json:"layers"`
}

type layerDocument struct {
	Name        string              `json:"name"`
	URL         null.String         `json:"url"`
	Timing      *timingDocument     `json:"timing"`
	Position    *models.Position    `json:"position"`
	BoundingBox *models.BoundingBox `json:"bounding_box"`
	Content     null.String         `json:"content"`
	Volume      null.Float          `json:"volume"`
	Opacity     null.Float          `json:"opacity"`
	Rotation    null.Float          `json:"rotation"`
	Animation   null.String         `json:"animation"`
	Style       map[string]string   `json:"style"`
}

type timingDocument struct {
	Start string      `json:"start"`
	End   null.String `json:"end"`
}

// Scenes fetches and parses the session's nested layer document. The result
// is re-derived on every call and safe for the caller to own.
func (c *Client) Scenes(ctx context.Context) ([]models.SceneEntry, error) {
	var doc sessionDocument
	if err := c.do(ctx, "GET", "/session", nil, &doc); err != nil {
		return nil, fmt.Errorf("fetching session: %w", err)
	}
	return parseSession(doc), nil
}

// parseSession flattens the wire document into scene entries. Scene numbers
// may repeat across API sources, so entries are renumbered canonically by
// position; the declared number is kept for addressing the store.
func parseSession(doc sessionDocument) []models.SceneEntry {
	scenes := make([]models.SceneEntry, 0, len(doc.Scenes))

	for i, sd := range doc.Scenes {
		entry := models.SceneEntry{
			SceneNumber:     i + 1,
			SourceNumber:    sd.SceneNumber,
			DurationSeconds: sd.DurationSeconds.Float64,
			BaseVideoURL:    sd.BaseVideoURL.String,
		}

		for _, ld := range sd.Layers {
			name := models.LayerName(ld.Name)
			if !name.IsValid() {
				logger.Warnf("session scene %d: unknown layer %q ignored", sd.SceneNumber, ld.Name)
				continue
			}

			rec := models.LayerRecord{
				Name:        name,
				URL:         ld.URL,
				Position:    ld.Position,
				BoundingBox: ld.BoundingBox,
				Content:     ld.Content,
				Volume:      ld.Volume,
				Opacity:     ld.Opacity,
				Rotation:    ld.Rotation,
				Animation:   ld.Animation,
				Style:       ld.Style,
			}
			if ld.Timing != nil {
				rec.Timing = &models.Timing{Start: ld.Timing.Start, End: ld.Timing.End}
			}

			// The base video may arrive as a layer rather than a scene
			// field depending on the producing pipeline.
			if name == models.LayerBaseVideo && entry.BaseVideoURL == "" {
				entry.BaseVideoURL = ld.URL.String
			}

			entry.Layers = append(entry.Layers, rec)
		}

		scenes = append(scenes, entry)
	}

	return scenes
}
