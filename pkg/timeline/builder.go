// Package timeline flattens nested per-scene layer documents into the
// frame-accurate, multi-track overlay list the editor manipulates, and
// derives the scene frame ranges used for scene-relative addressing.
package timeline

import (
	"context"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/reeledit/reeledit/pkg/logger"
	"github.com/reeledit/reeledit/pkg/models"
	"github.com/reeledit/reeledit/pkg/timecode"
)

const (
	// fallbackSceneSeconds is used when neither probing nor the declared
	// duration yields a usable value.
	fallbackSceneSeconds = 10

	defaultProbeTimeout = 5 * time.Second

	probeCacheSize = 128
)

// Builder turns an ordered scene list into a compacted, row-assigned
// overlay list. A Builder is safe to reuse across builds; probed durations
// are cached per URL.
type Builder struct {
	FPS    float64
	Aspect AspectRatio

	// Prober is optional; without it scene durations come from the
	// declared value or the fallback.
	Prober       models.DurationProber
	ProbeTimeout time.Duration

	durations *lru.Cache
}

func NewBuilder(fps float64, aspect AspectRatio, prober models.DurationProber) *Builder {
	cache, _ := lru.New(probeCacheSize)
	return &Builder{
		FPS:          fps,
		Aspect:       aspect,
		Prober:       prober,
		ProbeTimeout: defaultProbeTimeout,
		durations:    cache,
	}
}

// Build processes scenes in order with a running frame cursor pinned to each
// scene's base video track. Scenes without a resolvable base video URL are
// skipped entirely: they contribute no overlays and do not advance the
// cursor. Build honors ctx at each scene step so a superseded build stops
// early.
func (b *Builder) Build(ctx context.Context, scenes []models.SceneEntry) ([]models.OverlayItem, []models.SceneFrameRange, error) {
	canvas := b.Aspect.Canvas()
	rows := newRowAllocator()

	var items []models.OverlayItem
	resolved := make([]models.SceneEntry, 0, len(scenes))

	fromFrame := 0
	for _, sc := range scenes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		if sc.BaseVideoURL == "" {
			logger.Debugf("scene %d has no base video, skipping", sc.SceneNumber)
			continue
		}

		duration := b.resolveDuration(ctx, sc)
		durationFrames := int(math.Round(duration * b.FPS))
		if durationFrames < 1 {
			durationFrames = 1
		}

		if shift := rows.ensureDynamic(countDynamic(sc)); shift > 0 {
			shiftFixedRows(items, shift)
		}

		items = append(items, b.buildScene(sc, fromFrame, durationFrames, rows, canvas)...)

		fromFrame += durationFrames

		rsc := sc
		rsc.DurationSeconds = float64(durationFrames) / b.FPS
		resolved = append(resolved, rsc)
	}

	items = b.finalize(items)
	ranges := BuildRanges(resolved, b.FPS)

	return items, ranges, nil
}

// resolveDuration applies the duration precedence: probed media duration
// with a bounded wait, then the declared duration, then the fixed fallback.
// Probe failures degrade silently.
func (b *Builder) resolveDuration(ctx context.Context, sc models.SceneEntry) float64 {
	if b.Prober != nil {
		if cached, ok := b.durations.Get(sc.BaseVideoURL); ok {
			return cached.(float64)
		}

		timeout := b.ProbeTimeout
		if timeout <= 0 {
			timeout = defaultProbeTimeout
		}

		pctx, cancel := context.WithTimeout(ctx, timeout)
		d, err := b.Prober.Duration(pctx, sc.BaseVideoURL)
		cancel()

		if err == nil && d > 0 {
			b.durations.Add(sc.BaseVideoURL, d)
			return d
		}
		if err != nil {
			logger.Debugf("probing %s failed: %v", sc.BaseVideoURL, err)
		}
	}

	if sc.DurationSeconds > 0 {
		return sc.DurationSeconds
	}
	return fallbackSceneSeconds
}

// countDynamic counts the scene's layers that live on per-scene dynamic
// rows.
func countDynamic(sc models.SceneEntry) int {
	n := 0
	for _, l := range sc.Layers {
		if l.Name == models.LayerTextOverlay || l.Name == models.LayerCustomSticker {
			n++
		}
	}
	return n
}

func (b *Builder) buildScene(sc models.SceneEntry, sceneStart, durationFrames int, rows *rowAllocator, canvas Canvas) []models.OverlayItem {
	var out []models.OverlayItem

	// The base video is the canonical scene clock. It is emitted from the
	// scene fields; a base_video layer record only contributes its volume.
	base := models.OverlayItem{
		ID:               overlayID(sc.SceneNumber, models.LayerBaseVideo, 0),
		Type:             models.OverlayTypeVideo,
		Layer:            models.LayerBaseVideo,
		Row:              rows.fixedRow(fixedBaseVideo),
		From:             sceneStart,
		DurationInFrames: durationFrames,
		SceneNumber:      sc.SceneNumber,
		SourceScene:      sc.SourceNumber,
		Src:              sc.BaseVideoURL,
		Volume:           1,
		Opacity:          1,
	}
	applyRect(&base, rect{0, 0, canvas.Width, canvas.Height}, canvas)
	if bl := findLayer(sc, models.LayerBaseVideo); bl != nil && bl.Volume.Valid {
		base.Volume = bl.Volume.Float64
	}
	out = append(out, base)

	dynamic := 0
	counts := make(map[models.LayerName]int)
	for _, layer := range sc.Layers {
		if layer.Name == models.LayerBaseVideo {
			continue
		}
		if !layer.Name.IsValid() {
			logger.Warnf("scene %d: unknown layer %q dropped", sc.SceneNumber, layer.Name)
			continue
		}

		idx := counts[layer.Name]
		counts[layer.Name] = idx + 1

		row := subtitleRow
		switch {
		case layer.Name == models.LayerSubtitles:
			row = subtitleRow
		case layer.Name == models.LayerTextOverlay || layer.Name == models.LayerCustomSticker:
			row = rows.dynamicRow(dynamic)
			dynamic++
		default:
			kind, _ := fixedRowKind(layer.Name)
			row = rows.fixedRow(kind)
		}

		o := b.buildOverlay(sc, layer, idx, row, sceneStart, durationFrames, canvas)
		out = append(out, o)
	}

	return out
}

func (b *Builder) buildOverlay(sc models.SceneEntry, layer models.LayerRecord, idx, row, sceneStart, durationFrames int, canvas Canvas) models.OverlayItem {
	from, duration := b.frameSpan(layer, sceneStart, durationFrames)

	o := models.OverlayItem{
		ID:               overlayID(sc.SceneNumber, layer.Name, idx),
		Type:             overlayTypeFor(layer.Name),
		Layer:            layer.Name,
		Row:              row,
		From:             from,
		DurationInFrames: duration,
		SceneNumber:      sc.SceneNumber,
		SourceScene:      sc.SourceNumber,
		SourceIndex:      idx,
		Content:          layer.Content.String,
		Src:              layer.URL.String,
		Volume:           1,
		Opacity:          1,
		Styles:           layer.Style,
	}
	if layer.Volume.Valid {
		o.Volume = layer.Volume.Float64
	}
	if layer.Opacity.Valid {
		o.Opacity = layer.Opacity.Float64
	}
	if layer.Rotation.Valid {
		o.Rotation = layer.Rotation.Float64
	}

	applyRect(&o, clampRect(resolveRect(layer, o.Type, canvas), canvas), canvas)

	return o
}

// frameSpan computes the absolute start frame and duration for a layer from
// its timing, defaulting a null end to the scene end. Absolute-reference
// kinds carry timeline positions already; the rest are offsets from the
// scene start.
func (b *Builder) frameSpan(layer models.LayerRecord, sceneStart, durationFrames int) (int, int) {
	sceneEnd := sceneStart + durationFrames

	start := sceneStart
	end := sceneEnd

	if t := layer.Timing; t != nil {
		ref := layer.Name.TimingReference()

		if t.Start != "" {
			s := timecode.ToFrames(t.Start, b.FPS)
			if ref == models.TimingAbsolute {
				start = s
			} else {
				start = sceneStart + s
			}
		}
		if t.End.Valid {
			e := timecode.ToFrames(t.End.String, b.FPS)
			if ref == models.TimingAbsolute {
				end = e
			} else {
				end = sceneStart + e
			}
		}
	}

	return start, end - start
}

// finalize drops overlays failing validation, compacts rows so no empty
// track is exposed, and orders by (row, from).
func (b *Builder) finalize(items []models.OverlayItem) []models.OverlayItem {
	kept := items[:0]
	for _, o := range items {
		if err := validateOverlay(o); err != nil {
			logger.Debugf("dropping overlay %s: %v", o.ID, err)
			continue
		}
		kept = append(kept, o)
	}
	return compactRows(kept)
}

func validateOverlay(o models.OverlayItem) error {
	if o.From < 0 {
		return fmt.Errorf("negative start frame %d", o.From)
	}
	if o.DurationInFrames < 1 {
		return fmt.Errorf("non-positive duration %d", o.DurationInFrames)
	}
	if !(rect{o.Left, o.Top, o.Width, o.Height}).finite() {
		return fmt.Errorf("non-finite geometry")
	}

	switch o.Type {
	case models.OverlayTypeText, models.OverlayTypeCaption:
		if o.Content == "" {
			return fmt.Errorf("missing content")
		}
	default:
		if o.Src == "" {
			return fmt.Errorf("missing src")
		}
	}
	return nil
}

func applyRect(o *models.OverlayItem, r rect, canvas Canvas) {
	o.Left = r.left
	o.Top = r.top
	o.Width = r.width
	o.Height = r.height
	o.Position, o.BoundingBox = normalizeRect(r, canvas)
}

func overlayID(sceneNumber int, name models.LayerName, idx int) string {
	return fmt.Sprintf("scene-%d-%s-%d", sceneNumber, name, idx)
}

func overlayTypeFor(name models.LayerName) models.OverlayType {
	switch name {
	case models.LayerChart, models.LayerBaseVideo:
		return models.OverlayTypeVideo
	case models.LayerAudio:
		return models.OverlayTypeSound
	case models.LayerLogo, models.LayerCustomSticker:
		return models.OverlayTypeImage
	case models.LayerSubtitles:
		return models.OverlayTypeCaption
	case models.LayerTextOverlay:
		return models.OverlayTypeText
	}
	return models.OverlayTypeImage
}

func findLayer(sc models.SceneEntry, name models.LayerName) *models.LayerRecord {
	for i := range sc.Layers {
		if sc.Layers[i].Name == name {
			return &sc.Layers[i]
		}
	}
	return nil
}
