package timeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"github.com/reeledit/reeledit/pkg/models"
)

type fakeProber struct {
	durations map[string]float64
	err       error
	calls     int
}

func (p *fakeProber) Duration(ctx context.Context, url string) (float64, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	d, ok := p.durations[url]
	if !ok {
		return 0, errors.New("unknown url")
	}
	return d, nil
}

func baseScene(number int, seconds float64) models.SceneEntry {
	return models.SceneEntry{
		SceneNumber:     number,
		SourceNumber:    number,
		DurationSeconds: seconds,
		BaseVideoURL:    "https://cdn.example.com/base.mp4",
	}
}

func TestBuild_TwoScenesBaseVideoOnly(t *testing.T) {
	b := NewBuilder(30, AspectLandscape, nil)

	items, ranges, err := b.Build(context.Background(), []models.SceneEntry{
		baseScene(1, 5),
		baseScene(2, 3),
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, 0, items[0].From)
	assert.Equal(t, 150, items[0].DurationInFrames)
	assert.Equal(t, 150, items[1].From)
	assert.Equal(t, 90, items[1].DurationInFrames)

	// Only the base video row is populated, and it compacts to 0.
	for _, o := range items {
		assert.Equal(t, 0, o.Row)
		assert.Equal(t, models.OverlayTypeVideo, o.Type)
	}

	// The base video track covers exactly the summed ranges.
	require.Len(t, ranges, 2)
	total := 0
	for _, r := range ranges {
		total += r.DurationFrames
	}
	last := items[len(items)-1]
	assert.Equal(t, total, last.From+last.DurationInFrames)
}

func TestBuild_SkipsSceneWithoutBaseVideo(t *testing.T) {
	b := NewBuilder(30, AspectLandscape, nil)

	scenes := []models.SceneEntry{
		baseScene(1, 5),
		{SceneNumber: 2, DurationSeconds: 4},
		baseScene(3, 3),
	}

	items, ranges, err := b.Build(context.Background(), scenes)
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Scene 2 contributes nothing and does not advance the cursor.
	assert.Equal(t, 150, items[1].From)
	assert.Equal(t, 3, items[1].SceneNumber)

	require.Len(t, ranges, 2)
	assert.Equal(t, []int{1, 3}, []int{ranges[0].SceneNumber, ranges[1].SceneNumber})
}

func TestBuild_OverlaysCarryDeclaredSceneNumber(t *testing.T) {
	// Declared numbers repeat upstream; canonical numbers are positional.
	sc1 := baseScene(1, 5)
	sc2 := baseScene(2, 3)
	sc2.SourceNumber = 1
	sc2.Layers = []models.LayerRecord{
		{Name: models.LayerTextOverlay, Content: null.StringFrom("text")},
	}

	b := NewBuilder(30, AspectLandscape, nil)
	items, _, err := b.Build(context.Background(), []models.SceneEntry{sc1, sc2})
	require.NoError(t, err)

	for _, o := range items {
		if o.SceneNumber == 2 {
			assert.Equal(t, 1, o.SourceScene, "overlay %s keeps the declared number", o.ID)
		}
	}
}

func TestBuild_RowOrdering(t *testing.T) {
	sc := baseScene(1, 5)
	sc.Layers = []models.LayerRecord{
		{Name: models.LayerAudio, URL: null.StringFrom("https://cdn.example.com/voice.mp3")},
		{Name: models.LayerSubtitles, Content: null.StringFrom("hello")},
		{Name: models.LayerTextOverlay, Content: null.StringFrom("first")},
		{Name: models.LayerTextOverlay, Content: null.StringFrom("second")},
		{Name: models.LayerLogo, URL: null.StringFrom("https://cdn.example.com/logo.png")},
		{Name: models.LayerChart, URL: null.StringFrom("https://cdn.example.com/chart.mp4")},
	}

	b := NewBuilder(30, AspectLandscape, nil)
	items, _, err := b.Build(context.Background(), []models.SceneEntry{sc})
	require.NoError(t, err)
	require.Len(t, items, 7)

	rowOf := func(id string) int {
		for _, o := range items {
			if o.ID == id {
				return o.Row
			}
		}
		t.Fatalf("overlay %s not found", id)
		return -1
	}

	subtitles := rowOf("scene-1-subtitles-0")
	text0 := rowOf("scene-1-text_overlay-0")
	text1 := rowOf("scene-1-text_overlay-1")
	logo := rowOf("scene-1-logo-0")
	chart := rowOf("scene-1-chart-0")
	base := rowOf("scene-1-base_video-0")
	audio := rowOf("scene-1-audio-0")

	assert.True(t, subtitles < text0, "subtitles above text overlays")
	assert.True(t, text0 < text1, "text overlays keep instance order")
	assert.True(t, text1 < logo, "text overlays above logo")
	assert.True(t, logo < chart, "logo above chart")
	assert.True(t, chart < base, "chart above base video")
	assert.True(t, base < audio, "audio lowest")

	// Compacted: rows are exactly 0..6.
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, []int{subtitles, text0, text1, logo, chart, base, audio})
}

func TestBuild_FixedRowShiftAcrossScenes(t *testing.T) {
	sc1 := baseScene(1, 5)

	sc2 := baseScene(2, 3)
	sc2.Layers = []models.LayerRecord{
		{Name: models.LayerTextOverlay, Content: null.StringFrom("a")},
		{Name: models.LayerTextOverlay, Content: null.StringFrom("b")},
	}

	b := NewBuilder(30, AspectLandscape, nil)
	items, _, err := b.Build(context.Background(), []models.SceneEntry{sc1, sc2})
	require.NoError(t, err)

	var base1, base2 int
	for _, o := range items {
		if o.Layer == models.LayerBaseVideo {
			if o.SceneNumber == 1 {
				base1 = o.Row
			} else {
				base2 = o.Row
			}
		}
	}

	// The fixed block shifted uniformly: both scenes share the base row and
	// it sits below every text overlay row.
	assert.Equal(t, base1, base2)
	for _, o := range items {
		if o.Layer == models.LayerTextOverlay {
			assert.True(t, o.Row < base1)
		}
	}
}

func TestBuild_TimingReferences(t *testing.T) {
	sc1 := baseScene(1, 5)

	sc2 := baseScene(2, 3)
	sc2.Layers = []models.LayerRecord{
		// Scene-relative: one second into scene 2.
		{
			Name:   models.LayerChart,
			URL:    null.StringFrom("https://cdn.example.com/chart.mp4"),
			Timing: &models.Timing{Start: "00:00:01"},
		},
		// Absolute: six seconds into the composition.
		{
			Name:    models.LayerSubtitles,
			Content: null.StringFrom("line"),
			Timing:  &models.Timing{Start: "00:00:06", End: null.StringFrom("00:00:07")},
		},
	}

	b := NewBuilder(30, AspectLandscape, nil)
	items, _, err := b.Build(context.Background(), []models.SceneEntry{sc1, sc2})
	require.NoError(t, err)

	byID := make(map[string]models.OverlayItem)
	for _, o := range items {
		byID[o.ID] = o
	}

	chart := byID["scene-2-chart-0"]
	assert.Equal(t, 180, chart.From)
	// Null end runs to the scene end.
	assert.Equal(t, 60, chart.DurationInFrames)

	subs := byID["scene-2-subtitles-0"]
	assert.Equal(t, 180, subs.From)
	assert.Equal(t, 30, subs.DurationInFrames)
}

func TestBuild_GeometryClamped(t *testing.T) {
	sc := baseScene(1, 5)
	sc.Layers = []models.LayerRecord{
		{
			Name:        models.LayerLogo,
			URL:         null.StringFrom("https://cdn.example.com/logo.png"),
			BoundingBox: &models.BoundingBox{X: 0.95, Y: -0.2, Width: 0.2, Height: 0.1},
		},
	}

	b := NewBuilder(30, AspectLandscape, nil)
	items, _, err := b.Build(context.Background(), []models.SceneEntry{sc})
	require.NoError(t, err)

	var logo models.OverlayItem
	for _, o := range items {
		if o.Layer == models.LayerLogo {
			logo = o
		}
	}
	require.NotEmpty(t, logo.ID)

	canvas := AspectLandscape.Canvas()
	assert.GreaterOrEqual(t, logo.Left, 0.0)
	assert.GreaterOrEqual(t, logo.Top, 0.0)
	assert.LessOrEqual(t, logo.Left+logo.Width, canvas.Width)
	assert.LessOrEqual(t, logo.Top+logo.Height, canvas.Height)

	// Normalized mirror stays consistent with the clamped pixels.
	assert.InDelta(t, logo.Left/canvas.Width, logo.BoundingBox.X, 1e-9)
	assert.InDelta(t, logo.Width/canvas.Width, logo.BoundingBox.Width, 1e-9)
}

func TestBuild_DropsInvalidOverlays(t *testing.T) {
	sc := baseScene(1, 5)
	sc.Layers = []models.LayerRecord{
		// No content: dropped during finalize.
		{Name: models.LayerTextOverlay},
		{Name: models.LayerLogo, URL: null.StringFrom("https://cdn.example.com/logo.png")},
	}

	b := NewBuilder(30, AspectLandscape, nil)
	items, _, err := b.Build(context.Background(), []models.SceneEntry{sc})
	require.NoError(t, err)

	rows := make(map[int]bool)
	for _, o := range items {
		assert.NotEqual(t, models.LayerTextOverlay, o.Layer)
		rows[o.Row] = true
	}

	// No empty track leaks through compaction.
	for i := 0; i < len(rows); i++ {
		assert.True(t, rows[i], "row %d should be populated", i)
	}
}

func TestBuild_DurationPrecedence(t *testing.T) {
	t.Run("probe wins", func(t *testing.T) {
		p := &fakeProber{durations: map[string]float64{"https://cdn.example.com/base.mp4": 2}}
		b := NewBuilder(30, AspectLandscape, p)

		items, _, err := b.Build(context.Background(), []models.SceneEntry{baseScene(1, 5)})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 60, items[0].DurationInFrames)
	})

	t.Run("probe failure degrades to declared", func(t *testing.T) {
		p := &fakeProber{err: errors.New("timeout")}
		b := NewBuilder(30, AspectLandscape, p)

		items, _, err := b.Build(context.Background(), []models.SceneEntry{baseScene(1, 5)})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 150, items[0].DurationInFrames)
	})

	t.Run("fallback when nothing resolves", func(t *testing.T) {
		b := NewBuilder(30, AspectLandscape, nil)

		items, _, err := b.Build(context.Background(), []models.SceneEntry{baseScene(1, 0)})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, 300, items[0].DurationInFrames)
	})
}

func TestBuild_ProbeResultsCached(t *testing.T) {
	p := &fakeProber{durations: map[string]float64{"https://cdn.example.com/base.mp4": 2}}
	b := NewBuilder(30, AspectLandscape, p)

	scenes := []models.SceneEntry{baseScene(1, 5)}

	_, _, err := b.Build(context.Background(), scenes)
	require.NoError(t, err)
	_, _, err = b.Build(context.Background(), scenes)
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(30, AspectLandscape, nil)
	_, _, err := b.Build(ctx, []models.SceneEntry{baseScene(1, 5)})
	assert.ErrorIs(t, err, context.Canceled)
}
