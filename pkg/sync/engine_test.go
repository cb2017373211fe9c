package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reeledit/reeledit/pkg/models"
)

type addCall struct {
	scene int
	layer models.LayerRecord
}

type updateCall struct {
	scene    int
	selector models.LayerSelector
	updates  map[string]interface{}
}

type deleteCall struct {
	scene    int
	selector models.LayerSelector
}

type fakeRemote struct {
	events *[]string

	adds    []addCall
	updates []updateCall
	deletes []deleteCall

	failAdd    error
	failUpdate error
	failDelete error

	block   chan struct{}
	entered chan struct{}
}

func (r *fakeRemote) AddLayer(ctx context.Context, sceneNumber int, layer models.LayerRecord) error {
	r.waitIfBlocked()
	*r.events = append(*r.events, "add")
	if r.failAdd != nil {
		return r.failAdd
	}
	r.adds = append(r.adds, addCall{sceneNumber, layer})
	return nil
}

func (r *fakeRemote) UpdateLayer(ctx context.Context, sceneNumber int, selector models.LayerSelector, updates map[string]interface{}) error {
	r.waitIfBlocked()
	*r.events = append(*r.events, "update")
	if r.failUpdate != nil {
		return r.failUpdate
	}
	r.updates = append(r.updates, updateCall{sceneNumber, selector, updates})
	return nil
}

func (r *fakeRemote) DeleteLayer(ctx context.Context, sceneNumber int, selector models.LayerSelector) error {
	r.waitIfBlocked()
	*r.events = append(*r.events, "delete")
	if r.failDelete != nil {
		return r.failDelete
	}
	r.deletes = append(r.deletes, deleteCall{sceneNumber, selector})
	return nil
}

func (r *fakeRemote) UpdateBaseVideo(ctx context.Context, sceneNumber int, baseVideoURL string) error {
	*r.events = append(*r.events, "base_video")
	return nil
}

func (r *fakeRemote) waitIfBlocked() {
	if r.block != nil {
		if r.entered != nil {
			r.entered <- struct{}{}
		}
		<-r.block
	}
}

type fakeSource struct {
	events *[]string
	err    error
}

func (s *fakeSource) Scenes(ctx context.Context) ([]models.SceneEntry, error) {
	*s.events = append(*s.events, "refresh")
	return nil, s.err
}

type fakeAssets struct {
	url     string
	purpose string
	calls   int
}

func (a *fakeAssets) Materialize(ctx context.Context, blob []byte, mime string, meta models.AssetMeta) (models.AssetResult, error) {
	a.calls++
	return models.AssetResult{URL: a.url, Purpose: a.purpose}, nil
}

type harness struct {
	events []string
	remote *fakeRemote
	source *fakeSource
	assets *fakeAssets
	engine *Engine
}

func newHarness() *harness {
	h := &harness{}
	h.remote = &fakeRemote{events: &h.events}
	h.source = &fakeSource{events: &h.events}
	h.assets = &fakeAssets{url: "https://cdn.example.com/durable.png"}
	h.engine = NewEngine(h.remote, h.source, h.assets, 30)
	return h
}

func testRanges() []models.SceneFrameRange {
	return []models.SceneFrameRange{
		{SceneNumber: 1, StartFrame: 0, EndFrame: 150, DurationFrames: 150},
		{SceneNumber: 2, StartFrame: 150, EndFrame: 240, DurationFrames: 90},
	}
}

func savedOverlay(id string, layer models.LayerName, idx int) models.OverlayItem {
	o := models.OverlayItem{
		ID:               id,
		Type:             models.OverlayTypeText,
		Layer:            layer,
		SourceIndex:      idx,
		From:             0,
		DurationInFrames: 30,
		SceneNumber:      1,
		Content:          "text",
		Src:              "https://cdn.example.com/a.png",
	}
	return o
}

func TestReconcile_EmptyDiffMakesNoCalls(t *testing.T) {
	h := newHarness()
	a := savedOverlay("a", models.LayerTextOverlay, 0)
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{a}))

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{a}, testRanges())
	require.NoError(t, err)
	assert.Empty(t, h.events)
}

func TestReconcile_MixedPhasesRejectedBeforeAnyWrite(t *testing.T) {
	h := newHarness()
	a := savedOverlay("a", models.LayerTextOverlay, 0)
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{a}))

	modified := a
	modified.From = 60
	added := models.OverlayItem{
		ID:               "new",
		Type:             models.OverlayTypeText,
		From:             0,
		DurationInFrames: 30,
		SceneNumber:      1,
		Content:          "fresh",
	}

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{modified, added}, testRanges())

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 1, conflict.Added)
	assert.Equal(t, 1, conflict.Modified)
	assert.Empty(t, h.events, "no network call may precede conflict detection")
}

func TestReconcile_AddBuildsSceneRelativePayload(t *testing.T) {
	h := newHarness()

	// Scene 2 starts at frame 150; the overlay sits one second in.
	added := models.OverlayItem{
		ID:               "new",
		Type:             models.OverlayTypeText,
		From:             180,
		DurationInFrames: 30,
		SceneNumber:      2,
		Content:          "caption text",
	}

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{added}, testRanges())
	require.NoError(t, err)

	require.Len(t, h.remote.adds, 1)
	call := h.remote.adds[0]
	assert.Equal(t, 2, call.scene)
	assert.Equal(t, models.LayerTextOverlay, call.layer.Name)
	require.NotNil(t, call.layer.Timing)
	assert.Equal(t, "00:00:01", call.layer.Timing.Start)
	assert.Equal(t, "00:00:02", call.layer.Timing.End.String)

	// Confirmed write advances the snapshot.
	snap := h.engine.Snapshot()
	assert.True(t, snap.Saved("new"))
}

func TestReconcile_RefreshFollowsEveryWrite(t *testing.T) {
	h := newHarness()

	a := models.OverlayItem{ID: "a", Type: models.OverlayTypeText, From: 0, DurationInFrames: 30, SceneNumber: 1, Content: "a"}
	b := models.OverlayItem{ID: "b", Type: models.OverlayTypeText, From: 30, DurationInFrames: 30, SceneNumber: 1, Content: "b"}

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{a, b}, testRanges())
	require.NoError(t, err)

	assert.Equal(t, []string{"add", "refresh", "add", "refresh"}, h.events)
}

func TestReconcile_EphemeralAssetMaterializedFirst(t *testing.T) {
	h := newHarness()
	h.assets.purpose = string(models.LayerCustomSticker)

	added := models.OverlayItem{
		ID:               "sticker",
		Type:             models.OverlayTypeImage,
		From:             0,
		DurationInFrames: 30,
		SceneNumber:      1,
		Src:              "blob:local",
		Blob:             []byte{0x89, 0x50},
		BlobMIME:         "image/png",
	}

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{added}, testRanges())
	require.NoError(t, err)

	assert.Equal(t, 1, h.assets.calls)
	require.Len(t, h.remote.adds, 1)
	assert.Equal(t, "https://cdn.example.com/durable.png", h.remote.adds[0].layer.URL.String)
}

func TestReconcile_UpdateCarriesOnlyChangedFields(t *testing.T) {
	h := newHarness()
	a := savedOverlay("a", models.LayerTextOverlay, 0)
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{a}))

	modified := a
	modified.Volume = 0.5

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{modified}, testRanges())
	require.NoError(t, err)

	require.Len(t, h.remote.updates, 1)
	call := h.remote.updates[0]
	assert.Equal(t, map[string]interface{}{"volume": 0.5}, call.updates)

	// Ordered kinds are addressed by (name, index).
	assert.Equal(t, models.LayerTextOverlay, call.selector.Name)
	require.NotNil(t, call.selector.Index)
	assert.Equal(t, 0, *call.selector.Index)
}

func TestReconcile_SingletonAddressedByNameAlone(t *testing.T) {
	h := newHarness()
	logo := savedOverlay("logo", models.LayerLogo, 0)
	logo.Type = models.OverlayTypeImage
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{logo}))

	modified := logo
	modified.Opacity = 0.7

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{modified}, testRanges())
	require.NoError(t, err)

	require.Len(t, h.remote.updates, 1)
	assert.Equal(t, models.LayerLogo, h.remote.updates[0].selector.Name)
	assert.Nil(t, h.remote.updates[0].selector.Index)
}

func TestReconcile_OrderedIndexResolvedFromSnapshot(t *testing.T) {
	h := newHarness()
	first := savedOverlay("first", models.LayerTextOverlay, 0)
	second := savedOverlay("second", models.LayerTextOverlay, 1)
	second.From = 60
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{first, second}))

	modified := second
	modified.Content = "changed"

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{first, modified}, testRanges())
	require.NoError(t, err)

	require.Len(t, h.remote.updates, 1)
	require.NotNil(t, h.remote.updates[0].selector.Index)
	assert.Equal(t, 1, *h.remote.updates[0].selector.Index)
}

func TestReconcile_DeleteNotFoundIsSuccess(t *testing.T) {
	h := newHarness()
	a := savedOverlay("a", models.LayerTextOverlay, 0)
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{a}))

	h.remote.failDelete = models.ErrLayerNotFound

	err := h.engine.Reconcile(context.Background(), nil, testRanges())
	require.NoError(t, err)

	assert.False(t, h.engine.Snapshot().Has("a"))
}

func TestReconcile_RemovingUnsavedOverlayMakesNoDeleteCall(t *testing.T) {
	h := newHarness()
	a := savedOverlay("a", models.LayerTextOverlay, 0)
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{a}))

	// "ghost" was never in the snapshot; only "a" still exists locally.
	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{a}, testRanges())
	require.NoError(t, err)

	assert.Empty(t, h.remote.deletes)
}

func TestReconcile_FailureAbandonsRemainingOps(t *testing.T) {
	h := newHarness()
	a := savedOverlay("a", models.LayerTextOverlay, 0)
	b := savedOverlay("b", models.LayerTextOverlay, 1)
	b.From = 60
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{a, b}))

	ma := a
	ma.Content = "changed a"
	mb := b
	mb.Content = "changed b"

	h.remote.failUpdate = errors.New("boom")

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{ma, mb}, testRanges())
	require.Error(t, err)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "update", opErr.Op)
	assert.Equal(t, 1, opErr.SceneNumber)

	// Exactly one write was attempted; the rest of the pass was abandoned.
	assert.Equal(t, []string{"update"}, h.events)

	// The snapshot stays at the last consistent point: neither edit landed.
	snap := h.engine.Snapshot()
	prev, _ := snap.Get("a")
	assert.Equal(t, "text", prev.Content)
	prev, _ = snap.Get("b")
	assert.Equal(t, "text", prev.Content)
}

func TestReconcile_PartialSuccessAdvancesConfirmedOnly(t *testing.T) {
	h := newHarness()
	a := savedOverlay("a", models.LayerTextOverlay, 0)
	b := savedOverlay("b", models.LayerTextOverlay, 1)
	b.From = 60
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{a, b}))

	ma := a
	ma.Content = "changed a"
	mb := b
	mb.Content = "changed b"

	// Fail the refresh after the first successful write.
	h.source.err = errors.New("network down")

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{ma, mb}, testRanges())
	require.Error(t, err)

	snap := h.engine.Snapshot()
	got, _ := snap.Get("a")
	assert.Equal(t, "changed a", got.Content, "confirmed write is kept")
	got, _ = snap.Get("b")
	assert.Equal(t, "text", got.Content, "unconfirmed edit is not")
}

func TestReconcile_SecondPassRejectedWhileInFlight(t *testing.T) {
	h := newHarness()
	h.remote.block = make(chan struct{})
	h.remote.entered = make(chan struct{}, 1)

	added := models.OverlayItem{
		ID:               "new",
		Type:             models.OverlayTypeText,
		From:             0,
		DurationInFrames: 30,
		SceneNumber:      1,
		Content:          "x",
	}

	done := make(chan error, 1)
	go func() {
		done <- h.engine.Reconcile(context.Background(), []models.OverlayItem{added}, testRanges())
	}()

	// Wait until the first pass is inside its remote call, holding the
	// guard, then request a second save.
	<-h.remote.entered
	second := h.engine.Reconcile(context.Background(), []models.OverlayItem{added}, testRanges())
	assert.ErrorIs(t, second, ErrSaveInProgress)

	close(h.remote.block)
	require.NoError(t, <-done)
}

func TestReconcile_RemoteAddressedByDeclaredSceneNumber(t *testing.T) {
	h := newHarness()

	// The upstream document declared both scenes as scene 1; parsing
	// canonicalized them to 1 and 2. The store only knows the declared
	// numbers, so every write for canonical scene 2 must go to scene 1.
	base := models.OverlayItem{
		ID:               "scene-2-base_video-0",
		Type:             models.OverlayTypeVideo,
		Layer:            models.LayerBaseVideo,
		From:             150,
		DurationInFrames: 90,
		SceneNumber:      2,
		SourceScene:      1,
		Src:              "https://cdn.example.com/b.mp4",
		Volume:           1,
	}
	text := models.OverlayItem{
		ID:               "scene-2-text_overlay-0",
		Type:             models.OverlayTypeText,
		Layer:            models.LayerTextOverlay,
		From:             150,
		DurationInFrames: 30,
		SceneNumber:      2,
		SourceScene:      1,
		Content:          "text",
	}
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{base, text}))

	modified := text
	modified.Content = "changed"

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{base, modified}, testRanges())
	require.NoError(t, err)

	require.Len(t, h.remote.updates, 1)
	assert.Equal(t, 1, h.remote.updates[0].scene)
}

func TestReconcile_EditorAddResolvesDeclaredSceneFromSnapshot(t *testing.T) {
	h := newHarness()

	base := models.OverlayItem{
		ID:               "scene-2-base_video-0",
		Type:             models.OverlayTypeVideo,
		Layer:            models.LayerBaseVideo,
		From:             150,
		DurationInFrames: 90,
		SceneNumber:      2,
		SourceScene:      1,
		Src:              "https://cdn.example.com/b.mp4",
		Volume:           1,
	}
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{base}))

	// Editor-created overlays carry no declared number of their own; the
	// engine borrows it from the scene's snapshot siblings.
	added := models.OverlayItem{
		ID:               "new",
		Type:             models.OverlayTypeText,
		From:             180,
		DurationInFrames: 30,
		SceneNumber:      2,
		Content:          "fresh",
	}

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{base, added}, testRanges())
	require.NoError(t, err)

	require.Len(t, h.remote.adds, 1)
	assert.Equal(t, 1, h.remote.adds[0].scene)

	got, ok := h.engine.Snapshot().Get("new")
	require.True(t, ok)
	assert.Equal(t, 1, got.SourceScene)
}

func TestReconcile_BaseVideoSwapUsesDedicatedEndpoint(t *testing.T) {
	h := newHarness()
	base := models.OverlayItem{
		ID:               "scene-1-base_video-0",
		Type:             models.OverlayTypeVideo,
		Layer:            models.LayerBaseVideo,
		From:             0,
		DurationInFrames: 150,
		SceneNumber:      1,
		Src:              "https://cdn.example.com/old.mp4",
		Volume:           1,
	}
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{base}))

	swapped := base
	swapped.Src = "https://cdn.example.com/new.mp4"

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{swapped}, testRanges())
	require.NoError(t, err)

	assert.Equal(t, []string{"base_video", "refresh"}, h.events)
	assert.Empty(t, h.remote.updates, "src swap must not go through the layer update path")

	got, _ := h.engine.Snapshot().Get(base.ID)
	assert.Equal(t, "https://cdn.example.com/new.mp4", got.Src)
}

func TestReconcile_MergePreservesUnrelatedHistory(t *testing.T) {
	h := newHarness()
	a := savedOverlay("a", models.LayerTextOverlay, 0)
	b := savedOverlay("b", models.LayerTextOverlay, 1)
	b.From = 60
	require.NoError(t, h.engine.Seed(context.Background(), []models.OverlayItem{a, b}))

	ma := a
	ma.Content = "changed a"

	err := h.engine.Reconcile(context.Background(), []models.OverlayItem{ma, b}, testRanges())
	require.NoError(t, err)

	snap := h.engine.Snapshot()
	assert.True(t, snap.Has("b"), "untouched history survives the merge")
	got, _ := snap.Get("a")
	assert.Equal(t, "changed a", got.Content)
}
