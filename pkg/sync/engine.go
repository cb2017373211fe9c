package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/reeledit/reeledit/pkg/logger"
	"github.com/reeledit/reeledit/pkg/models"
)

// Engine replays local overlay edits against the remote layer store. One
// pass diffs the live overlay set against the snapshot, maps each change to
// a remote operation, and executes them strictly sequentially with a state
// refresh after every successful write. The snapshot advances per overlay,
// only on confirmed writes, so a failed pass leaves it at the last
// consistent point.
type Engine struct {
	remote models.LayerWriter
	source models.SessionSource
	assets models.AssetMaterializer
	store  models.SnapshotStore

	fps float64

	guard    chan struct{}
	snapshot *models.Snapshot
}

func NewEngine(remote models.LayerWriter, source models.SessionSource, assets models.AssetMaterializer, fps float64) *Engine {
	return &Engine{
		remote:   remote,
		source:   source,
		assets:   assets,
		fps:      fps,
		guard:    make(chan struct{}, 1),
		snapshot: models.NewSnapshot(),
	}
}

// SetStore attaches optional snapshot persistence. The store is written
// best-effort after successful passes.
func (e *Engine) SetStore(store models.SnapshotStore) {
	e.store = store
}

// Snapshot returns a copy of the current baseline for callers that need to
// inspect it; the engine's own copy is never handed out.
func (e *Engine) Snapshot() *models.Snapshot {
	// Block until any in-flight pass settles rather than exposing a
	// half-advanced baseline.
	e.guard <- struct{}{}
	defer e.unlock()
	return e.snapshot.Clone()
}

// Seed replaces the baseline with overlays known to mirror server state,
// marking all of them saved. Used once after the initial build when no
// persisted snapshot exists.
func (e *Engine) Seed(ctx context.Context, overlays []models.OverlayItem) error {
	if !e.tryLock() {
		return ErrSaveInProgress
	}
	defer e.unlock()

	snap := models.NewSnapshot()
	for _, o := range overlays {
		snap.Merge(o)
	}
	e.snapshot = snap

	e.persist(ctx)
	return nil
}

// Restore installs a previously persisted baseline.
func (e *Engine) Restore(snapshot *models.Snapshot) error {
	if !e.tryLock() {
		return ErrSaveInProgress
	}
	defer e.unlock()

	e.snapshot = snapshot
	return nil
}

func (e *Engine) tryLock() bool {
	select {
	case e.guard <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *Engine) unlock() {
	<-e.guard
}

// Reconcile runs one complete diff-then-write pass. A second call while one
// is in flight returns ErrSaveInProgress. Passes are not cancellable
// mid-flight: an abandoned write sequence would leave the remote arrays in
// an index state the snapshot no longer describes.
func (e *Engine) Reconcile(ctx context.Context, current []models.OverlayItem, ranges []models.SceneFrameRange) error {
	if !e.tryLock() {
		return ErrSaveInProgress
	}
	defer e.unlock()

	changes := Diff(current, e.snapshot)
	if changes.Empty() {
		return nil
	}
	if changes.Mixed() {
		return &ConflictError{
			Added:    len(changes.Added),
			Modified: len(changes.Modified),
			Deleted:  len(changes.Deleted),
		}
	}

	byID := make(map[string]models.OverlayItem, len(current))
	for _, o := range current {
		byID[o.ID] = o
	}

	total := len(changes.Added) + len(changes.Modified) + len(changes.Deleted)
	done := 0

	fail := func(err error) error {
		return fmt.Errorf("reconciliation aborted after %d of %d operations: %w", done, total, err)
	}

	for _, id := range changes.Added {
		if err := e.executeAdd(ctx, byID[id], ranges); err != nil {
			return fail(err)
		}
		done++
	}

	for _, id := range changes.Modified {
		if err := e.executeUpdate(ctx, byID[id], ranges); err != nil {
			return fail(err)
		}
		done++
	}

	for _, id := range changes.Deleted {
		if err := e.executeDelete(ctx, id); err != nil {
			return fail(err)
		}
		done++
	}

	e.persist(ctx)
	logger.Infof("reconciliation pass complete: %d operations", done)
	return nil
}

func (e *Engine) executeAdd(ctx context.Context, o models.OverlayItem, ranges []models.SceneFrameRange) error {
	name, err := classify(o)
	if err != nil {
		return err
	}

	if o.IsEphemeral() {
		res, merr := e.assets.Materialize(ctx, o.Blob, o.BlobMIME, models.AssetMeta{
			Purpose:   name.String(),
			LayerName: name,
		})
		if merr != nil {
			return &OpError{Op: "materialize", SceneNumber: o.SceneNumber, Layer: name, Err: merr}
		}

		o.Src = res.URL
		o.Blob = nil
		o.BlobMIME = ""

		// The materializer may know better than the capability heuristic.
		if resolved := models.LayerName(res.Purpose); resolved.IsValid() {
			name = resolved
		}
	}

	rec, err := e.buildLayerRecord(o, name, ranges)
	if err != nil {
		return err
	}

	scene := e.remoteScene(o)
	if err := e.remote.AddLayer(ctx, scene, rec); err != nil {
		return &OpError{Op: "add", SceneNumber: o.SceneNumber, Layer: name, Err: err}
	}

	// The store appends, so the new entry's index is the count of same-name
	// entries the snapshot already tracked for the scene.
	o.Layer = name
	o.SourceScene = scene
	o.SourceIndex = len(e.snapshot.SceneLayerItems(o.SceneNumber, name))
	e.snapshot.Merge(o)

	return e.refresh(ctx)
}

func (e *Engine) executeUpdate(ctx context.Context, o models.OverlayItem, ranges []models.SceneFrameRange) error {
	prev, ok := e.snapshot.Get(o.ID)
	if !ok {
		return fmt.Errorf("modified overlay %s missing from snapshot", o.ID)
	}

	name, err := classify(prev)
	if err != nil {
		return err
	}

	selector, err := addressResolver{e.snapshot}.resolve(prev, name)
	if err != nil {
		return err
	}

	updates, err := e.buildUpdates(o, prev, ranges)
	if err != nil {
		return err
	}

	scene := e.remoteScene(prev)

	// Swapping the base clip goes through the dedicated endpoint; remaining
	// field changes still flow through the layer update below.
	if name == models.LayerBaseVideo {
		if _, swapped := updates["url"]; swapped {
			if err := e.remote.UpdateBaseVideo(ctx, scene, o.Src); err != nil {
				return &OpError{Op: "base_video", SceneNumber: prev.SceneNumber, Layer: name, Err: err}
			}
			delete(updates, "url")
			if len(updates) == 0 {
				o.Layer = name
				o.SourceScene = scene
				o.SourceIndex = prev.SourceIndex
				e.snapshot.Merge(o)
				return e.refresh(ctx)
			}
		}
	}

	o.Layer = name
	o.SourceScene = scene
	o.SourceIndex = prev.SourceIndex

	if len(updates) == 0 {
		// Row moves and other local-only edits never reach the store but
		// still advance the baseline.
		e.snapshot.Merge(o)
		return nil
	}

	if err := e.remote.UpdateLayer(ctx, scene, selector, updates); err != nil {
		return &OpError{Op: "update", SceneNumber: prev.SceneNumber, Layer: name, Err: err}
	}
	e.snapshot.Merge(o)

	return e.refresh(ctx)
}

func (e *Engine) executeDelete(ctx context.Context, id string) error {
	prev, ok := e.snapshot.Get(id)
	if !ok {
		return nil
	}

	name, err := classify(prev)
	if err != nil {
		return err
	}

	selector, err := addressResolver{e.snapshot}.resolve(prev, name)
	if err != nil {
		return err
	}

	if err := e.remote.DeleteLayer(ctx, e.remoteScene(prev), selector); err != nil {
		if errors.Is(err, models.ErrLayerNotFound) {
			// Already gone remotely; converge the snapshot.
			logger.Debugf("delete of %s: already absent remotely", id)
		} else {
			return &OpError{Op: "delete", SceneNumber: prev.SceneNumber, Layer: name, Err: err}
		}
	}

	e.snapshot.Remove(id)

	return e.refresh(ctx)
}

// remoteScene resolves the scene number the store knows an overlay's scene
// by. Built overlays carry the declared number; editor-created ones borrow
// it from a snapshot sibling in the same scene, falling back to the
// canonical number when the snapshot has none.
func (e *Engine) remoteScene(o models.OverlayItem) int {
	if o.SourceScene != 0 {
		return o.SourceScene
	}
	for _, item := range e.snapshot.Items() {
		if item.SceneNumber == o.SceneNumber && item.SourceScene != 0 {
			return item.SourceScene
		}
	}
	return o.SceneNumber
}

// refresh re-reads the remote document after a write so the next
// index-addressed operation resolves against current server state.
func (e *Engine) refresh(ctx context.Context) error {
	if e.source == nil {
		return nil
	}
	scenes, err := e.source.Scenes(ctx)
	if err != nil {
		return fmt.Errorf("post-write refresh: %w", err)
	}
	if len(scenes) == 0 {
		logger.Warnf("post-write refresh returned an empty session")
	} else {
		logger.Debugf("post-write refresh: %d scenes", len(scenes))
	}
	return nil
}

func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveSnapshot(ctx, e.snapshot); err != nil {
		logger.Warnf("persisting snapshot: %v", err)
	}
}
