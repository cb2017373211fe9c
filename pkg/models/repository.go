package models

import (
	"context"
	"errors"
)

// ErrLayerNotFound is returned by LayerWriter implementations when the
// remote store reports the addressed layer missing. Deletes treat it as
// already satisfied.
var ErrLayerNotFound = errors.New("layer not found")

// SessionSource returns the nested per-scene layer document, re-derived on
// every call. The engine treats the result as read-only input.
type SessionSource interface {
	Scenes(ctx context.Context) ([]SceneEntry, error)
}

// LayerSelector addresses a layer inside a scene on the remote side.
// Singleton kinds are addressed by name alone; ordered kinds also need an
// index into the scene's same-name layer array.
type LayerSelector struct {
	Name  LayerName
	Index *int
}

// LayerWriter is the coarse-grained mutation surface of the remote layer
// store. Operations are accepted one at a time; each returns the store's
// error, with not-found on delete surfaced distinctly by the implementation.
type LayerWriter interface {
	AddLayer(ctx context.Context, sceneNumber int, layer LayerRecord) error
	UpdateLayer(ctx context.Context, sceneNumber int, selector LayerSelector, updates map[string]interface{}) error
	DeleteLayer(ctx context.Context, sceneNumber int, selector LayerSelector) error
	UpdateBaseVideo(ctx context.Context, sceneNumber int, baseVideoURL string) error
}

// AssetMeta describes an ephemeral asset being materialized.
type AssetMeta struct {
	Purpose   string
	LayerName LayerName
}

// AssetResult is the durable location of a materialized asset. The resolved
// purpose may override the engine's layer-name classification.
type AssetResult struct {
	URL     string
	Purpose string
}

// AssetMaterializer uploads a locally-created blob and returns its durable
// URL.
type AssetMaterializer interface {
	Materialize(ctx context.Context, blob []byte, mime string, meta AssetMeta) (AssetResult, error)
}

// DurationProber yields the duration of the media at url in seconds, or an
// error. Callers bound the wait through ctx.
type DurationProber interface {
	Duration(ctx context.Context, url string) (float64, error)
}

// SnapshotStore persists the reconciliation snapshot across restarts.
type SnapshotStore interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error
}
