package db

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/reeledit/reeledit/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type overlayRow struct {
	ID          string `db:"id"`
	SceneNumber int    `db:"scene_number"`
	LayerName   string `db:"layer_name"`
	SourceIndex int    `db:"source_index"`
	Saved       bool   `db:"saved"`
	Data        string `db:"data"`
}

// LoadSnapshot reads the persisted baseline. An empty table yields an empty
// snapshot, not an error.
func (d *Database) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	if d.db == nil {
		return nil, ErrDatabaseNotInitialized
	}

	var rows []overlayRow
	if err := d.db.SelectContext(ctx, &rows, "SELECT id, scene_number, layer_name, source_index, saved, data FROM snapshot_overlays"); err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	snap := models.NewSnapshot()
	for _, row := range rows {
		var o models.OverlayItem
		if err := json.UnmarshalFromString(row.Data, &o); err != nil {
			return nil, fmt.Errorf("decoding snapshot overlay %s: %w", row.ID, err)
		}
		snap.Merge(o)
	}

	return snap, nil
}

// SaveSnapshot replaces the persisted baseline with the given snapshot in a
// single transaction.
func (d *Database) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if d.db == nil {
		return ErrDatabaseNotInitialized
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot_overlays"); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	const insert = `INSERT INTO snapshot_overlays (id, scene_number, layer_name, source_index, saved, data)
		VALUES (:id, :scene_number, :layer_name, :source_index, :saved, :data)`

	for _, o := range snapshot.Items() {
		data, err := json.MarshalToString(o)
		if err != nil {
			return fmt.Errorf("encoding snapshot overlay %s: %w", o.ID, err)
		}

		row := overlayRow{
			ID:          o.ID,
			SceneNumber: o.SceneNumber,
			LayerName:   o.Layer.String(),
			SourceIndex: o.SourceIndex,
			Saved:       snapshot.Saved(o.ID),
			Data:        data,
		}
		if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
			return fmt.Errorf("writing snapshot overlay %s: %w", o.ID, err)
		}
	}

	return tx.Commit()
}
