package sync

import (
	"errors"
	"fmt"

	"github.com/reeledit/reeledit/pkg/models"
)

// ErrSaveInProgress is returned when a reconciliation pass is requested
// while another is still in flight.
var ErrSaveInProgress = errors.New("a save is already in progress")

// ConflictError reports that newly added overlays coexist with modified or
// deleted overlays in the same pass. The remote store's layer arrays are
// index-addressed, so mixed phases cannot be replayed safely; the pass is
// refused before any write.
type ConflictError struct {
	Added    int
	Modified int
	Deleted  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("finish your previous change first: %d new overlays alongside %d modified and %d deleted", e.Added, e.Modified, e.Deleted)
}

// OpError wraps a failed remote operation with enough detail to retry.
type OpError struct {
	Op          string
	SceneNumber int
	Layer       models.LayerName
	Err         error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s in scene %d: %v", e.Op, e.Layer, e.SceneNumber, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
