// Package sync detects local overlay edits against the last persisted
// snapshot and replays them against the remote layer store as the minimal
// set of add/update/delete operations.
package sync

import (
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/reeledit/reeledit/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// comparableStyleKeys is the style subset that participates in change
// detection. Everything else in the style bag is presentation-transient.
var comparableStyleKeys = []string{
	"fontFamily",
	"fontSize",
	"fontWeight",
	"color",
	"backgroundColor",
	"textAlign",
}

// ComparableRecord projects the semantically meaningful fields of an
// overlay. Transient editor state (drag/selection flags, local blobs) is
// discarded so it never triggers a remote write.
type ComparableRecord struct {
	ID               string             `json:"id"`
	Type             models.OverlayType `json:"type"`
	From             int                `json:"from"`
	DurationInFrames int                `json:"durationInFrames"`
	Row              int                `json:"row"`
	Left             float64            `json:"left"`
	Top              float64            `json:"top"`
	Width            float64            `json:"width"`
	Height           float64            `json:"height"`
	Content          string             `json:"content"`
	Src              string             `json:"src"`
	Volume           float64            `json:"volume"`
	Rotation         float64            `json:"rotation"`
	Opacity          float64            `json:"opacity"`
	Styles           map[string]string  `json:"styles,omitempty"`
}

// Normalize projects an overlay into its comparable form.
func Normalize(o models.OverlayItem) ComparableRecord {
	rec := ComparableRecord{
		ID:               o.ID,
		Type:             o.Type,
		From:             o.From,
		DurationInFrames: o.DurationInFrames,
		Row:              o.Row,
		Left:             o.Left,
		Top:              o.Top,
		Width:            o.Width,
		Height:           o.Height,
		Content:          o.Content,
		Src:              o.Src,
		Volume:           o.Volume,
		Rotation:         o.Rotation,
		Opacity:          o.Opacity,
	}

	for _, k := range comparableStyleKeys {
		v, ok := o.Styles[k]
		if !ok {
			continue
		}
		if rec.Styles == nil {
			rec.Styles = make(map[string]string)
		}
		rec.Styles[k] = v
	}

	return rec
}

func fingerprint(o models.OverlayItem) string {
	s, err := json.MarshalToString(Normalize(o))
	if err != nil {
		// Normalized records are plain values; marshaling cannot fail in
		// practice, but an empty fingerprint would compare equal to
		// another failure, so keep the id in it.
		return "!" + o.ID
	}
	return s
}

// Changes classifies overlay ids against a snapshot.
type Changes struct {
	Added    []string
	Modified []string
	Deleted  []string
}

func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Mixed is true when adds coexist with modifications or deletions.
func (c Changes) Mixed() bool {
	return len(c.Added) > 0 && (len(c.Modified) > 0 || len(c.Deleted) > 0)
}

// Diff classifies the live overlay set against the snapshot by comparing
// serialized normalized records keyed by id.
func Diff(current []models.OverlayItem, snapshot *models.Snapshot) Changes {
	var c Changes

	seen := make(map[string]struct{}, len(current))
	for _, o := range current {
		seen[o.ID] = struct{}{}

		prev, ok := snapshot.Get(o.ID)
		if !ok {
			c.Added = append(c.Added, o.ID)
			continue
		}
		if fingerprint(o) != fingerprint(prev) {
			c.Modified = append(c.Modified, o.ID)
		}
	}

	for _, id := range snapshot.IDs() {
		if _, ok := seen[id]; !ok {
			c.Deleted = append(c.Deleted, id)
		}
	}

	sort.Strings(c.Added)
	sort.Strings(c.Modified)
	sort.Strings(c.Deleted)

	return c
}
