package models

import "sort"

// Snapshot is the last overlay set known to be persisted remotely, plus the
// set of overlay ids confirmed saved. It is the diff baseline for
// reconciliation and is only ever mutated with overlays that were actually
// confirmed written.
type Snapshot struct {
	overlays map[string]OverlayItem
	savedIDs map[string]struct{}
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		overlays: make(map[string]OverlayItem),
		savedIDs: make(map[string]struct{}),
	}
}

func (s *Snapshot) Get(id string) (OverlayItem, bool) {
	o, ok := s.overlays[id]
	return o, ok
}

func (s *Snapshot) Has(id string) bool {
	_, ok := s.overlays[id]
	return ok
}

func (s *Snapshot) Saved(id string) bool {
	_, ok := s.savedIDs[id]
	return ok
}

func (s *Snapshot) Len() int {
	return len(s.overlays)
}

// Merge records a single confirmed-written overlay. Existing entries for
// other ids are untouched.
func (s *Snapshot) Merge(o OverlayItem) {
	s.overlays[o.ID] = o
	s.savedIDs[o.ID] = struct{}{}
}

func (s *Snapshot) Remove(id string) {
	delete(s.overlays, id)
	delete(s.savedIDs, id)
}

// IDs returns the snapshot's overlay ids in sorted order.
func (s *Snapshot) IDs() []string {
	ret := make([]string, 0, len(s.overlays))
	for id := range s.overlays {
		ret = append(ret, id)
	}
	sort.Strings(ret)
	return ret
}

// Items returns the snapshot's overlays ordered by id.
func (s *Snapshot) Items() []OverlayItem {
	ids := s.IDs()
	ret := make([]OverlayItem, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, s.overlays[id])
	}
	return ret
}

// SceneLayerItems returns the snapshot overlays belonging to the given scene
// and layer kind, ordered the way the remote store holds them.
func (s *Snapshot) SceneLayerItems(sceneNumber int, name LayerName) []OverlayItem {
	var ret []OverlayItem
	for _, o := range s.overlays {
		if o.SceneNumber == sceneNumber && o.Layer == name {
			ret = append(ret, o)
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].SourceIndex != ret[j].SourceIndex {
			return ret[i].SourceIndex < ret[j].SourceIndex
		}
		return ret[i].ID < ret[j].ID
	})
	return ret
}

func (s *Snapshot) Clone() *Snapshot {
	ret := NewSnapshot()
	for id, o := range s.overlays {
		ret.overlays[id] = o
	}
	for id := range s.savedIDs {
		ret.savedIDs[id] = struct{}{}
	}
	return ret
}
