package timeline

import (
	"sort"

	"github.com/reeledit/reeledit/pkg/models"
)

// Row layout: subtitles hold row 0, per-scene dynamic rows for text overlays
// and stickers follow it, then the fixed block logo < chart < base video <
// audio (audio lowest). The fixed block is shared identically across every
// scene; when a scene needs more dynamic rows than currently reserved, the
// whole fixed block shifts down uniformly so the ordering holds globally.

const (
	subtitleRow = 0
	dynamicBase = 1
)

const (
	fixedLogo = iota
	fixedChart
	fixedBaseVideo
	fixedAudio
)

type rowAllocator struct {
	fixedBase int
}

func newRowAllocator() *rowAllocator {
	return &rowAllocator{fixedBase: dynamicBase}
}

// ensureDynamic reserves capacity for n dynamic rows in the current scene
// and returns the shift applied to the fixed block, zero when none was
// needed.
func (a *rowAllocator) ensureDynamic(n int) int {
	need := dynamicBase + n
	if need <= a.fixedBase {
		return 0
	}
	shift := need - a.fixedBase
	a.fixedBase = need
	return shift
}

func (a *rowAllocator) dynamicRow(i int) int {
	return dynamicBase + i
}

func (a *rowAllocator) fixedRow(kind int) int {
	return a.fixedBase + kind
}

// fixedRowKind maps a layer kind to its slot in the fixed block. The second
// return is false for kinds living on dynamic or reserved rows.
func fixedRowKind(name models.LayerName) (int, bool) {
	switch name {
	case models.LayerLogo:
		return fixedLogo, true
	case models.LayerChart:
		return fixedChart, true
	case models.LayerBaseVideo:
		return fixedBaseVideo, true
	case models.LayerAudio:
		return fixedAudio, true
	}
	return 0, false
}

// shiftFixedRows moves every already-built fixed-block overlay down by
// shift rows.
func shiftFixedRows(items []models.OverlayItem, shift int) {
	for i := range items {
		if _, ok := fixedRowKind(items[i].Layer); ok {
			items[i].Row += shift
		}
	}
}

// compactRows renumbers rows so that only populated tracks remain, relative
// order preserved, then sorts by (row, from).
func compactRows(items []models.OverlayItem) []models.OverlayItem {
	present := make(map[int]struct{})
	for _, o := range items {
		present[o.Row] = struct{}{}
	}

	rows := make([]int, 0, len(present))
	for r := range present {
		rows = append(rows, r)
	}
	sort.Ints(rows)

	mapping := make(map[int]int, len(rows))
	for i, r := range rows {
		mapping[r] = i
	}

	for i := range items {
		items[i].Row = mapping[items[i].Row]
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Row != items[j].Row {
			return items[i].Row < items[j].Row
		}
		return items[i].From < items[j].From
	})

	return items
}
