package models

// LayerName identifies a layer kind within a scene's layer document.
type LayerName string

const (
	LayerBaseVideo     LayerName = "base_video"
	LayerChart         LayerName = "chart"
	LayerAudio         LayerName = "audio"
	LayerLogo          LayerName = "logo"
	LayerSubtitles     LayerName = "subtitles"
	LayerTextOverlay   LayerName = "text_overlay"
	LayerCustomSticker LayerName = "custom_sticker"
)

var AllLayerNames = []LayerName{
	LayerBaseVideo,
	LayerChart,
	LayerAudio,
	LayerLogo,
	LayerSubtitles,
	LayerTextOverlay,
	LayerCustomSticker,
}

func (n LayerName) IsValid() bool {
	switch n {
	case LayerBaseVideo, LayerChart, LayerAudio, LayerLogo, LayerSubtitles, LayerTextOverlay, LayerCustomSticker:
		return true
	}
	return false
}

func (n LayerName) String() string {
	return string(n)
}

// Singleton is true for layer kinds with at most one instance per scene.
// Singleton kinds are addressed remotely by name alone; the others need an
// index into the scene's ordered layer array.
func (n LayerName) Singleton() bool {
	switch n {
	case LayerTextOverlay, LayerCustomSticker:
		return false
	}
	return true
}

// TimingReference describes which timeline a layer's timing values are
// measured against.
type TimingReference int

const (
	// TimingSceneRelative measures start/end from the owning scene's start.
	TimingSceneRelative TimingReference = iota
	// TimingAbsolute measures start/end from the start of the composition.
	TimingAbsolute
)

// TimingReference returns the reference frame for the layer kind's timing
// values. The upstream store is inconsistent here: subtitle-style layers
// carry absolute positions while media layers are scene-relative, so the
// mapping is fixed in one place rather than inferred per call site.
func (n LayerName) TimingReference() TimingReference {
	switch n {
	case LayerSubtitles, LayerTextOverlay:
		return TimingAbsolute
	}
	return TimingSceneRelative
}
