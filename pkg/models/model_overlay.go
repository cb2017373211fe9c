package models

// OverlayType is the capability tag of an editor-facing overlay.
type OverlayType string

const (
	OverlayTypeVideo   OverlayType = "video"
	OverlayTypeImage   OverlayType = "image"
	OverlayTypeText    OverlayType = "text"
	OverlayTypeCaption OverlayType = "caption"
	OverlayTypeSound   OverlayType = "sound"
	OverlayTypeShape   OverlayType = "shape"
)

func (t OverlayType) IsValid() bool {
	switch t {
	case OverlayTypeVideo, OverlayTypeImage, OverlayTypeText, OverlayTypeCaption, OverlayTypeSound, OverlayTypeShape:
		return true
	}
	return false
}

func (t OverlayType) String() string {
	return string(t)
}

// OverlayItem is the flattened, frame-positioned timeline unit the editor
// manipulates directly. IDs are derived deterministically from source
// identity so that rebuilds are idempotent.
type OverlayItem struct {
	ID   string      `json:"id"`
	Type OverlayType `json:"type"`

	Row              int `json:"row"`
	From             int `json:"from"`
	DurationInFrames int `json:"durationInFrames"`

	// Pixel geometry on the active canvas, kept consistent with the
	// mirrored normalized Position/BoundingBox.
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Position    Position    `json:"position"`
	BoundingBox BoundingBox `json:"bounding_box"`

	SceneNumber int `json:"sceneNumber"`

	// SourceScene is the scene number the remote store declared for the
	// owning scene. It can differ from the canonical SceneNumber when a
	// source document repeats numbers; remote operations address by it.
	SourceScene int `json:"sourceScene,omitempty"`

	// Layer is the source layer kind for overlays produced by a build.
	// Editor-created overlays leave it empty and are classified from Type
	// at reconciliation time.
	Layer LayerName `json:"layer,omitempty"`

	// SourceIndex is the overlay's position within the scene's ordered
	// array of same-name layers on the remote side. It is the only stable
	// remote address for non-singleton kinds.
	SourceIndex int `json:"sourceIndex"`

	Content string `json:"content,omitempty"`
	Src     string `json:"src,omitempty"`

	Volume   float64           `json:"volume,omitempty"`
	Opacity  float64           `json:"opacity,omitempty"`
	Rotation float64           `json:"rotation,omitempty"`
	Styles   map[string]string `json:"styles,omitempty"`

	// Blob holds the bytes of a locally-created asset that has not been
	// materialized to a durable URL yet. Non-nil means Src is ephemeral.
	Blob     []byte `json:"-"`
	BlobMIME string `json:"-"`

	// Transient editor state, never compared or persisted.
	Selected bool `json:"-"`
	Dragging bool `json:"-"`
}

// IsEphemeral is true while the overlay's media exists only as a local blob.
func (o *OverlayItem) IsEphemeral() bool {
	return len(o.Blob) > 0
}
