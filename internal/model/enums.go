package model

// Element types
type ElementType string

const (
	ElementVideo ElementType = "video"
	ElementAudio ElementType = "audio"
	ElementImage ElementType = "image"
	ElementText  ElementType = "text"
	ElementShape ElementType = "shape"
)

var ValidElementTypes = []ElementType{
	ElementVideo, ElementAudio, ElementImage, ElementText, ElementShape,
}

// IsValid reports whether t is one of the supported element types
func (t ElementType) IsValid() bool {
	for _, v := range ValidElementTypes {
		if v == t {
			return true
		}
	}
	return false
}

// RequiresSrc reports whether elements of this type reference a media source
func (t ElementType) RequiresSrc() bool {
	return t == ElementVideo || t == ElementAudio || t == ElementImage
}

// Easing tags
type Easing string

const (
	EasingLinear    Easing = "linear"
	EasingEaseIn    Easing = "ease-in"
	EasingEaseOut   Easing = "ease-out"
	EasingEaseInOut Easing = "ease-in-out"
	EasingStep      Easing = "step"
)

// Export formats
type ExportFormat string

const (
	FormatMP4  ExportFormat = "mp4"
	FormatWebM ExportFormat = "webm"
	FormatMOV  ExportFormat = "mov"
	FormatGIF  ExportFormat = "gif"
)

var ValidExportFormats = []ExportFormat{
	FormatMP4, FormatWebM, FormatMOV, FormatGIF,
}

// Composition identifiers understood by the renderer backends
const (
	CompositionTimeline = "TimelineComposition"
	CompositionPreview  = "TimelinePreview"
)

// Property names
const (
	PropPosition     = "position"
	PropScale        = "scale"
	PropRotation     = "rotation"
	PropOpacity      = "opacity"
	PropZIndex       = "zIndex"
	PropVolume       = "volume"
	PropPlaybackRate = "playbackRate"
	PropFill         = "fill"
	PropStroke       = "stroke"
	PropStrokeWidth  = "strokeWidth"
	PropWidth        = "width"
	PropHeight       = "height"
	PropFontSize     = "fontSize"
	PropFontFamily   = "fontFamily"
	PropFontWeight   = "fontWeight"
	PropColor        = "color"
	PropTextAlign    = "textAlign"
)
