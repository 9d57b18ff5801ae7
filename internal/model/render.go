package model

import "time"

// RenderConfig describes the output raster and timing of a render
type RenderConfig struct {
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	FPS              float64 `json:"fps"`
	DurationInFrames int     `json:"durationInFrames"`
	CompositionID    string  `json:"compositionId"`
}

// Resolution is a width x height pair in pixels
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ExportSettings is what a caller asks for; it is mapped to a RenderConfig
type ExportSettings struct {
	Format  ExportFormat `json:"format" validate:"required,oneof=mp4 webm mov gif"`
	Quality int          `json:"quality" validate:"required,min=1,max=10"`
	FPS     float64      `json:"fps,omitempty" validate:"omitempty,gt=0,lte=120"`
}

// FramePoint is one (frame, value) anchor of an animation track
type FramePoint struct {
	Frame int   `json:"frame"`
	Value Value `json:"value"`
}

// ElementAnimation is the keyframe track of a single property.
// Frames are relative to the element's StartFrame.
type ElementAnimation struct {
	Property string       `json:"property"`
	Easing   Easing       `json:"easing"`
	Frames   []FramePoint `json:"frames"`
}

// RenderedElement is the frame-indexed form of a TimelineElement.
// StartFrame and EndFrame are both inclusive.
type RenderedElement struct {
	ID         string             `json:"id"`
	LayerID    string             `json:"layerId"`
	Type       ElementType        `json:"type"`
	Src        string             `json:"src,omitempty"`
	Text       string             `json:"text,omitempty"`
	StartFrame int                `json:"startFrame"`
	EndFrame   int                `json:"endFrame"`
	Properties Properties         `json:"properties"`
	Animations []ElementAnimation `json:"animations"`
}

// FrameElement is an element evaluated at one absolute frame
type FrameElement struct {
	ID         string      `json:"id"`
	Type       ElementType `json:"type"`
	Src        string      `json:"src,omitempty"`
	Text       string      `json:"text,omitempty"`
	LocalFrame int         `json:"localFrame"`
	Properties Properties  `json:"properties"`
}

// FrameRequest is handed to a frame renderer for each frame of a job
type FrameRequest struct {
	JobID           string         `json:"jobId"`
	CompositionID   string         `json:"compositionId"`
	Config          RenderConfig   `json:"config"`
	BackgroundColor string         `json:"backgroundColor,omitempty"`
	Frame           int            `json:"frame"`
	Elements        []FrameElement `json:"elements"`
}

// FrameResult references one materialized frame
type FrameResult struct {
	Frame       int    `json:"frame"`
	Path        string `json:"path,omitempty"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// RenderStartRequest represents the request to start a render job
type RenderStartRequest struct {
	Project  TimelineProject `json:"project" validate:"required"`
	Settings ExportSettings  `json:"settings" validate:"required"`
}

// RenderStartResponse represents the response when starting a render
type RenderStartResponse struct {
	JobID            string    `json:"jobId"`
	Status           JobStatus `json:"status"`
	CompositionID    string    `json:"compositionId"`
	DurationInFrames int       `json:"durationInFrames"`
	CreatedAt        time.Time `json:"createdAt"`
}

// RenderCancelResponse represents the response when canceling a render
type RenderCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}

// RenderExportResponse is a download link for a finished render.
// ExpiresAt is nil when the link does not expire.
type RenderExportResponse struct {
	JobID     string     `json:"jobId"`
	FileURL   string     `json:"fileUrl"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// RenderListResponse wraps a job listing
type RenderListResponse struct {
	Jobs  []RenderJob `json:"jobs"`
	Total int         `json:"total"`
}

// TimelineConvertRequest asks for a dry-run conversion of a project
type TimelineConvertRequest struct {
	Project  TimelineProject `json:"project" validate:"required"`
	Settings ExportSettings  `json:"settings" validate:"required"`
}

// TimelineConvertResponse is the result of a dry-run conversion
type TimelineConvertResponse struct {
	Config   RenderConfig      `json:"config"`
	Elements []RenderedElement `json:"elements"`
}
