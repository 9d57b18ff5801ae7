package scheduler

import (
	"errors"
	"fmt"

	"github.com/estudioia/timeline-render/internal/model"
	"github.com/estudioia/timeline-render/internal/timeline"
)

var (
	ErrInvalidSettings = errors.New("invalid export settings")
	ErrClosed          = errors.New("scheduler is shut down")
)

// DefaultResolutions maps quality tiers to output sizes
var DefaultResolutions = map[int]model.Resolution{
	1:  {Width: 426, Height: 240},
	2:  {Width: 640, Height: 360},
	3:  {Width: 854, Height: 480},
	4:  {Width: 1024, Height: 576},
	5:  {Width: 1280, Height: 720},
	6:  {Width: 1920, Height: 1080},
	7:  {Width: 2560, Height: 1440},
	8:  {Width: 3200, Height: 1800},
	9:  {Width: 3840, Height: 2160},
	10: {Width: 7680, Height: 4320},
}

// DefaultCompositions maps export formats to renderer compositions
var DefaultCompositions = map[model.ExportFormat]string{
	model.FormatMP4:  model.CompositionTimeline,
	model.FormatWebM: model.CompositionTimeline,
	model.FormatMOV:  model.CompositionTimeline,
	model.FormatGIF:  model.CompositionPreview,
}

const (
	DefaultFPS = 30
	MaxFPS     = 120
)

// Settings turns export settings into render configs
type Settings struct {
	Resolutions  map[int]model.Resolution
	Compositions map[model.ExportFormat]string
	DefaultFPS   float64
}

// NewSettings merges overrides into the default tables
func NewSettings(resolutions map[int]model.Resolution, compositions map[model.ExportFormat]string, fps float64) Settings {
	s := Settings{
		Resolutions:  make(map[int]model.Resolution, len(DefaultResolutions)),
		Compositions: make(map[model.ExportFormat]string, len(DefaultCompositions)),
		DefaultFPS:   fps,
	}
	for k, v := range DefaultResolutions {
		s.Resolutions[k] = v
	}
	for k, v := range resolutions {
		s.Resolutions[k] = v
	}
	for k, v := range DefaultCompositions {
		s.Compositions[k] = v
	}
	for k, v := range compositions {
		s.Compositions[k] = v
	}
	if s.DefaultFPS <= 0 {
		s.DefaultFPS = DefaultFPS
	}
	return s
}

// DeriveConfig computes the render config for a project.
// Errors wrap ErrInvalidSettings.
func (s Settings) DeriveConfig(project *model.TimelineProject, settings model.ExportSettings) (model.RenderConfig, error) {
	res, ok := s.Resolutions[settings.Quality]
	if !ok {
		return model.RenderConfig{}, fmt.Errorf("%w: unsupported quality %d", ErrInvalidSettings, settings.Quality)
	}
	composition, ok := s.Compositions[settings.Format]
	if !ok {
		return model.RenderConfig{}, fmt.Errorf("%w: unsupported format %q", ErrInvalidSettings, settings.Format)
	}
	if settings.FPS < 0 || settings.FPS > MaxFPS {
		return model.RenderConfig{}, fmt.Errorf("%w: fps must be between 0 and %d", ErrInvalidSettings, MaxFPS)
	}

	fps := settings.FPS
	if fps == 0 {
		fps = s.DefaultFPS
	}

	cfg := model.RenderConfig{
		Width:         res.Width,
		Height:        res.Height,
		FPS:           fps,
		CompositionID: composition,
	}
	if project != nil {
		cfg.DurationInFrames = timeline.DurationInFrames(project.Duration, fps)
	}
	return cfg, nil
}
