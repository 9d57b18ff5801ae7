package timeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/estudioia/timeline-render/internal/model"
)

// frameEpsilon absorbs float noise such as 0.1*30 = 3.0000000000000004
// before taking a ceiling.
const frameEpsilon = 1e-9

const (
	// MaxDuration is the longest project accepted, in milliseconds (6h)
	MaxDuration int64 = 6 * 60 * 60 * 1000
	// MaxFrames bounds the frame count of one render
	MaxFrames = 6 * 60 * 60 * 60
)

// TimeToFrame converts milliseconds to a frame index: round(ms/1000*fps).
func TimeToFrame(ms int64, fps float64) int {
	return int(math.Round(float64(ms) / 1000 * fps))
}

// DurationInFrames returns ceil(durationMs/1000*fps).
func DurationInFrames(durationMs int64, fps float64) int {
	if durationMs <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Ceil(float64(durationMs)/1000*fps - frameEpsilon))
}

// ValidationError lists every problem found in a project. It is a user
// input error, not a system failure.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid timeline: " + strings.Join(e.Problems, "; ")
}

// Validate checks a project and render config without converting anything.
// Only visible layers are inspected since hidden ones never reach the output.
func Validate(project *model.TimelineProject, cfg model.RenderConfig) error {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if cfg.FPS <= 0 {
		addf("render config: fps must be greater than zero")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		addf("render config: width and height must be greater than zero")
	}
	if cfg.DurationInFrames > MaxFrames {
		addf("render config: %d frames exceeds the limit of %d", cfg.DurationInFrames, MaxFrames)
	}

	if project == nil {
		addf("project is required")
		return &ValidationError{Problems: problems}
	}

	if project.Duration <= 0 {
		addf("project duration must be greater than zero")
	} else if project.Duration > MaxDuration {
		addf("project duration must not exceed %d ms", MaxDuration)
	}
	if project.ElementCount() == 0 {
		addf("project has no elements on visible layers")
	}

	seen := make(map[string]bool)
	for li := range project.Layers {
		layer := &project.Layers[li]
		if !layer.Visible {
			continue
		}
		for ei := range layer.Elements {
			el := &layer.Elements[ei]
			prefix := fmt.Sprintf("element %q", el.Label())

			if el.ID == "" {
				addf("%s on layer %q: id is required", prefix, layer.Name)
			} else if seen[el.ID] {
				addf("%s: duplicate element id %q", prefix, el.ID)
			}
			seen[el.ID] = true

			if !el.Type.IsValid() {
				addf("%s: unsupported type %q", prefix, el.Type)
			}
			if el.StartTime < 0 {
				addf("%s: start time must not be negative", prefix)
			}
			if el.Duration <= 0 {
				addf("%s: duration must be greater than zero", prefix)
			}
			if el.Type.RequiresSrc() && strings.TrimSpace(el.Src) == "" {
				addf("%s: %s element requires a src", prefix, el.Type)
			}
			if el.Type == model.ElementText && strings.TrimSpace(el.Text) == "" {
				addf("%s: text element requires text", prefix)
			}

			problems = append(problems, checkProperties(prefix, el.Properties)...)

			for ki, kf := range el.Keyframes {
				if kf.Property == "" {
					addf("%s: keyframe %d has no property", prefix, ki)
				}
				if kf.Time < 0 {
					addf("%s: keyframe %d time must not be negative", prefix, ki)
				}
				if kf.Value.Kind == model.KindNone {
					addf("%s: keyframe %d has no value", prefix, ki)
				}
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func checkProperties(prefix string, props model.Properties) []string {
	var problems []string
	unit := func(name string) {
		v, ok := props[name]
		if !ok {
			return
		}
		if !v.IsNumber() || v.Num < 0 || v.Num > 1 {
			problems = append(problems, fmt.Sprintf("%s: %s must be a number between 0 and 1", prefix, name))
		}
	}
	unit(model.PropOpacity)
	unit(model.PropVolume)

	if v, ok := props[model.PropPlaybackRate]; ok && (!v.IsNumber() || v.Num <= 0) {
		problems = append(problems, fmt.Sprintf("%s: playbackRate must be greater than zero", prefix))
	}
	if v, ok := props[model.PropZIndex]; ok && !v.IsNumber() {
		problems = append(problems, fmt.Sprintf("%s: zIndex must be a number", prefix))
	}
	return problems
}

// Defaults returns the base properties of an element type before the
// element's declared properties are merged over them.
func Defaults(t model.ElementType) model.Properties {
	props := model.Properties{
		model.PropOpacity:  model.Number(1),
		model.PropZIndex:   model.Number(1),
		model.PropScale:    model.Vector(1, 1),
		model.PropRotation: model.Number(0),
	}

	switch t {
	case model.ElementVideo, model.ElementAudio:
		props[model.PropVolume] = model.Number(1)
		props[model.PropPlaybackRate] = model.Number(1)
	case model.ElementText:
		props[model.PropTextAlign] = model.String("left")
		props[model.PropFontSize] = model.Number(32)
		props[model.PropColor] = model.String("#ffffff")
	case model.ElementShape:
		props[model.PropFill] = model.String("#ffffff")
	}
	return props
}

// Convert validates the project and, if it is valid, produces one
// RenderedElement per element on a visible layer ordered by zIndex, then
// startFrame, then declaration order. A validation failure is returned as
// *ValidationError and no elements are produced.
func Convert(project *model.TimelineProject, cfg model.RenderConfig) ([]model.RenderedElement, error) {
	if err := Validate(project, cfg); err != nil {
		return nil, err
	}

	out := make([]model.RenderedElement, 0, project.ElementCount())
	for li := range project.Layers {
		layer := &project.Layers[li]
		if !layer.Visible {
			continue
		}
		for ei := range layer.Elements {
			out = append(out, convertElement(layer.ID, &layer.Elements[ei], cfg.FPS))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		zi, zj := ZIndex(out[i].Properties), ZIndex(out[j].Properties)
		if zi != zj {
			return zi < zj
		}
		return out[i].StartFrame < out[j].StartFrame
	})
	return out, nil
}

func convertElement(layerID string, el *model.TimelineElement, fps float64) model.RenderedElement {
	props := Defaults(el.Type)
	for k, v := range el.Properties {
		props[k] = v
	}

	return model.RenderedElement{
		ID:         el.ID,
		LayerID:    layerID,
		Type:       el.Type,
		Src:        el.Src,
		Text:       el.Text,
		StartFrame: TimeToFrame(el.StartTime, fps),
		EndFrame:   TimeToFrame(el.StartTime+el.Duration, fps),
		Properties: props,
		Animations: animations(el.Keyframes, fps),
	}
}

// animations groups keyframes by property, one track per property sorted by
// property name. Keyframes that land on the same frame collapse to the one
// declared last.
func animations(keyframes []model.Keyframe, fps float64) []model.ElementAnimation {
	if len(keyframes) == 0 {
		return []model.ElementAnimation{}
	}

	groups := make(map[string][]model.Keyframe)
	for _, kf := range keyframes {
		groups[kf.Property] = append(groups[kf.Property], kf)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	tracks := make([]model.ElementAnimation, 0, len(names))
	for _, name := range names {
		group := groups[name]
		sort.SliceStable(group, func(i, j int) bool { return group[i].Time < group[j].Time })

		points := make([]model.FramePoint, 0, len(group))
		for _, kf := range group {
			p := model.FramePoint{Frame: TimeToFrame(kf.Time, fps), Value: kf.Value}
			if last := len(points) - 1; last >= 0 && points[last].Frame == p.Frame {
				points[last] = p
				continue
			}
			points = append(points, p)
		}

		easing := group[0].Easing
		if easing == "" {
			easing = model.EasingLinear
		}
		tracks = append(tracks, model.ElementAnimation{
			Property: name,
			Easing:   easing,
			Frames:   points,
		})
	}
	return tracks
}

// ZIndex returns the effective paint order of a property snapshot.
func ZIndex(props model.Properties) int {
	if v, ok := props[model.PropZIndex]; ok && v.IsNumber() {
		return int(math.Round(v.Num))
	}
	return 1
}
