package timeline

import "github.com/estudioia/timeline-render/internal/model"

// IsActive reports whether the element is on screen at the absolute frame.
func IsActive(el *model.RenderedElement, frame int) bool {
	return frame >= el.StartFrame && frame <= el.EndFrame
}

// EvaluateFrame returns the elements active at frame, in paint order, with
// every animated property resolved through Interpolate.
func EvaluateFrame(elements []model.RenderedElement, frame int) []model.FrameElement {
	out := make([]model.FrameElement, 0, len(elements))
	for i := range elements {
		el := &elements[i]
		if !IsActive(el, frame) {
			continue
		}

		local := frame - el.StartFrame
		props := el.Properties.Clone()
		if props == nil {
			props = model.Properties{}
		}
		for _, track := range el.Animations {
			if len(track.Frames) == 0 {
				continue
			}
			props[track.Property] = Interpolate(track.Frames, local)
		}

		out = append(out, model.FrameElement{
			ID:         el.ID,
			Type:       el.Type,
			Src:        el.Src,
			Text:       el.Text,
			LocalFrame: local,
			Properties: props,
		})
	}
	return out
}
