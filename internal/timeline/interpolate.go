// Package timeline turns timeline projects into frame-indexed render
// instructions: keyframe interpolation, validation, conversion and
// per-frame evaluation. Everything here is pure and safe for concurrent use.
package timeline

import (
	"sort"

	"github.com/estudioia/timeline-render/internal/model"
)

// stepThreshold is the progress at which discrete values switch from the
// earlier keyframe to the later one.
const stepThreshold = 0.5

// Interpolate returns the value of a track at queryFrame.
//
// frames must be sorted ascending by Frame. Queries before the first or
// after the last anchor clamp to that anchor's value, and a query landing
// exactly on an anchor returns the stored value untouched. When several
// anchors share a frame the last one wins. Numbers and vectors are
// interpolated linearly, anything else steps at the midpoint.
func Interpolate(frames []model.FramePoint, queryFrame int) model.Value {
	n := len(frames)
	if n == 0 {
		return model.Value{}
	}
	if n == 1 {
		return frames[0].Value
	}

	// first anchor strictly after the query
	j := sort.Search(n, func(i int) bool { return frames[i].Frame > queryFrame })
	if j == 0 {
		return frames[0].Value
	}
	if j == n {
		return frames[n-1].Value
	}

	p0, p1 := frames[j-1], frames[j]
	if p0.Frame == queryFrame {
		return p0.Value
	}

	t := float64(queryFrame-p0.Frame) / float64(p1.Frame-p0.Frame)
	return mix(p0.Value, p1.Value, t)
}

func mix(v0, v1 model.Value, t float64) model.Value {
	switch {
	case v0.IsNumber() && v1.IsNumber():
		return model.Number(lerp(v0.Num, v1.Num, t))
	case v0.IsVector() && v1.IsVector():
		return model.Vector(lerp(v0.Vec.X, v1.Vec.X, t), lerp(v0.Vec.Y, v1.Vec.Y, t))
	}
	if t < stepThreshold {
		return v0
	}
	return v1
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
