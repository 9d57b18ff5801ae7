package model

import "encoding/json"

// TimelineProject is the declarative description of a composition
type TimelineProject struct {
	ID              string  `json:"id" validate:"required"`
	Name            string  `json:"name"`
	Duration        int64   `json:"duration" validate:"gte=0"` // ms
	BackgroundColor string  `json:"backgroundColor"`
	Layers          []Layer `json:"layers" validate:"dive"`
}

// Layer owns an ordered list of elements. A layer decoded without a
// "visible" field is visible.
type Layer struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Visible  bool              `json:"visible"`
	Elements []TimelineElement `json:"elements" validate:"dive"`
}

func (l *Layer) UnmarshalJSON(data []byte) error {
	type layer Layer
	decoded := layer{Visible: true}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*l = Layer(decoded)
	return nil
}

// TimelineElement is a time-bounded item on a layer
type TimelineElement struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Type       ElementType `json:"type"`
	StartTime  int64       `json:"startTime"` // ms
	Duration   int64       `json:"duration"`  // ms
	Src        string      `json:"src,omitempty"`
	Text       string      `json:"text,omitempty"`
	Properties Properties  `json:"properties,omitempty"`
	Keyframes  []Keyframe  `json:"keyframes,omitempty"`
}

// Keyframe anchors a property value at a time relative to the element start
type Keyframe struct {
	Property string `json:"property"`
	Time     int64  `json:"time"` // ms
	Value    Value  `json:"value"`
	Easing   Easing `json:"easing,omitempty"`
}

// Label returns the name used to refer to the element in messages
func (e *TimelineElement) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// ElementCount returns the number of elements on visible layers
func (p *TimelineProject) ElementCount() int {
	n := 0
	for i := range p.Layers {
		if p.Layers[i].Visible {
			n += len(p.Layers[i].Elements)
		}
	}
	return n
}

// Clone returns a deep copy so callers can keep mutating their project
func (p *TimelineProject) Clone() *TimelineProject {
	if p == nil {
		return nil
	}
	out := *p
	out.Layers = make([]Layer, len(p.Layers))
	for i, l := range p.Layers {
		nl := l
		nl.Elements = make([]TimelineElement, len(l.Elements))
		for j, e := range l.Elements {
			ne := e
			ne.Properties = e.Properties.Clone()
			if e.Keyframes != nil {
				ne.Keyframes = append([]Keyframe(nil), e.Keyframes...)
			}
			nl.Elements[j] = ne
		}
		out.Layers[i] = nl
	}
	return &out
}
