package zoom

import "math"

const (
	restBrightness  = 1.0
	HoverBrightness = 1.12

	hoverSmoothing = 0.18
	hoverEpsilon   = 0.005
)

// Hover animates per-event brightness toward HoverBrightness for the hovered
// event and back to 1 for the rest. Entries that have settled at rest are
// evicted, so the map only holds events that are hovered or fading.
type Hover struct {
	values  map[string]float64
	hovered string
}

func NewHover() *Hover {
	return &Hover{values: make(map[string]float64)}
}

// SetHovered changes the hovered event; "" clears it.
func (h *Hover) SetHovered(id string) {
	h.hovered = id
	if id == "" {
		return
	}
	if _, ok := h.values[id]; !ok {
		h.values[id] = restBrightness
	}
}

func (h *Hover) Hovered() string { return h.hovered }

// Tick applies one smoothing step to every tracked entry and reports
// whether any entry is still moving.
func (h *Hover) Tick() bool {
	animating := false
	for id, v := range h.values {
		target := restBrightness
		if id == h.hovered {
			target = HoverBrightness
		}
		v += (target - v) * hoverSmoothing
		if math.Abs(target-v) < hoverEpsilon {
			v = target
		}
		if v == restBrightness && id != h.hovered {
			delete(h.values, id)
			continue
		}
		h.values[id] = v
		if v != target {
			animating = true
		}
	}
	return animating
}

// Brightness returns the current factor for id, 1 when untracked.
func (h *Hover) Brightness(id string) float64 {
	if v, ok := h.values[id]; ok {
		return v
	}
	return restBrightness
}

// Tracked is the number of entries held.
func (h *Hover) Tracked() int { return len(h.values) }

// Apply composites brightness onto an already interpolated frame.
func (h *Hover) Apply(frames []FrameEvent) {
	for i := range frames {
		frames[i].Brightness = h.Brightness(frames[i].ID)
	}
}
