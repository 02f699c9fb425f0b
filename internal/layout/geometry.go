package layout

import (
	"fmt"
	"math"
	"strings"
)

// Orientation selects which screen axis carries days.
type Orientation int

const (
	// Vertical lays days out as columns; time runs top to bottom.
	Vertical Orientation = iota
	// Horizontal lays days out as rows; time runs left to right.
	Horizontal
)

func (o Orientation) String() string {
	if o == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

func ParseOrientation(s string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vertical":
		return Vertical, nil
	case "horizontal":
		return Horizontal, nil
	}
	return Vertical, fmt.Errorf("layout: unknown orientation %q", s)
}

func (o Orientation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Orientation) UnmarshalText(b []byte) error {
	v, err := ParseOrientation(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Point is a pixel position in layout space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Line is a gridline segment.
type Line struct {
	From Point `json:"from"`
	To   Point `json:"to"`
}

// Rect is an axis-aligned pixel rectangle. Width and Height are never
// negative in computed layouts; zero-area rects are valid.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains is half-open: the right and bottom edges are outside.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

func (r Rect) Area() float64 { return r.Width * r.Height }

func (r Rect) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

// Union is the smallest rect covering both. Empty rects are ignored.
func (r Rect) Union(o Rect) Rect {
	if r.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return r
	}
	x0, y0 := math.Min(r.X, o.X), math.Min(r.Y, o.Y)
	x1 := math.Max(r.X+r.Width, o.X+o.Width)
	y1 := math.Max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// Lerp interpolates every field from r (t=0) to o (t=1). The endpoints are
// returned exactly.
func (r Rect) Lerp(o Rect, t float64) Rect {
	if t <= 0 {
		return r
	}
	if t >= 1 {
		return o
	}
	return Rect{
		X:      Lerp(r.X, o.X, t),
		Y:      Lerp(r.Y, o.Y, t),
		Width:  Lerp(r.Width, o.Width, t),
		Height: Lerp(r.Height, o.Height, t),
	}
}

// Lerp interpolates scalars.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// AcrossCenter is the centre of r on the day axis.
func (o Orientation) AcrossCenter(r Rect) float64 {
	if o == Horizontal {
		return r.Y + r.Height/2
	}
	return r.X + r.Width/2
}

// AcrossSize is the extent of r on the day axis.
func (o Orientation) AcrossSize(r Rect) float64 {
	if o == Horizontal {
		return r.Height
	}
	return r.Width
}

// WithAcross re-centres r on the day axis at center with the given extent,
// leaving the time axis untouched.
func (o Orientation) WithAcross(r Rect, center, size float64) Rect {
	if size < 0 {
		size = 0
	}
	if o == Horizontal {
		r.Y = center - size/2
		r.Height = size
		return r
	}
	r.X = center - size/2
	r.Width = size
	return r
}

// frame maps abstract (along-time, across-day) coordinates to pixels and
// snaps edges to device pixels. Both orientations go through it so event
// bounds use a single formula.
type frame struct {
	orientation Orientation
	dpr         float64
}

func (f frame) snap(v float64) float64 {
	return math.Round(v*f.dpr) / f.dpr
}

// rect builds a pixel rect from along edges [a0,a1) and across edges [c0,c1).
func (f frame) rect(a0, a1, c0, c1 float64) Rect {
	a0, a1, c0, c1 = f.snap(a0), f.snap(a1), f.snap(c0), f.snap(c1)
	if a1 < a0 {
		a1 = a0
	}
	if c1 < c0 {
		c1 = c0
	}
	if f.orientation == Horizontal {
		return Rect{X: a0, Y: c0, Width: a1 - a0, Height: c1 - c0}
	}
	return Rect{X: c0, Y: a0, Width: c1 - c0, Height: a1 - a0}
}

func (f frame) point(along, across float64) Point {
	along, across = f.snap(along), f.snap(across)
	if f.orientation == Horizontal {
		return Point{X: along, Y: across}
	}
	return Point{X: across, Y: along}
}

// extents returns the viewport size as (along, across).
func (f frame) extents(width, height float64) (float64, float64) {
	if f.orientation == Horizontal {
		return width, height
	}
	return height, width
}
