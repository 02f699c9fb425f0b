// Package preview rasterizes a schedule layout, or one animated frame of it,
// into a PNG for headless hosts and debugging.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"weekcal/internal/layout"
	"weekcal/internal/zoom"
)

// Options are the preview colors. The zero value selects DefaultOptions.
type Options struct {
	Background color.NRGBA
	Header     color.NRGBA
	GridLine   color.NRGBA
	Text       color.NRGBA
	Event      color.NRGBA
	Overflow   color.NRGBA
	// BackgroundAlpha scales the opacity of background events.
	BackgroundAlpha float64
	// Labels draws day, slot and event titles.
	Labels bool
}

func DefaultOptions() Options {
	return Options{
		Background:      color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Header:          color.NRGBA{R: 0xf2, G: 0xf2, B: 0xf2, A: 0xff},
		GridLine:        color.NRGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff},
		Text:            color.NRGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff},
		Event:           color.NRGBA{R: 0x42, G: 0x85, B: 0xf4, A: 0xff},
		Overflow:        color.NRGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff},
		BackgroundAlpha: 0.35,
		Labels:          true,
	}
}

// Render draws l with frames on top. A nil frames slice draws the static
// layout. The canvas is the viewport scaled by the device pixel ratio.
func Render(l *layout.ScheduleLayout, frames []zoom.FrameEvent, opts Options) *image.NRGBA {
	if opts == (Options{}) {
		opts = DefaultOptions()
	}
	if frames == nil {
		frames = zoom.Static(l)
	}
	dpr := l.DevicePixelRatio
	if dpr <= 0 {
		dpr = 1
	}
	w := int(math.Ceil(l.Width * dpr))
	h := int(math.Ceil(l.Height * dpr))
	img := image.NewNRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	if img.Bounds().Empty() {
		return img
	}
	r := &renderer{img: img, dpr: dpr, opts: opts}

	r.fill(layout.Rect{Width: l.Width, Height: l.Height}, opts.Background)
	r.fill(l.HeaderBand, opts.Header)
	r.fill(l.TimeAxis, opts.Header)
	for _, s := range l.Slots {
		r.line(s.Line, opts.GridLine)
	}
	for _, d := range l.Days {
		r.outline(d.Content, opts.GridLine)
		r.outline(d.Header, opts.GridLine)
		r.label(d.Header, d.Day.Short(), opts.Text)
		for _, b := range []*layout.NavButton{d.Prev, d.Next} {
			if b == nil {
				continue
			}
			c := opts.Text
			if b.Disabled {
				c = opts.GridLine
			}
			r.outline(b.Rect, c)
		}
	}
	for _, s := range l.Slots {
		r.label(s.Label, s.Time.String(), opts.Text)
	}

	for _, f := range frames {
		base := opts.Event
		if c, ok := ParseColor(f.Event.Color); ok {
			base = c
		}
		if f.Overflow {
			base = opts.Overflow
		}
		alpha := f.Opacity
		if f.Background {
			alpha *= opts.BackgroundAlpha
		}
		r.fill(f.Rect, shade(base, f.Brightness, alpha))
		if !f.Background && f.Opacity >= 0.5 {
			r.label(f.Rect, f.Title, opts.Background)
		}
	}
	return img
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("preview: encode png: %w", err)
	}
	return nil
}

// ParseColor accepts "#rgb" and "#rrggbb".
func ParseColor(s string) (color.NRGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}

// shade applies a brightness factor and an opacity to c.
func shade(c color.NRGBA, brightness, alpha float64) color.NRGBA {
	if brightness <= 0 {
		brightness = 1
	}
	ch := func(v uint8) uint8 {
		return uint8(math.Min(255, math.Round(float64(v)*brightness)))
	}
	a := math.Max(0, math.Min(1, alpha)) * float64(c.A)
	return color.NRGBA{R: ch(c.R), G: ch(c.G), B: ch(c.B), A: uint8(math.Round(a))}
}

type renderer struct {
	img  *image.NRGBA
	dpr  float64
	opts Options
}

func (r *renderer) px(rect layout.Rect) image.Rectangle {
	return image.Rect(
		int(math.Round(rect.X*r.dpr)),
		int(math.Round(rect.Y*r.dpr)),
		int(math.Round((rect.X+rect.Width)*r.dpr)),
		int(math.Round((rect.Y+rect.Height)*r.dpr)),
	).Intersect(r.img.Bounds())
}

func (r *renderer) fill(rect layout.Rect, c color.NRGBA) {
	if c.A == 0 {
		return
	}
	draw.Draw(r.img, r.px(rect), image.NewUniform(c), image.Point{}, draw.Over)
}

func (r *renderer) outline(rect layout.Rect, c color.NRGBA) {
	b := r.px(rect)
	if b.Empty() {
		return
	}
	u := image.NewUniform(c)
	for _, e := range []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+1),
		image.Rect(b.Min.X, b.Max.Y-1, b.Max.X, b.Max.Y),
		image.Rect(b.Min.X, b.Min.Y, b.Min.X+1, b.Max.Y),
		image.Rect(b.Max.X-1, b.Min.Y, b.Max.X, b.Max.Y),
	} {
		draw.Draw(r.img, e, u, image.Point{}, draw.Over)
	}
}

func (r *renderer) line(l layout.Line, c color.NRGBA) {
	x0, y0 := l.From.X, l.From.Y
	x1, y1 := l.To.X, l.To.Y
	rect := layout.Rect{X: math.Min(x0, x1), Y: math.Min(y0, y1), Width: math.Abs(x1 - x0), Height: math.Abs(y1 - y0)}
	if rect.Width == 0 {
		rect.Width = 1 / r.dpr
	}
	if rect.Height == 0 {
		rect.Height = 1 / r.dpr
	}
	r.fill(rect, c)
}

// label draws text inside rect, clipped to it.
func (r *renderer) label(rect layout.Rect, text string, c color.NRGBA) {
	if !r.opts.Labels || text == "" {
		return
	}
	face := basicfont.Face7x13
	b := r.px(rect)
	if b.Dx() < 8 || b.Dy() < face.Height {
		return
	}
	dst, ok := r.img.SubImage(b).(*image.NRGBA)
	if !ok {
		return
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(b.Min.X+3, b.Min.Y+face.Ascent+2),
	}
	d.DrawString(text)
}
