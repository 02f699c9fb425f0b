package preview

import (
	"bytes"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekcal/internal/layout"
	"weekcal/internal/model"
	"weekcal/internal/zoom"
)

func testLayout(t *testing.T, dpr float64, events ...model.Event) *layout.ScheduleLayout {
	t.Helper()
	opts := layout.DefaultOptions()
	opts.Grid = model.SlotGrid{StartHour: 8, EndHour: 18, Interval: 60}
	opts.HeaderSize = 40
	opts.AxisSize = 60
	opts.LaneGap = 0
	e, err := layout.New(opts)
	require.NoError(t, err)
	l, err := e.Compute(layout.Input{Width: 760, Height: 540, DevicePixelRatio: dpr, Events: events})
	require.NoError(t, err)
	return l
}

func red(id string) model.Event {
	return model.Event{
		ID:    id,
		Day:   model.Monday,
		Start: model.MustTimeOfDay(9, 0),
		End:   model.MustTimeOfDay(10, 0),
		Color: "#ff0000",
	}
}

func plain() Options {
	o := DefaultOptions()
	o.Labels = false
	return o
}

func TestRenderFillsEventRect(t *testing.T) {
	l := testLayout(t, 1, red("mon"))
	img := Render(l, nil, plain())

	assert.Equal(t, 760, img.Bounds().Dx())
	assert.Equal(t, 540, img.Bounds().Dy())
	// Event rect is (60,90)-(160,140).
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, img.NRGBAAt(110, 115))
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, img.NRGBAAt(300, 300))
}

func TestRenderAppliesOpacityAndBrightness(t *testing.T) {
	l := testLayout(t, 1, red("mon"))
	frames := zoom.Static(l)
	frames[0].Opacity = 0.5
	img := Render(l, frames, plain())

	px := img.NRGBAAt(110, 115)
	assert.InDelta(t, 255, int(px.R), 1)
	assert.InDelta(t, 127, int(px.G), 2)

	grey := model.Event{ID: "g", Day: model.Monday, Start: model.MustTimeOfDay(9, 0), End: model.MustTimeOfDay(10, 0), Color: "#808080"}
	l = testLayout(t, 1, grey)
	frames = zoom.Static(l)
	frames[0].Brightness = zoom.HoverBrightness
	img = Render(l, frames, plain())
	assert.Equal(t, uint8(143), img.NRGBAAt(110, 115).R)
}

func TestRenderScalesByDevicePixelRatio(t *testing.T) {
	l := testLayout(t, 2, red("mon"))
	img := Render(l, nil, plain())
	assert.Equal(t, 1520, img.Bounds().Dx())
	assert.Equal(t, 1080, img.Bounds().Dy())
	assert.Equal(t, uint8(0xff), img.NRGBAAt(220, 230).R)
	assert.Equal(t, uint8(0), img.NRGBAAt(220, 230).G)
}

func TestRenderDegenerateViewport(t *testing.T) {
	opts := layout.DefaultOptions()
	e, err := layout.New(opts)
	require.NoError(t, err)
	l, err := e.Compute(layout.Input{})
	require.NoError(t, err)
	img := Render(l, nil, DefaultOptions())
	assert.True(t, img.Bounds().Empty())
}

func TestEncodePNG(t *testing.T) {
	l := testLayout(t, 1, red("mon"))
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, Render(l, nil, DefaultOptions())))

	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 760, decoded.Bounds().Dx())
}

func TestParseColor(t *testing.T) {
	for in, want := range map[string]color.NRGBA{
		"#ff8800": {R: 0xff, G: 0x88, A: 0xff},
		"0a0b0c":  {R: 0x0a, G: 0x0b, B: 0x0c, A: 0xff},
		"#abc":    {R: 0xaa, G: 0xbb, B: 0xcc, A: 0xff},
	} {
		got, ok := ParseColor(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "#12", "red", "#gggggg"} {
		_, ok := ParseColor(bad)
		assert.False(t, ok, bad)
	}
}
