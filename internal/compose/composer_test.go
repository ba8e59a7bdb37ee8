package compose

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/fogleman/gg"

	"mapmaker/internal/geo"
)

// box 固定サイズで単色を塗るだけの装飾
type box struct {
	slot Placement
	size image.Point
	c    color.Color
}

func (b box) Placement() Placement       { return b.slot }
func (b box) Size(image.Point) image.Point { return b.size }
func (b box) Draw(dc *gg.Context, size image.Point) {
	dc.SetColor(b.c)
	dc.DrawRectangle(0, 0, float64(size.X), float64(size.Y))
	dc.Fill()
}

// linearProjector 地図画像全体に bbox を線形に割り当てる
type linearProjector struct {
	bbox geo.BBox
	size image.Point
}

func (p linearProjector) Project(lat, lon float64) (float64, float64) {
	x := (lon - p.bbox.MinLon) / (p.bbox.MaxLon - p.bbox.MinLon) * float64(p.size.X)
	y := (p.bbox.MaxLat - lat) / (p.bbox.MaxLat - p.bbox.MinLat) * float64(p.size.Y)
	return x, y
}

func (p linearProjector) BBox() geo.BBox { return p.bbox }

func solidMap(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var red = color.NRGBA{255, 0, 0, 255}

func TestMargins(t *testing.T) {
	mapSize := image.Pt(400, 300)

	t.Run("no decorations keeps base", func(t *testing.T) {
		c := New()
		if got := c.Margins(mapSize); got != (Margins{}) {
			t.Errorf("Margins = %+v, want zero", got)
		}
		if err := c.SetMargin(Margins{10, 20, 30, 40}); err != nil {
			t.Fatal(err)
		}
		if got := c.Margins(mapSize); got != (Margins{10, 20, 30, 40}) {
			t.Errorf("Margins = %+v", got)
		}
	})

	t.Run("north grows top", func(t *testing.T) {
		c := New()
		_ = c.SetMargin(Margins{Top: 5})
		if err := c.Add(AreaMargin, box{slot: N, size: image.Pt(50, 20)}); err != nil {
			t.Fatal(err)
		}
		got := c.Margins(mapSize)
		if got.Top < 20+5 {
			t.Errorf("Top = %d, want >= 25", got.Top)
		}
		if got.Left != 0 || got.Right != 0 || got.Bottom != 0 {
			t.Errorf("other margins changed: %+v", got)
		}
	})

	t.Run("max per side and corners grow both", func(t *testing.T) {
		c := New()
		for _, d := range []box{
			{slot: S, size: image.Pt(10, 15)},
			{slot: SSE, size: image.Pt(10, 25)},
			{slot: NE, size: image.Pt(30, 12)},
			{slot: W, size: image.Pt(18, 100)},
		} {
			if err := c.Add(AreaMargin, d); err != nil {
				t.Fatal(err)
			}
		}
		want := Margins{Top: 12, Right: 30, Bottom: 25, Left: 18}
		if got := c.Margins(mapSize); got != want {
			t.Errorf("Margins = %+v, want %+v", got, want)
		}
	})
}

func TestAdd_InvalidSlot(t *testing.T) {
	c := New()
	tests := []struct {
		area Area
		slot Placement
	}{
		{AreaMap, NNE},
		{AreaMap, WSW},
		{AreaMargin, C},
	}
	for _, tt := range tests {
		if err := c.Add(tt.area, box{slot: tt.slot}); !errors.Is(err, ErrLayout) {
			t.Errorf("Add(%s, %s) error = %v, want ErrLayout", tt.area, tt.slot, err)
		}
	}
	if err := c.Add(AreaMap, nil); !errors.Is(err, ErrLayout) {
		t.Errorf("Add(nil) error = %v", err)
	}
}

func TestSetMarginAndFrame_Invalid(t *testing.T) {
	c := New()
	if err := c.SetMargin(Margins{Left: -1}); !errors.Is(err, ErrLayout) {
		t.Errorf("SetMargin error = %v", err)
	}
	if err := c.SetFrame(&Frame{Width: -2}); !errors.Is(err, ErrLayout) {
		t.Errorf("SetFrame error = %v", err)
	}
	if err := c.SetFrame(&Frame{Width: 0}); err != nil {
		t.Errorf("zero width frame: %v", err)
	}
	if c.frame != nil {
		t.Error("zero width frame was kept")
	}
}

func TestMarginPosition(t *testing.T) {
	total := image.Pt(200, 160)
	frame := image.Rect(30, 20, 170, 140)
	deco := image.Pt(20, 10)

	tests := []struct {
		slot Placement
		want image.Point
	}{
		{NW, image.Pt(10, 10)},
		{NNW, image.Pt(30, 10)},
		{N, image.Pt(90, 10)},
		{NNE, image.Pt(150, 10)},
		{NE, image.Pt(170, 10)},
		{ENE, image.Pt(170, 20)},
		{E, image.Pt(170, 75)},
		{ESE, image.Pt(170, 130)},
		{SE, image.Pt(170, 140)},
		{SSE, image.Pt(150, 140)},
		{S, image.Pt(90, 140)},
		{SSW, image.Pt(30, 140)},
		{SW, image.Pt(10, 140)},
		{WSW, image.Pt(10, 130)},
		{W, image.Pt(10, 75)},
		{WNW, image.Pt(10, 20)},
	}
	for _, tt := range tests {
		t.Run(tt.slot.String(), func(t *testing.T) {
			got, err := marginPosition(tt.slot, total, frame, deco)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("marginPosition(%s) = %v, want %v", tt.slot, got, tt.want)
			}
		})
	}
	if _, err := marginPosition(C, total, frame, deco); !errors.Is(err, ErrLayout) {
		t.Errorf("C error = %v", err)
	}
}

func TestMapPosition(t *testing.T) {
	mapBox := image.Rect(10, 10, 110, 90)
	deco := image.Pt(20, 10)
	tests := map[Placement]image.Point{
		NW: {10, 10}, N: {50, 10}, NE: {90, 10},
		W: {10, 45}, C: {50, 45}, E: {90, 45},
		SW: {10, 80}, S: {50, 80}, SE: {90, 80},
	}
	for slot, want := range tests {
		got, err := mapPosition(slot, mapBox, deco)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("mapPosition(%s) = %v, want %v", slot, got, want)
		}
	}
	if _, err := mapPosition(NNE, mapBox, deco); !errors.Is(err, ErrLayout) {
		t.Errorf("NNE error = %v", err)
	}
}

func TestCompose_Layout(t *testing.T) {
	mapImg := solidMap(100, 80, color.NRGBA{0, 0, 255, 255})
	bbox := geo.BBox{MinLat: 47, MinLon: 11, MaxLat: 48, MaxLon: 12}
	proj := linearProjector{bbox: bbox, size: image.Pt(100, 80)}

	c := New()
	_ = c.SetMargin(Margins{2, 2, 2, 2})
	if err := c.SetFrame(NewFrame(4, FrameSolid)); err != nil {
		t.Fatal(err)
	}
	_ = c.Add(AreaMargin, box{slot: N, size: image.Pt(40, 20), c: red})
	_ = c.Add(AreaMap, box{slot: SE, size: image.Pt(10, 10), c: color.NRGBA{0, 255, 0, 255}})

	out, err := c.Compose(mapImg, proj)
	if err != nil {
		t.Fatal(err)
	}
	// 幅: 2 + 4 + 100 + 4 + 2、高さ: (20+2) + 4 + 80 + 4 + 2
	if got := out.Bounds().Size(); got != image.Pt(112, 112) {
		t.Fatalf("image size = %v", got)
	}

	checks := []struct {
		name string
		x, y int
		want color.NRGBA
	}{
		{"background", 0, 111, color.NRGBA{255, 255, 255, 255}},
		{"frame", 3, 50, color.NRGBA{0, 0, 0, 255}},
		{"map", 20, 40, color.NRGBA{0, 0, 255, 255}},
		{"map decoration", 105, 105, color.NRGBA{0, 255, 0, 255}},
		{"title above frame", 56, 15, red},
	}
	for _, ck := range checks {
		if got := out.NRGBAAt(ck.x, ck.y); got != ck.want {
			t.Errorf("%s at (%d,%d) = %v, want %v", ck.name, ck.x, ck.y, got, ck.want)
		}
	}
}

func TestCompose_CoordinateFrame(t *testing.T) {
	mapImg := solidMap(200, 200, color.NRGBA{0, 0, 255, 255})
	bbox := geo.BBox{MinLat: 47, MinLon: 11, MaxLat: 48, MaxLon: 12}
	proj := linearProjector{bbox: bbox, size: image.Pt(200, 200)}

	c := New()
	f := NewFrame(6, FrameCoordinates)
	f.AltColor = color.NRGBA{255, 255, 0, 255}
	if err := c.SetFrame(f); err != nil {
		t.Fatal(err)
	}
	out, err := c.Compose(mapImg, proj)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Bounds().Size(); got != image.Pt(212, 212) {
		t.Fatalf("image size = %v", got)
	}

	black := color.NRGBA{0, 0, 0, 255}
	yellow := color.NRGBA{255, 255, 0, 255}
	// 角は必ず塗りつぶし
	for _, p := range []image.Point{{1, 1}, {210, 1}, {1, 210}, {210, 210}} {
		if got := out.NRGBAAt(p.X, p.Y); got != black {
			t.Errorf("corner %v = %v", p, got)
		}
	}
	// 1度を5分割すると12分ごと (40px)。最初の区切りは AltColor、次は Color
	if got := out.NRGBAAt(6+20, 3); got != yellow {
		t.Errorf("first top segment = %v, want alt color", got)
	}
	if got := out.NRGBAAt(6+60, 3); got != black {
		t.Errorf("second top segment = %v, want color", got)
	}
	// 左辺は南から数える
	if got := out.NRGBAAt(3, 6+200-20); got != yellow {
		t.Errorf("first left segment = %v, want alt color", got)
	}
}

func TestCompose_EmptyMap(t *testing.T) {
	if _, err := New().Compose(image.NewNRGBA(image.Rect(0, 0, 0, 0)), nil); !errors.Is(err, ErrLayout) {
		t.Errorf("error = %v", err)
	}
}

func TestTickInterval(t *testing.T) {
	tests := []struct {
		span float64
		n    int
		want float64
	}{
		{20, 5, 4},              // 度
		{9, 5, 1},               // 度、9区切り
		{1, 5, 12.0 / 60},       // 分
		{4.0 / 60, 5, 0.5 / 60}, // 30秒
		{2.0 / 60, 5, 24.0 / 3600}, // 30秒では4区切りしかない
		{30.0 / 3600, 5, 6.0 / 3600},
		{1.5, 5, 18.0 / 60},          // 全体を分で数える
		{160.0 / 3600, 5, 0.5 / 60}, // 2分40秒
	}

	for _, tt := range tests {
		got := tickInterval(tt.span, tt.n)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("tickInterval(%v, %d) = %v, want %v", tt.span, tt.n, got, tt.want)
		}
		if count := math.Floor(tt.span/got + 1e-9); count < float64(tt.n) {
			t.Errorf("tickInterval(%v, %d) yields %v ticks, want >= %d", tt.span, tt.n, count, tt.n)
		}
	}
	if got := tickInterval(0, 5); got != 0 {
		t.Errorf("zero span = %v", got)
	}
}

func TestTickValues(t *testing.T) {
	ticks := tickValues(11, 12, 5)
	if len(ticks) != 4 {
		t.Fatalf("ticks = %v, want 4 inner ticks", ticks)
	}
	for i, v := range ticks {
		want := 11 + float64(i+1)*0.2
		if math.Abs(v-want) > 1e-9 {
			t.Errorf("tick %d = %v, want %v", i, v, want)
		}
	}
}

func TestParsePlacement(t *testing.T) {
	for _, raw := range []string{"n", " NNE ", "wsw", "C"} {
		if _, err := ParsePlacement(raw); err != nil {
			t.Errorf("ParsePlacement(%q): %v", raw, err)
		}
	}
	if p, _ := ParsePlacement("ese"); p != ESE {
		t.Errorf("ParsePlacement(ese) = %s", p)
	}
	if _, err := ParsePlacement("NORTH"); !errors.Is(err, ErrLayout) {
		t.Errorf("error = %v", err)
	}
}
