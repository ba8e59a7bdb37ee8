package bot

import (
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"

	"mapmaker/internal/config"
	"mapmaker/internal/geo"
	"mapmaker/internal/tilegrid"
)

func strOpt(name, v string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: v}
}

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	// JSON から来る数値は float64
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(v)}
}

func boolOpt(name string, v bool) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionBoolean, Value: v}
}

func TestParseMapOptions(t *testing.T) {
	o := parseMapOptions([]*discordgo.ApplicationCommandInteractionDataOption{
		strOpt("area", "47.43,10.95 47.37,11.13"),
		intOpt("zoom", 12),
		boolOpt("compass", false),
	})
	if o.Area != "47.43,10.95 47.37,11.13" {
		t.Errorf("Area = %q", o.Area)
	}
	if o.Zoom == nil || *o.Zoom != 12 {
		t.Errorf("Zoom = %v", o.Zoom)
	}
	if o.Compass == nil || *o.Compass {
		t.Errorf("Compass = %v, want explicit false", o.Compass)
	}
	if o.Frame != nil || o.ScaleBar != nil {
		t.Error("unset booleans must stay nil")
	}
}

func TestBuildRequest(t *testing.T) {
	gs := config.GuildSettings{Style: "topo", Frame: true, Compass: true, Caption: "Club map"}
	zoom := 11
	off := false

	t.Run("explicit options", func(t *testing.T) {
		req, err := buildRequest(mapOptions{
			Area:    "47.43,10.95 47.37,11.13",
			Style:   "osm",
			Title:   " Karwendel ",
			Zoom:    &zoom,
			Compass: &off,
		}, gs)
		if err != nil {
			t.Fatal(err)
		}
		if req.Zoom != 11 || req.Style != "osm" {
			t.Errorf("zoom/style = %d/%s", req.Zoom, req.Style)
		}
		if req.Compass != nil {
			t.Error("compass disabled by option but present")
		}
		if req.Frame == nil || req.Title == nil || req.Title.Text != "Karwendel" {
			t.Errorf("frame %v, title %+v", req.Frame, req.Title)
		}
		if req.Comment == nil || req.Comment.Text != "Club map" {
			t.Errorf("comment = %+v", req.Comment)
		}
		if !req.Copyright || !req.ScaleBar {
			t.Error("copyright and scale bar are on by default")
		}
		want := geo.BBox{MinLat: 47.37, MinLon: 10.95, MaxLat: 47.43, MaxLon: 11.13}
		if req.BBox != want {
			t.Errorf("bbox = %v, want %v", req.BBox, want)
		}
	})

	t.Run("guild defaults and auto zoom", func(t *testing.T) {
		req, err := buildRequest(mapOptions{Area: "47.4,11.0 3km"}, gs)
		if err != nil {
			t.Fatal(err)
		}
		if req.Style != "topo" || req.Compass == nil {
			t.Errorf("guild defaults not applied: %+v", req)
		}
		g, err := tilegrid.FromBBox(req.BBox, req.Zoom)
		if err != nil {
			t.Fatal(err)
		}
		if req.Zoom < 1 || g.NumTiles() > autoZoomTiles {
			t.Errorf("auto zoom %d needs %d tiles", req.Zoom, g.NumTiles())
		}
	})

	t.Run("aspect", func(t *testing.T) {
		req, err := buildRequest(mapOptions{Area: "47.43,10.95 47.37,11.13", Aspect: "16:9", Zoom: &zoom}, gs)
		if err != nil {
			t.Fatal(err)
		}
		want := 16.0 / 9
		w, h := req.BBox.WidthMeters(), req.BBox.HeightMeters()
		if d := w/h - want; d > 0.01 || d < -0.01 {
			t.Errorf("aspect = %v, want %v", w/h, want)
		}
	})

	t.Run("square aspect keeps the area", func(t *testing.T) {
		plain, err := buildRequest(mapOptions{Area: "47.43,10.95 47.37,11.13", Zoom: &zoom}, gs)
		if err != nil {
			t.Fatal(err)
		}
		req, err := buildRequest(mapOptions{Area: "47.43,10.95 47.37,11.13", Aspect: "1:1", Zoom: &zoom}, gs)
		if err != nil {
			t.Fatal(err)
		}
		if req.BBox != plain.BBox {
			t.Errorf("bbox = %v, want %v", req.BBox, plain.BBox)
		}
	})

	for _, bad := range []mapOptions{
		{Area: "47.43,10.95"},
		{Area: "95,10 96,11"},
		{Area: "47.43,10.95 47.37,11.13", Aspect: "wide"},
	} {
		if _, err := buildRequest(bad, gs); !errors.Is(err, geo.ErrInvalidBBox) {
			t.Errorf("buildRequest(%+v) error = %v", bad, err)
		}
	}
}

func TestApplySettings(t *testing.T) {
	cfg := &config.Config{Services: map[string]string{"osm": "x", "topo": "y"}}
	gs := config.DefaultGuildSettings
	gs.Caption = "old"

	err := applySettings(cfg, &gs, []*discordgo.ApplicationCommandInteractionDataOption{
		strOpt("style", "topo"),
		intOpt("zoom", 13),
		boolOpt("frame", false),
		strOpt("caption", "-"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if gs.Style != "topo" || gs.Zoom != 13 || gs.Frame || gs.Caption != "" {
		t.Errorf("settings = %+v", gs)
	}

	err = applySettings(cfg, &gs, []*discordgo.ApplicationCommandInteractionDataOption{strOpt("style", "nope")})
	if !errors.Is(err, config.ErrUnknownStyle) {
		t.Errorf("unknown style error = %v", err)
	}
}

func TestStyleChoices(t *testing.T) {
	styles := make([]string, 30)
	for i := range styles {
		styles[i] = fmt.Sprintf("style%02d", i)
	}
	choices := styleChoices(styles)
	if len(choices) != maxChoices {
		t.Fatalf("choices = %d, want %d", len(choices), maxChoices)
	}
	if choices[0].Value != "style00" {
		t.Errorf("first choice = %v", choices[0].Value)
	}
}

func TestCommandsAreEqual(t *testing.T) {
	cfg := &config.Config{Services: map[string]string{"osm": "x", "topo": "y"}}
	local := NewMapCommand(nil, cfg, nil).SlashDefinition()
	same := NewMapCommand(nil, cfg, nil).SlashDefinition()
	// 順序の違いは無視する
	same.Options[0], same.Options[1] = same.Options[1], same.Options[0]
	if !commandsAreEqual(local, same) {
		t.Error("reordered options reported as different")
	}

	changed := NewMapCommand(nil, cfg, nil).SlashDefinition()
	changed.Options[0].Description = "changed"
	if commandsAreEqual(local, changed) {
		t.Error("changed description not detected")
	}

	fewer := NewMapCommand(nil, &config.Config{Services: map[string]string{"osm": "x"}}, nil).SlashDefinition()
	if commandsAreEqual(local, fewer) {
		t.Error("changed style choices not detected")
	}
}

func TestRegistry(t *testing.T) {
	cfg := &config.Config{Services: map[string]string{"osm": "x"}}
	r := NewRegistry()
	r.Register(NewSettingsCommand(cfg, nil))
	r.Register(NewMapCommand(nil, cfg, nil))

	if _, ok := r.Get("MAP"); !ok {
		t.Error("lookup is not case insensitive")
	}
	defs := r.SlashDefinitions()
	if len(defs) != 2 || defs[0].Name != "map" || defs[1].Name != "mapsettings" {
		t.Errorf("definitions = %v", defs)
	}
}
