package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"mapmaker/internal/compose"
	"mapmaker/internal/config"
	"mapmaker/internal/geo"
	"mapmaker/internal/logger"
	"mapmaker/internal/mapmaker"
	"mapmaker/internal/tilegrid"
)

const (
	// MaxTiles 1回の /map で取得するタイルの上限
	MaxTiles = 64
	// autoZoomTiles ズーム指定がないときに目安にするタイル数
	autoZoomTiles = 16
	autoZoomMax   = 16
	renderTimeout = 2 * time.Minute
	// maxUploadBytes Discord の添付ファイル上限
	maxUploadBytes = 8 << 20
	// maxChoices Discord のスラッシュコマンド選択肢の上限
	maxChoices = 25
)

// MapCommand /map 範囲を指定して地図画像を返す
type MapCommand struct {
	renderer *mapmaker.Renderer
	styles   []string
	settings *config.SettingsManager
}

func NewMapCommand(renderer *mapmaker.Renderer, cfg *config.Config, settings *config.SettingsManager) *MapCommand {
	return &MapCommand{renderer: renderer, styles: cfg.Styles(), settings: settings}
}

func (c *MapCommand) Name() string { return "map" }

func (c *MapCommand) Description() string {
	return "Render a map of an area from web map tiles"
}

// mapOptions /map の入力。未指定の真偽値は nil
type mapOptions struct {
	Area        string
	Style       string
	Aspect      string
	Title       string
	Zoom        *int
	Frame       *bool
	Compass     *bool
	Hillshading *bool
	ScaleBar    *bool
}

func parseMapOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) mapOptions {
	var o mapOptions
	m := optionMap(opts)
	if opt, ok := m["area"]; ok {
		o.Area = opt.StringValue()
	}
	if opt, ok := m["style"]; ok {
		o.Style = opt.StringValue()
	}
	if opt, ok := m["aspect"]; ok {
		o.Aspect = opt.StringValue()
	}
	if opt, ok := m["title"]; ok {
		o.Title = opt.StringValue()
	}
	if opt, ok := m["zoom"]; ok {
		z := int(opt.IntValue())
		o.Zoom = &z
	}
	for name, dst := range map[string]**bool{
		"frame":       &o.Frame,
		"compass":     &o.Compass,
		"hillshading": &o.Hillshading,
		"scale":       &o.ScaleBar,
	} {
		if opt, ok := m[name]; ok {
			v := opt.BoolValue()
			*dst = &v
		}
	}
	return o
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// parseAreaText "lat,lon lat,lon" か "lat,lon 2km"
func parseAreaText(raw string) (geo.BBox, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return geo.BBox{}, fmt.Errorf("%w: expected two parts like \"47.43,10.95 47.37,11.13\" or \"47.4,11.0 3km\"", geo.ErrInvalidBBox)
	}
	return geo.ParseArea(fields[0], fields[1])
}

// buildRequest 入力とサーバー設定から注文を作る。エラーはそのまま利用者に見せる
func buildRequest(o mapOptions, gs config.GuildSettings) (mapmaker.Request, error) {
	bbox, err := parseAreaText(o.Area)
	if err != nil {
		return mapmaker.Request{}, err
	}
	if o.Aspect != "" {
		ratio, err := geo.ParseAspect(o.Aspect)
		if err != nil {
			return mapmaker.Request{}, err
		}
		if bbox, err = bbox.WithAspect(ratio); err != nil {
			return mapmaker.Request{}, err
		}
	}

	zoom := gs.Zoom
	if o.Zoom != nil {
		zoom = *o.Zoom
	}
	if zoom <= 0 {
		if zoom, err = tilegrid.FitZoom(bbox, autoZoomMax, autoZoomTiles); err != nil {
			return mapmaker.Request{}, err
		}
	}

	style := o.Style
	if style == "" {
		style = gs.Style
	}

	req := mapmaker.Request{
		BBox:        bbox,
		Zoom:        zoom,
		Style:       style,
		Copyright:   true,
		Hillshading: boolOr(o.Hillshading, false),
		ScaleBar:    boolOr(o.ScaleBar, true),
	}
	if boolOr(o.Frame, gs.Frame) {
		req.Frame = compose.NewFrame(6, compose.FrameCoordinates)
		req.Margins = compose.Margins{Top: 4, Right: 4, Bottom: 4, Left: 4}
	}
	if boolOr(o.Compass, gs.Compass) {
		req.Compass = compose.NewCompassRose(compose.SE)
	}
	if t := strings.TrimSpace(o.Title); t != "" {
		req.Title = compose.NewTitle(t)
	}
	if gs.Caption != "" {
		req.Comment = compose.NewComment(gs.Caption)
	}
	return req, nil
}

func (c *MapCommand) ExecuteSlash(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	opts := parseMapOptions(i.ApplicationCommandData().Options)
	req, err := buildRequest(opts, c.settings.Get(i.GuildID))
	if err != nil {
		return respond(s, i, "❌ "+err.Error())
	}

	info, err := c.renderer.Info(req)
	if err != nil {
		return respond(s, i, "❌ "+err.Error())
	}
	if info.Tiles > MaxTiles {
		return respond(s, i, fmt.Sprintf("❌ The map needs %d tiles at zoom %d (limit %d). Lower the zoom or shrink the area.", info.Tiles, req.Zoom, MaxTiles))
	}

	if err := respondDeferred(s, i); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()
	var buf bytes.Buffer
	if err := c.renderer.WritePNG(ctx, req, &buf); err != nil {
		logger.L().Warn("map render failed", "guild", i.GuildID, "bbox", req.BBox.String(), "error", err)
		msg := "❌ Could not render the map: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "❌ Tile download timed out. Try a smaller area or a lower zoom."
		}
		return followupMessage(s, i, msg)
	}
	if buf.Len() > maxUploadBytes {
		return followupMessage(s, i, fmt.Sprintf("❌ The image is too large to upload (%d bytes). Lower the zoom.", buf.Len()))
	}

	filename := fmt.Sprintf("map_%s_z%d.png", req.Style, req.Zoom)
	return sendImageFollowup(s, i, buf.Bytes(), filename, mapEmbed(info, info.ImageSize.X, info.ImageSize.Y, filename))
}

func mapEmbed(info *mapmaker.Info, width, height int, filename string) *discordgo.MessageEmbed {
	lat, lon := info.BBox.Center()
	return &discordgo.MessageEmbed{
		Title: "🗺️ Map",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Area", Value: fmt.Sprintf("`%s`", info.Area()), Inline: true},
			{Name: "Zoom", Value: fmt.Sprintf("`%d`", info.Zoom), Inline: true},
			{Name: "Style", Value: fmt.Sprintf("`%s`", info.Style), Inline: true},
			{Name: "Size", Value: fmt.Sprintf("`%dx%dpx`", width, height), Inline: true},
			{Name: "Tiles", Value: fmt.Sprintf("`%d`", info.Tiles), Inline: true},
			{Name: "Center", Value: fmt.Sprintf("`%.5f, %.5f`", lat, lon), Inline: true},
		},
		Image: &discordgo.MessageEmbedImage{
			URL: "attachment://" + filename,
		},
	}
}

func styleChoices(styles []string) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, min(len(styles), maxChoices))
	for _, s := range styles {
		if len(choices) == maxChoices {
			break
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: s, Value: s})
	}
	return choices
}

func (c *MapCommand) SlashDefinition() *discordgo.ApplicationCommand {
	minZoom := 1.0
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "area",
				Description: "Two corners \"47.43,10.95 47.37,11.13\" or center and radius \"47.4,11.0 3km\"",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "style",
				Description: "Map style",
				Choices:     styleChoices(c.styles),
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "zoom",
				Description: "Zoom level 1..19 (default: fit the area)",
				MinValue:    &minZoom,
				MaxValue:    geo.MaxZoom,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "aspect",
				Description: "Aspect ratio such as 16:9",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "title",
				Description: "Title above the map",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "frame",
				Description: "Coordinate frame around the map",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "compass",
				Description: "Compass rose on the map",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "hillshading",
				Description: "Overlay hillshading",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "scale",
				Description: "Scale bar (default: on)",
			},
		},
	}
}
