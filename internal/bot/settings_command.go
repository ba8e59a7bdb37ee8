package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"mapmaker/internal/config"
	"mapmaker/internal/geo"
)

// SettingsCommand /mapsettings サーバーごとの /map の既定値
type SettingsCommand struct {
	cfg      *config.Config
	settings *config.SettingsManager
}

func NewSettingsCommand(cfg *config.Config, settings *config.SettingsManager) *SettingsCommand {
	return &SettingsCommand{cfg: cfg, settings: settings}
}

func (c *SettingsCommand) Name() string { return "mapsettings" }

func (c *SettingsCommand) Description() string {
	return "Show or change the /map defaults of this server"
}

// applySettings 指定されたオプションだけ上書きする
func applySettings(cfg *config.Config, gs *config.GuildSettings, opts []*discordgo.ApplicationCommandInteractionDataOption) error {
	m := optionMap(opts)
	if opt, ok := m["style"]; ok {
		style := opt.StringValue()
		if _, err := cfg.Service(style); err != nil {
			return err
		}
		gs.Style = style
	}
	if opt, ok := m["zoom"]; ok {
		z := int(opt.IntValue())
		if err := geo.ValidZoom(z); err != nil {
			return err
		}
		gs.Zoom = z
	}
	if opt, ok := m["frame"]; ok {
		gs.Frame = opt.BoolValue()
	}
	if opt, ok := m["compass"]; ok {
		gs.Compass = opt.BoolValue()
	}
	if opt, ok := m["caption"]; ok {
		caption := strings.TrimSpace(opt.StringValue())
		if caption == "-" {
			caption = ""
		}
		gs.Caption = caption
	}
	return nil
}

func describeSettings(gs config.GuildSettings) string {
	zoom := "auto"
	if gs.Zoom > 0 {
		zoom = fmt.Sprint(gs.Zoom)
	}
	caption := gs.Caption
	if caption == "" {
		caption = "-"
	}
	return fmt.Sprintf("style: `%s`\nzoom: `%s`\nframe: `%t`\ncompass: `%t`\ncaption: %s",
		gs.Style, zoom, gs.Frame, gs.Compass, caption)
}

func (c *SettingsCommand) ExecuteSlash(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	if i.GuildID == "" {
		return respond(s, i, "❌ This command can only be used in a server.")
	}
	opts := i.ApplicationCommandData().Options
	if len(opts) == 0 {
		return respond(s, i, "⚙️ Current /map defaults\n"+describeSettings(c.settings.Get(i.GuildID)))
	}

	var applyErr error
	gs, err := c.settings.Update(i.GuildID, func(gs *config.GuildSettings) {
		// 失敗したら何も変えない
		next := *gs
		if applyErr = applySettings(c.cfg, &next, opts); applyErr == nil {
			*gs = next
		}
	})
	if applyErr != nil {
		return respond(s, i, "❌ "+applyErr.Error())
	}
	if err != nil {
		return err
	}
	return respond(s, i, "✅ Updated /map defaults\n"+describeSettings(gs))
}

func (c *SettingsCommand) SlashDefinition() *discordgo.ApplicationCommand {
	perm := int64(discordgo.PermissionManageServer)
	minZoom := 0.0
	return &discordgo.ApplicationCommand{
		Name:                     c.Name(),
		Description:              c.Description(),
		DefaultMemberPermissions: &perm,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "style",
				Description: "Default map style",
				Choices:     styleChoices(c.cfg.Styles()),
			},
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "zoom",
				Description: "Default zoom level, 0 fits the area",
				MinValue:    &minZoom,
				MaxValue:    geo.MaxZoom,
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "frame",
				Description: "Draw a coordinate frame by default",
			},
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "compass",
				Description: "Draw a compass rose by default",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "caption",
				Description: "Caption below every map, \"-\" removes it",
			},
		},
	}
}
