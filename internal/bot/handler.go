package bot

import (
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"

	"mapmaker/internal/config"
	"mapmaker/internal/logger"
	"mapmaker/internal/mapmaker"
)

// Handler Discord のイベントを受けてコマンドに振り分ける
type Handler struct {
	registry *Registry
	guildID  string
}

// NewHandler guildID が空ならコマンドをグローバルに登録する
func NewHandler(renderer *mapmaker.Renderer, cfg *config.Config, settings *config.SettingsManager) *Handler {
	registry := NewRegistry()
	for _, cmd := range []Command{
		NewMapCommand(renderer, cfg, settings),
		NewSettingsCommand(cfg, settings),
	} {
		registry.Register(cmd)
	}
	return &Handler{registry: registry, guildID: cfg.Discord.GuildID}
}

func (h *Handler) OnReady(s *discordgo.Session, event *discordgo.Ready) {
	logger.L().Info("bot is ready", "user", event.User.Username, "guilds", len(event.Guilds))

	if err := h.SyncSlashCommands(s); err != nil {
		logger.L().Error("slash command sync failed", "error", err)
	}
}

func (h *Handler) OnInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	name := i.ApplicationCommandData().Name
	cmd, exists := h.registry.Get(name)
	if !exists {
		logger.L().Warn("unknown slash command", "command", name)
		return
	}

	logger.L().Debug("executing slash command", "command", name, "guild", i.GuildID)
	if err := cmd.ExecuteSlash(s, i); err != nil {
		logger.L().Error("slash command failed", "command", name, "error", err)
		_ = respond(s, i, "❌ An error occurred while executing the command.")
	}
}

// SyncSlashCommands ローカルの定義に合わせて作成・更新・削除する
func (h *Handler) SyncSlashCommands(s *discordgo.Session) error {
	appID := s.State.User.ID
	remoteCommands, err := s.ApplicationCommands(appID, h.guildID)
	if err != nil {
		return fmt.Errorf("could not fetch remote commands: %w", err)
	}

	remote := make(map[string]*discordgo.ApplicationCommand, len(remoteCommands))
	for _, cmd := range remoteCommands {
		remote[cmd.Name] = cmd
	}

	for _, local := range h.registry.SlashDefinitions() {
		existing, ok := remote[local.Name]
		switch {
		case !ok:
			logger.L().Info("creating slash command", "command", local.Name)
			if _, err := s.ApplicationCommandCreate(appID, h.guildID, local); err != nil {
				logger.L().Error("create slash command", "command", local.Name, "error", err)
			}
		case !commandsAreEqual(local, existing):
			logger.L().Info("updating slash command", "command", local.Name)
			if _, err := s.ApplicationCommandEdit(appID, h.guildID, existing.ID, local); err != nil {
				logger.L().Error("update slash command", "command", local.Name, "error", err)
			}
		}
		delete(remote, local.Name)
	}

	for _, stale := range remote {
		logger.L().Info("deleting outdated slash command", "command", stale.Name)
		if err := s.ApplicationCommandDelete(appID, h.guildID, stale.ID); err != nil {
			logger.L().Error("delete slash command", "command", stale.Name, "error", err)
		}
	}
	return nil
}

func commandsAreEqual(c1, c2 *discordgo.ApplicationCommand) bool {
	if c1.Name != c2.Name || c1.Description != c2.Description {
		return false
	}
	return optionListsAreEqual(c1.Options, c2.Options)
}

func optionListsAreEqual(a, b []*discordgo.ApplicationCommandOption) bool {
	if len(a) != len(b) {
		return false
	}
	sa := sortedOptions(a)
	sb := sortedOptions(b)
	for i := range sa {
		if !optionsAreEqual(sa[i], sb[i]) {
			return false
		}
	}
	return true
}

func sortedOptions(opts []*discordgo.ApplicationCommandOption) []*discordgo.ApplicationCommandOption {
	out := make([]*discordgo.ApplicationCommandOption, len(opts))
	copy(out, opts)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func optionsAreEqual(o1, o2 *discordgo.ApplicationCommandOption) bool {
	if o1.Type != o2.Type || o1.Name != o2.Name || o1.Description != o2.Description || o1.Required != o2.Required {
		return false
	}
	if len(o1.Choices) != len(o2.Choices) {
		return false
	}
	if len(o1.Choices) > 0 {
		c1 := make([]*discordgo.ApplicationCommandOptionChoice, len(o1.Choices))
		copy(c1, o1.Choices)
		sort.Slice(c1, func(i, j int) bool { return c1[i].Name < c1[j].Name })

		c2 := make([]*discordgo.ApplicationCommandOptionChoice, len(o2.Choices))
		copy(c2, o2.Choices)
		sort.Slice(c2, func(i, j int) bool { return c2[i].Name < c2[j].Name })

		// Discord から戻る整数の値は float64 になる
		for i := range c1 {
			if c1[i].Name != c2[i].Name || fmt.Sprint(c1[i].Value) != fmt.Sprint(c2[i].Value) {
				return false
			}
		}
	}
	if !sameBound(o1.MinValue, o2.MinValue) || o1.MaxValue != o2.MaxValue {
		return false
	}
	return optionListsAreEqual(o1.Options, o2.Options)
}

func sameBound(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
