// Package bot は /map スラッシュコマンドで地図を作る Discord ボット
package bot

import (
	"bytes"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Command スラッシュコマンド
type Command interface {
	Name() string
	Description() string
	ExecuteSlash(s *discordgo.Session, i *discordgo.InteractionCreate) error
	SlashDefinition() *discordgo.ApplicationCommand
}

// Registry コマンドの登録と管理
type Registry struct {
	commands map[string]Command
}

// NewRegistry 新しいRegistryを作成
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register コマンドを登録
func (r *Registry) Register(cmd Command) {
	r.commands[strings.ToLower(cmd.Name())] = cmd
}

// Get コマンドを取得
func (r *Registry) Get(name string) (Command, bool) {
	cmd, exists := r.commands[strings.ToLower(name)]
	return cmd, exists
}

// SlashDefinitions 名前順のスラッシュコマンド定義
func (r *Registry) SlashDefinitions() []*discordgo.ApplicationCommand {
	defs := make([]*discordgo.ApplicationCommand, 0, len(r.commands))
	for _, cmd := range r.commands {
		if def := cmd.SlashDefinition(); def != nil {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// optionMap 名前 -> オプション
func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func respondDeferred(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func followupMessage(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) error {
	_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: msg,
	})
	return err
}

// sendImageFollowup 遅延応答に画像を添付して返す
func sendImageFollowup(s *discordgo.Session, i *discordgo.InteractionCreate, imageData []byte, filename string, embed *discordgo.MessageEmbed) error {
	params := &discordgo.WebhookParams{
		Files: []*discordgo.File{
			{
				Name:        filename,
				ContentType: "image/png",
				Reader:      bytes.NewReader(imageData),
			},
		},
	}
	if embed != nil {
		params.Embeds = []*discordgo.MessageEmbed{embed}
	}
	_, err := s.FollowupMessageCreate(i.Interaction, false, params)
	return err
}
