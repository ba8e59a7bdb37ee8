// Package config はタイルサービスの一覧、APIキー、著作権表示、キャッシュ設定を読み込む。
// 組み込みの既定値に設定ファイル (.ini) と MAPMAKER_* 環境変数を順に重ねる
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrUnknownStyle 設定にない地図スタイル
var ErrUnknownStyle = errors.New("unknown map style")

// keyDelimiter ドメイン名のキーに "." が含まれるので区切りを変える
const keyDelimiter = "::"

// apiKeyPlaceholder 既定の設定に入っているダミーのキー
const apiKeyPlaceholder = "<YOUR_API_KEY>"

// Config 読み込んだ設定
type Config struct {
	ParallelDownloads int
	// RequestsPerSecond ホストごとの上限。0 なら制限しない
	RequestsPerSecond int
	UserAgent         string
	// Services スタイル名 -> URLテンプレート
	Services map[string]string
	// Keys ドメイン -> APIキー
	Keys map[string]string
	// Copyrights トップレベルドメイン -> 著作権表示
	Copyrights map[string]string

	Cache   CacheConfig
	Redis   RedisConfig
	Discord DiscordConfig

	// Path 実際に読み込んだ設定ファイル (なければ空)
	Path string
}

// CacheConfig ディスクとメモリのタイルキャッシュ
type CacheConfig struct {
	Dir         string
	Limit       int64
	TrustWindow time.Duration
	MemoryTiles int
}

// RedisConfig 共有タイルキャッシュ。Addr が空なら使わない
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// DiscordConfig /map コマンドのボット
type DiscordConfig struct {
	Token        string
	GuildID      string
	SettingsPath string
}

// DefaultPath ~/.config/mapmaker/config.ini
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "config.ini")
	}
	return filepath.Join(dir, "mapmaker", "config.ini")
}

func newViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigType("ini")
	v.SetEnvPrefix("MAPMAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_", ".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(key("discord", "token"), "MAPMAKER_DISCORD_TOKEN", "DISCORD_TOKEN")
	return v
}

func key(section, name string) string {
	return section + keyDelimiter + name
}

// Load 既定値、path の設定ファイル、環境変数の順に読む。
// path が空なら DefaultPath を使い、ファイルがなくてもエラーにしない
func Load(path string) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
		return nil, fmt.Errorf("read built-in config: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	loaded := ""
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		loaded = path
	} else if explicit {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{
		ParallelDownloads: v.GetInt(key("mapmaker", "parallel_downloads")),
		RequestsPerSecond: v.GetInt(key("mapmaker", "requests_per_second")),
		UserAgent:         v.GetString(key("mapmaker", "user_agent")),
		Services:          section(v, "services"),
		Keys:              section(v, "keys"),
		Copyrights:        section(v, "copyright"),
		Cache: CacheConfig{
			Dir:         v.GetString(key("cache", "dir")),
			Limit:       v.GetInt64(key("cache", "limit")),
			TrustWindow: time.Duration(v.GetFloat64(key("cache", "trust_hours")) * float64(time.Hour)),
			MemoryTiles: v.GetInt(key("cache", "memory_tiles")),
		},
		Redis: RedisConfig{
			Addr:     v.GetString(key("redis", "addr")),
			Password: v.GetString(key("redis", "password")),
			DB:       v.GetInt(key("redis", "db")),
			TTL:      time.Duration(v.GetFloat64(key("redis", "ttl_hours")) * float64(time.Hour)),
		},
		Discord: DiscordConfig{
			Token:        v.GetString(key("discord", "token")),
			GuildID:      v.GetString(key("discord", "guild_id")),
			SettingsPath: v.GetString(key("discord", "settings_path")),
		},
		Path: loaded,
	}
	for domain, k := range cfg.Keys {
		if k == "" || k == apiKeyPlaceholder {
			delete(cfg.Keys, domain)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// section セクション内の全キー。値は環境変数で上書きできる
func section(v *viper.Viper, name string) map[string]string {
	out := make(map[string]string)
	for k := range v.GetStringMapString(name) {
		out[k] = strings.TrimSpace(v.GetString(key(name, k)))
	}
	return out
}

// Validate 値の範囲をまとめて検査する
func (c *Config) Validate() error {
	var errs []string
	if c.ParallelDownloads <= 0 {
		errs = append(errs, fmt.Sprintf("mapmaker.parallel_downloads must be positive, got %d", c.ParallelDownloads))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Sprintf("mapmaker.requests_per_second must not be negative, got %d", c.RequestsPerSecond))
	}
	if len(c.Services) == 0 {
		errs = append(errs, "no map styles configured in [services]")
	}
	for style, url := range c.Services {
		if !strings.Contains(url, "{x}") || !strings.Contains(url, "{y}") || !strings.Contains(url, "{z}") {
			errs = append(errs, fmt.Sprintf("services.%s: url template lacks {x}, {y} or {z}", style))
		}
	}
	if c.Cache.Limit < 0 {
		errs = append(errs, "cache.limit must not be negative")
	}
	if c.Cache.TrustWindow < 0 {
		errs = append(errs, "cache.trust_hours must not be negative")
	}
	if c.Cache.MemoryTiles < 0 {
		errs = append(errs, "cache.memory_tiles must not be negative")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Service スタイル名に対応するURLテンプレート
func (c *Config) Service(style string) (string, error) {
	url, ok := c.Services[strings.ToLower(style)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	return url, nil
}

// Styles 設定されたスタイル名 (名前順)
func (c *Config) Styles() []string {
	styles := make([]string, 0, len(c.Services))
	for s := range c.Services {
		styles = append(styles, s)
	}
	sort.Strings(styles)
	return styles
}

// Copyright トップレベルドメインに対応する著作権表示
func (c *Config) Copyright(tld string) string {
	return c.Copyrights[strings.ToLower(tld)]
}

// HasKey ドメインのAPIキーが設定されているか。
// "{s}.tile.example.com" は "tile.example.com" のキーでもよい
func (c *Config) HasKey(domain string) bool {
	domain = strings.ToLower(domain)
	if _, ok := c.Keys[domain]; ok {
		return true
	}
	if _, rest, ok := strings.Cut(domain, "."); ok && strings.Contains(domain, "{") {
		_, ok := c.Keys[rest]
		return ok
	}
	return false
}
