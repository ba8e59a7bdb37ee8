package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// GuildSettings サーバーごとの /map の既定値
type GuildSettings struct {
	Style   string `json:"style"`             // 地図スタイル
	Zoom    int    `json:"zoom,omitempty"`    // 0 なら範囲から自動で決める
	Frame   bool   `json:"frame"`             // 座標の枠を付ける
	Compass bool   `json:"compass"`           // 方位記号を付ける
	Caption string `json:"caption,omitempty"` // 下に入れる注記
}

// DefaultGuildSettings 設定のないサーバーの既定値
var DefaultGuildSettings = GuildSettings{
	Style:   "osm",
	Frame:   true,
	Compass: true,
}

// SettingsManager サーバー設定を JSON ファイルに保存する
type SettingsManager struct {
	mu       sync.RWMutex
	guilds   map[string]GuildSettings
	filePath string
}

type settingsFile struct {
	Guilds map[string]GuildSettings `json:"guilds"`
}

// NewSettingsManager ファイルがあれば読み込む。path が空ならメモリ上だけで保持する
func NewSettingsManager(path string) (*SettingsManager, error) {
	sm := &SettingsManager{
		guilds:   make(map[string]GuildSettings),
		filePath: path,
	}
	if err := sm.load(); err != nil {
		return nil, err
	}
	return sm, nil
}

func (sm *SettingsManager) load() error {
	if sm.filePath == "" {
		return nil
	}
	data, err := os.ReadFile(sm.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var f settingsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.Guilds != nil {
		sm.guilds = f.Guilds
	}
	return nil
}

func (sm *SettingsManager) saveLocked() error {
	if sm.filePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(sm.filePath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settingsFile{Guilds: sm.guilds}, "", "  ")
	if err != nil {
		return err
	}
	tmp := sm.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, sm.filePath)
}

// Get サーバー設定 (なければ既定値)
func (sm *SettingsManager) Get(guildID string) GuildSettings {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if s, ok := sm.guilds[guildID]; ok {
		return s
	}
	return DefaultGuildSettings
}

// Update 既定値から始めて update を適用し、保存する
func (sm *SettingsManager) Update(guildID string, update func(*GuildSettings)) (GuildSettings, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.guilds[guildID]
	if !ok {
		s = DefaultGuildSettings
	}
	update(&s)
	sm.guilds[guildID] = s
	return s, sm.saveLocked()
}
