package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// AgentConfig configures the voiced worker runtime.
type AgentConfig struct {
	WorkerID          string
	DataRoot          string
	AssetsDir         string
	PluginsDir        string
	StorePath         string
	AssetManifest     string
	HeartbeatInterval time.Duration
	AdminAddr         string
	AdminToken        string
	CorsOrigins       []string
	DrainTimeout      time.Duration
	Goodbye           string
	Slots             []string
}

// DefaultAgentConfig returns worker defaults rooted under local/.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		WorkerID:          "voiced.local",
		DataRoot:          "local",
		AssetManifest:     "manifests/assets.toml",
		HeartbeatInterval: 5 * time.Second,
		AdminAddr:         "",
		DrainTimeout:      2 * time.Second,
		Goodbye:           "Thank you for calling. Have a great day! Goodbye!",
		Slots:             DefaultSlots(),
	}
}

// DefaultSlots is the built-in appointment slot catalog.
func DefaultSlots() []string {
	return []string{
		"10:30am - 11:30am, 26th January",
		"2:15pm - 3:15pm, 26th January",
		"9:00am - 10:00am, 27th January",
		"3:45pm - 4:45pm, 27th January",
		"11:00am - 12:00pm, 28th January",
		"1:30pm - 2:30pm, 28th January",
		"10:00am - 11:00am, 29th January",
		"4:00pm - 5:00pm, 29th January",
		"9:15am - 10:15am, 30th January",
		"2:00pm - 3:00pm, 30th January",
	}
}

type agentFileConfig struct {
	WorkerID          string   `toml:"worker_id"`
	DataRoot          string   `toml:"data_root"`
	AssetsDir         string   `toml:"assets_dir"`
	PluginsDir        string   `toml:"plugins_dir"`
	StorePath         string   `toml:"store_path"`
	AssetManifest     string   `toml:"asset_manifest"`
	HeartbeatInterval string   `toml:"heartbeat_interval"`
	AdminAddr         string   `toml:"admin_addr"`
	AdminToken        string   `toml:"admin_token"`
	CorsOrigins       []string `toml:"cors_origins"`
	DrainTimeout      string   `toml:"drain_timeout"`
	Goodbye           string   `toml:"goodbye"`
	Slots             []string `toml:"slots"`
}

// LoadAgentConfig reads path over the defaults; only keys present in the
// file override.
func LoadAgentConfig(path string) (AgentConfig, error) {
	cfg := DefaultAgentConfig()

	var raw agentFileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return AgentConfig{}, fmt.Errorf("agent config load failed (%s): %w", path, err)
	}

	if meta.IsDefined("worker_id") {
		if id := strings.TrimSpace(raw.WorkerID); id != "" {
			cfg.WorkerID = id
		}
	}
	if meta.IsDefined("data_root") {
		cfg.DataRoot = strings.TrimSpace(raw.DataRoot)
	}
	if meta.IsDefined("assets_dir") {
		cfg.AssetsDir = strings.TrimSpace(raw.AssetsDir)
	}
	if meta.IsDefined("plugins_dir") {
		cfg.PluginsDir = strings.TrimSpace(raw.PluginsDir)
	}
	if meta.IsDefined("store_path") {
		cfg.StorePath = strings.TrimSpace(raw.StorePath)
	}
	if meta.IsDefined("asset_manifest") {
		cfg.AssetManifest = strings.TrimSpace(raw.AssetManifest)
	}
	if meta.IsDefined("heartbeat_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HeartbeatInterval))
		if err != nil {
			return AgentConfig{}, fmt.Errorf("parse heartbeat_interval: %w", err)
		}
		cfg.HeartbeatInterval = d
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("drain_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DrainTimeout))
		if err != nil {
			return AgentConfig{}, fmt.Errorf("parse drain_timeout: %w", err)
		}
		cfg.DrainTimeout = d
	}
	if meta.IsDefined("goodbye") {
		cfg.Goodbye = raw.Goodbye
	}
	if meta.IsDefined("slots") {
		cfg.Slots = normalizeSlots(raw.Slots)
	}

	cfg = cfg.WithDerivedPaths()
	if err := ValidateAgentConfig(cfg); err != nil {
		return AgentConfig{}, fmt.Errorf("agent config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// WithDerivedPaths fills path fields left empty from the data root.
// Derivation runs after file overlay so an overridden data_root moves
// every derived path with it.
func (c AgentConfig) WithDerivedPaths() AgentConfig {
	root := strings.TrimSpace(c.DataRoot)
	if root == "" {
		root = "local"
		c.DataRoot = root
	}
	if strings.TrimSpace(c.AssetsDir) == "" {
		c.AssetsDir = filepath.Join(root, "assets")
	}
	if strings.TrimSpace(c.PluginsDir) == "" {
		c.PluginsDir = filepath.Join(root, "plugins")
	}
	if strings.TrimSpace(c.StorePath) == "" {
		c.StorePath = filepath.Join(root, "voiced.db")
	}
	return c
}

// ValidateAgentConfig checks required fields for the worker runtime.
func ValidateAgentConfig(cfg AgentConfig) error {
	if strings.TrimSpace(cfg.WorkerID) == "" {
		return fmt.Errorf("worker_id is required")
	}
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive")
	}
	if strings.TrimSpace(cfg.AssetManifest) == "" {
		return fmt.Errorf("asset_manifest is required")
	}
	if strings.TrimSpace(cfg.AssetsDir) == "" {
		return fmt.Errorf("assets_dir is required")
	}
	if strings.TrimSpace(cfg.StorePath) == "" {
		return fmt.Errorf("store_path is required")
	}
	if len(cfg.Slots) == 0 {
		return fmt.Errorf("slots catalog must not be empty")
	}
	return nil
}

func normalizeSlots(in []string) []string {
	out := make([]string, 0, len(in))
	for _, slot := range in {
		v := strings.TrimSpace(slot)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
