package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DeployConfig drives voicectl: which manifests feed the bootstrap
// stages, where the agent lives, and how it is launched.
type DeployConfig struct {
	// Mode is the default run mode used when launch receives no token.
	Mode string `yaml:"mode"`
	// AgentBinary is the agent executable, a path or a bare name
	// resolved on PATH.
	AgentBinary string `yaml:"agent_binary"`
	// AgentConfig is passed to the agent's own subcommands.
	AgentConfig string `yaml:"agent_config"`
	DataRoot    string `yaml:"data_root"`
	// Unbuffered forces unbuffered agent output at launch.
	Unbuffered bool `yaml:"unbuffered"`
	// PackageManager pins the native package manager instead of probing.
	PackageManager string        `yaml:"package_manager"`
	Manifests      ManifestPaths `yaml:"manifests"`
	Remote         *RemoteConfig `yaml:"remote,omitempty"`
	// Modes overrides base values per run mode.
	Modes map[string]DeployOverrides `yaml:"modes,omitempty"`
}

// ManifestPaths locates the stage manifests.
type ManifestPaths struct {
	Packages string `yaml:"packages"`
	Plugins  string `yaml:"plugins"`
	Assets   string `yaml:"assets"`
}

// RemoteConfig describes an SSH bootstrap target.
type RemoteConfig struct {
	Host       string        `yaml:"host"`
	Port       string        `yaml:"port"`
	User       string        `yaml:"user"`
	KeyPath    string        `yaml:"key_path"`
	KnownHosts string        `yaml:"known_hosts"`
	Insecure   bool          `yaml:"insecure"`
	Timeout    time.Duration `yaml:"timeout"`
	// DeployConfig is the deploy config path on the remote host.
	DeployConfig string `yaml:"deploy_config"`
}

// DeployOverrides are per-mode deltas applied over the base config.
type DeployOverrides struct {
	AgentBinary *string `yaml:"agent_binary,omitempty"`
	AgentConfig *string `yaml:"agent_config,omitempty"`
	DataRoot    *string `yaml:"data_root,omitempty"`
	Unbuffered  *bool   `yaml:"unbuffered,omitempty"`
}

// DefaultDeployConfig returns the base deploy configuration.
func DefaultDeployConfig() DeployConfig {
	return DeployConfig{
		Mode:        string(DefaultMode),
		AgentBinary: "voiced",
		AgentConfig: "voiced.toml",
		DataRoot:    "local",
		Unbuffered:  true,
		Manifests: ManifestPaths{
			Packages: "manifests/packages.toml",
			Plugins:  "manifests/plugins.toml",
			Assets:   "manifests/assets.toml",
		},
	}
}

// LoadDeployConfig reads and validates a deploy config file.
func LoadDeployConfig(path string) (DeployConfig, error) {
	cfg := DefaultDeployConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return DeployConfig{}, fmt.Errorf("deploy config load failed (%s): %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DeployConfig{}, fmt.Errorf("deploy config parse failed (%s): %w", path, err)
	}
	if err := ValidateDeployConfig(cfg); err != nil {
		return DeployConfig{}, fmt.Errorf("deploy config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// ValidateDeployConfig checks required fields and the mode name sets.
func ValidateDeployConfig(cfg DeployConfig) error {
	if _, err := ParseMode(cfg.Mode); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.AgentBinary) == "" {
		return fmt.Errorf("agent_binary is required")
	}
	if strings.TrimSpace(cfg.Manifests.Packages) == "" {
		return fmt.Errorf("manifests.packages is required")
	}
	if strings.TrimSpace(cfg.Manifests.Plugins) == "" {
		return fmt.Errorf("manifests.plugins is required")
	}
	if strings.TrimSpace(cfg.Manifests.Assets) == "" {
		return fmt.Errorf("manifests.assets is required")
	}
	for name := range cfg.Modes {
		if _, err := ParseMode(name); err != nil {
			return fmt.Errorf("modes.%s: %w", name, err)
		}
	}
	if cfg.Remote != nil {
		if strings.TrimSpace(cfg.Remote.Host) == "" {
			return fmt.Errorf("remote.host is required")
		}
		if strings.TrimSpace(cfg.Remote.User) == "" {
			return fmt.Errorf("remote.user is required")
		}
	}
	return nil
}

// ForMode returns the config with the overrides for mode applied.
func (c DeployConfig) ForMode(mode Mode) DeployConfig {
	out := c
	ov, ok := c.Modes[string(mode)]
	if !ok {
		return out
	}
	if ov.AgentBinary != nil {
		out.AgentBinary = *ov.AgentBinary
	}
	if ov.AgentConfig != nil {
		out.AgentConfig = *ov.AgentConfig
	}
	if ov.DataRoot != nil {
		out.DataRoot = *ov.DataRoot
	}
	if ov.Unbuffered != nil {
		out.Unbuffered = *ov.Unbuffered
	}
	return out
}
