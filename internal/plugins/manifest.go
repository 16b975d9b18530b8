package plugins

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/karsk/voicectl/internal/assets"
)

var (
	ErrManifestInvalid    = errors.New("plugins: invalid manifest")
	ErrArchiveUnsupported = errors.New("plugins: unsupported archive format")
)

// Well-known plugin kinds. The field is open so a manifest can introduce
// new pipeline roles without a code change.
const (
	KindSTT          = "stt"
	KindTTS          = "tts"
	KindVAD          = "vad"
	KindTurnDetector = "turn-detector"
)

// Plugin is one pinned entry: a versioned archive unpacked into the
// plugins directory. Digest and Size describe the archive bytes.
type Plugin struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Kind    string `toml:"kind"`
	URL     string `toml:"url"`
	Digest  string `toml:"digest"`
	Size    int64  `toml:"size"`
}

// Manifest is the pinned plugin set. It is the single source of truth for
// stage 2; nothing is resolved at install time.
type Manifest struct {
	Version int      `toml:"version"`
	Plugins []Plugin `toml:"plugin"`
}

// LoadManifest reads and validates a plugin manifest file.
func LoadManifest(path string) (Manifest, error) {
	var manifest Manifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("plugins: load manifest %s: %w", path, err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("plugins: manifest %s: %w", path, err)
	}
	return manifest, nil
}

// Validate checks structural invariants before any plugin is touched.
func (m Manifest) Validate() error {
	if m.Version != 1 {
		return fmt.Errorf("%w: unsupported version %d", ErrManifestInvalid, m.Version)
	}
	seen := make(map[string]struct{}, len(m.Plugins))
	for i, plugin := range m.Plugins {
		if err := validatePlugin(plugin); err != nil {
			return fmt.Errorf("%w: plugin[%d]: %v", ErrManifestInvalid, i, err)
		}
		if _, dup := seen[plugin.Name]; dup {
			return fmt.Errorf("%w: duplicate plugin name %q", ErrManifestInvalid, plugin.Name)
		}
		seen[plugin.Name] = struct{}{}
	}
	return nil
}

func validatePlugin(plugin Plugin) error {
	if !isValidName(plugin.Name) {
		return fmt.Errorf("invalid name %q", plugin.Name)
	}
	if strings.TrimSpace(plugin.Version) == "" {
		return fmt.Errorf("plugin %q: empty version", plugin.Name)
	}
	if plugin.Kind != "" && !isValidName(plugin.Kind) {
		return fmt.Errorf("plugin %q: invalid kind %q", plugin.Name, plugin.Kind)
	}
	u, err := url.Parse(plugin.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("plugin %q: invalid url %q", plugin.Name, plugin.URL)
	}
	if _, err := formatForURL(plugin.URL); err != nil {
		return fmt.Errorf("plugin %q: %v", plugin.Name, err)
	}
	if _, err := assets.ParseDigest(plugin.Digest); err != nil {
		return fmt.Errorf("plugin %q: %v", plugin.Name, err)
	}
	if plugin.Size < 0 {
		return fmt.Errorf("plugin %q: negative size %d", plugin.Name, plugin.Size)
	}
	return nil
}

type archiveFormat string

const (
	archiveTarGz  archiveFormat = "tar.gz"
	archiveTarZst archiveFormat = "tar.zst"
)

func formatForURL(rawURL string) (archiveFormat, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrArchiveUnsupported, rawURL)
	}
	path := strings.ToLower(u.Path)
	switch {
	case strings.HasSuffix(path, ".tar.gz"), strings.HasSuffix(path, ".tgz"):
		return archiveTarGz, nil
	case strings.HasSuffix(path, ".tar.zst"):
		return archiveTarZst, nil
	default:
		return "", fmt.Errorf("%w: %q (want .tar.gz, .tgz or .tar.zst)", ErrArchiveUnsupported, rawURL)
	}
}

func isValidName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		isSep := c == '.' || c == '-' || c == '_'
		if !(isLower || isDigit || isSep) {
			return false
		}
		if i == 0 || i == len(name)-1 {
			if isSep {
				return false
			}
		}
		if isSep && lastSep {
			return false
		}
		lastSep = isSep
	}
	return true
}
