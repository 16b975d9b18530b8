package assets

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

var ErrManifestInvalid = errors.New("assets: invalid manifest")

// Asset is one manifest entry. Path is relative to the assets directory and
// names the decoded file; Digest and Size describe that decoded file, not
// the transport payload.
type Asset struct {
	Name        string `toml:"name"`
	Path        string `toml:"path"`
	URL         string `toml:"url"`
	Digest      string `toml:"digest"`
	Size        int64  `toml:"size"`
	Compression string `toml:"compression"`
}

// ParsedDigest returns the decoded digest of the entry.
func (a Asset) ParsedDigest() (Digest, error) {
	return ParseDigest(a.Digest)
}

// ParsedCompression returns the decoded transport encoding of the entry.
func (a Asset) ParsedCompression() (Compression, error) {
	return ParseCompression(a.Compression)
}

// Manifest is the full pinned asset set for one worker.
type Manifest struct {
	Version int     `toml:"version"`
	Assets  []Asset `toml:"asset"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (Manifest, error) {
	var manifest Manifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("assets: load manifest %s: %w", path, err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("assets: manifest %s: %w", path, err)
	}
	return manifest, nil
}

// Validate checks structural invariants before any asset is touched.
func (m Manifest) Validate() error {
	if m.Version != 1 {
		return fmt.Errorf("%w: unsupported version %d", ErrManifestInvalid, m.Version)
	}
	seen := make(map[string]struct{}, len(m.Assets))
	for i, asset := range m.Assets {
		if err := validateAsset(asset); err != nil {
			return fmt.Errorf("%w: asset[%d]: %v", ErrManifestInvalid, i, err)
		}
		if _, dup := seen[asset.Name]; dup {
			return fmt.Errorf("%w: duplicate asset name %q", ErrManifestInvalid, asset.Name)
		}
		seen[asset.Name] = struct{}{}
	}
	return nil
}

func validateAsset(asset Asset) error {
	if !isValidName(asset.Name) {
		return fmt.Errorf("invalid name %q", asset.Name)
	}
	if asset.Path == "" {
		return fmt.Errorf("asset %q: empty path", asset.Name)
	}
	if filepath.IsAbs(asset.Path) {
		return fmt.Errorf("asset %q: path %q must be relative", asset.Name, asset.Path)
	}
	clean := filepath.Clean(asset.Path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("asset %q: path %q escapes the assets directory", asset.Name, asset.Path)
	}
	u, err := url.Parse(asset.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("asset %q: invalid url %q", asset.Name, asset.URL)
	}
	if _, err := ParseDigest(asset.Digest); err != nil {
		return fmt.Errorf("asset %q: %v", asset.Name, err)
	}
	if asset.Size < 0 {
		return fmt.Errorf("asset %q: negative size %d", asset.Name, asset.Size)
	}
	if _, err := ParseCompression(asset.Compression); err != nil {
		return fmt.Errorf("asset %q: %v", asset.Name, err)
	}
	return nil
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
