package pkgs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

var ErrManifestInvalid = errors.New("pkgs: invalid manifest")

type managerSet struct {
	Packages []string `toml:"packages"`
}

// Manifest pins the native packages per supported package manager. The
// names differ per manager (dpkg and apk split libraries differently), so
// each manager carries its own list.
type Manifest struct {
	Version int        `toml:"version"`
	Apt     managerSet `toml:"apt"`
	Apk     managerSet `toml:"apk"`
	Brew    managerSet `toml:"brew"`
}

// LoadManifest reads and validates a native package manifest.
func LoadManifest(path string) (Manifest, error) {
	var manifest Manifest
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("pkgs: load manifest %s: %w", path, err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("pkgs: manifest %s: %w", path, err)
	}
	return manifest, nil
}

// Validate checks the manifest before any install runs.
func (m Manifest) Validate() error {
	if m.Version != 1 {
		return fmt.Errorf("%w: unsupported version %d", ErrManifestInvalid, m.Version)
	}
	for _, set := range []struct {
		kind Kind
		list []string
	}{
		{KindApt, m.Apt.Packages},
		{KindApk, m.Apk.Packages},
		{KindBrew, m.Brew.Packages},
	} {
		seen := make(map[string]struct{}, len(set.list))
		for _, name := range set.list {
			trimmed := strings.TrimSpace(name)
			if trimmed == "" {
				return fmt.Errorf("%w: %s: empty package name", ErrManifestInvalid, set.kind)
			}
			if strings.ContainsAny(trimmed, " \t\n") {
				return fmt.Errorf("%w: %s: invalid package name %q", ErrManifestInvalid, set.kind, name)
			}
			if _, dup := seen[trimmed]; dup {
				return fmt.Errorf("%w: %s: duplicate package %q", ErrManifestInvalid, set.kind, trimmed)
			}
			seen[trimmed] = struct{}{}
		}
	}
	return nil
}

// PackagesFor returns the package list for one manager.
func (m Manifest) PackagesFor(kind Kind) []string {
	switch kind {
	case KindApt:
		return m.Apt.Packages
	case KindApk:
		return m.Apk.Packages
	case KindBrew:
		return m.Brew.Packages
	default:
		return nil
	}
}
