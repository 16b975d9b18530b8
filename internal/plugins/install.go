package plugins

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/assets"
)

var (
	ErrSandboxViolation  = errors.New("plugins: archive entry escapes plugin directory")
	ErrEntryUnsupported  = errors.New("plugins: unsupported archive entry")
	ErrPluginsIncomplete = errors.New("plugins: directory does not match manifest")
)

const cacheDirName = ".cache"

// InstallerConfig configures a plugin installer rooted at Dir.
type InstallerConfig struct {
	ManifestPath string
	Dir          string
	Fetcher      *assets.Fetcher
}

// Installer converges the plugins directory onto a pinned manifest.
// Archives are cached under Dir/.cache and unpacked via a staging
// directory, so a crash mid-install never leaves a half-written plugin
// under its final name.
type Installer struct {
	manifest Manifest
	dir      string
	cacheDir string
	fetcher  *assets.Fetcher
}

// NewInstaller loads the manifest at cfg.ManifestPath and targets cfg.Dir.
func NewInstaller(cfg InstallerConfig) (*Installer, error) {
	manifest, err := LoadManifest(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	return NewInstallerWithManifest(manifest, cfg.Dir, cfg.Fetcher)
}

// NewInstallerWithManifest wraps an already-validated manifest.
func NewInstallerWithManifest(manifest Manifest, dir string, fetcher *assets.Fetcher) (*Installer, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("plugins: resolve dir %q: %w", dir, err)
	}
	if fetcher == nil {
		fetcher = assets.NewFetcher()
	}
	return &Installer{
		manifest: manifest,
		dir:      abs,
		cacheDir: filepath.Join(abs, cacheDirName),
		fetcher:  fetcher,
	}, nil
}

// InstallStats summarizes one Install run.
type InstallStats struct {
	Installed int
	Skipped   int
}

// Install brings the plugins directory up to the manifest and rewrites the
// lockfile. Plugins already recorded in the lock with a matching digest and
// an existing directory are not re-fetched, so a second run over the same
// manifest is a no-op with an identical lockfile.
func (i *Installer) Install(ctx context.Context) (InstallStats, error) {
	var stats InstallStats
	if err := os.MkdirAll(i.cacheDir, 0o755); err != nil {
		return stats, fmt.Errorf("plugins: create cache dir: %w", err)
	}

	lockPath := filepath.Join(i.dir, LockFileName)
	lock, err := LoadLock(lockPath)
	if err != nil {
		return stats, err
	}

	entries := make([]LockEntry, 0, len(i.manifest.Plugins))
	for _, plugin := range i.manifest.Plugins {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		dest := filepath.Join(i.dir, plugin.Name)
		if i.installed(lock, plugin, dest) {
			stats.Skipped++
			entries = append(entries, LockEntry{Name: plugin.Name, Version: plugin.Version, Digest: plugin.Digest})
			log.Debug().Msgf("plugins.Installer.Install skip name=%q version=%q", plugin.Name, plugin.Version)
			continue
		}
		if err := i.installOne(ctx, plugin, dest); err != nil {
			return stats, fmt.Errorf("plugins: install %q: %w", plugin.Name, err)
		}
		stats.Installed++
		entries = append(entries, LockEntry{Name: plugin.Name, Version: plugin.Version, Digest: plugin.Digest})
	}

	if err := WriteLock(lockPath, entries); err != nil {
		return stats, err
	}
	log.Info().Msgf("plugins.Installer.Install done installed=%d skipped=%d", stats.Installed, stats.Skipped)
	return stats, nil
}

func (i *Installer) installed(lock Lock, plugin Plugin, dest string) bool {
	entry, ok := lock.Entry(plugin.Name)
	if !ok || entry.Digest != plugin.Digest || entry.Version != plugin.Version {
		return false
	}
	info, err := os.Stat(dest)
	return err == nil && info.IsDir()
}

// Verify reports whether every manifest plugin is present per the lock
// file. Nothing is fetched or written.
func (i *Installer) Verify() error {
	lock, err := LoadLock(filepath.Join(i.dir, LockFileName))
	if err != nil {
		return err
	}
	var missing []string
	for _, plugin := range i.manifest.Plugins {
		if !i.installed(lock, plugin, filepath.Join(i.dir, plugin.Name)) {
			missing = append(missing, plugin.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing=%q", ErrPluginsIncomplete, missing)
	}
	return nil
}

func (i *Installer) installOne(ctx context.Context, plugin Plugin, dest string) error {
	format, err := formatForURL(plugin.URL)
	if err != nil {
		return err
	}
	archivePath, err := i.fetchArchive(ctx, plugin, format)
	if err != nil {
		return err
	}

	staging := filepath.Join(i.dir, ".stage-"+plugin.Name)
	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("clear staging: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging: %w", err)
	}
	if err := unpackArchive(archivePath, format, staging); err != nil {
		os.RemoveAll(staging)
		return err
	}
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clear destination: %w", err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("finalize %s: %w", dest, err)
	}
	log.Info().Msgf("plugins.Installer.installOne installed name=%q version=%q kind=%q", plugin.Name, plugin.Version, plugin.Kind)
	return nil
}

// fetchArchive returns the path of a digest-verified archive, downloading
// only when the cache copy is absent or stale.
func (i *Installer) fetchArchive(ctx context.Context, plugin Plugin, format archiveFormat) (string, error) {
	want, err := assets.ParseDigest(plugin.Digest)
	if err != nil {
		return "", err
	}
	archivePath := filepath.Join(i.cacheDir, fmt.Sprintf("%s-%s.%s", plugin.Name, plugin.Version, format))
	if got, err := assets.DigestFile(archivePath); err == nil && got == want {
		return archivePath, nil
	}
	_, err = i.fetcher.Fetch(ctx, assets.Asset{
		Name:   plugin.Name,
		Path:   filepath.Base(archivePath),
		URL:    plugin.URL,
		Digest: plugin.Digest,
		Size:   plugin.Size,
	}, archivePath)
	if err != nil {
		return "", err
	}
	return archivePath, nil
}

func unpackArchive(archivePath string, format archiveFormat, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var decoded io.ReadCloser
	switch format {
	case archiveTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		decoded = gz
	case archiveTarZst:
		dec, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("zstd reader: %w", err)
		}
		decoded = dec.IOReadCloser()
	default:
		return fmt.Errorf("%w: %q", ErrArchiveUnsupported, format)
	}
	defer decoded.Close()

	tr := tar.NewReader(decoded)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		target := filepath.Join(dest, header.Name)
		if !isWithin(target, dest) {
			return fmt.Errorf("%w: %q", ErrSandboxViolation, header.Name)
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("unpack dir %q: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("unpack parent %q: %w", header.Name, err)
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, header.FileInfo().Mode().Perm())
			if err != nil {
				return fmt.Errorf("unpack create %q: %w", header.Name, err)
			}
			_, copyErr := io.Copy(out, tr)
			closeErr := out.Close()
			if copyErr != nil {
				return fmt.Errorf("unpack write %q: %w", header.Name, copyErr)
			}
			if closeErr != nil {
				return fmt.Errorf("unpack close %q: %w", header.Name, closeErr)
			}
		default:
			return fmt.Errorf("%w: %q (type %d)", ErrEntryUnsupported, header.Name, header.Typeflag)
		}
	}
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}
