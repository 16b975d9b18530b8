package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/observability"
)

var (
	ErrAssetsIncomplete = errors.New("assets: asset set incomplete")
	ErrPathEscapes      = errors.New("assets: destination escapes assets directory")
)

// Syncer converges an assets directory onto a manifest. Present-and-valid
// entries are skipped, everything else is fetched; the first exhausted
// asset aborts the run so a later pass can resume from the debris.
type Syncer struct {
	manifest Manifest
	dir      string
	fetcher  *Fetcher
}

// NewSyncer loads the manifest at manifestPath and targets dir.
func NewSyncer(manifestPath string, dir string) (*Syncer, error) {
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return NewSyncerWithManifest(manifest, dir)
}

// NewSyncerWithManifest wraps an already-validated manifest.
func NewSyncerWithManifest(manifest Manifest, dir string) (*Syncer, error) {
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("assets: resolve dir %q: %w", dir, err)
	}
	return &Syncer{manifest: manifest, dir: abs, fetcher: NewFetcher()}, nil
}

// SetFetcher overrides the default fetcher. Used by tests and callers that
// need a custom HTTP client.
func (s *Syncer) SetFetcher(f *Fetcher) {
	if f != nil {
		s.fetcher = f
	}
}

// SyncStats summarizes one Sync run.
type SyncStats struct {
	Fetched int
	Skipped int
	Bytes   int64
}

// Sync brings the assets directory up to the manifest. It is idempotent:
// a run over a complete directory fetches nothing.
func (s *Syncer) Sync(ctx context.Context) (SyncStats, error) {
	var stats SyncStats
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return stats, fmt.Errorf("assets: create dir %s: %w", s.dir, err)
	}
	for _, asset := range s.manifest.Assets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		dest, err := s.destPath(asset)
		if err != nil {
			return stats, err
		}
		if s.assetValid(asset, dest) {
			stats.Skipped++
			observability.RecordAssetDownload("skipped", 0)
			log.Debug().Msgf("assets.Syncer.Sync skip name=%q path=%q", asset.Name, asset.Path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return stats, fmt.Errorf("assets: create dir for %q: %w", asset.Name, err)
		}
		log.Info().Msgf("assets.Syncer.Sync fetch name=%q url=%q", asset.Name, asset.URL)
		n, err := s.fetcher.Fetch(ctx, asset, dest)
		if err != nil {
			observability.RecordAssetDownload("failed", 0)
			return stats, fmt.Errorf("assets: sync %q: %w", asset.Name, err)
		}
		stats.Fetched++
		stats.Bytes += n
		observability.RecordAssetDownload("fetched", n)
	}
	log.Info().Msgf("assets.Syncer.Sync done fetched=%d skipped=%d bytes=%d", stats.Fetched, stats.Skipped, stats.Bytes)
	return stats, nil
}

// Verify reports whether every manifest entry is present with the pinned
// digest. It never touches the network.
func (s *Syncer) Verify() error {
	var missing, mismatched []string
	for _, asset := range s.manifest.Assets {
		dest, err := s.destPath(asset)
		if err != nil {
			return err
		}
		if _, err := os.Stat(dest); err != nil {
			missing = append(missing, asset.Name)
			continue
		}
		if !s.assetValid(asset, dest) {
			mismatched = append(mismatched, asset.Name)
		}
	}
	if len(missing) == 0 && len(mismatched) == 0 {
		return nil
	}
	return fmt.Errorf("%w: missing=%v mismatched=%v", ErrAssetsIncomplete, missing, mismatched)
}

// Dir returns the absolute assets directory.
func (s *Syncer) Dir() string {
	return s.dir
}

func (s *Syncer) destPath(asset Asset) (string, error) {
	dest := filepath.Join(s.dir, asset.Path)
	if !isWithin(dest, s.dir) {
		return "", fmt.Errorf("%w: name=%q path=%q", ErrPathEscapes, asset.Name, asset.Path)
	}
	return dest, nil
}

func (s *Syncer) assetValid(asset Asset, dest string) bool {
	info, err := os.Stat(dest)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if asset.Size > 0 && info.Size() != asset.Size {
		return false
	}
	want, err := asset.ParsedDigest()
	if err != nil {
		return false
	}
	got, err := DigestFile(dest)
	if err != nil {
		return false
	}
	return got == want
}

func isWithin(path string, root string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, ".."+string(os.PathSeparator)) && rel != "..")
}
