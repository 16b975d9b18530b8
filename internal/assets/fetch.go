package assets

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// PartSuffix marks in-flight downloads. A .part file is never read as an
// asset; it is truncated and rewritten by the next attempt.
const PartSuffix = ".part"

const defaultMaxAttempts = 3

// Fetcher downloads single assets with retry and digest verification.
type Fetcher struct {
	Client      *http.Client
	Backoff     BackoffConfig
	MaxAttempts int

	rng *rand.Rand
}

// NewFetcher returns a fetcher with the default client and retry policy.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:      &http.Client{},
		Backoff:     DefaultBackoffConfig(),
		MaxAttempts: defaultMaxAttempts,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) attempts() int {
	if f.MaxAttempts > 0 {
		return f.MaxAttempts
	}
	return defaultMaxAttempts
}

// Fetch downloads one asset to dest, verifying digest and size before the
// final rename. It retries transient failures with backoff and returns the
// number of decoded bytes written.
func (f *Fetcher) Fetch(ctx context.Context, asset Asset, dest string) (int64, error) {
	want, err := asset.ParsedDigest()
	if err != nil {
		return 0, err
	}
	compression, err := asset.ParsedCompression()
	if err != nil {
		return 0, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.attempts(); attempt++ {
		if attempt > 1 {
			delay := NextBackoffDelay(f.Backoff, attempt, f.rng)
			log.Debug().Msgf("assets.Fetcher.Fetch retry name=%q attempt=%d delay=%s", asset.Name, attempt, delay)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(delay):
			}
		}
		n, err := f.fetchOnce(ctx, asset, dest, want, compression)
		if err == nil {
			return n, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, err
		}
		log.Warn().Msgf("assets.Fetcher.Fetch attempt failed name=%q attempt=%d err=%q", asset.Name, attempt, err)
	}
	return 0, fmt.Errorf("assets: fetch %q after %d attempts: %w", asset.Name, f.attempts(), lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, asset Asset, dest string, want Digest, compression Compression) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("assets: request %q: %w", asset.URL, err)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("assets: get %q: %w", asset.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("assets: get %q: unexpected status %s", asset.URL, resp.Status)
	}

	decoded, err := decodeReader(resp.Body, compression)
	if err != nil {
		return 0, err
	}
	defer decoded.Close()

	part := dest + PartSuffix
	out, err := os.OpenFile(part, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("assets: create %s: %w", part, err)
	}

	hasher := blake3.New()
	written, copyErr := io.Copy(io.MultiWriter(out, hasher), decoded)
	closeErr := out.Close()
	if copyErr != nil {
		return 0, fmt.Errorf("assets: write %s: %w", part, copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("assets: close %s: %w", part, closeErr)
	}

	var got Digest
	copy(got[:], hasher.Sum(nil))
	if got != want {
		return 0, fmt.Errorf("assets: digest mismatch for %q: got %s want %s", asset.Name, got, want)
	}
	if asset.Size > 0 && written != asset.Size {
		return 0, fmt.Errorf("assets: size mismatch for %q: got %d want %d", asset.Name, written, asset.Size)
	}

	if err := os.Rename(part, dest); err != nil {
		return 0, fmt.Errorf("assets: finalize %s: %w", dest, err)
	}
	return written, nil
}
