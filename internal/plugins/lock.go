package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// LockFileName is written next to the installed plugins.
const LockFileName = "plugins.lock"

// LockEntry records one resolved plugin.
type LockEntry struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Digest  string `toml:"digest"`
}

// Lock is the resolved plugin set of the last successful install. The
// encoded form is sorted by name so equal inputs produce equal bytes.
type Lock struct {
	Version int         `toml:"version"`
	Plugins []LockEntry `toml:"plugin"`
}

// Entry returns the lock entry for name.
func (l Lock) Entry(name string) (LockEntry, bool) {
	for _, entry := range l.Plugins {
		if entry.Name == name {
			return entry, true
		}
	}
	return LockEntry{}, false
}

// LoadLock reads a lockfile; a missing file is an empty lock.
func LoadLock(path string) (Lock, error) {
	var lock Lock
	if _, err := toml.DecodeFile(path, &lock); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Lock{Version: 1}, nil
		}
		return Lock{}, fmt.Errorf("plugins: load lock %s: %w", path, err)
	}
	return lock, nil
}

// WriteLock encodes entries sorted by name and replaces path atomically.
func WriteLock(path string, entries []LockEntry) error {
	sorted := make([]LockEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(Lock{Version: 1, Plugins: sorted}); err != nil {
		return fmt.Errorf("plugins: encode lock: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("plugins: write lock %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("plugins: finalize lock %s: %w", path, err)
	}
	return nil
}
