package pkgs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/tools"
)

var (
	ErrUnknownManager  = errors.New("pkgs: unknown package manager")
	ErrNoManager       = errors.New("pkgs: no supported package manager found")
	ErrPackagesMissing = errors.New("pkgs: packages missing after install")
)

// Kind names a supported package manager.
type Kind string

const (
	KindApt  Kind = "apt"
	KindApk  Kind = "apk"
	KindBrew Kind = "brew"
)

// ParseKind maps a config value onto the closed manager set.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindApt:
		return KindApt, nil
	case KindApk:
		return KindApk, nil
	case KindBrew:
		return KindBrew, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q, %q or %q)", ErrUnknownManager, raw, KindApt, KindApk, KindBrew)
	}
}

// DetectKind probes the runner for known manager binaries, in preference
// order. Probing through the runner keeps detection correct over SSH.
func DetectKind(runner tools.CommandRunner) (Kind, error) {
	probes := []struct {
		kind Kind
		name string
		args []string
	}{
		{KindApt, "apt-get", []string{"--version"}},
		{KindApk, "apk", []string{"--version"}},
		{KindBrew, "brew", []string{"--version"}},
	}
	for _, probe := range probes {
		_, _, exit, err := runner.Run(probe.name, probe.args...)
		if err == nil && exit == 0 {
			log.Debug().Msgf("pkgs.DetectKind found manager=%q", probe.kind)
			return probe.kind, nil
		}
	}
	return "", ErrNoManager
}

// Manager runs install and query commands for one package manager over the
// CommandRunner boundary.
type Manager struct {
	kind   Kind
	runner tools.CommandRunner
}

// NewManager returns a manager for kind backed by runner.
func NewManager(kind Kind, runner tools.CommandRunner) *Manager {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &Manager{kind: kind, runner: runner}
}

// Kind returns the manager kind.
func (m *Manager) Kind() Kind {
	return m.kind
}

// Install installs all packages in one non-interactive manager invocation.
// An empty list is a no-op.
func (m *Manager) Install(packages []string) error {
	if len(packages) == 0 {
		return nil
	}
	log.Info().Msgf("pkgs.Manager.Install manager=%q packages=%q", m.kind, packages)
	switch m.kind {
	case KindApt:
		if _, _, _, err := m.runner.Run("apt-get", "update"); err != nil {
			return fmt.Errorf("pkgs: apt-get update: %w", err)
		}
		args := append([]string{"install", "-y", "--no-install-recommends"}, packages...)
		if _, _, _, err := m.runner.Run("apt-get", args...); err != nil {
			return fmt.Errorf("pkgs: apt-get install: %w", err)
		}
	case KindApk:
		args := append([]string{"add", "--no-cache"}, packages...)
		if _, _, _, err := m.runner.Run("apk", args...); err != nil {
			return fmt.Errorf("pkgs: apk add: %w", err)
		}
	case KindBrew:
		args := append([]string{"install"}, packages...)
		if _, _, _, err := m.runner.Run("brew", args...); err != nil {
			return fmt.Errorf("pkgs: brew install: %w", err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownManager, m.kind)
	}
	return nil
}

// Check reports whether one package is installed. A nonzero query exit
// means not installed; a missing query binary is an error.
func (m *Manager) Check(pkg string) (bool, error) {
	var (
		name string
		args []string
	)
	switch m.kind {
	case KindApt:
		name, args = "dpkg", []string{"-s", pkg}
	case KindApk:
		name, args = "apk", []string{"info", "-e", pkg}
	case KindBrew:
		name, args = "brew", []string{"list", "--versions", pkg}
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownManager, m.kind)
	}
	_, _, exit, err := m.runner.Run(name, args...)
	if exit == 0 && err == nil {
		return true, nil
	}
	if exit == 127 {
		return false, fmt.Errorf("pkgs: query binary missing for %q: %w", m.kind, err)
	}
	return false, nil
}

// VerifyAll checks every package and fails when any is absent.
func (m *Manager) VerifyAll(packages []string) error {
	var missing []string
	for _, pkg := range packages {
		installed, err := m.Check(pkg)
		if err != nil {
			return err
		}
		if !installed {
			missing = append(missing, pkg)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: manager=%q missing=%q", ErrPackagesMissing, m.kind, missing)
	}
	return nil
}
