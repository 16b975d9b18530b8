package pkgs

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Stage installs and verifies the native package set. It satisfies the
// bootstrap stage contract.
type Stage struct {
	manager  *Manager
	packages []string
}

// NewStage returns the stage for one manager and package list.
func NewStage(manager *Manager, packages []string) *Stage {
	return &Stage{manager: manager, packages: packages}
}

// Name identifies the stage in logs, metrics, and stage errors.
func (s *Stage) Name() string {
	return "native-packages"
}

// Run installs every package, then requires every package to report
// installed. Verification failure is fatal for the stage.
func (s *Stage) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(s.packages) == 0 {
		log.Info().Msgf("pkgs.Stage.Run manager=%q nothing to install", s.manager.Kind())
		return nil
	}
	if err := s.manager.Install(s.packages); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.manager.VerifyAll(s.packages)
}
