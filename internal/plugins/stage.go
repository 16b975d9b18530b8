package plugins

import "context"

// Stage installs the pinned plugin set. It satisfies the bootstrap stage
// contract.
type Stage struct {
	installer *Installer
}

// NewStage returns the stage for one installer.
func NewStage(installer *Installer) *Stage {
	return &Stage{installer: installer}
}

// Name identifies the stage in logs, metrics, and stage errors.
func (s *Stage) Name() string {
	return "language-plugins"
}

// Run converges the plugins directory; any fetch, digest, or unpack
// failure is fatal for the stage.
func (s *Stage) Run(ctx context.Context) error {
	_, err := s.installer.Install(ctx)
	return err
}
