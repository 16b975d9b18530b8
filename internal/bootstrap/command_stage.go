package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/tools"
)

// CommandStage runs one external command as a pipeline stage. Child output
// streams through the runner unmodified, so the child's own buffering
// settings decide what the operator sees and when.
type CommandStage struct {
	name   string
	bin    string
	args   []string
	runner tools.StreamRunner
	stdout io.Writer
	stderr io.Writer
}

// NewCommandStage returns a stage that runs bin with args under name.
func NewCommandStage(name string, bin string, args []string, runner tools.StreamRunner) *CommandStage {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	return &CommandStage{
		name:   name,
		bin:    bin,
		args:   args,
		runner: runner,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// SetOutput redirects the child's streams. Used by tests.
func (s *CommandStage) SetOutput(stdout, stderr io.Writer) {
	s.stdout = stdout
	s.stderr = stderr
}

// Name identifies the stage in logs, metrics, and stage errors.
func (s *CommandStage) Name() string {
	return s.name
}

// Run executes the command and blocks until it exits. A nonzero child
// exit is a stage failure carrying the child's exit code.
func (s *CommandStage) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Info().Msgf("bootstrap.CommandStage.Run name=%q cmd=%s args=%q", s.name, s.bin, s.args)
	if err := s.runner.RunStreaming(s.bin, s.args, s.stdout, s.stderr); err != nil {
		return fmt.Errorf("bootstrap: command failed cmd=%s args=%q exit=%d: %w", s.bin, s.args, tools.ExitCode(err), err)
	}
	return nil
}
