package tools

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
)

// CommandRunner abstracts shell command execution for bootstrap stages.
type CommandRunner interface {
	Run(name string, args ...string) ([]byte, []byte, int32, error)
}

// StreamRunner executes a command with output forwarded as it is produced.
// Implementations must not buffer between the child process and the writers.
type StreamRunner interface {
	RunStreaming(name string, args []string, stdout, stderr io.Writer) error
}

// ExecRunner executes commands on the local host. ExtraEnv entries are
// appended to the inherited environment for every command.
type ExecRunner struct {
	ExtraEnv []string
}

// tools command-runner implementation backed by os/exec.
func (r ExecRunner) Run(name string, args ...string) ([]byte, []byte, int32, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = r.environ()
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), int32(exitErr.ExitCode()), err
	}

	exitCode := int32(1)
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = 127
	}
	return stdout.Bytes(), stderr.Bytes(), exitCode, err
}

// tools streaming runner with child output wired directly to the writers.
func (r ExecRunner) RunStreaming(name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.Command(name, args...)
	cmd.Env = r.environ()
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if stderr != nil {
		cmd.Stderr = stderr
	}
	return cmd.Run()
}

func (r ExecRunner) environ() []string {
	if len(r.ExtraEnv) == 0 {
		return nil
	}
	return append(os.Environ(), r.ExtraEnv...)
}

// ExitCode extracts the process exit code from a Run or RunStreaming error.
// Missing binaries map to 127, other non-exit failures to 1.
func ExitCode(err error) int32 {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return int32(exitErr.ExitCode())
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return 127
	}
	return 1
}
