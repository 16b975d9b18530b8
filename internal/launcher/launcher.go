package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/karsk/voicectl/internal/bootstrap"
	"github.com/karsk/voicectl/internal/config"
	"github.com/karsk/voicectl/internal/logging"
)

var (
	ErrBinaryNotFound      = errors.New("launcher: agent binary not found")
	ErrBinaryNotExecutable = errors.New("launcher: agent binary not executable")
)

// ExecFunc replaces the process image. Nil means syscall.Exec; tests
// inject a capture function.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Preflight gates the handoff on bootstrap completion. The asset syncer's
// Verify satisfies it.
type Preflight interface {
	Verify() error
}

// Launcher hands the current process over to the agent binary. There is
// no supervision and no restart loop: after a successful exec the agent's
// exit status is the process's exit status.
type Launcher struct {
	Binary     string
	Mode       config.Mode
	Env        *config.Env
	Unbuffered bool
	Preflight  Preflight
	Exec       ExecFunc
}

// Launch validates the mode, runs the preflight, resolves the binary, and
// execs `<binary> <mode>` with the snapshot environment. With the default
// exec a successful launch never returns.
func (l *Launcher) Launch() error {
	mode, err := config.ParseMode(l.Mode.String())
	if err != nil {
		return err
	}
	if l.Preflight != nil {
		if err := l.Preflight.Verify(); err != nil {
			return fmt.Errorf("launcher: preflight: %w", err)
		}
	}
	path, err := ResolveBinary(l.Binary)
	if err != nil {
		return err
	}

	argv := []string{path, mode.String()}
	envv := l.environ()

	log.Info().Msgf("launcher.Launcher.Launch exec binary=%q mode=%q phase=%q", path, mode, bootstrap.PhaseAgentRunning)
	execFunction := l.Exec
	if execFunction == nil {
		execFunction = syscall.Exec
	}
	if err := execFunction(path, argv, envv); err != nil {
		return fmt.Errorf("launcher: exec %s: %w", path, err)
	}
	return nil
}

// environ builds the child environment from the snapshot. Host variables
// pass through unmodified; only the unbuffered flag is added on demand.
func (l *Launcher) environ() []string {
	var env []string
	if l.Env != nil {
		env = l.Env.Environ()
	} else {
		env = os.Environ()
	}
	if l.Unbuffered {
		env = setEnvVar(env, logging.EnvLogUnbuffered, "1")
	}
	return env
}

// ResolveBinary locates the agent binary: explicit paths are checked as
// given, bare names are looked up on PATH. The result must be a regular
// executable file.
func ResolveBinary(binary string) (string, error) {
	name := strings.TrimSpace(binary)
	if name == "" {
		return "", fmt.Errorf("%w: empty binary path", ErrBinaryNotFound)
	}

	path := name
	if !strings.ContainsRune(name, os.PathSeparator) {
		found, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrBinaryNotFound, name, err)
		}
		path = found
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrBinaryNotFound, path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrBinaryNotFound, abs, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q is not a regular file", ErrBinaryNotExecutable, abs)
	}
	if info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("%w: %q", ErrBinaryNotExecutable, abs)
	}
	return abs, nil
}

// setEnvVar replaces every existing assignment of key, appending when the
// variable is absent. The child image must not see conflicting duplicates.
func setEnvVar(env []string, key string, value string) []string {
	assignment := key + "=" + value
	prefix := key + "="
	replaced := false
	out := make([]string, 0, len(env)+1)
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			if !replaced {
				out = append(out, assignment)
				replaced = true
			}
			continue
		}
		out = append(out, entry)
	}
	if !replaced {
		out = append(out, assignment)
	}
	return out
}
