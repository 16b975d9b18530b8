package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/karsk/voicectl/internal/logging"
)

const (
	EnvDataRoot = "VOICED_DATA_ROOT"
)

// Env is the process environment snapshot taken once at startup. Stages
// and the launcher receive it by pointer and never re-read the ambient
// environment; fields are not mutated after capture.
type Env struct {
	environ []string

	// Unbuffered mirrors VOICED_LOG_UNBUFFERED at capture time.
	Unbuffered bool
	// LogLevel mirrors VOICED_LOG_LEVEL, empty when unset.
	LogLevel string
	// DataRoot mirrors VOICED_DATA_ROOT, empty when unset.
	DataRoot string
}

// CaptureEnv snapshots the current process environment.
func CaptureEnv() *Env {
	env := &Env{environ: os.Environ()}
	env.Unbuffered = boolVar(env.Get(logging.EnvLogUnbuffered))
	env.LogLevel = env.Get(logging.EnvLogLevel)
	env.DataRoot = env.Get(EnvDataRoot)
	return env
}

// Environ returns a copy of the captured environment in key=value form.
func (e *Env) Environ() []string {
	out := make([]string, len(e.environ))
	copy(out, e.environ)
	return out
}

// Get returns the captured value for key, empty when unset.
func (e *Env) Get(key string) string {
	prefix := key + "="
	for i := len(e.environ) - 1; i >= 0; i-- {
		if strings.HasPrefix(e.environ[i], prefix) {
			return e.environ[i][len(prefix):]
		}
	}
	return ""
}

// Lookup reports the captured value for key and whether it was set.
func (e *Env) Lookup(key string) (string, bool) {
	prefix := key + "="
	for i := len(e.environ) - 1; i >= 0; i-- {
		if strings.HasPrefix(e.environ[i], prefix) {
			return e.environ[i][len(prefix):], true
		}
	}
	return "", false
}

// SnapshotEnv builds an Env from an explicit key=value list, for tests
// and for constructing launch environments without touching the host.
func SnapshotEnv(environ []string) *Env {
	env := &Env{environ: append([]string(nil), environ...)}
	env.Unbuffered = boolVar(env.Get(logging.EnvLogUnbuffered))
	env.LogLevel = env.Get(logging.EnvLogLevel)
	env.DataRoot = env.Get(EnvDataRoot)
	return env
}

func boolVar(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return v
}
