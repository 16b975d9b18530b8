package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel      = "VOICED_LOG_LEVEL"
	EnvLogTimestamp  = "VOICED_LOG_TIMESTAMP"
	EnvLogNoColor    = "VOICED_LOG_NOCOLOR"
	EnvLogUnbuffered = "VOICED_LOG_UNBUFFERED"
)

type Profile int

const (
	ProfileDev Profile = iota
	ProfileStart
	ProfileTest
)

// Config is the resolved logging setup applied to the global logger.
type Config struct {
	Level      zerolog.Level
	Timestamp  bool
	NoColor    bool
	Console    bool
	Unbuffered bool
}

var configureOnce sync.Once

func ConfigureDev() {
	Configure(ProfileDev)
}

func ConfigureStart() {
	Configure(ProfileStart)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := defaultConfig(profile)
		applyEnvOverrides(&cfg)
		Apply(cfg)
	})
}

// Apply installs cfg on the zerolog global logger. Configure is the
// normal entrypoint; Apply exists for callers that already resolved a
// config, and applies unconditionally.
func Apply(cfg Config) {
	sink := NewWriter(os.Stdout, cfg.Unbuffered)
	writer := sink
	if cfg.Console {
		writer = zerolog.ConsoleWriter{
			Out:        sink,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}

	logger := zerolog.New(writer)
	if cfg.Timestamp {
		logger = logger.With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(cfg.Level)
	log.Logger = logger
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileDev:
		return Config{
			Level:      zerolog.DebugLevel,
			Timestamp:  true,
			Console:    true,
			Unbuffered: true,
		}
	case ProfileTest:
		return Config{
			Level:      zerolog.DebugLevel,
			Timestamp:  false,
			NoColor:    true,
			Console:    true,
			Unbuffered: true,
		}
	default:
		return Config{
			Level:     zerolog.InfoLevel,
			Timestamp: true,
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogUnbuffered)); ok {
		cfg.Unbuffered = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
