package config

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownMode = errors.New("config: unknown run mode")

// Mode selects the agent run profile. The token is passed to the agent
// process exactly as given; values outside this set are rejected, never
// silently replaced.
type Mode string

const (
	// ModeDev runs the agent with console logging and debug verbosity.
	ModeDev Mode = "dev"
	// ModeStart runs the agent with production JSON logging.
	ModeStart Mode = "start"
)

// DefaultMode is used only when no token was supplied at all.
const DefaultMode = ModeDev

// ParseMode validates a run-mode token against the closed set.
func ParseMode(raw string) (Mode, error) {
	switch mode := Mode(strings.TrimSpace(raw)); mode {
	case ModeDev, ModeStart:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrUnknownMode, raw, ModeDev, ModeStart)
	}
}

func (m Mode) String() string {
	return string(m)
}
