package skills

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultGoodbye is the closing line spoken when a call ends.
const DefaultGoodbye = "Thank you for calling. Have a great day! Goodbye!"

// SessionSkill controls call lifecycle: ending a session and reading
// its state. Ending only marks the session; the worker runtime owns the
// summary and teardown that follow.
type SessionSkill struct {
	goodbye string
}

// NewSessionSkill wires a lifecycle skill with the given goodbye line.
func NewSessionSkill(goodbye string) SessionSkill {
	resolved := strings.TrimSpace(goodbye)
	if resolved == "" {
		resolved = DefaultGoodbye
	}
	return SessionSkill{goodbye: resolved}
}

// Metadata provides stable identity and capability description.
func (s SessionSkill) Metadata() SkillMetadata {
	return SkillMetadata{
		ID:          "skill.session",
		Name:        "Call lifecycle",
		Description: "Ends calls and reports session state",
	}
}

// Operations lists the lifecycle operation catalog.
func (s SessionSkill) Operations() []OperationSpec {
	return []OperationSpec{
		{Name: "end", Description: "mark the call finished", Idempotent: true},
		{Name: "status", Description: "read session state", Idempotent: true},
	}
}

// Invoke dispatches one lifecycle operation.
func (s SessionSkill) Invoke(ctx context.Context, sess *Session, op string, args map[string]string) (SkillResult, error) {
	act := strings.TrimSpace(op)
	log.Debug().Msgf("skills.SessionSkill.Invoke op=%q session=%q", act, sess.ID())

	switch act {
	case "end":
		sess.MarkEnded()
		log.Info().Msgf("skills.SessionSkill.end session=%q turns=%d", sess.ID(), sess.TurnCount())
		return okResult(s.goodbye, map[string]string{"session": sess.ID()}), nil
	case "status":
		return okResult(
			fmt.Sprintf("Session %s: identified=%t turns=%d ended=%t",
				sess.ID(), sess.Identified(), sess.TurnCount(), sess.Ended()),
			map[string]string{
				"session":    sess.ID(),
				"identified": strconv.FormatBool(sess.Identified()),
				"turns":      strconv.Itoa(sess.TurnCount()),
				"ended":      strconv.FormatBool(sess.Ended()),
			},
		), nil
	default:
		log.Warn().Msgf("skills.SessionSkill.Invoke unknown op=%q", act)
		return SkillResult{
			Status:   "error",
			Response: fmt.Sprintf("unknown operation: %s", act),
			ExitCode: 64,
		}, ErrUnknownOperation
	}
}
