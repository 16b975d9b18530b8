package agent

import (
	"fmt"
	"strings"

	"github.com/karsk/voicectl/internal/skills"
)

const summaryTurnLimit = 10

// conversationSummary renders the transcript tail as one line per turn.
func conversationSummary(turns []skills.Turn) string {
	if len(turns) == 0 {
		return "No conversation history available."
	}
	if len(turns) > summaryTurnLimit {
		turns = turns[len(turns)-summaryTurnLimit:]
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Text))
	}
	return strings.Join(lines, "\n")
}
