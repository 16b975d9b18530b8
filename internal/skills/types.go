package skills

import "context"

// SkillMetadata is the contract for skill identity and display data.
type SkillMetadata struct {
	ID          string
	Name        string
	Description string
}

// SkillResult is the deterministic outcome of one skill operation.
// Response is the line spoken back to the caller; Data carries structured
// details for the admin surface and event stream.
type SkillResult struct {
	Status   string
	Response string
	Data     map[string]string
	ExitCode int32
}

// OperationSpec defines one supported skill operation.
type OperationSpec struct {
	Name        string
	Description string
	Idempotent  bool
}

// Skill is the operation boundary used by worker-local dispatch.
type Skill interface {
	Metadata() SkillMetadata
	Operations() []OperationSpec
	Invoke(ctx context.Context, session *Session, op string, args map[string]string) (SkillResult, error)
}
