package bootstrap

// Phase is the bootstrap state machine. Phases only advance; any stage
// failure moves to PhaseFailed and the run is over.
type Phase string

const (
	PhaseUninitialized     Phase = "uninitialized"
	PhaseNativeReady       Phase = "native_ready"
	PhaseDepsReady         Phase = "deps_ready"
	PhaseBootstrapComplete Phase = "bootstrap_complete"
	PhaseAgentRunning      Phase = "agent_running"
	PhaseFailed            Phase = "failed"
)

// Terminal reports whether no further phase transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseFailed || p == PhaseAgentRunning
}
