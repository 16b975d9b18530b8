// Package launcher performs the terminal exec handoff to the agent.
//
// Ownership boundary:
//   - launcher owns binary resolution, the bootstrap-complete preflight,
//     and argv/environment construction for exec(2).
//   - launcher never supervises the agent; once exec succeeds the
//     orchestrator is gone.
package launcher
