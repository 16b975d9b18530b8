// Package agent runs the voiced worker: session lifecycle, skill
// dispatch, event fan-out, and the heartbeat loop the process lives in.
//
// Ownership boundary:
//   - session creation, lookup, and end-of-call summaries
//   - tool_call and conversation_summary event broadcast
//   - worker readiness probes and health snapshots
//
// Out of scope:
//   - skill behavior (internal/skills)
//   - the HTTP/WebSocket admin surface (internal/admin)
package agent
