// Package skills defines the worker-local operation surface invoked on
// behalf of a caller: a registry of skills, per-call session state, and
// the predefined booking and lifecycle skills.
//
// Ownership boundary:
//   - skill identity, operation catalogs, and invocation results
//   - per-session caller state and transcript
//   - registry validation and deterministic listing
//
// Out of scope:
//   - session creation and event fan-out (worker runtime)
//   - appointment persistence (booking store)
package skills
