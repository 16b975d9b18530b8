// Package bootstrap drives the ordered environment-preparation pipeline
// that runs before the agent is launched.
//
// Ownership boundary:
//   - bootstrap owns stage ordering, fail-fast semantics, and the phase
//     state machine.
//   - the stages themselves live in pkgs, plugins, and assets; bootstrap
//     only sequences them.
package bootstrap
