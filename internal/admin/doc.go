// Package admin serves the voiced worker control surface: health,
// readiness, Prometheus metrics, skill and session inspection, skill
// invocation, and the WebSocket event stream.
//
// Mutating routes are gated by the static admin token when one is
// configured. The package depends on internal/agent, never the other
// way around.
package admin
