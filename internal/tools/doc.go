// Package tools provides command execution helpers shared by the
// bootstrap stages and the agent launcher.
//
// Ownership boundary:
// - command runner interfaces
//
// - local and remote (SSH) runner implementations
//
// - exit code extraction rules
package tools
