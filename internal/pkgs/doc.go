// Package pkgs installs the native OS packages the voice pipeline needs.
//
// Ownership boundary:
//   - pkgs owns manager detection, the per-manager install and query
//     command shapes, and post-install verification.
//   - pkgs never escalates privileges or edits manager configuration;
//     it runs whatever the CommandRunner gives it.
package pkgs
