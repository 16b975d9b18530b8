// Package assets converges runtime model files onto a pinned manifest.
//
// Ownership boundary:
//   - assets owns manifest parsing, digest verification, and the
//     download/rename protocol for the assets directory.
//   - assets does not decide when to run; the bootstrap pipeline and the
//     worker's download-files command drive it.
package assets
