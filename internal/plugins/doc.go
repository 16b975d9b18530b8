// Package plugins installs the worker's pinned voice-pipeline plugins.
//
// Ownership boundary:
//   - plugins owns manifest/lock parsing, archive caching, and the
//     staged unpack into the plugins directory.
//   - plugins never resolves versions; the manifest pins everything and
//     the lockfile only records what was installed.
package plugins
