// Package checkpoint remembers, per target account, the newest post seen by
// earlier runs so that incremental runs can stop listing at it.
//
// Checkpoints live in platform-specific data directories unless a directory
// is given:
//   - Linux: ~/.local/share/igtail/checkpoints/
//   - macOS: ~/Library/Application Support/igtail/checkpoints/
//   - Windows: %APPDATA%/igtail/checkpoints/
//
// Files are written atomically and carry a version number.
package checkpoint
