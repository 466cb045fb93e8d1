// Package media holds the supported media extension allowlist and the ffprobe
// inspection helpers used to validate inputs before transcription.
package media
