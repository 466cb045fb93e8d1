// Package ffprobe wraps the ffprobe CLI so the recognizer can confirm a file
// carries an audio stream and learn its duration before transcription starts.
package ffprobe
