package media

import (
	"path/filepath"
	"slices"
	"strings"
)

// AudioExtensions lists the built-in audio container extensions.
var AudioExtensions = []string{"mp3", "wav", "m4a", "ogg", "opus", "flac", "aac", "wma", "aiff", "webm"}

// VideoExtensions lists the built-in video container extensions.
var VideoExtensions = []string{"mp4", "mov", "avi", "mkv", "webm", "m4v", "wmv", "flv"}

// Allowlist answers whether a path carries a supported extension. It is
// consulted by both manual enqueue and watch-folder filtering.
type Allowlist interface {
	Allowed(path string) bool
	Extensions() []string
}

// ExtensionSet is an immutable Allowlist keyed by lower-case extension without the dot.
type ExtensionSet struct {
	exts map[string]struct{}
}

// DefaultAllowlist returns the built-in audio and video extension set.
func DefaultAllowlist() *ExtensionSet {
	return NewExtensionSet(append(append([]string{}, AudioExtensions...), VideoExtensions...))
}

// NewExtensionSet builds an allowlist from the given extensions. Leading dots
// and case are ignored. An empty list yields the default set.
func NewExtensionSet(exts []string) *ExtensionSet {
	set := &ExtensionSet{exts: make(map[string]struct{}, len(exts))}
	for _, ext := range exts {
		ext = normalizeExt(ext)
		if ext != "" {
			set.exts[ext] = struct{}{}
		}
	}
	if len(set.exts) == 0 {
		return DefaultAllowlist()
	}
	return set
}

// Allowed reports whether path has an extension in the set.
func (s *ExtensionSet) Allowed(path string) bool {
	if s == nil {
		return false
	}
	ext := normalizeExt(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := s.exts[ext]
	return ok
}

// Extensions returns the sorted extension list.
func (s *ExtensionSet) Extensions() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.exts))
	for ext := range s.exts {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// IsVideo reports whether path has a built-in video extension. webm counts as
// audio since it is listed there first.
func IsVideo(path string) bool {
	ext := normalizeExt(filepath.Ext(path))
	return slices.Contains(VideoExtensions, ext) && !slices.Contains(AudioExtensions, ext)
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
