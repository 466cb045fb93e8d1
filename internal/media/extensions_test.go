package media_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"filescribe/internal/media"
)

func TestDefaultAllowlist(t *testing.T) {
	set := media.DefaultAllowlist()

	for _, path := range []string{"/in/a.wav", "/in/B.MP3", "clip.mkv", "talk.webm", "x.aiff"} {
		assert.Truef(t, set.Allowed(path), "expected %s to be allowed", path)
	}
	for _, path := range []string{"/in/notes.txt", "/in/noext", "/in/.wav.bak", ""} {
		assert.Falsef(t, set.Allowed(path), "expected %s to be rejected", path)
	}
	assert.Len(t, set.Extensions(), 17, "webm is shared between audio and video")
}

func TestNewExtensionSetNormalizes(t *testing.T) {
	set := media.NewExtensionSet([]string{".WAV", " flac ", ""})
	assert.Equal(t, []string{"flac", "wav"}, set.Extensions())
	assert.True(t, set.Allowed("song.Flac"))
	assert.False(t, set.Allowed("song.mp3"))
}

func TestNewExtensionSetEmptyFallsBackToDefault(t *testing.T) {
	set := media.NewExtensionSet(nil)
	assert.True(t, set.Allowed("a.mp4"))
}

func TestIsVideo(t *testing.T) {
	assert.True(t, media.IsVideo("a.MKV"))
	assert.False(t, media.IsVideo("a.webm"))
	assert.False(t, media.IsVideo("a.wav"))
}
