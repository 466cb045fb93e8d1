package testsupport

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// mediaMagic holds the leading bytes of the containers tests drop into
// queues and watch folders.
var mediaMagic = map[string][]byte{
	".wav":  []byte("RIFF\x00\x00\x00\x00WAVEfmt "),
	".mp3":  []byte("ID3\x04\x00\x00\x00\x00\x00\x00"),
	".flac": []byte("fLaC"),
	".ogg":  []byte("OggS"),
	".m4a":  []byte("\x00\x00\x00\x18ftypM4A "),
	".mp4":  []byte("\x00\x00\x00\x18ftypisom"),
}

// MediaHeader returns the container magic for path's extension, or nil when
// the extension is not a known media type.
func MediaHeader(path string) []byte {
	magic, ok := mediaMagic[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil
	}
	return append([]byte(nil), magic...)
}

// WriteFile creates a media-shaped file of exactly size bytes: the header for
// the path's extension followed by silent payload. The header is cut short
// when size is smaller. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}

	data := make([]byte, size)
	header := MediaHeader(path)
	if strings.EqualFold(filepath.Ext(path), ".wav") && size >= 8 {
		binary.LittleEndian.PutUint32(header[4:8], uint32(size-8))
	}
	copy(data, header)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
