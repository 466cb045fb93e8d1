package export

import (
	"os"
	"path/filepath"
	"strings"

	"filescribe/internal/fileutil"
	"filescribe/internal/services"
)

// WriteFile atomically writes data to dir/name and returns the final path.
// The directory is created when missing.
func WriteFile(dir, name string, data []byte) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || filepath.Base(name) != name {
		return "", services.Wrap(services.ErrExport, "export", "write", "invalid file name "+name, nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrExport, "export", "write", "create "+dir, err)
	}
	target := filepath.Join(dir, name)
	if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
		return "", services.Wrap(services.ErrExport, "export", "write", target, err)
	}
	return target, nil
}
