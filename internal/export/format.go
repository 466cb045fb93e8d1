package export

import (
	"path/filepath"
	"strings"

	"filescribe/internal/services"
)

// Format is a transcript output format.
type Format string

const (
	FormatTXT      Format = "txt"
	FormatSRT      Format = "srt"
	FormatVTT      Format = "vtt"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
	FormatDOCX     Format = "docx"
	FormatPDF      Format = "pdf"
)

var allFormats = []Format{
	FormatTXT,
	FormatSRT,
	FormatVTT,
	FormatJSON,
	FormatMarkdown,
	FormatCSV,
	FormatHTML,
	FormatDOCX,
	FormatPDF,
}

var formatAliases = map[string]Format{
	"md":   FormatMarkdown,
	"text": FormatTXT,
}

// Formats lists every known format in display order.
func Formats() []Format {
	out := make([]Format, len(allFormats))
	copy(out, allFormats)
	return out
}

// ParseFormat resolves a format name or alias, ignoring case.
func ParseFormat(value string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(value))
	if alias, ok := formatAliases[name]; ok {
		return alias, nil
	}
	for _, f := range allFormats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", services.Wrap(services.ErrExport, "export", "parse format", "unsupported format "+value, nil)
}

// ExtensionFor returns the file extension, without a dot, used for format.
func ExtensionFor(format Format) string {
	if format == FormatMarkdown {
		return "md"
	}
	return string(format)
}

// NeedsRenderer reports whether format is produced by a pluggable renderer.
func NeedsRenderer(format Format) bool {
	return format == FormatDOCX || format == FormatPDF
}

// DefaultFileName derives an export file name from the source media path.
func DefaultFileName(sourcePath string, format Format) string {
	base := filepath.Base(strings.TrimSpace(sourcePath))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "transcript"
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "transcript"
	}
	return stem + "." + ExtensionFor(format)
}
