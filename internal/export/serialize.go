package export

import (
	"errors"
	"fmt"

	"filescribe/internal/services"
	"filescribe/internal/transcript"
)

// ErrRendererRequired reports a format that needs a registered Renderer.
var ErrRendererRequired = services.Wrap(services.ErrExport, "export", "render", "format requires an external renderer", nil)

// Option configures a Serializer.
type Option func(*Serializer)

// WithRenderer registers a renderer for a binary format.
func WithRenderer(format Format, r Renderer) Option {
	return func(s *Serializer) {
		if r != nil {
			s.renderers[format] = r
		}
	}
}

// Serializer converts transcripts into export formats. It holds no state
// beyond its renderers and is safe for concurrent use.
type Serializer struct {
	renderers map[Format]Renderer
}

// NewSerializer builds a serializer with the given renderers.
func NewSerializer(opts ...Option) *Serializer {
	s := &Serializer{renderers: make(map[Format]Renderer)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultSerializer = NewSerializer()

// Serialize converts a transcript using the default serializer, which has no
// renderers registered.
func Serialize(text string, format Format, segments []transcript.Segment, meta Metadata) ([]byte, error) {
	return defaultSerializer.Serialize(text, format, segments, meta)
}

// Serialize converts a transcript into format.
func (s *Serializer) Serialize(text string, format Format, segments []transcript.Segment, meta Metadata) ([]byte, error) {
	if err := transcript.Validate(segments); err != nil {
		return nil, services.Wrap(services.ErrExport, "export", "validate segments", "", err)
	}
	switch format {
	case FormatTXT:
		return []byte(text), nil
	case FormatSRT:
		return renderSRT(text, segments, meta)
	case FormatVTT:
		return renderVTT(text, segments, meta)
	case FormatJSON:
		return renderJSON(text, segments, meta)
	case FormatMarkdown:
		return renderMarkdown(text, segments, meta), nil
	case FormatCSV:
		return renderCSV(text, segments)
	case FormatHTML:
		return renderHTML(text, segments, meta)
	case FormatDOCX, FormatPDF:
		r, ok := s.renderers[format]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrRendererRequired, format)
		}
		out, err := r.Render(BuildDocument(text, segments, meta))
		if err != nil {
			return nil, services.Wrap(services.ErrExport, "export", "render "+string(format), "", err)
		}
		return out, nil
	default:
		return nil, services.Wrap(services.ErrExport, "export", "serialize", "unsupported format "+string(format), nil)
	}
}

// IsRendererRequired reports whether err came from a missing renderer.
func IsRendererRequired(err error) bool {
	return errors.Is(err, ErrRendererRequired)
}
