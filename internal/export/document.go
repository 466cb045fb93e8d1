package export

import (
	"strings"
	"time"

	"filescribe/internal/transcript"
)

// Metadata describes the transcript being exported. Zero values are treated
// as absent.
type Metadata struct {
	Title      string
	SourceFile string
	DurationMS int64
	CreatedAt  time.Time
}

// Block is one paragraph of a Document, optionally timed.
type Block struct {
	StartMS *int64
	EndMS   *int64
	Speaker string
	Text    string
}

// Document is the format-neutral content model handed to renderers.
type Document struct {
	Title    string
	Metadata Metadata
	Blocks   []Block
}

// Renderer produces a binary document such as DOCX or PDF.
type Renderer interface {
	Render(doc Document) ([]byte, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(doc Document) ([]byte, error)

// Render implements Renderer.
func (f RendererFunc) Render(doc Document) ([]byte, error) {
	return f(doc)
}

// BuildDocument assembles the content model. Segments become timed blocks;
// without segments the text is split into paragraphs.
func BuildDocument(text string, segments []transcript.Segment, meta Metadata) Document {
	doc := Document{Title: strings.TrimSpace(meta.Title), Metadata: meta}
	if len(segments) > 0 {
		doc.Blocks = make([]Block, 0, len(segments))
		for _, seg := range segments {
			start, end := seg.StartMS, seg.EndMS
			doc.Blocks = append(doc.Blocks, Block{
				StartMS: &start,
				EndMS:   &end,
				Speaker: seg.Speaker,
				Text:    strings.TrimSpace(seg.Text),
			})
		}
		return doc
	}
	for _, para := range paragraphs(text) {
		doc.Blocks = append(doc.Blocks, Block{Text: para})
	}
	return doc
}

// paragraphs splits text on blank lines, trimming each paragraph.
func paragraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, chunk := range strings.Split(normalized, "\n\n") {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}
