package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"html/template"
	"strconv"
	"strings"
	"time"

	"filescribe/internal/services"
	"filescribe/internal/transcript"
)

type jsonMetadata struct {
	Title      *string `json:"title"`
	SourceFile *string `json:"source_file"`
	DurationMS *int64  `json:"duration_ms"`
	CreatedAt  *string `json:"created_at"`
}

type jsonDocument struct {
	Text     string               `json:"text"`
	Segments []transcript.Segment `json:"segments"`
	Metadata jsonMetadata         `json:"metadata"`
}

func renderJSON(text string, segments []transcript.Segment, meta Metadata) ([]byte, error) {
	doc := jsonDocument{Text: text, Segments: segments}
	if meta.Title != "" {
		doc.Metadata.Title = &meta.Title
	}
	if meta.SourceFile != "" {
		doc.Metadata.SourceFile = &meta.SourceFile
	}
	if meta.DurationMS > 0 {
		doc.Metadata.DurationMS = &meta.DurationMS
	}
	if !meta.CreatedAt.IsZero() {
		created := meta.CreatedAt.UTC().Format(time.RFC3339)
		doc.Metadata.CreatedAt = &created
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, services.Wrap(services.ErrExport, "export", "json", "", err)
	}
	return append(out, '\n'), nil
}

func renderCSV(text string, segments []transcript.Segment) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	records := [][]string{{"start", "end", "text"}}
	if len(segments) == 0 {
		records = append(records, []string{"", "", text})
	}
	for _, seg := range segments {
		records = append(records, []string{
			strconv.FormatInt(seg.StartMS, 10),
			strconv.FormatInt(seg.EndMS, 10),
			seg.Text,
		})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, services.Wrap(services.ErrExport, "export", "csv", "", err)
	}
	return buf.Bytes(), nil
}

func renderMarkdown(text string, segments []transcript.Segment, meta Metadata) []byte {
	var b strings.Builder
	if title := strings.TrimSpace(meta.Title); title != "" {
		b.WriteString("# ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	paras := bodyParagraphs(text, segments)
	b.WriteString(strings.Join(paras, "\n\n"))
	if len(paras) > 0 {
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

var htmlDocument = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{- if .Heading}}
<h1>{{.Heading}}</h1>
{{- end}}
{{- range .Paragraphs}}
<p>{{.}}</p>
{{- end}}
</body>
</html>
`))

func renderHTML(text string, segments []transcript.Segment, meta Metadata) ([]byte, error) {
	heading := strings.TrimSpace(meta.Title)
	title := heading
	if title == "" {
		title = "Transcript"
	}
	var buf bytes.Buffer
	err := htmlDocument.Execute(&buf, struct {
		Title      string
		Heading    string
		Paragraphs []string
	}{title, heading, bodyParagraphs(text, segments)})
	if err != nil {
		return nil, services.Wrap(services.ErrExport, "export", "html", "", err)
	}
	return buf.Bytes(), nil
}

// bodyParagraphs prefers the text's own paragraphs and falls back to one
// paragraph per segment when the text is empty.
func bodyParagraphs(text string, segments []transcript.Segment) []string {
	if paras := paragraphs(text); len(paras) > 0 {
		return paras
	}
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}
