package export_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filescribe/internal/export"
	"filescribe/internal/services"
	"filescribe/internal/transcript"
)

func helloSegments() []transcript.Segment {
	return []transcript.Segment{{StartMS: 0, EndMS: 1500, Text: "Hello"}}
}

func TestSerializeTextIsRaw(t *testing.T) {
	out, err := export.Serialize("  raw\ntext ", export.FormatTXT, nil, export.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "  raw\ntext ", string(out))
}

func TestSerializeSRT(t *testing.T) {
	out, err := export.Serialize("Hello", export.FormatSRT, helloSegments(), export.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,500\nHello\n\n", string(out))
}

func TestSerializeSRTMultipleCuesAndSpeakers(t *testing.T) {
	segs := []transcript.Segment{
		{StartMS: 0, EndMS: 1000, Text: "Hi", Speaker: "Ana"},
		{StartMS: 3_661_001, EndMS: 3_662_000, Text: " there "},
	}
	out, err := export.Serialize("", export.FormatSRT, segs, export.Metadata{})
	require.NoError(t, err)
	want := "1\n00:00:00,000 --> 00:00:01,000\n[Ana] Hi\n\n" +
		"2\n01:01:01,001 --> 01:01:02,000\nthere\n\n"
	assert.Equal(t, want, string(out))
}

func TestSerializeVTT(t *testing.T) {
	segs := []transcript.Segment{
		{StartMS: 0, EndMS: 1500, Text: "Hello"},
		{StartMS: 1500, EndMS: 2000, Text: "again", Speaker: "Bo"},
	}
	out, err := export.Serialize("Hello again", export.FormatVTT, segs, export.Metadata{})
	require.NoError(t, err)
	got := string(out)
	assert.True(t, strings.HasPrefix(got, "WEBVTT\n\n"))
	assert.Contains(t, got, "00:00:00.000 --> 00:00:01.500\nHello\n")
	assert.Contains(t, got, "<v Bo>again")
	assert.NotContains(t, got, "1\n00:00")
}

func TestSerializeCuesWithoutSegments(t *testing.T) {
	_, err := export.Serialize("Hello", export.FormatSRT, nil, export.Metadata{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExport))

	out, err := export.Serialize("Whole thing", export.FormatVTT, nil, export.Metadata{DurationMS: 65_250})
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n\n00:00:00.000 --> 00:01:05.250\nWhole thing\n\n", string(out))
}

func TestSerializeCuesCollapseBlankLines(t *testing.T) {
	out, err := export.Serialize("First paragraph.\n\nSecond paragraph.", export.FormatSRT, nil,
		export.Metadata{DurationMS: 5000})
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:05,000\nFirst paragraph.\nSecond paragraph.\n\n", string(out))

	segs := []transcript.Segment{{StartMS: 0, EndMS: 10, Text: "a\n\n  \nb", Speaker: "Cy"}}
	out, err = export.Serialize("", export.FormatVTT, segs, export.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "WEBVTT\n\n00:00:00.000 --> 00:00:00.010\n<v Cy>a\nb\n\n", string(out))

	out, err = export.Serialize("", export.FormatSRT, segs, export.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:00,010\n[Cy] a\nb\n\n", string(out))
}

func TestSerializeRejectsInvalidSegments(t *testing.T) {
	segs := []transcript.Segment{{StartMS: 500, EndMS: 500, Text: "x"}}
	_, err := export.Serialize("x", export.FormatTXT, segs, export.Metadata{})
	require.Error(t, err)
	assert.Equal(t, services.KindExport, services.Details(err).Kind)
}

func TestSerializeJSON(t *testing.T) {
	out, err := export.Serialize("Hello", export.FormatJSON, nil, export.Metadata{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "}\n"))
	assert.Contains(t, string(out), "\n  \"text\": \"Hello\"")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Nil(t, decoded["segments"])
	meta, ok := decoded["metadata"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"title", "source_file", "duration_ms", "created_at"} {
		value, present := meta[key]
		assert.True(t, present, key)
		assert.Nil(t, value, key)
	}

	created := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	out, err = export.Serialize("Hello", export.FormatJSON, helloSegments(), export.Metadata{
		Title:      "Standup",
		SourceFile: "/tmp/standup.m4a",
		DurationMS: 1500,
		CreatedAt:  created,
	})
	require.NoError(t, err)
	var full struct {
		Segments []transcript.Segment `json:"segments"`
		Metadata struct {
			Title      string `json:"title"`
			SourceFile string `json:"source_file"`
			DurationMS int64  `json:"duration_ms"`
			CreatedAt  string `json:"created_at"`
		} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(out, &full))
	assert.Equal(t, helloSegments(), full.Segments)
	assert.Equal(t, "Standup", full.Metadata.Title)
	assert.Equal(t, "/tmp/standup.m4a", full.Metadata.SourceFile)
	assert.EqualValues(t, 1500, full.Metadata.DurationMS)
	assert.Equal(t, "2026-03-04T05:06:07Z", full.Metadata.CreatedAt)
}

func TestSerializeCSV(t *testing.T) {
	segs := []transcript.Segment{
		{StartMS: 0, EndMS: 1200, Text: "Hello, world"},
		{StartMS: 1200, EndMS: 2000, Text: `say "hi"`},
	}
	out, err := export.Serialize("", export.FormatCSV, segs, export.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "start,end,text\r\n0,1200,\"Hello, world\"\r\n1200,2000,\"say \"\"hi\"\"\"\r\n", string(out))

	out, err = export.Serialize("plain", export.FormatCSV, nil, export.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "start,end,text\r\n,,plain\r\n", string(out))
}

func TestSerializeCSVEndsRecordsWithCRLF(t *testing.T) {
	segs := []transcript.Segment{{StartMS: 0, EndMS: 900, Text: "two\nlines"}}
	out, err := export.Serialize("", export.FormatCSV, segs, export.Metadata{})
	require.NoError(t, err)
	got := string(out)
	assert.True(t, strings.HasSuffix(got, "\r\n"))
	assert.Equal(t, 3, strings.Count(got, "\r\n"), "two records plus the quoted line break")
	assert.NotContains(t, strings.ReplaceAll(got, "\r\n", ""), "\n")
}

func TestSerializeMarkdown(t *testing.T) {
	out, err := export.Serialize("First para.\n\nSecond para.", export.FormatMarkdown, nil, export.Metadata{Title: "Notes"})
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n\nFirst para.\n\nSecond para.\n", string(out))

	out, err = export.Serialize("Body", export.FormatMarkdown, nil, export.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "Body\n", string(out))
}

func TestSerializeHTMLEscapes(t *testing.T) {
	out, err := export.Serialize("a < b & c", export.FormatHTML, nil, export.Metadata{Title: "<Q&A>"})
	require.NoError(t, err)
	got := string(out)
	assert.True(t, strings.HasPrefix(got, "<!DOCTYPE html>"))
	assert.Contains(t, got, "<title>&lt;Q&amp;A&gt;</title>")
	assert.Contains(t, got, "<p>a &lt; b &amp; c</p>")

	out, err = export.Serialize("x", export.FormatHTML, nil, export.Metadata{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "<title>Transcript</title>")
	assert.NotContains(t, string(out), "<h1>")
}

func TestSerializeBinaryFormatsNeedRenderer(t *testing.T) {
	for _, format := range []export.Format{export.FormatDOCX, export.FormatPDF} {
		_, err := export.Serialize("x", format, nil, export.Metadata{})
		require.Error(t, err)
		assert.True(t, export.IsRendererRequired(err), format)
		assert.True(t, errors.Is(err, services.ErrExport), format)
	}
}

func TestSerializerWithRenderer(t *testing.T) {
	var seen export.Document
	s := export.NewSerializer(export.WithRenderer(export.FormatPDF, export.RendererFunc(func(doc export.Document) ([]byte, error) {
		seen = doc
		return []byte("%PDF"), nil
	})))

	out, err := s.Serialize("Hello", export.FormatPDF, helloSegments(), export.Metadata{Title: " Call "})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out))
	assert.Equal(t, "Call", seen.Title)
	require.Len(t, seen.Blocks, 1)
	require.NotNil(t, seen.Blocks[0].EndMS)
	assert.EqualValues(t, 1500, *seen.Blocks[0].EndMS)

	_, err = s.Serialize("Hello", export.FormatDOCX, nil, export.Metadata{})
	assert.True(t, export.IsRendererRequired(err))

	failing := export.NewSerializer(export.WithRenderer(export.FormatDOCX, export.RendererFunc(func(export.Document) ([]byte, error) {
		return nil, errors.New("boom")
	})))
	_, err = failing.Serialize("x", export.FormatDOCX, nil, export.Metadata{})
	require.Error(t, err)
	assert.False(t, export.IsRendererRequired(err))
	assert.Contains(t, err.Error(), "boom")
}

func TestBuildDocumentParagraphs(t *testing.T) {
	doc := export.BuildDocument("one\r\n\r\n  two  \n\n\n", nil, export.Metadata{})
	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "one", doc.Blocks[0].Text)
	assert.Equal(t, "two", doc.Blocks[1].Text)
	assert.Nil(t, doc.Blocks[0].StartMS)
}

func TestParseFormat(t *testing.T) {
	cases := map[string]export.Format{
		"txt":      export.FormatTXT,
		"TEXT":     export.FormatTXT,
		" md ":     export.FormatMarkdown,
		"markdown": export.FormatMarkdown,
		"Pdf":      export.FormatPDF,
	}
	for input, want := range cases {
		got, err := export.ParseFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}
	_, err := export.ParseFormat("odt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExport))
	assert.Len(t, export.Formats(), 9)
}

func TestExtensionAndFileName(t *testing.T) {
	assert.Equal(t, "md", export.ExtensionFor(export.FormatMarkdown))
	assert.Equal(t, "srt", export.ExtensionFor(export.FormatSRT))
	assert.True(t, export.NeedsRenderer(export.FormatDOCX))
	assert.False(t, export.NeedsRenderer(export.FormatHTML))

	assert.Equal(t, "meeting.vtt", export.DefaultFileName("/media/meeting.mp4", export.FormatVTT))
	assert.Equal(t, "notes.md", export.DefaultFileName("notes", export.FormatMarkdown))
	assert.Equal(t, "transcript.txt", export.DefaultFileName("", export.FormatTXT))
}

func TestTitleFromPath(t *testing.T) {
	assert.Equal(t, "Team Sync 2024", export.TitleFromPath("/a/team_sync-2024.m4a"))
	assert.Equal(t, "Interview Part 2", export.TitleFromPath("interview.part_2.wav"))
	assert.Equal(t, "", export.TitleFromPath(""))
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := export.WriteFile(dir, "call.srt", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "call.srt"), path)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	_, err = export.WriteFile(dir, "../escape.srt", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExport))
}
