package export

import (
	"fmt"
	"strconv"
	"strings"

	"filescribe/internal/services"
	"filescribe/internal/transcript"
)

type cueStyle struct {
	header      string
	numbered    bool
	msSeparator byte
	speaker     func(speaker, text string) string
}

var (
	srtStyle = cueStyle{
		numbered:    true,
		msSeparator: ',',
		speaker:     func(speaker, text string) string { return "[" + speaker + "] " + text },
	}
	vttStyle = cueStyle{
		header:      "WEBVTT\n\n",
		msSeparator: '.',
		speaker:     func(speaker, text string) string { return "<v " + speaker + ">" + text },
	}
)

func renderSRT(text string, segments []transcript.Segment, meta Metadata) ([]byte, error) {
	return renderCues(srtStyle, "srt", text, segments, meta)
}

func renderVTT(text string, segments []transcript.Segment, meta Metadata) ([]byte, error) {
	return renderCues(vttStyle, "vtt", text, segments, meta)
}

// renderCues writes one cue per segment. Without segments a single cue
// spans the whole recording, which requires a known duration.
func renderCues(style cueStyle, name, text string, segments []transcript.Segment, meta Metadata) ([]byte, error) {
	cues := segments
	if len(cues) == 0 {
		if meta.DurationMS <= 0 {
			return nil, services.Wrap(services.ErrExport, "export", name,
				"segments or a positive duration are required", nil)
		}
		cues = []transcript.Segment{{StartMS: 0, EndMS: meta.DurationMS, Text: text}}
	}

	var b strings.Builder
	b.WriteString(style.header)
	for i, cue := range cues {
		if style.numbered {
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteByte('\n')
		}
		b.WriteString(timestamp(cue.StartMS, style.msSeparator))
		b.WriteString(" --> ")
		b.WriteString(timestamp(cue.EndMS, style.msSeparator))
		b.WriteByte('\n')
		line := cueText(cue.Text)
		if cue.Speaker != "" {
			line = style.speaker(cue.Speaker, line)
		}
		b.WriteString(line)
		b.WriteString("\n\n")
	}
	return []byte(b.String()), nil
}

// cueText trims every line and drops blank ones; a blank line ends a cue.
func cueText(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// timestamp formats ms as HH:MM:SS followed by sep and milliseconds.
func timestamp(ms int64, sep byte) string {
	if ms < 0 {
		ms = 0
	}
	hours := ms / 3_600_000
	minutes := (ms / 60_000) % 60
	seconds := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", hours, minutes, seconds, sep, ms%1000)
}
