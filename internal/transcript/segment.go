// Package transcript defines timed transcript segments shared by the
// recognizer, the job queue, and the exporters.
package transcript

import (
	"fmt"
	"strings"
)

// Segment is a time-bounded span of transcript text.
type Segment struct {
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	Text    string `json:"text"`
	Speaker string `json:"speaker,omitempty"`
}

// Validate checks that every segment has start < end and that the sequence
// is ordered and non-overlapping.
func Validate(segments []Segment) error {
	var prevEnd int64
	for i, seg := range segments {
		if seg.StartMS < 0 {
			return fmt.Errorf("segment %d: negative start %d", i+1, seg.StartMS)
		}
		if seg.StartMS >= seg.EndMS {
			return fmt.Errorf("segment %d: start %d must be before end %d", i+1, seg.StartMS, seg.EndMS)
		}
		if i > 0 && seg.StartMS < prevEnd {
			return fmt.Errorf("segment %d: starts at %d before previous segment ends at %d", i+1, seg.StartMS, prevEnd)
		}
		prevEnd = seg.EndMS
	}
	return nil
}

// JoinText reconstructs plain text from segments, separating them with a single space.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Clone returns a copy of segments that shares no backing array.
func Clone(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	copy(out, segments)
	return out
}

// End returns the end offset of the last segment, or 0 when empty.
func End(segments []Segment) int64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].EndMS
}
