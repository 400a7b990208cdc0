package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MeetingMetadata is the calendar context supplied by the upstream
// calendar/identity integration. The pipeline only reads it.
type MeetingMetadata struct {
	Subject   string    `json:"subject"`
	Organizer string    `json:"organizer"`
	Attendees []string  `json:"attendees"`
	StartTime time.Time `json:"start_time,omitzero"`
}

// EmailSnippet is one ranked context email produced by the external
// email-context search. Snippets arrive bounded, deduplicated, and already
// ranked; order is preserved when embedding them into a prompt.
type EmailSnippet struct {
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Date    string `json:"date"`
	Body    string `json:"body"` // already truncated by the search layer
}

// SpeakerSegment is one diarization span. Segments are optional; when
// present they are merged into a speaker-labeled transcript.
type SpeakerSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcript is the pipeline's raw input: plain text plus optional
// diarization segments.
type Transcript struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Segments []SpeakerSegment `json:"segments,omitempty"`
}

// SpeakerLabeled returns the transcript with one "Speaker: text" line per
// diarization segment, ordered by start time. Falls back to the raw text
// when no segments are available.
func (t *Transcript) SpeakerLabeled() string {
	if len(t.Segments) == 0 {
		return t.Text
	}

	segments := make([]SpeakerSegment, len(t.Segments))
	copy(segments, t.Segments)
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start < segments[j].Start
	})

	var sb strings.Builder
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		speaker := seg.Speaker
		if speaker == "" {
			speaker = "Unknown"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", speaker, text))
	}
	return strings.TrimRight(sb.String(), "\n")
}
