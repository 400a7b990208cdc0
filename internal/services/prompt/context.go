package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/minuta/internal/interfaces"
	"github.com/ternarybob/minuta/internal/models"
)

const (
	// maxEmailSnippets bounds the email context block. The upstream search
	// already ranks and deduplicates; this is a final guard against token
	// overflow from a misbehaving caller.
	maxEmailSnippets = 10

	// maxSnippetBodyChars truncates an individual snippet body.
	maxSnippetBodyChars = 1000
)

// BuildContext assembles the placeholder value map for a pass prompt.
// pass1Fields must be non-nil for pass 2 and nil for pass 1; its JSON
// rendering becomes the {pass1_output} placeholder.
func BuildContext(input *interfaces.PipelineInput, pass1Fields *models.SummaryFields) (map[string]string, error) {
	if input == nil || input.Transcript == nil {
		return nil, fmt.Errorf("pipeline input requires a transcript")
	}

	values := map[string]string{
		"transcript":        input.Transcript.SpeakerLabeled(),
		"meeting_subject":   orUnknown(input.Meeting.Subject),
		"meeting_organizer": orUnknown(input.Meeting.Organizer),
		"attendees":         formatAttendees(input.Meeting.Attendees),
		"meeting_time":      formatMeetingTime(input.Meeting.StartTime),
		"email_context":     FormatEmailContext(input.Emails),
	}

	if pass1Fields != nil {
		rendered, err := json.MarshalIndent(pass1Fields, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to render pass 1 output for pass 2 prompt: %w", err)
		}
		values["pass1_output"] = string(rendered)
	}

	return values, nil
}

// FormatEmailContext renders the ranked snippets as a bounded text block,
// preserving the caller's ranking order.
func FormatEmailContext(snippets []models.EmailSnippet) string {
	if len(snippets) == 0 {
		return "(no related emails found)"
	}

	if len(snippets) > maxEmailSnippets {
		snippets = snippets[:maxEmailSnippets]
	}

	var sb strings.Builder
	for i, snippet := range snippets {
		body := truncateBody(snippet.Body, maxSnippetBodyChars)
		sb.WriteString(fmt.Sprintf("Email %d:\n", i+1))
		sb.WriteString(fmt.Sprintf("  Subject: %s\n", snippet.Subject))
		sb.WriteString(fmt.Sprintf("  From: %s\n", snippet.Sender))
		if snippet.Date != "" {
			sb.WriteString(fmt.Sprintf("  Date: %s\n", snippet.Date))
		}
		sb.WriteString(fmt.Sprintf("  %s\n\n", body))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// truncateBody limits a snippet body to max bytes without splitting a
// multi-byte rune at the cut point.
func truncateBody(body string, max int) string {
	if len(body) <= max {
		return body
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}

func formatAttendees(attendees []string) string {
	if len(attendees) == 0 {
		return "(unknown)"
	}
	return strings.Join(attendees, ", ")
}

func formatMeetingTime(t time.Time) string {
	if t.IsZero() {
		return "(unknown)"
	}
	return t.Format("Monday, January 2, 2006 15:04")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(unknown)"
	}
	return s
}
