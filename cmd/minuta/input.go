package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ternarybob/minuta/internal/interfaces"
	"github.com/ternarybob/minuta/internal/models"
)

// inputFlags collects the shared pipeline input flags for run and resume.
type inputFlags struct {
	transcriptPath string
	transcriptID   string
	meetingID      string
	subject        string
	organizer      string
	attendees      []string
	startTime      string
	emailsPath     string
}

// register attaches the shared input flags to a command.
func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.transcriptPath, "transcript", "", "transcript file (.txt plain text, .json with optional diarization segments)")
	cmd.Flags().StringVar(&f.transcriptID, "transcript-id", "", "transcript identifier (default: file name)")
	cmd.Flags().StringVar(&f.meetingID, "meeting-id", "", "calendar meeting identifier")
	cmd.Flags().StringVar(&f.subject, "subject", "", "meeting subject")
	cmd.Flags().StringVar(&f.organizer, "organizer", "", "meeting organizer")
	cmd.Flags().StringSliceVar(&f.attendees, "attendees", nil, "comma-separated attendee names")
	cmd.Flags().StringVar(&f.startTime, "start", "", "meeting start time (RFC3339)")
	cmd.Flags().StringVar(&f.emailsPath, "emails", "", "JSON file of ranked context email snippets")
}

// loadTranscript reads a transcript file. A .json file is decoded as a
// models.Transcript (optionally carrying diarization segments); anything
// else is treated as plain text.
func loadTranscript(path, id string) (*models.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var transcript models.Transcript
		if err := json.Unmarshal(data, &transcript); err != nil {
			return nil, fmt.Errorf("failed to parse transcript JSON: %w", err)
		}
		if id != "" {
			transcript.ID = id
		}
		if transcript.ID == "" {
			transcript.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		return &transcript, nil
	}

	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &models.Transcript{ID: id, Text: string(data)}, nil
}

// loadEmails reads a JSON array of ranked email snippets.
func loadEmails(path string) ([]models.EmailSnippet, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read emails file: %w", err)
	}
	var snippets []models.EmailSnippet
	if err := json.Unmarshal(data, &snippets); err != nil {
		return nil, fmt.Errorf("failed to parse emails JSON: %w", err)
	}
	return snippets, nil
}

// buildInput assembles the pipeline input from the parsed flags. The
// transcript path may be empty for resumes that no longer need one.
func (f *inputFlags) buildInput() (*interfaces.PipelineInput, error) {
	input := &interfaces.PipelineInput{
		Meeting: models.MeetingMetadata{
			Subject:   f.subject,
			Organizer: f.organizer,
			Attendees: f.attendees,
		},
	}

	if f.startTime != "" {
		t, err := time.Parse(time.RFC3339, f.startTime)
		if err != nil {
			return nil, fmt.Errorf("invalid -start time (want RFC3339): %w", err)
		}
		input.Meeting.StartTime = t
	}

	if f.transcriptPath != "" {
		transcript, err := loadTranscript(f.transcriptPath, f.transcriptID)
		if err != nil {
			return nil, err
		}
		input.Transcript = transcript
	}

	emails, err := loadEmails(f.emailsPath)
	if err != nil {
		return nil, err
	}
	input.Emails = emails

	return input, nil
}
