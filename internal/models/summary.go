// -----------------------------------------------------------------------
// Summary Record - Durable state for a two-pass summarization run
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SummaryStatus tracks the overall progress of a summarization run.
// Transitions are monotonic forward; "error" and "cancelled" are reachable
// from any non-terminal state.
type SummaryStatus string

const (
	SummaryStatusPending         SummaryStatus = "pending"
	SummaryStatusPass1Submitted  SummaryStatus = "pass1_submitted"
	SummaryStatusPass1Processing SummaryStatus = "pass1_processing"
	SummaryStatusPass1Complete   SummaryStatus = "pass1_complete"
	SummaryStatusPass2Submitted  SummaryStatus = "pass2_submitted"
	SummaryStatusPass2Processing SummaryStatus = "pass2_processing"
	SummaryStatusComplete        SummaryStatus = "complete"
	SummaryStatusError           SummaryStatus = "error"
	SummaryStatusCancelled       SummaryStatus = "cancelled"
)

// statusRank orders the forward progression for monotonicity checks.
var statusRank = map[SummaryStatus]int{
	SummaryStatusPending:         0,
	SummaryStatusPass1Submitted:  1,
	SummaryStatusPass1Processing: 2,
	SummaryStatusPass1Complete:   3,
	SummaryStatusPass2Submitted:  4,
	SummaryStatusPass2Processing: 5,
	SummaryStatusComplete:        6,
}

// IsTerminal returns true for states the pipeline never leaves.
func (s SummaryStatus) IsTerminal() bool {
	return s == SummaryStatusComplete || s == SummaryStatusError || s == SummaryStatusCancelled
}

// CanTransition reports whether moving from s to next respects the state
// machine: forward-only progression, with error/cancelled as escape hatches
// from any non-terminal state.
func (s SummaryStatus) CanTransition(next SummaryStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == SummaryStatusError || next == SummaryStatusCancelled {
		return true
	}
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to > from
}

// SummarizationJob records one batch submitted to the remote API.
// A batch id belongs to exactly one (record, pass) pair and is never reused.
type SummarizationJob struct {
	BatchID     string     `json:"batch_id"`
	Pass        int        `json:"pass"`
	SubmittedAt time.Time  `json:"submitted_at"`
	LastStatus  string     `json:"last_status"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// ActionItem is a single follow-up extracted from the meeting.
type ActionItem struct {
	Description string `json:"description"`
	Owner       string `json:"owner,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
}

// SummaryFields is one pass's parsed structured output. The same shape is
// reused for the final user-edited override group.
type SummaryFields struct {
	Summary     string            `json:"summary,omitempty"`
	Speakers    map[string]string `json:"speakers,omitempty"`
	ActionItems []ActionItem      `json:"action_items,omitempty"`
	Decisions   []string          `json:"key_decisions,omitempty"`
	Notes       string            `json:"detailed_notes,omitempty"`
}

// IsEmpty returns true when no field of the group is populated.
func (f SummaryFields) IsEmpty() bool {
	return f.Summary == "" && len(f.Speakers) == 0 && len(f.ActionItems) == 0 &&
		len(f.Decisions) == 0 && f.Notes == ""
}

// PassState holds everything persisted for a single pass.
type PassState struct {
	BatchID     string        `json:"batch_id,omitempty"`
	Status      string        `json:"status,omitempty"` // last known remote processing status
	SubmittedAt *time.Time    `json:"submitted_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Fields      SummaryFields `json:"fields,omitempty"`
	RawOutput   string        `json:"raw_output,omitempty"` // preserved when parsing fails
	Error       string        `json:"error,omitempty"`
}

// SummaryRecord is the aggregate for one transcript's summarization run.
// Created once per attempt; mutated only by the pipeline orchestrator (and,
// for Final fields, by the editing surface) until terminal.
type SummaryRecord struct {
	ID           string `json:"id" badgerhold:"key"`
	TranscriptID string `json:"transcript_id"`
	MeetingID    string `json:"meeting_id,omitempty"`

	OverallStatus SummaryStatus `json:"overall_status"`

	Pass1 PassState `json:"pass1"`
	Pass2 PassState `json:"pass2"`

	// Final holds user edits. Each populated field group overrides its
	// pass-2/pass-1 counterpart for display.
	Final SummaryFields `json:"final"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSummaryRecord creates a pending record for one transcript.
func NewSummaryRecord(transcriptID, meetingID string) *SummaryRecord {
	now := time.Now()
	return &SummaryRecord{
		ID:            "sum_" + uuid.New().String(),
		TranscriptID:  transcriptID,
		MeetingID:     meetingID,
		OverallStatus: SummaryStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Jobs returns the batches submitted for this record, one per pass that
// reached submission, in pass order.
func (r *SummaryRecord) Jobs() []SummarizationJob {
	var jobs []SummarizationJob
	for _, n := range []int{1, 2} {
		ps := r.Pass(n)
		if ps.BatchID == "" {
			continue
		}
		job := SummarizationJob{
			BatchID:    ps.BatchID,
			Pass:       n,
			LastStatus: ps.Status,
			EndedAt:    ps.CompletedAt,
		}
		if ps.SubmittedAt != nil {
			job.SubmittedAt = *ps.SubmittedAt
		}
		jobs = append(jobs, job)
	}
	return jobs
}

// Pass returns the state for pass 1 or 2.
func (r *SummaryRecord) Pass(n int) *PassState {
	if n == 2 {
		return &r.Pass2
	}
	return &r.Pass1
}

// CustomID derives the deterministic batch request correlation key for a
// pass. Resubmission of the same (record, pass) always produces the same id.
func (r *SummaryRecord) CustomID(pass int) string {
	return fmt.Sprintf("%s-pass%d", r.ID, pass)
}

// EffectiveSummary returns the display value: final override when present,
// then pass 2, then pass 1.
func (r *SummaryRecord) EffectiveSummary() string {
	if r.Final.Summary != "" {
		return r.Final.Summary
	}
	if r.Pass2.Fields.Summary != "" {
		return r.Pass2.Fields.Summary
	}
	return r.Pass1.Fields.Summary
}

// EffectiveSpeakers returns the display speaker mapping by precedence.
func (r *SummaryRecord) EffectiveSpeakers() map[string]string {
	if len(r.Final.Speakers) > 0 {
		return r.Final.Speakers
	}
	if len(r.Pass2.Fields.Speakers) > 0 {
		return r.Pass2.Fields.Speakers
	}
	return r.Pass1.Fields.Speakers
}

// EffectiveActionItems returns the display action items by precedence.
func (r *SummaryRecord) EffectiveActionItems() []ActionItem {
	if len(r.Final.ActionItems) > 0 {
		return r.Final.ActionItems
	}
	if len(r.Pass2.Fields.ActionItems) > 0 {
		return r.Pass2.Fields.ActionItems
	}
	return r.Pass1.Fields.ActionItems
}

// EffectiveDecisions returns the display key decisions by precedence.
func (r *SummaryRecord) EffectiveDecisions() []string {
	if len(r.Final.Decisions) > 0 {
		return r.Final.Decisions
	}
	if len(r.Pass2.Fields.Decisions) > 0 {
		return r.Pass2.Fields.Decisions
	}
	return r.Pass1.Fields.Decisions
}

// EffectiveNotes returns the display detailed notes by precedence.
func (r *SummaryRecord) EffectiveNotes() string {
	if r.Final.Notes != "" {
		return r.Final.Notes
	}
	if r.Pass2.Fields.Notes != "" {
		return r.Pass2.Fields.Notes
	}
	return r.Pass1.Fields.Notes
}
