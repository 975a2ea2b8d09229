// Package session holds the ephemeral per-user conversation state: which
// stage owns the next input, plus the fields accumulated so far. The store
// may lose the stage (process restart, partial read) while the fields
// survive; InferStage reconstructs a usable stage from the fields alone.
package session

import "github.com/spec-kit/support-bot/internal/gateway"

// Stage identifies which orchestrator step owns the user's next input.
type Stage string

const (
	StageNone Stage = ""

	// Triage flow (unknown user).
	StageTriageCode    Stage = "triage_code"
	StageTriageCompany Stage = "triage_company"
	StageTriageContact Stage = "triage_contact"

	// Ticket creation flow.
	StageUrgencyLevel    Stage = "urgency_level"
	StageUrgencyDetails  Stage = "urgency_details"
	StageDescription     Stage = "description"
	StageAttachments     Stage = "attachments"
	StageSummary         Stage = "summary"
	StageEditCategory    Stage = "edit_category"
	StageEditDescription Stage = "edit_description"
	StageEditAttachments Stage = "edit_attachments"

	// Feedback flow.
	StageFeedbackComment Stage = "feedback_comment"
	StageRatingSpeed     Stage = "rating_speed"
	StageRatingQuality   Stage = "rating_quality"
	StageRatingPolite    Stage = "rating_politeness"

	// Operator reason-capture sub-flows.
	StageOpDetailsQuestion Stage = "op_details_question"
	StageOpPauseReason     Stage = "op_pause_reason"
	StageOpCancelReason    Stage = "op_cancel_reason"
)

var knownStages = map[Stage]struct{}{
	StageTriageCode: {}, StageTriageCompany: {}, StageTriageContact: {},
	StageUrgencyLevel: {}, StageUrgencyDetails: {}, StageDescription: {},
	StageAttachments: {}, StageSummary: {}, StageEditCategory: {},
	StageEditDescription: {}, StageEditAttachments: {},
	StageFeedbackComment: {}, StageRatingSpeed: {}, StageRatingQuality: {},
	StageRatingPolite: {}, StageOpDetailsQuestion: {}, StageOpPauseReason: {},
	StageOpCancelReason: {},
}

// Known reports whether s is a stage this build understands. Unknown values
// can appear after a rolling deploy changes the stage set.
func Known(s Stage) bool {
	_, ok := knownStages[s]
	return ok
}

// Attachment is one accumulated file reference.
type Attachment struct {
	FileID    string                 `json:"file_id"`
	Kind      gateway.AttachmentKind `json:"kind"`
	MessageID int64                  `json:"message_id"`
}

// Fields accumulates the inputs of the flow in progress.
type Fields struct {
	// Ticket creation.
	Category     string       `json:"category,omitempty"`
	ProjectID    int64        `json:"project_id,omitempty"`
	UrgencyLevel string       `json:"urgency_level,omitempty"`
	Description  string       `json:"description,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`

	// Triage.
	Company string `json:"company,omitempty"`

	// Feedback target.
	FeedbackTicketID int64 `json:"feedback_ticket_id,omitempty"`
	SpeedRating      int   `json:"speed_rating,omitempty"`
	QualityRating    int   `json:"quality_rating,omitempty"`

	// Operator sub-flow target. A captured reply is accepted only when it
	// arrives in ThreadID.
	TicketID     int64 `json:"ticket_id,omitempty"`
	TicketNumber int   `json:"ticket_number,omitempty"`
	ThreadID     int64 `json:"thread_id,omitempty"`
}

// Session is the per-user record.
type Session struct {
	Stage  Stage  `json:"stage"`
	Fields Fields `json:"fields"`
}

// InferStage reconstructs the stage from accumulated fields when the
// explicit stage was lost. A category with no description resumes at the
// description step (or the urgency step it branched through); a category
// with a description already present resumes at attachments, where further
// plain text is a no-op rather than an overwrite.
func InferStage(f Fields) Stage {
	if f.Category == "" {
		return StageNone
	}
	if f.Description == "" {
		if f.Category == "urgent" {
			if f.UrgencyLevel == "" {
				return StageUrgencyLevel
			}
			return StageUrgencyDetails
		}
		return StageDescription
	}
	return StageAttachments
}

// EffectiveStage returns the session's stage, falling back to InferStage
// when the stored stage is missing or unknown.
func (s *Session) EffectiveStage() Stage {
	if s.Stage != StageNone && Known(s.Stage) {
		return s.Stage
	}
	return InferStage(s.Fields)
}
