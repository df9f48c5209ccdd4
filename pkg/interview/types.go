// Package interview holds the domain model for live interview sessions:
// codes, question sets, sessions and their status machine, and the
// append-only transcript and AI response records.
package interview

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
)

// ParseStatus validates a wire-level status string.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusPending, StatusActive, StatusCompleted, StatusTerminated:
		return Status(raw), true
	default:
		return "", false
	}
}

// Terminal reports whether the status is absorbing: once a session reaches
// completed or terminated no further status or question mutation is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusTerminated
}

// CanTransition reports whether from -> to is a legal status transition.
// Legal paths are pending -> active -> completed and pending|active ->
// terminated. Terminal states accept nothing.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusActive:
		return from == StatusPending
	case StatusCompleted:
		return from == StatusActive
	case StatusTerminated:
		return from == StatusPending || from == StatusActive
	default:
		return false
	}
}

// Code is a one-time interview access code.
type Code struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	CandidateName string     `json:"candidate_name,omitempty"`
	Used          bool       `json:"is_used"`
	CreatedAt     time.Time  `json:"created_at"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the code was past its expiry at the given instant.
func (c Code) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// QuestionSet groups questions; exactly one set is active at a time.
type QuestionSet struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Question is one prompt within a question set, ordered by OrderIndex.
type Question struct {
	ID            int64     `json:"id"`
	QuestionSetID int64     `json:"question_set_id"`
	Text          string    `json:"text"`
	OrderIndex    int       `json:"order_index"`
	TimeLimit     int       `json:"time_limit"` // seconds
	Hints         []string  `json:"hints,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Session is one candidate interview. Token is the externally visible
// identifier; ID is storage-internal and never leaves the process.
type Session struct {
	ID                int64      `json:"-"`
	Token             string     `json:"session_token"`
	CodeID            int64      `json:"-"`
	CandidateName     string     `json:"candidate_name"`
	QuestionSetID     int64      `json:"question_set_id"`
	Status            Status     `json:"status"`
	CurrentQuestionID *int64     `json:"current_question_id,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	AIPrompt          string     `json:"-"` // per-session prompt override
}

// TranscriptSegment is an immutable piece of candidate speech. Offsets are
// seconds from session start with EndTime >= StartTime and confidence in
// [0,1].
type TranscriptSegment struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"-"`
	QuestionID *int64    `json:"question_id,omitempty"`
	Text       string    `json:"text"`
	Confidence float64   `json:"confidence"`
	StartTime  float64   `json:"start_time"`
	EndTime    float64   `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResponseKind classifies an AI response.
type ResponseKind string

const (
	KindHint          ResponseKind = "hint"
	KindClarification ResponseKind = "clarification"
	KindEncouragement ResponseKind = "encouragement"
)

// ParseResponseKind validates a wire-level response kind.
func ParseResponseKind(raw string) (ResponseKind, bool) {
	switch ResponseKind(raw) {
	case KindHint, KindClarification, KindEncouragement:
		return ResponseKind(raw), true
	default:
		return "", false
	}
}

// AIResponse is an immutable AI-generated message for a session.
type AIResponse struct {
	ID         int64        `json:"id"`
	SessionID  int64        `json:"-"`
	QuestionID int64        `json:"question_id"`
	Kind       ResponseKind `json:"type"`
	Message    string       `json:"message"`
	CreatedAt  time.Time    `json:"created_at"`
}

// QuestionResponse is the candidate's answer record for one question.
type QuestionResponse struct {
	ID          int64      `json:"id"`
	SessionID   int64      `json:"-"`
	QuestionID  int64      `json:"question_id"`
	Transcript  string     `json:"transcript"`
	Analysis    string     `json:"analysis,omitempty"` // JSON blob from the analyzer
	Score       *float64   `json:"score,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RecordingKind classifies a recording.
type RecordingKind string

const (
	RecordingAudio  RecordingKind = "audio"
	RecordingVideo  RecordingKind = "video"
	RecordingScreen RecordingKind = "screen"
)

// ParseRecordingKind validates a wire-level recording kind.
func ParseRecordingKind(raw string) (RecordingKind, bool) {
	switch RecordingKind(raw) {
	case RecordingAudio, RecordingVideo, RecordingScreen:
		return RecordingKind(raw), true
	default:
		return "", false
	}
}

// Recording is the metadata for a stored media file.
type Recording struct {
	ID         int64         `json:"id"`
	SessionID  int64         `json:"-"`
	QuestionID *int64        `json:"question_id,omitempty"`
	Kind       RecordingKind `json:"recording_type"`
	Path       string        `json:"-"`
	Size       int64         `json:"file_size,omitempty"`
	Duration   float64       `json:"duration,omitempty"`
	Storage    string        `json:"storage_type"` // "local" or "s3"
	ObjectKey  string        `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
}

// PromptTemplate is a reusable AI prompt. The default template is used when
// a session carries no override.
type PromptTemplate struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Text        string    `json:"prompt_text"`
	Default     bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
