// Package store defines the persistence contract for interview sessions.
// The orchestrator and REST handlers only see this interface; the postgres
// and memory subpackages implement it.
package store

import (
	"context"
	"errors"

	"github.com/hirewire/interview-gateway/pkg/interview"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrCodeUsed is returned when redeeming a code that was already consumed.
var ErrCodeUsed = errors.New("store: code already used")

// Store is the durable side of the session lifecycle. Implementations must
// be safe for concurrent use.
type Store interface {
	// Sessions.
	CreateSession(ctx context.Context, s *interview.Session) error
	SessionByToken(ctx context.Context, token string) (*interview.Session, error)
	// SaveSession persists status, current question and timestamps. The
	// orchestrator calls this before reflecting a transition in memory.
	SaveSession(ctx context.Context, s *interview.Session) error
	ListSessions(ctx context.Context) ([]*interview.Session, error)

	// Codes.
	CreateCode(ctx context.Context, c *interview.Code) error
	ListCodes(ctx context.Context) ([]*interview.Code, error)
	DeleteCode(ctx context.Context, id int64) error
	// RedeemCode marks an unused, unexpired code as used by the named
	// candidate and returns it. ErrNotFound for unknown codes, ErrCodeUsed
	// for consumed ones.
	RedeemCode(ctx context.Context, code, candidateName string) (*interview.Code, error)

	// Question sets.
	CreateQuestionSet(ctx context.Context, qs *interview.QuestionSet, questions []interview.Question) error
	ListQuestionSets(ctx context.Context) ([]*interview.QuestionSet, error)
	ActiveQuestionSet(ctx context.Context) (*interview.QuestionSet, error)
	ActivateQuestionSet(ctx context.Context, id int64) error
	// Questions returns the set's questions ordered by ascending order index.
	Questions(ctx context.Context, questionSetID int64) ([]interview.Question, error)
	QuestionByID(ctx context.Context, id int64) (*interview.Question, error)

	// Append-only records.
	AppendTranscript(ctx context.Context, seg *interview.TranscriptSegment) error
	Transcripts(ctx context.Context, sessionID int64) ([]interview.TranscriptSegment, error)
	AppendAIResponse(ctx context.Context, resp *interview.AIResponse) error
	AIResponses(ctx context.Context, sessionID int64) ([]interview.AIResponse, error)

	// Question responses (one per session+question, updated in place).
	UpsertResponse(ctx context.Context, resp *interview.QuestionResponse) error
	Responses(ctx context.Context, sessionID int64) ([]interview.QuestionResponse, error)

	// Recordings.
	AddRecording(ctx context.Context, rec *interview.Recording) error
	Recordings(ctx context.Context, sessionID int64) ([]interview.Recording, error)
	RecordingByID(ctx context.Context, id int64) (*interview.Recording, error)

	// Prompt templates.
	CreatePromptTemplate(ctx context.Context, t *interview.PromptTemplate) error
	ListPromptTemplates(ctx context.Context) ([]*interview.PromptTemplate, error)
	DefaultPromptTemplate(ctx context.Context) (*interview.PromptTemplate, error)
}
