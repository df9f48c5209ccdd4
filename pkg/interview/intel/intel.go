// Package intel defines the adapter contract for AI transcription and
// response generation, plus the canned fallback messages used when the
// backend is unavailable.
package intel

import (
	"context"

	"github.com/hirewire/interview-gateway/pkg/interview"
)

// ResponseRequest carries the context for a generated AI response.
type ResponseRequest struct {
	Question   string
	Transcript string
	Kind       interview.ResponseKind
	// Prompt overrides the adapter's default template when non-empty.
	Prompt string
}

// Response is one generated AI message.
type Response struct {
	Kind    interview.ResponseKind `json:"type"`
	Message string                 `json:"message"`
}

// Analysis grades a completed answer.
type Analysis struct {
	TotalScore float64        `json:"total_score"`
	Breakdown  map[string]int `json:"breakdown,omitempty"`
	Strengths  []string       `json:"strengths,omitempty"`
	Weaknesses []string       `json:"improvements,omitempty"`
	Feedback   string         `json:"overall_feedback,omitempty"`
}

// Adapter is the AI backend. Implementations must honor context
// cancellation; callers bound every method with a per-call timeout.
type Adapter interface {
	// TranscribeAudio converts an audio chunk to text. An empty string with
	// no error means the chunk contained no recognizable speech.
	TranscribeAudio(ctx context.Context, audio []byte, format string) (string, error)
	// GenerateResponse produces a hint, clarification or encouragement.
	GenerateResponse(ctx context.Context, req ResponseRequest) (*Response, error)
	// AnalyzeResponse grades a completed answer.
	AnalyzeResponse(ctx context.Context, question, transcript string) (*Analysis, error)
	// FollowUpQuestion derives a deeper question from the answer so far.
	FollowUpQuestion(ctx context.Context, question, transcript string) (string, error)
}

var fallbacks = map[interview.ResponseKind]string{
	interview.KindHint:          "Try breaking down the problem into smaller components and think about the key factors involved.",
	interview.KindClarification: "Consider what assumptions you're making and whether they're reasonable for this type of problem.",
	interview.KindEncouragement: "You're on the right track! Keep thinking through it step by step.",
}

// Fallback returns the canned message delivered when generation fails.
// Unknown kinds fall back to the hint message.
func Fallback(kind interview.ResponseKind) Response {
	msg, ok := fallbacks[kind]
	if !ok {
		msg = fallbacks[interview.KindHint]
	}
	return Response{Kind: kind, Message: msg}
}
