// Package gemini implements the intel adapter on the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/intel"
)

const transcribePrompt = `Please transcribe the audio content accurately.
Return only the transcribed text without any additional formatting or commentary.
If the audio is unclear or contains no speech, return an empty string.`

const defaultResponsePrompt = `You are an AI interview assistant helping candidates with guesstimate questions.
Your role is to provide helpful guidance without giving away the answer.

Question: {question}
Candidate's current response: {transcript}
Response type requested: {response_type}

Based on the response type, provide appropriate guidance:

- For "hint": Give a subtle hint to help the candidate think through the problem
- For "clarification": Clarify the question or their stated assumptions
- For "encouragement": Offer encouragement and motivation to continue

Guidelines:
1. Be supportive and encouraging
2. Don't give direct answers
3. Help them think through the problem systematically
4. Keep responses concise (1-2 sentences)
5. Focus on the thinking process, not the final number

Respond with a JSON object in this format:
{"type": "{response_type}", "message": "Your helpful response here"}`

const analyzePrompt = `Analyze this interview response for a guesstimate question.

Question: %s
Candidate Response: %s

Evaluate the response on these criteria:
1. Structured thinking approach (0-25 points)
2. Reasonable assumptions (0-25 points)
3. Mathematical accuracy (0-25 points)
4. Communication clarity (0-25 points)

Provide a JSON response with:
{"total_score": <0-100>, "breakdown": {"structure": <0-25>, "assumptions": <0-25>, "math": <0-25>, "communication": <0-25>}, "strengths": ["..."], "improvements": ["..."], "overall_feedback": "Brief overall assessment"}`

const followUpPrompt = `Based on this guesstimate interview exchange, generate a thoughtful follow-up question.

Original Question: %s
Candidate Response: %s

Generate a follow-up question that:
1. Builds on their response
2. Tests deeper thinking
3. Explores assumptions they made
4. Is appropriate for the interview context

Return only the follow-up question, no additional text.`

// Adapter calls the Gemini API for transcription and text generation.
type Adapter struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

var _ intel.Adapter = (*Adapter)(nil)

// New creates an adapter using the given API key and model name.
func New(ctx context.Context, apiKey, model string, timeout time.Duration) (*Adapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Adapter{client: client, model: model, timeout: timeout}, nil
}

func (a *Adapter) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", interview.NewExternalServiceError("gemini generate", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (a *Adapter) TranscribeAudio(ctx context.Context, audio []byte, format string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(transcribePrompt),
		genai.NewPartFromBytes(audio, "audio/"+format),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	return a.generate(ctx, contents)
}

func (a *Adapter) GenerateResponse(ctx context.Context, req intel.ResponseRequest) (*intel.Response, error) {
	tmpl := req.Prompt
	if tmpl == "" {
		tmpl = defaultResponsePrompt
	}
	// Templates carry {question}, {transcript} and {response_type} placeholders.
	prompt := strings.NewReplacer(
		"{question}", req.Question,
		"{transcript}", req.Transcript,
		"{response_type}", string(req.Kind),
	).Replace(tmpl)
	text, err := a.generate(ctx, genai.Text(prompt))
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, interview.NewExternalServiceError("gemini generate",
			fmt.Errorf("empty response for %s", req.Kind))
	}
	// The model is asked for JSON but plain text happens; accept both.
	var resp intel.Response
	if err := json.Unmarshal([]byte(stripFence(text)), &resp); err == nil && resp.Message != "" {
		if resp.Kind == "" {
			resp.Kind = req.Kind
		}
		return &resp, nil
	}
	return &intel.Response{Kind: req.Kind, Message: text}, nil
}

func (a *Adapter) AnalyzeResponse(ctx context.Context, question, transcript string) (*intel.Analysis, error) {
	text, err := a.generate(ctx, genai.Text(fmt.Sprintf(analyzePrompt, question, transcript)))
	if err != nil {
		return nil, err
	}
	var analysis intel.Analysis
	if err := json.Unmarshal([]byte(stripFence(text)), &analysis); err != nil {
		return nil, interview.NewExternalServiceError("gemini analyze",
			fmt.Errorf("parse analysis: %w", err))
	}
	return &analysis, nil
}

func (a *Adapter) FollowUpQuestion(ctx context.Context, question, transcript string) (string, error) {
	return a.generate(ctx, genai.Text(fmt.Sprintf(followUpPrompt, question, transcript)))
}

// stripFence removes a surrounding markdown code fence if present.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
