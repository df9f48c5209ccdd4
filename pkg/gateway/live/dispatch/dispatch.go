// Package dispatch runs the AI work that the WebSocket handlers hand off:
// audio transcription and hint generation. Tasks run on supervised
// goroutines; results are re-checked against the session's live status
// before delivery and discarded once the session is terminal.
package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hirewire/interview-gateway/pkg/gateway/live/protocol"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/rooms"
	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/intel"
	"github.com/hirewire/interview-gateway/pkg/interview/store"
)

// Transcription confidence reported for Gemini segments; the API does not
// surface one.
const geminiConfidence = 0.95

// Assumed span of one audio chunk when the client sends no explicit range.
const chunkSpanSeconds = 2.0

type Dispatcher struct {
	store  store.Store
	intel  intel.Adapter // nil disables generation; fallbacks are served
	rooms  *rooms.Registry
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a dispatcher. The intel adapter enforces its own call
// timeouts; the dispatcher only cancels tasks on Shutdown.
func New(st store.Store, ai intel.Adapter, reg *rooms.Registry, logger *slog.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:  st,
		intel:  ai,
		rooms:  reg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Shutdown stops accepting results and waits for in-flight tasks, up to
// ctx's deadline. Returns false if tasks were abandoned.
func (d *Dispatcher) Shutdown(ctx context.Context) bool {
	d.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) spawn(task func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if v := recover(); v != nil && d.logger != nil {
				d.logger.Error("dispatch task panic", "panic", v)
			}
		}()
		task(d.ctx)
	}()
}

// sessionLive reports whether results may still be delivered for the
// session. Terminal or evicted sessions absorb nothing.
func (d *Dispatcher) sessionLive(token string) bool {
	status, ok := d.rooms.Status(token)
	return ok && !status.Terminal()
}

// SubmitTranscription transcribes one audio chunk and, if it yields text,
// persists the segment and broadcasts a transcript_update. Transcription
// failures are dropped without client-visible errors; the audio keeps
// flowing and a lost chunk is not worth interrupting the candidate for.
func (d *Dispatcher) SubmitTranscription(sess *interview.Session, msg protocol.ClientAudio) {
	token := sess.Token
	sessionID := sess.ID
	d.spawn(func(ctx context.Context) {
		audio, err := base64.StdEncoding.DecodeString(msg.AudioB64)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("bad audio chunk", "session_id", token, "error", err)
			}
			return
		}

		format := strings.TrimSpace(msg.Format)
		if format == "" {
			format = "webm"
		}

		if d.intel == nil {
			return
		}
		text, err := d.intel.TranscribeAudio(ctx, audio, format)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("transcription failed", "session_id", token, "error", err)
			}
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}

		if !d.sessionLive(token) {
			return
		}

		start := 0.0
		if msg.Timestamp != nil {
			start = *msg.Timestamp
		}
		seg := &interview.TranscriptSegment{
			SessionID:  sessionID,
			Text:       text,
			Confidence: geminiConfidence,
			StartTime:  start,
			EndTime:    start + chunkSpanSeconds,
		}
		if err := d.store.AppendTranscript(ctx, seg); err != nil {
			if d.logger != nil {
				d.logger.Error("persist transcript failed", "session_id", token, "error", err)
			}
			return
		}

		d.rooms.Broadcast(token, protocol.ServerTranscriptUpdate{
			Type:       "transcript_update",
			SessionID:  token,
			Text:       text,
			Confidence: seg.Confidence,
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
		})
	})
}

// sendTo queues a frame to a single client, bypassing the room. Error
// frames always travel this way; only results are broadcast.
func (d *Dispatcher) sendTo(c *rooms.Client, msg any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = c.Enqueue(data)
}

// SubmitAIResponse generates a hint, clarification or encouragement for a
// question and broadcasts it. If generation fails or no backend is
// configured, the canned fallback for the requested kind is persisted and
// broadcast instead; either way the room sees exactly one ai_response.
// Errors go back to origin only, never to the room.
func (d *Dispatcher) SubmitAIResponse(sess *interview.Session, origin *rooms.Client, msg protocol.ClientAIRequest) {
	token := sess.Token
	sessionID := sess.ID
	prompt := sess.AIPrompt
	kind, ok := interview.ParseResponseKind(strings.TrimSpace(msg.Kind))
	if !ok {
		kind = interview.KindHint
	}

	d.spawn(func(ctx context.Context) {
		question, err := d.store.QuestionByID(ctx, msg.QuestionID)
		if err != nil {
			d.sendTo(origin, protocol.Error("Question not found"))
			return
		}

		if prompt == "" {
			if tmpl, err := d.store.DefaultPromptTemplate(ctx); err == nil {
				prompt = tmpl.Text
			}
		}

		resp := d.generateOrFallback(ctx, token, intel.ResponseRequest{
			Question:   question.Text,
			Transcript: msg.TranscriptContext,
			Kind:       kind,
			Prompt:     prompt,
		})

		if !d.sessionLive(token) {
			return
		}

		record := &interview.AIResponse{
			SessionID:  sessionID,
			QuestionID: msg.QuestionID,
			Kind:       resp.Kind,
			Message:    resp.Message,
		}
		if err := d.store.AppendAIResponse(ctx, record); err != nil {
			if d.logger != nil {
				d.logger.Error("persist ai response failed", "session_id", token, "error", err)
			}
			d.sendTo(origin, protocol.Error("Failed to generate AI response"))
			return
		}

		d.rooms.Broadcast(token, protocol.ServerAIResponse{
			Type:       "ai_response",
			SessionID:  token,
			QuestionID: msg.QuestionID,
			Response: protocol.AIResponsePayload{
				Kind:      string(record.Kind),
				Message:   record.Message,
				Timestamp: record.CreatedAt.UTC().Format(time.RFC3339),
			},
		})
	})
}

func (d *Dispatcher) generateOrFallback(ctx context.Context, token string, req intel.ResponseRequest) intel.Response {
	if d.intel == nil {
		return intel.Fallback(req.Kind)
	}
	resp, err := d.intel.GenerateResponse(ctx, req)
	if err != nil || resp == nil || strings.TrimSpace(resp.Message) == "" {
		if err != nil && d.logger != nil {
			d.logger.Warn("ai generation failed, serving fallback",
				"session_id", token, "kind", req.Kind, "error", err)
		}
		return intel.Fallback(req.Kind)
	}
	return *resp
}
