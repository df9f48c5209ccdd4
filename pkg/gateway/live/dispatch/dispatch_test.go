package dispatch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hirewire/interview-gateway/pkg/gateway/live/protocol"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/rooms"
	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/intel"
	"github.com/hirewire/interview-gateway/pkg/interview/store/memory"
)

// stubIntel returns scripted results.
type stubIntel struct {
	transcript    string
	transcribeErr error
	response      *intel.Response
	generateErr   error
}

func (s *stubIntel) TranscribeAudio(context.Context, []byte, string) (string, error) {
	return s.transcript, s.transcribeErr
}

func (s *stubIntel) GenerateResponse(context.Context, intel.ResponseRequest) (*intel.Response, error) {
	return s.response, s.generateErr
}

func (s *stubIntel) AnalyzeResponse(context.Context, string, string) (*intel.Analysis, error) {
	return nil, errors.New("not scripted")
}

func (s *stubIntel) FollowUpQuestion(context.Context, string, string) (string, error) {
	return "", errors.New("not scripted")
}

type frame struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Response  struct {
		Kind    string `json:"type"`
		Message string `json:"message"`
	} `json:"response"`
	Confidence float64 `json:"confidence"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
}

// collectorWS captures frames written by a client's writer pump.
type collectorWS struct {
	frames chan []byte
}

func newCollectorWS() *collectorWS {
	return &collectorWS{frames: make(chan []byte, 32)}
}

func (w *collectorWS) SetWriteDeadline(time.Time) error { return nil }

func (w *collectorWS) WriteMessage(_ int, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	w.frames <- cp
	return nil
}

func (w *collectorWS) WriteControl(int, []byte, time.Time) error { return nil }

func (w *collectorWS) Close() error { return nil }

// conn bundles a room client with the collector capturing its frames.
type conn struct {
	client *rooms.Client
	ws     *collectorWS
}

func newConn(t *testing.T, id string) *conn {
	t.Helper()
	c := rooms.NewClient(id, 16)
	ws := newCollectorWS()
	go func() { _ = c.WritePump(ws, time.Minute, time.Second) }()
	t.Cleanup(func() { c.Close() })
	return &conn{client: c, ws: ws}
}

// collect waits for want frames to reach the connection.
func collect(t *testing.T, c *conn, want int) []frame {
	t.Helper()
	var out []frame
	deadline := time.After(2 * time.Second)
	for len(out) < want {
		select {
		case data := <-c.ws.frames:
			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			out = append(out, f)
		case <-deadline:
			t.Fatalf("received %d frames, want %d: %+v", len(out), want, out)
		}
	}
	return out
}

// assertSilent verifies the connection receives nothing for a settling period.
func assertSilent(t *testing.T, c *conn) {
	t.Helper()
	select {
	case data := <-c.ws.frames:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func setup(t *testing.T, ai intel.Adapter) (*memory.Store, *rooms.Registry, *Dispatcher, *interview.Session, *conn, int64) {
	t.Helper()
	ctx := context.Background()
	m := memory.New()

	qs := &interview.QuestionSet{Name: "sizing", Active: true}
	if err := m.CreateQuestionSet(ctx, qs, []interview.Question{
		{Text: "How many piano tuners are in Chicago?", OrderIndex: 0},
	}); err != nil {
		t.Fatalf("CreateQuestionSet() error = %v", err)
	}
	questions, _ := m.Questions(ctx, qs.ID)
	questionID := questions[0].ID

	sess := &interview.Session{Token: "tok-1", CandidateName: "Ada", QuestionSetID: qs.ID, Status: interview.StatusActive}
	if err := m.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	reg := rooms.NewRegistry(nil)
	c := newConn(t, "conn-1")
	reg.Join(sess.Token, c.client, sess.Status, sess.CandidateName)

	d := New(m, ai, reg, nil)
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		d.Shutdown(shutdownCtx)
	})
	return m, reg, d, sess, c, questionID
}

func TestSubmitTranscriptionBroadcastsSegment(t *testing.T) {
	ai := &stubIntel{transcript: "about three million people"}
	m, _, d, sess, c, _ := setup(t, ai)

	ts := 4.0
	d.SubmitTranscription(sess, protocol.ClientAudio{
		AudioB64:  base64.StdEncoding.EncodeToString([]byte("chunk")),
		Timestamp: &ts,
	})

	frames := collect(t, c, 1)
	if frames[0].Type != "transcript_update" {
		t.Fatalf("frame type = %q", frames[0].Type)
	}
	if frames[0].Text != "about three million people" {
		t.Fatalf("text = %q", frames[0].Text)
	}
	if frames[0].Confidence != geminiConfidence {
		t.Fatalf("confidence = %v, want %v", frames[0].Confidence, geminiConfidence)
	}
	if frames[0].StartTime != 4.0 || frames[0].EndTime != 4.0+chunkSpanSeconds {
		t.Fatalf("segment span = [%v, %v]", frames[0].StartTime, frames[0].EndTime)
	}

	segments, _ := m.Transcripts(context.Background(), sess.ID)
	if len(segments) != 1 {
		t.Fatalf("persisted %d segments, want 1", len(segments))
	}
}

func TestSubmitTranscriptionFailureIsSilent(t *testing.T) {
	ai := &stubIntel{transcribeErr: errors.New("api down")}
	m, _, d, sess, c, _ := setup(t, ai)

	d.SubmitTranscription(sess, protocol.ClientAudio{
		AudioB64: base64.StdEncoding.EncodeToString([]byte("chunk")),
	})

	assertSilent(t, c)
	if segments, _ := m.Transcripts(context.Background(), sess.ID); len(segments) != 0 {
		t.Fatalf("failed transcription was persisted")
	}
}

func TestSubmitTranscriptionEmptyTextIsDropped(t *testing.T) {
	ai := &stubIntel{transcript: "   "}
	_, _, d, sess, c, _ := setup(t, ai)

	d.SubmitTranscription(sess, protocol.ClientAudio{
		AudioB64: base64.StdEncoding.EncodeToString([]byte("chunk")),
	})
	assertSilent(t, c)
}

func TestSubmitTranscriptionNoAdapterIsDropped(t *testing.T) {
	_, _, d, sess, c, _ := setup(t, nil)

	d.SubmitTranscription(sess, protocol.ClientAudio{
		AudioB64: base64.StdEncoding.EncodeToString([]byte("chunk")),
	})
	assertSilent(t, c)
}

func TestSubmitAIResponseBroadcastsGeneratedMessage(t *testing.T) {
	ai := &stubIntel{response: &intel.Response{Kind: interview.KindHint, Message: "split by neighborhoods"}}
	m, _, d, sess, c, questionID := setup(t, ai)

	d.SubmitAIResponse(sess, c.client, protocol.ClientAIRequest{QuestionID: questionID, Kind: "hint"})

	frames := collect(t, c, 1)
	if frames[0].Type != "ai_response" {
		t.Fatalf("frame type = %q", frames[0].Type)
	}
	if frames[0].Response.Message != "split by neighborhoods" || frames[0].Response.Kind != "hint" {
		t.Fatalf("response payload = %+v", frames[0].Response)
	}

	responses, _ := m.AIResponses(context.Background(), sess.ID)
	if len(responses) != 1 || responses[0].Message != "split by neighborhoods" {
		t.Fatalf("persisted responses = %+v", responses)
	}
}

func TestSubmitAIResponseServesExactlyOneFallbackOnFailure(t *testing.T) {
	ai := &stubIntel{generateErr: errors.New("quota exceeded")}
	m, _, d, sess, c, questionID := setup(t, ai)

	d.SubmitAIResponse(sess, c.client, protocol.ClientAIRequest{QuestionID: questionID, Kind: "encouragement"})

	frames := collect(t, c, 1)
	if frames[0].Type != "ai_response" {
		t.Fatalf("frame type = %q", frames[0].Type)
	}
	want := intel.Fallback(interview.KindEncouragement).Message
	if frames[0].Response.Message != want {
		t.Fatalf("message = %q, want fallback %q", frames[0].Response.Message, want)
	}
	assertSilent(t, c)

	responses, _ := m.AIResponses(context.Background(), sess.ID)
	if len(responses) != 1 {
		t.Fatalf("persisted %d responses, want exactly 1", len(responses))
	}
}

func TestSubmitAIResponseUnknownKindDefaultsToHint(t *testing.T) {
	_, _, d, sess, c, questionID := setup(t, nil)

	d.SubmitAIResponse(sess, c.client, protocol.ClientAIRequest{QuestionID: questionID, Kind: "interpretive-dance"})

	frames := collect(t, c, 1)
	if frames[0].Response.Kind != "hint" {
		t.Fatalf("kind = %q, want hint", frames[0].Response.Kind)
	}
}

func TestSubmitAIResponseErrorsGoToRequesterOnly(t *testing.T) {
	_, reg, d, sess, c, _ := setup(t, nil)
	bystander := newConn(t, "conn-2")
	reg.Join(sess.Token, bystander.client, sess.Status, sess.CandidateName)

	d.SubmitAIResponse(sess, c.client, protocol.ClientAIRequest{QuestionID: 9999, Kind: "hint"})

	frames := collect(t, c, 1)
	if frames[0].Type != "error" || frames[0].Message != "Question not found" {
		t.Fatalf("frame = %+v", frames[0])
	}
	// Other room members never see another client's error.
	assertSilent(t, bystander)
}

func TestResultsDiscardedAfterEviction(t *testing.T) {
	block := make(chan struct{})
	ai := &blockingIntel{unblock: block, transcript: "late words"}
	m, reg, d, sess, c, _ := setup(t, ai)

	d.SubmitTranscription(sess, protocol.ClientAudio{
		AudioB64: base64.StdEncoding.EncodeToString([]byte("chunk")),
	})

	// Terminate while the transcription is in flight.
	reg.Remove(sess.Token)
	close(block)

	assertSilent(t, c)
	if segments, _ := m.Transcripts(context.Background(), sess.ID); len(segments) != 0 {
		t.Fatalf("result for evicted session was persisted")
	}
}

// blockingIntel parks TranscribeAudio until unblocked.
type blockingIntel struct {
	unblock    <-chan struct{}
	transcript string
}

func (b *blockingIntel) TranscribeAudio(ctx context.Context, _ []byte, _ string) (string, error) {
	select {
	case <-b.unblock:
		return b.transcript, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (b *blockingIntel) GenerateResponse(context.Context, intel.ResponseRequest) (*intel.Response, error) {
	return nil, errors.New("not scripted")
}

func (b *blockingIntel) AnalyzeResponse(context.Context, string, string) (*intel.Analysis, error) {
	return nil, errors.New("not scripted")
}

func (b *blockingIntel) FollowUpQuestion(context.Context, string, string) (string, error) {
	return "", errors.New("not scripted")
}

func TestShutdownWaitsForInflightWork(t *testing.T) {
	block := make(chan struct{})
	ai := &blockingIntel{unblock: block, transcript: "words"}
	_, _, d, sess, _, _ := setup(t, ai)

	d.SubmitTranscription(sess, protocol.ClientAudio{
		AudioB64: base64.StdEncoding.EncodeToString([]byte("chunk")),
	})

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if d.Shutdown(shortCtx) {
		t.Fatalf("Shutdown reported clean drain with a parked task")
	}
	close(block)

	longCtx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	if !d.Shutdown(longCtx) {
		t.Fatalf("Shutdown did not drain after the task finished")
	}
}
