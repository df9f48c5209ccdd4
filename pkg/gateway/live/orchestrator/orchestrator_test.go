package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/hirewire/interview-gateway/pkg/gateway/live/rooms"
	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/store"
	"github.com/hirewire/interview-gateway/pkg/interview/store/memory"
)

// failingStore wraps the memory store and fails SaveSession on demand.
type failingStore struct {
	store.Store
	failSave bool
}

func (f *failingStore) SaveSession(ctx context.Context, s *interview.Session) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.Store.SaveSession(ctx, s)
}

func seed(t *testing.T) (*memory.Store, *rooms.Registry, *Orchestrator, string) {
	t.Helper()
	ctx := context.Background()
	m := memory.New()

	qs := &interview.QuestionSet{Name: "Market sizing", Active: true}
	if err := m.CreateQuestionSet(ctx, qs, []interview.Question{
		{Text: "How many piano tuners are in Chicago?", OrderIndex: 0, TimeLimit: 300},
		{Text: "Estimate annual US coffee consumption.", OrderIndex: 1, TimeLimit: 300},
	}); err != nil {
		t.Fatalf("CreateQuestionSet() error = %v", err)
	}
	if err := m.CreateCode(ctx, &interview.Code{Code: "ABCD1234"}); err != nil {
		t.Fatalf("CreateCode() error = %v", err)
	}

	reg := rooms.NewRegistry(nil)
	o := New(m, reg)

	sess, _, err := o.CreateSession(ctx, "ABCD1234", "Ada")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	return m, reg, o, sess.Token
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()
	_, _, o, token := seed(t)

	sess, err := o.Session(ctx, token)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if sess.Status != interview.StatusPending {
		t.Fatalf("Status = %q, want pending", sess.Status)
	}
	if sess.CandidateName != "Ada" {
		t.Fatalf("CandidateName = %q", sess.CandidateName)
	}
	if sess.Token == "" {
		t.Fatalf("session has no token")
	}
}

func TestCreateSessionRejectsReusedCode(t *testing.T) {
	ctx := context.Background()
	_, _, o, _ := seed(t)

	_, _, err := o.CreateSession(ctx, "ABCD1234", "Bob")
	if !interview.IsType(err, interview.ErrInvalidRequest) {
		t.Fatalf("reused code error = %v, want invalid_request_error", err)
	}
	if interview.AsError(err).Message != "Invalid or already used code" {
		t.Fatalf("Message = %q", interview.AsError(err).Message)
	}
}

func TestCreateSessionRequiresActiveQuestionSet(t *testing.T) {
	ctx := context.Background()
	m := memory.New()
	if err := m.CreateCode(ctx, &interview.Code{Code: "ABCD1234"}); err != nil {
		t.Fatalf("CreateCode() error = %v", err)
	}
	o := New(m, rooms.NewRegistry(nil))

	_, _, err := o.CreateSession(ctx, "ABCD1234", "Ada")
	if err == nil || interview.AsError(err).Message != "No active question set available" {
		t.Fatalf("error = %v, want no-active-set failure", err)
	}
}

func TestSessionUnknownToken(t *testing.T) {
	ctx := context.Background()
	_, _, o, _ := seed(t)

	_, err := o.Session(ctx, "missing")
	if !interview.IsType(err, interview.ErrSessionNotFound) {
		t.Fatalf("error = %v, want session_not_found_error", err)
	}
}

func TestStartMovesToFirstQuestion(t *testing.T) {
	ctx := context.Background()
	_, _, o, token := seed(t)

	sess, question, err := o.Start(ctx, token)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sess.Status != interview.StatusActive {
		t.Fatalf("Status = %q, want active", sess.Status)
	}
	if sess.StartedAt == nil {
		t.Fatalf("StartedAt not set")
	}
	if question == nil || question.OrderIndex != 0 {
		t.Fatalf("first question = %+v", question)
	}
	if sess.CurrentQuestionID == nil || *sess.CurrentQuestionID != question.ID {
		t.Fatalf("CurrentQuestionID = %v", sess.CurrentQuestionID)
	}

	// A second start is an illegal transition.
	if _, _, err := o.Start(ctx, token); !interview.IsType(err, interview.ErrInvalidState) {
		t.Fatalf("second Start() error = %v, want invalid_transition_error", err)
	}
}

func TestAdvanceWalksSequenceAndCompletes(t *testing.T) {
	ctx := context.Background()
	_, _, o, token := seed(t)

	if _, _, err := o.Start(ctx, token); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	sess, question, err := o.Advance(ctx, token)
	if err != nil {
		t.Fatalf("Advance() error = %v", err)
	}
	if question == nil || question.OrderIndex != 1 {
		t.Fatalf("second question = %+v", question)
	}
	if sess.Status != interview.StatusActive {
		t.Fatalf("Status = %q mid-sequence, want active", sess.Status)
	}

	sess, question, err = o.Advance(ctx, token)
	if err != nil {
		t.Fatalf("final Advance() error = %v", err)
	}
	if question != nil {
		t.Fatalf("exhausted sequence returned question %+v", question)
	}
	if sess.Status != interview.StatusCompleted {
		t.Fatalf("Status = %q after exhaustion, want completed", sess.Status)
	}
	if sess.CompletedAt == nil {
		t.Fatalf("CompletedAt not set")
	}
}

func TestAdvanceRequiresActiveSession(t *testing.T) {
	ctx := context.Background()
	_, _, o, token := seed(t)

	_, _, err := o.Advance(ctx, token)
	if !interview.IsType(err, interview.ErrInvalidState) {
		t.Fatalf("error = %v, want invalid_transition_error", err)
	}
	de := interview.AsError(err)
	if de.Message != "Session is not active" || de.Code != "session_not_active" {
		t.Fatalf("error envelope = %+v", de)
	}
}

func TestSetStatusValidatesTransitions(t *testing.T) {
	ctx := context.Background()
	_, _, o, token := seed(t)

	// pending -> completed is illegal.
	if _, err := o.SetStatus(ctx, token, interview.StatusCompleted); !interview.IsType(err, interview.ErrInvalidState) {
		t.Fatalf("pending->completed error = %v", err)
	}

	sess, err := o.SetStatus(ctx, token, interview.StatusActive)
	if err != nil {
		t.Fatalf("pending->active error = %v", err)
	}
	if sess.StartedAt == nil {
		t.Fatalf("StartedAt not set on activation")
	}

	// Same-status update is a no-op.
	if _, err := o.SetStatus(ctx, token, interview.StatusActive); err != nil {
		t.Fatalf("active->active error = %v", err)
	}

	sess, err = o.SetStatus(ctx, token, interview.StatusTerminated)
	if err != nil {
		t.Fatalf("active->terminated error = %v", err)
	}
	if sess.CompletedAt == nil {
		t.Fatalf("CompletedAt not set on termination")
	}

	// Terminal states absorb everything.
	if _, err := o.SetStatus(ctx, token, interview.StatusActive); !interview.IsType(err, interview.ErrInvalidState) {
		t.Fatalf("terminated->active error = %v", err)
	}
}

func TestSetStatusRejectsTerminalNoOp(t *testing.T) {
	ctx := context.Background()
	_, _, o, token := seed(t)

	if _, _, err := o.Start(ctx, token); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := o.SetStatus(ctx, token, interview.StatusCompleted); err != nil {
		t.Fatalf("active->completed error = %v", err)
	}

	// Terminal states reject every attempt, including the same status.
	if _, err := o.SetStatus(ctx, token, interview.StatusCompleted); !interview.IsType(err, interview.ErrInvalidState) {
		t.Fatalf("completed->completed error = %v, want invalid_transition_error", err)
	}
}

func TestTerminalTransitionEvictsRoom(t *testing.T) {
	ctx := context.Background()
	_, reg, o, token := seed(t)

	c := rooms.NewClient("conn-1", 8)
	reg.Join(token, c, interview.StatusPending, "Ada")

	if _, err := o.SetStatus(ctx, token, interview.StatusTerminated); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if reg.MemberCount(token) != 0 {
		t.Fatalf("room survived a terminal transition")
	}
	if _, ok := reg.Status(token); ok {
		t.Fatalf("room status still cached after eviction")
	}
}

func TestCommitRollsBackOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := seed(t)

	fs := &failingStore{Store: m}
	reg := rooms.NewRegistry(nil)
	o := New(fs, reg)

	if err := m.CreateCode(ctx, &interview.Code{Code: "EFGH5678"}); err != nil {
		t.Fatalf("CreateCode() error = %v", err)
	}
	sess, _, err := o.CreateSession(ctx, "EFGH5678", "Bob")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	reg.Join(sess.Token, rooms.NewClient("conn-1", 8), sess.Status, "Bob")

	fs.failSave = true
	if _, _, err := o.Start(ctx, sess.Token); !interview.IsType(err, interview.ErrPersistence) {
		t.Fatalf("Start() with failing store error = %v", err)
	}

	// Neither the store nor the room cache moved.
	stored, err := m.SessionByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("SessionByToken() error = %v", err)
	}
	if stored.Status != interview.StatusPending {
		t.Fatalf("stored Status = %q after failed commit, want pending", stored.Status)
	}
	if status, _ := reg.Status(sess.Token); status != interview.StatusPending {
		t.Fatalf("cached Status = %q after failed commit, want pending", status)
	}

	fs.failSave = false
	if _, _, err := o.Start(ctx, sess.Token); err != nil {
		t.Fatalf("Start() after recovery error = %v", err)
	}
}
