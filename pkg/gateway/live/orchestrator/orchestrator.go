// Package orchestrator owns the interview session lifecycle: redeeming a
// code into a pending session, walking the question sequence, and moving
// the session through its status machine.
//
// Every status change commits to the store before it touches the room
// registry's cache; if the store write fails the cache is untouched and the
// caller sees the error. Terminal statuses evict the room so queued
// background results are discarded.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hirewire/interview-gateway/pkg/gateway/live/protocol"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/rooms"
	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/store"
)

type Orchestrator struct {
	store store.Store
	rooms *rooms.Registry
	now   func() time.Time
}

func New(st store.Store, reg *rooms.Registry) *Orchestrator {
	return &Orchestrator{store: st, rooms: reg, now: time.Now}
}

// CreateSession redeems an access code and creates a pending session bound
// to the active question set.
func (o *Orchestrator) CreateSession(ctx context.Context, code, candidateName string) (*interview.Session, *interview.QuestionSet, error) {
	qs, err := o.store.ActiveQuestionSet(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, interview.NewInvalidRequestError("No active question set available")
		}
		return nil, nil, interview.NewPersistenceError("load active question set", err)
	}

	redeemed, err := o.store.RedeemCode(ctx, code, candidateName)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrCodeUsed), errors.Is(err, store.ErrNotFound):
			return nil, nil, interview.NewInvalidRequestErrorWithParam("Invalid or already used code", "code")
		default:
			return nil, nil, interview.NewPersistenceError("redeem code", err)
		}
	}

	sess := &interview.Session{
		Token:         uuid.NewString(),
		CodeID:        redeemed.ID,
		CandidateName: candidateName,
		QuestionSetID: qs.ID,
		Status:        interview.StatusPending,
	}
	if err := o.store.CreateSession(ctx, sess); err != nil {
		return nil, nil, interview.NewPersistenceError("create session", err)
	}
	return sess, qs, nil
}

// Session loads a session by its token.
func (o *Orchestrator) Session(ctx context.Context, token string) (*interview.Session, error) {
	sess, err := o.store.SessionByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, interview.NewSessionNotFoundError(token)
		}
		return nil, interview.NewPersistenceError("load session", err)
	}
	return sess, nil
}

// Questions returns the session's question sequence in order.
func (o *Orchestrator) Questions(ctx context.Context, sess *interview.Session) ([]interview.Question, error) {
	questions, err := o.store.Questions(ctx, sess.QuestionSetID)
	if err != nil {
		return nil, interview.NewPersistenceError("load questions", err)
	}
	return questions, nil
}

// commit persists the session and only then mirrors the status into the
// room cache. sess is not mutated on failure.
func (o *Orchestrator) commit(ctx context.Context, sess *interview.Session, mutate func(*interview.Session)) error {
	next := *sess
	mutate(&next)
	if err := o.store.SaveSession(ctx, &next); err != nil {
		return interview.NewPersistenceError("save session", err)
	}
	*sess = next
	if sess.Status.Terminal() {
		o.rooms.Broadcast(sess.Token, statusFrame(sess))
		o.rooms.Remove(sess.Token)
	} else {
		o.rooms.SetStatus(sess.Token, sess.Status)
	}
	return nil
}

// Start moves a pending session to active on its first question.
func (o *Orchestrator) Start(ctx context.Context, token string) (*interview.Session, *interview.Question, error) {
	sess, err := o.Session(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status != interview.StatusPending {
		return nil, nil, interview.NewInvalidTransitionError(sess.Status, interview.StatusActive)
	}

	questions, err := o.Questions(ctx, sess)
	if err != nil {
		return nil, nil, err
	}
	if len(questions) == 0 {
		return nil, nil, interview.NewInvalidRequestError("No questions available")
	}
	first := questions[0]

	err = o.commit(ctx, sess, func(s *interview.Session) {
		now := o.now().UTC()
		s.Status = interview.StatusActive
		s.StartedAt = &now
		s.CurrentQuestionID = &first.ID
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, &first, nil
}

// Advance moves an active session to the question after the current one.
// When the sequence is exhausted the session completes; the returned
// question is nil in that case.
func (o *Orchestrator) Advance(ctx context.Context, token string) (*interview.Session, *interview.Question, error) {
	sess, err := o.Session(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status != interview.StatusActive {
		return nil, nil, &interview.Error{
			Type:    interview.ErrInvalidState,
			Message: "Session is not active",
			Code:    "session_not_active",
		}
	}

	questions, err := o.Questions(ctx, sess)
	if err != nil {
		return nil, nil, err
	}

	var next *interview.Question
	if sess.CurrentQuestionID != nil {
		for i := range questions {
			if questions[i].ID == *sess.CurrentQuestionID && i+1 < len(questions) {
				next = &questions[i+1]
				break
			}
		}
	} else if len(questions) > 0 {
		next = &questions[0]
	}

	if next == nil {
		err = o.commit(ctx, sess, func(s *interview.Session) {
			now := o.now().UTC()
			s.Status = interview.StatusCompleted
			s.CompletedAt = &now
		})
		if err != nil {
			return nil, nil, err
		}
		return sess, nil, nil
	}

	err = o.commit(ctx, sess, func(s *interview.Session) {
		s.CurrentQuestionID = &next.ID
	})
	if err != nil {
		return nil, nil, err
	}
	return sess, next, nil
}

// SetStatus applies an explicit status transition, validating it against
// the lifecycle machine.
func (o *Orchestrator) SetStatus(ctx context.Context, token string, to interview.Status) (*interview.Session, error) {
	sess, err := o.Session(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, interview.NewInvalidTransitionError(sess.Status, to)
	}
	if sess.Status == to {
		return sess, nil
	}
	if !interview.CanTransition(sess.Status, to) {
		return nil, interview.NewInvalidTransitionError(sess.Status, to)
	}

	err = o.commit(ctx, sess, func(s *interview.Session) {
		s.Status = to
		now := o.now().UTC()
		switch to {
		case interview.StatusActive:
			if s.StartedAt == nil {
				s.StartedAt = &now
			}
		case interview.StatusCompleted, interview.StatusTerminated:
			s.CompletedAt = &now
		}
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func statusFrame(sess *interview.Session) protocol.ServerStatusUpdated {
	return protocol.ServerStatusUpdated{
		Type:      "session_status_updated",
		SessionID: sess.Token,
		Status:    string(sess.Status),
	}
}
