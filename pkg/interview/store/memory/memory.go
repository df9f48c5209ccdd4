// Package memory is an in-process Store used by tests and by dev mode when
// no database is configured. All state is lost on process exit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/store"
)

type Store struct {
	mu sync.Mutex

	nextID int64

	sessions     map[int64]*interview.Session
	byToken      map[string]int64
	codes        map[int64]*interview.Code
	questionSets map[int64]*interview.QuestionSet
	questions    map[int64]*interview.Question
	transcripts  map[int64][]interview.TranscriptSegment
	aiResponses  map[int64][]interview.AIResponse
	responses    map[int64][]interview.QuestionResponse
	recordings   map[int64]*interview.Recording
	prompts      map[int64]*interview.PromptTemplate

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		sessions:     make(map[int64]*interview.Session),
		byToken:      make(map[string]int64),
		codes:        make(map[int64]*interview.Code),
		questionSets: make(map[int64]*interview.QuestionSet),
		questions:    make(map[int64]*interview.Question),
		transcripts:  make(map[int64][]interview.TranscriptSegment),
		aiResponses:  make(map[int64][]interview.AIResponse),
		responses:    make(map[int64][]interview.QuestionResponse),
		recordings:   make(map[int64]*interview.Recording),
		prompts:      make(map[int64]*interview.PromptTemplate),
		now:          time.Now,
	}
}

func (m *Store) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *Store) CreateSession(_ context.Context, s *interview.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	cp := *s
	m.sessions[s.ID] = &cp
	m.byToken[s.Token] = s.ID
	return nil
}

func (m *Store) SessionByToken(_ context.Context, token string) (*interview.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m.sessions[id]
	return &cp, nil
}

func (m *Store) SaveSession(_ context.Context, s *interview.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *Store) ListSessions(_ context.Context) ([]*interview.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*interview.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) CreateCode(_ context.Context, c *interview.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	cp := *c
	m.codes[c.ID] = &cp
	return nil
}

func (m *Store) ListCodes(_ context.Context) ([]*interview.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*interview.Code, 0, len(m.codes))
	for _, c := range m.codes {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) DeleteCode(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.codes[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.codes, id)
	return nil
}

func (m *Store) RedeemCode(_ context.Context, code, candidateName string) (*interview.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Code != code {
			continue
		}
		if c.Used {
			return nil, store.ErrCodeUsed
		}
		if c.Expired(m.now()) {
			return nil, store.ErrNotFound
		}
		used := m.now()
		c.Used = true
		c.UsedAt = &used
		c.CandidateName = candidateName
		cp := *c
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (m *Store) CreateQuestionSet(_ context.Context, qs *interview.QuestionSet, questions []interview.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	qs.ID = m.id()
	if qs.CreatedAt.IsZero() {
		qs.CreatedAt = m.now()
	}
	cp := *qs
	m.questionSets[qs.ID] = &cp
	for i := range questions {
		q := questions[i]
		q.ID = m.id()
		q.QuestionSetID = qs.ID
		if q.CreatedAt.IsZero() {
			q.CreatedAt = m.now()
		}
		m.questions[q.ID] = &q
	}
	return nil
}

func (m *Store) ListQuestionSets(_ context.Context) ([]*interview.QuestionSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*interview.QuestionSet, 0, len(m.questionSets))
	for _, qs := range m.questionSets {
		cp := *qs
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) ActiveQuestionSet(_ context.Context) (*interview.QuestionSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, qs := range m.questionSets {
		if qs.Active {
			cp := *qs
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) ActivateQuestionSet(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target, ok := m.questionSets[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, qs := range m.questionSets {
		qs.Active = false
	}
	target.Active = true
	return nil
}

func (m *Store) Questions(_ context.Context, questionSetID int64) ([]interview.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []interview.Question
	for _, q := range m.questions {
		if q.QuestionSetID == questionSetID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *Store) QuestionByID(_ context.Context, id int64) (*interview.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *Store) AppendTranscript(_ context.Context, seg *interview.TranscriptSegment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seg.ID = m.id()
	if seg.CreatedAt.IsZero() {
		seg.CreatedAt = m.now()
	}
	m.transcripts[seg.SessionID] = append(m.transcripts[seg.SessionID], *seg)
	return nil
}

func (m *Store) Transcripts(_ context.Context, sessionID int64) ([]interview.TranscriptSegment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]interview.TranscriptSegment, len(m.transcripts[sessionID]))
	copy(out, m.transcripts[sessionID])
	return out, nil
}

func (m *Store) AppendAIResponse(_ context.Context, resp *interview.AIResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp.ID = m.id()
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = m.now()
	}
	m.aiResponses[resp.SessionID] = append(m.aiResponses[resp.SessionID], *resp)
	return nil
}

func (m *Store) AIResponses(_ context.Context, sessionID int64) ([]interview.AIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]interview.AIResponse, len(m.aiResponses[sessionID]))
	copy(out, m.aiResponses[sessionID])
	return out, nil
}

func (m *Store) UpsertResponse(_ context.Context, resp *interview.QuestionResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.responses[resp.SessionID]
	for i := range existing {
		if existing[i].QuestionID == resp.QuestionID {
			resp.ID = existing[i].ID
			resp.StartedAt = existing[i].StartedAt
			existing[i] = *resp
			return nil
		}
	}
	resp.ID = m.id()
	if resp.StartedAt.IsZero() {
		resp.StartedAt = m.now()
	}
	m.responses[resp.SessionID] = append(existing, *resp)
	return nil
}

func (m *Store) Responses(_ context.Context, sessionID int64) ([]interview.QuestionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]interview.QuestionResponse, len(m.responses[sessionID]))
	copy(out, m.responses[sessionID])
	return out, nil
}

func (m *Store) AddRecording(_ context.Context, rec *interview.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = m.id()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now()
	}
	cp := *rec
	m.recordings[rec.ID] = &cp
	return nil
}

func (m *Store) Recordings(_ context.Context, sessionID int64) ([]interview.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []interview.Recording
	for _, rec := range m.recordings {
		if rec.SessionID == sessionID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) RecordingByID(_ context.Context, id int64) (*interview.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recordings[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *Store) CreatePromptTemplate(_ context.Context, t *interview.PromptTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	now := m.now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Default {
		for _, p := range m.prompts {
			p.Default = false
		}
	}
	cp := *t
	m.prompts[t.ID] = &cp
	return nil
}

func (m *Store) ListPromptTemplates(_ context.Context) ([]*interview.PromptTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*interview.PromptTemplate, 0, len(m.prompts))
	for _, p := range m.prompts {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) DefaultPromptTemplate(_ context.Context) (*interview.PromptTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prompts {
		if p.Default {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}
