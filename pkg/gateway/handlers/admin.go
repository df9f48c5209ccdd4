package handlers

import (
	"crypto/rand"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hirewire/interview-gateway/pkg/gateway/config"
	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/store"
)

// AdminHandler serves the operator REST API under /api/admin. Every route
// sits behind the bearer-key middleware.
type AdminHandler struct {
	Config config.Config
	Store  store.Store
	Logger *slog.Logger
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newAccessCode returns an 8-character code drawn from an alphabet without
// lookalike characters.
func newAccessCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic("handlers: crypto/rand failed: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

func (h AdminHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.Store.ListCodes(r.Context())
	if err != nil {
		writeError(w, interview.NewPersistenceError("list codes", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

func (h AdminHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CandidateName  string `json:"candidate_name"`
		ExpiresInHours int    `json:"expires_in_hours"`
	}
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}

	code := &interview.Code{
		Code:          newAccessCode(),
		CandidateName: strings.TrimSpace(req.CandidateName),
	}
	if req.ExpiresInHours > 0 {
		exp := time.Now().UTC().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		code.ExpiresAt = &exp
	}
	if err := h.Store.CreateCode(r.Context(), code); err != nil {
		writeError(w, interview.NewPersistenceError("create code", err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "code": code})
}

func (h AdminHandler) DeleteCode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, interview.NewInvalidRequestErrorWithParam("invalid code id", "id"))
		return
	}
	if err := h.Store.DeleteCode(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, interview.NewNotFoundError("Code not found"))
			return
		}
		writeError(w, interview.NewPersistenceError("delete code", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h AdminHandler) ListQuestionSets(w http.ResponseWriter, r *http.Request) {
	sets, err := h.Store.ListQuestionSets(r.Context())
	if err != nil {
		writeError(w, interview.NewPersistenceError("list question sets", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"question_sets": sets})
}

func (h AdminHandler) CreateQuestionSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Questions   []struct {
			Text      string   `json:"text"`
			TimeLimit int      `json:"time_limit"`
			Hints     []string `json:"hints"`
		} `json:"questions"`
	}
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, interview.NewInvalidRequestErrorWithParam("name is required", "name"))
		return
	}
	if len(req.Questions) == 0 {
		writeError(w, interview.NewInvalidRequestErrorWithParam("at least one question is required", "questions"))
		return
	}

	qs := &interview.QuestionSet{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	questions := make([]interview.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		if strings.TrimSpace(q.Text) == "" {
			writeError(w, interview.NewInvalidRequestErrorWithParam("question text is required", "questions"))
			return
		}
		limit := q.TimeLimit
		if limit <= 0 {
			limit = 300
		}
		questions = append(questions, interview.Question{
			Text:       strings.TrimSpace(q.Text),
			OrderIndex: i,
			TimeLimit:  limit,
			Hints:      q.Hints,
		})
	}
	if err := h.Store.CreateQuestionSet(r.Context(), qs, questions); err != nil {
		writeError(w, interview.NewPersistenceError("create question set", err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "question_set": qs})
}

func (h AdminHandler) ActivateQuestionSet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, interview.NewInvalidRequestErrorWithParam("invalid question set id", "id"))
		return
	}
	if err := h.Store.ActivateQuestionSet(r.Context(), id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, interview.NewNotFoundError("Question set not found"))
			return
		}
		writeError(w, interview.NewPersistenceError("activate question set", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Store.ListSessions(r.Context())
	if err != nil {
		writeError(w, interview.NewPersistenceError("list sessions", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// sessionByToken resolves the {token} path value, writing the error response
// itself on failure.
func (h AdminHandler) sessionByToken(w http.ResponseWriter, r *http.Request) (*interview.Session, bool) {
	sess, err := h.Store.SessionByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, interview.NewSessionNotFoundError(r.PathValue("token")))
			return nil, false
		}
		writeError(w, interview.NewPersistenceError("load session", err))
		return nil, false
	}
	return sess, true
}

func (h AdminHandler) SessionDetails(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionByToken(w, r)
	if !ok {
		return
	}
	questions, err := h.Store.Questions(r.Context(), sess.QuestionSetID)
	if err != nil {
		writeError(w, interview.NewPersistenceError("load questions", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":   sess,
		"questions": questions,
	})
}

func (h AdminHandler) SessionResponses(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionByToken(w, r)
	if !ok {
		return
	}
	responses, err := h.Store.Responses(r.Context(), sess.ID)
	if err != nil {
		writeError(w, interview.NewPersistenceError("list responses", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": responses})
}

func (h AdminHandler) SessionTranscripts(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionByToken(w, r)
	if !ok {
		return
	}
	segments, err := h.Store.Transcripts(r.Context(), sess.ID)
	if err != nil {
		writeError(w, interview.NewPersistenceError("list transcripts", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcripts": segments})
}

func (h AdminHandler) SessionAIResponses(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionByToken(w, r)
	if !ok {
		return
	}
	responses, err := h.Store.AIResponses(r.Context(), sess.ID)
	if err != nil {
		writeError(w, interview.NewPersistenceError("list ai responses", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ai_responses": responses})
}

func (h AdminHandler) SessionRecordings(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionByToken(w, r)
	if !ok {
		return
	}
	recordings, err := h.Store.Recordings(r.Context(), sess.ID)
	if err != nil {
		writeError(w, interview.NewPersistenceError("list recordings", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recordings})
}

func (h AdminHandler) ListPromptTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.ListPromptTemplates(r.Context())
	if err != nil {
		writeError(w, interview.NewPersistenceError("list prompt templates", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ai_prompts": templates})
}

func (h AdminHandler) CreatePromptTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		PromptText  string `json:"prompt_text"`
		IsDefault   bool   `json:"is_default"`
	}
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.PromptText) == "" {
		writeError(w, interview.NewInvalidRequestError("name and prompt_text are required"))
		return
	}

	tmpl := &interview.PromptTemplate{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Text:        req.PromptText,
		Default:     req.IsDefault,
	}
	if err := h.Store.CreatePromptTemplate(r.Context(), tmpl); err != nil {
		writeError(w, interview.NewPersistenceError("create prompt template", err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "ai_prompt": tmpl})
}
