package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hirewire/interview-gateway/pkg/gateway/config"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/orchestrator"
	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/media"
	"github.com/hirewire/interview-gateway/pkg/interview/store"
)

// InterviewHandler serves the candidate-facing REST API under
// /api/interview.
type InterviewHandler struct {
	Config       config.Config
	Store        store.Store
	Orchestrator *orchestrator.Orchestrator
	Media        media.Store
	Logger       *slog.Logger
}

type questionSetInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h InterviewHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code          string `json:"code"`
		CandidateName string `json:"candidate_name"`
	}
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.CandidateName)
	if code == "" || name == "" {
		writeError(w, interview.NewInvalidRequestError("Code and candidate name are required"))
		return
	}

	sess, qs, err := h.Orchestrator.CreateSession(r.Context(), code, name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"session_id":     sess.Token,
		"candidate_name": sess.CandidateName,
		"question_set": questionSetInfo{
			ID:          qs.ID,
			Name:        qs.Name,
			Description: qs.Description,
		},
	})
}

func (h InterviewHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Orchestrator.Session(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	questions, err := h.Orchestrator.Questions(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session":   sess,
		"questions": questions,
	})
}

func (h InterviewHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	_, question, err := h.Orchestrator.Start(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"current_question": question,
	})
}

func (h InterviewHandler) NextQuestion(w http.ResponseWriter, r *http.Request) {
	sess, question, err := h.Orchestrator.Advance(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	if question == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":             true,
			"interview_completed": true,
			"message":             "Interview completed successfully",
			"status":              sess.Status,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"current_question": question,
	})
}

func (h InterviewHandler) SaveResponse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuestionID int64           `json:"question_id"`
		Transcript string          `json:"transcript"`
		AIAnalysis json.RawMessage `json:"ai_analysis,omitempty"`
		AIScore    *float64        `json:"ai_score,omitempty"`
	}
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.QuestionID == 0 {
		writeError(w, interview.NewInvalidRequestErrorWithParam("question_id is required", "question_id"))
		return
	}

	sess, err := h.Orchestrator.Session(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now().UTC()
	resp := &interview.QuestionResponse{
		SessionID:   sess.ID,
		QuestionID:  req.QuestionID,
		Transcript:  req.Transcript,
		Analysis:    string(req.AIAnalysis),
		Score:       req.AIScore,
		CompletedAt: &now,
	}
	if err := h.Store.UpsertResponse(r.Context(), resp); err != nil {
		writeError(w, interview.NewPersistenceError("save response", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h InterviewHandler) GetAIPrompt(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Orchestrator.Session(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}

	if sess.AIPrompt != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"ai_prompt": map[string]any{"prompt_text": sess.AIPrompt},
		})
		return
	}

	tmpl, err := h.Store.DefaultPromptTemplate(r.Context())
	if err != nil {
		writeError(w, interview.NewNotFoundError("No AI prompt configuration available"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ai_prompt": map[string]any{
			"template_id": tmpl.ID,
			"prompt_text": tmpl.Text,
		},
	})
}

func (h InterviewHandler) UploadRecording(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxUploadBytes)
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		writeError(w, interview.NewInvalidRequestError("invalid multipart body"))
		return
	}

	file, header, err := r.FormFile("recording")
	if err != nil {
		writeError(w, interview.NewInvalidRequestError("No recording file provided"))
		return
	}
	defer file.Close()

	token := strings.TrimSpace(r.FormValue("session_id"))
	if token == "" {
		writeError(w, interview.NewInvalidRequestErrorWithParam("Session ID is required", "session_id"))
		return
	}
	sess, err := h.Orchestrator.Session(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	kind, ok := interview.ParseRecordingKind(strings.TrimSpace(r.FormValue("recording_type")))
	if !ok {
		kind = interview.RecordingVideo
	}
	var questionID *int64
	if raw := strings.TrimSpace(r.FormValue("question_id")); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			questionID = &id
		}
	}
	duration, _ := strconv.ParseFloat(strings.TrimSpace(r.FormValue("duration")), 64)

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/webm"
	}
	loc, err := h.Media.Put(r.Context(), file, media.PutInfo{
		SessionToken: sess.Token,
		Filename:     header.Filename,
		ContentType:  contentType,
		Size:         header.Size,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("recording upload failed", "session_id", sess.Token, "error", err)
		}
		writeError(w, &interview.Error{Type: interview.ErrAPI, Message: "Failed to upload recording"})
		return
	}

	rec := &interview.Recording{
		SessionID:  sess.ID,
		QuestionID: questionID,
		Kind:       kind,
		Path:       loc.Path,
		Size:       header.Size,
		Duration:   duration,
		Storage:    loc.Storage,
		ObjectKey:  loc.ObjectKey,
	}
	if err := h.Store.AddRecording(r.Context(), rec); err != nil {
		writeError(w, interview.NewPersistenceError("save recording", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"recording_id": rec.ID,
		"file_size":    rec.Size,
		"duration":     rec.Duration,
		"storage_type": rec.Storage,
		"message":      "Recording uploaded successfully",
	})
}

func (h InterviewHandler) SessionRecordings(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Orchestrator.Session(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	recordings, err := h.Store.Recordings(r.Context(), sess.ID)
	if err != nil {
		writeError(w, interview.NewPersistenceError("list recordings", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": recordings})
}

func (h InterviewHandler) DownloadRecording(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, interview.NewInvalidRequestErrorWithParam("invalid recording id", "id"))
		return
	}
	rec, err := h.Store.RecordingByID(r.Context(), id)
	if err != nil {
		writeError(w, interview.NewNotFoundError("Recording not found"))
		return
	}

	dl, err := h.Media.DownloadFor(r.Context(), media.Locator{
		Storage:   rec.Storage,
		Path:      rec.Path,
		ObjectKey: rec.ObjectKey,
	}, h.Config.DownloadURLTTL)
	if err != nil {
		writeError(w, interview.NewExternalServiceError("resolve download", err))
		return
	}
	if dl.URL != "" {
		http.Redirect(w, r, dl.URL, http.StatusFound)
		return
	}
	http.ServeFile(w, r, dl.Path)
}
