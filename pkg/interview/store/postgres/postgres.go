// Package postgres implements the store contract on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/store"
)

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

const sessionCols = `id, session_token, code_id, candidate_name, question_set_id,
	status, current_question_id, started_at, completed_at, created_at, ai_prompt`

func scanSession(row pgx.Row) (*interview.Session, error) {
	var s interview.Session
	err := row.Scan(&s.ID, &s.Token, &s.CodeID, &s.CandidateName, &s.QuestionSetID,
		&s.Status, &s.CurrentQuestionID, &s.StartedAt, &s.CompletedAt, &s.CreatedAt, &s.AIPrompt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (s *Store) CreateSession(ctx context.Context, sess *interview.Session) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO interview_sessions
			(session_token, code_id, candidate_name, question_set_id, status, ai_prompt)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		sess.Token, sess.CodeID, sess.CandidateName, sess.QuestionSetID, sess.Status, sess.AIPrompt)
	return row.Scan(&sess.ID, &sess.CreatedAt)
}

func (s *Store) SessionByToken(ctx context.Context, token string) (*interview.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionCols+` FROM interview_sessions WHERE session_token = $1`, token)
	return scanSession(row)
}

func (s *Store) SaveSession(ctx context.Context, sess *interview.Session) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE interview_sessions
		SET status = $2, current_question_id = $3, started_at = $4, completed_at = $5
		WHERE id = $1`,
		sess.ID, sess.Status, sess.CurrentQuestionID, sess.StartedAt, sess.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListSessions(ctx context.Context) ([]*interview.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionCols+` FROM interview_sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*interview.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanCode(row pgx.Row) (*interview.Code, error) {
	var c interview.Code
	err := row.Scan(&c.ID, &c.Code, &c.CandidateName, &c.Used, &c.CreatedAt, &c.UsedAt, &c.ExpiresAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) CreateCode(ctx context.Context, c *interview.Code) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO interview_codes (code, candidate_name, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		c.Code, c.CandidateName, c.ExpiresAt)
	return row.Scan(&c.ID, &c.CreatedAt)
}

func (s *Store) ListCodes(ctx context.Context) ([]*interview.Code, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, candidate_name, is_used, created_at, used_at, expires_at
		FROM interview_codes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*interview.Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DeleteCode(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM interview_codes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RedeemCode consumes a code atomically. The guarded UPDATE loses races by
// matching zero rows, in which case the second read distinguishes a used
// code from an unknown one.
func (s *Store) RedeemCode(ctx context.Context, code, candidateName string) (*interview.Code, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE interview_codes
		SET is_used = TRUE, used_at = now(), candidate_name = $2
		WHERE code = $1 AND NOT is_used AND (expires_at IS NULL OR expires_at > now())
		RETURNING id, code, candidate_name, is_used, created_at, used_at, expires_at`,
		code, candidateName)
	c, err := scanCode(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	var used bool
	probe := s.pool.QueryRow(ctx, `SELECT is_used FROM interview_codes WHERE code = $1`, code)
	if err := probe.Scan(&used); err != nil {
		return nil, mapErr(err)
	}
	if used {
		return nil, store.ErrCodeUsed
	}
	// Known but expired.
	return nil, store.ErrNotFound
}

func (s *Store) CreateQuestionSet(ctx context.Context, qs *interview.QuestionSet, questions []interview.Question) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO question_sets (name, description, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		qs.Name, qs.Description, qs.Active)
	if err := row.Scan(&qs.ID, &qs.CreatedAt); err != nil {
		return err
	}
	for i := range questions {
		q := &questions[i]
		q.QuestionSetID = qs.ID
		hints, err := json.Marshal(q.Hints)
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			INSERT INTO questions (question_set_id, text, order_index, time_limit, hints)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			q.QuestionSetID, q.Text, q.OrderIndex, q.TimeLimit, hints)
		if err := row.Scan(&q.ID, &q.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListQuestionSets(ctx context.Context) ([]*interview.QuestionSet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM question_sets ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*interview.QuestionSet
	for rows.Next() {
		var qs interview.QuestionSet
		if err := rows.Scan(&qs.ID, &qs.Name, &qs.Description, &qs.Active, &qs.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &qs)
	}
	return out, rows.Err()
}

func (s *Store) ActiveQuestionSet(ctx context.Context) (*interview.QuestionSet, error) {
	var qs interview.QuestionSet
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, is_active, created_at
		FROM question_sets WHERE is_active LIMIT 1`)
	if err := row.Scan(&qs.ID, &qs.Name, &qs.Description, &qs.Active, &qs.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &qs, nil
}

func (s *Store) ActivateQuestionSet(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE question_sets SET is_active = FALSE WHERE is_active`); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE question_sets SET is_active = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return tx.Commit(ctx)
}

func scanQuestion(row pgx.Row) (*interview.Question, error) {
	var q interview.Question
	var hints []byte
	err := row.Scan(&q.ID, &q.QuestionSetID, &q.Text, &q.OrderIndex, &q.TimeLimit, &hints, &q.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(hints) > 0 {
		if err := json.Unmarshal(hints, &q.Hints); err != nil {
			return nil, fmt.Errorf("decode hints for question %d: %w", q.ID, err)
		}
	}
	return &q, nil
}

func (s *Store) Questions(ctx context.Context, questionSetID int64) ([]interview.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, question_set_id, text, order_index, time_limit, hints, created_at
		FROM questions WHERE question_set_id = $1 ORDER BY order_index`, questionSetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []interview.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (s *Store) QuestionByID(ctx context.Context, id int64) (*interview.Question, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, question_set_id, text, order_index, time_limit, hints, created_at
		FROM questions WHERE id = $1`, id)
	return scanQuestion(row)
}

func (s *Store) AppendTranscript(ctx context.Context, seg *interview.TranscriptSegment) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO transcript_segments
			(session_id, question_id, text, confidence, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		seg.SessionID, seg.QuestionID, seg.Text, seg.Confidence, seg.StartTime, seg.EndTime)
	return row.Scan(&seg.ID, &seg.CreatedAt)
}

func (s *Store) Transcripts(ctx context.Context, sessionID int64) ([]interview.TranscriptSegment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, question_id, text, confidence, start_time, end_time, created_at
		FROM transcript_segments WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []interview.TranscriptSegment
	for rows.Next() {
		var seg interview.TranscriptSegment
		err := rows.Scan(&seg.ID, &seg.SessionID, &seg.QuestionID, &seg.Text,
			&seg.Confidence, &seg.StartTime, &seg.EndTime, &seg.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (s *Store) AppendAIResponse(ctx context.Context, resp *interview.AIResponse) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO ai_responses (session_id, question_id, response_type, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		resp.SessionID, resp.QuestionID, resp.Kind, resp.Message)
	return row.Scan(&resp.ID, &resp.CreatedAt)
}

func (s *Store) AIResponses(ctx context.Context, sessionID int64) ([]interview.AIResponse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, question_id, response_type, message, created_at
		FROM ai_responses WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []interview.AIResponse
	for rows.Next() {
		var resp interview.AIResponse
		err := rows.Scan(&resp.ID, &resp.SessionID, &resp.QuestionID, &resp.Kind,
			&resp.Message, &resp.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (s *Store) UpsertResponse(ctx context.Context, resp *interview.QuestionResponse) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO question_responses
			(session_id, question_id, transcript, analysis, score, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id, question_id) DO UPDATE
		SET transcript = EXCLUDED.transcript,
		    analysis = EXCLUDED.analysis,
		    score = EXCLUDED.score,
		    completed_at = EXCLUDED.completed_at
		RETURNING id, started_at`,
		resp.SessionID, resp.QuestionID, resp.Transcript, resp.Analysis, resp.Score, resp.CompletedAt)
	return row.Scan(&resp.ID, &resp.StartedAt)
}

func (s *Store) Responses(ctx context.Context, sessionID int64) ([]interview.QuestionResponse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, question_id, transcript, analysis, score, started_at, completed_at
		FROM question_responses WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []interview.QuestionResponse
	for rows.Next() {
		var resp interview.QuestionResponse
		err := rows.Scan(&resp.ID, &resp.SessionID, &resp.QuestionID, &resp.Transcript,
			&resp.Analysis, &resp.Score, &resp.StartedAt, &resp.CompletedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (s *Store) AddRecording(ctx context.Context, rec *interview.Recording) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO recordings
			(session_id, question_id, recording_type, path, file_size, duration, storage_type, object_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		rec.SessionID, rec.QuestionID, rec.Kind, rec.Path, rec.Size, rec.Duration, rec.Storage, rec.ObjectKey)
	return row.Scan(&rec.ID, &rec.CreatedAt)
}

const recordingCols = `id, session_id, question_id, recording_type, path, file_size,
	duration, storage_type, object_key, created_at`

func scanRecording(row pgx.Row) (*interview.Recording, error) {
	var rec interview.Recording
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.QuestionID, &rec.Kind, &rec.Path,
		&rec.Size, &rec.Duration, &rec.Storage, &rec.ObjectKey, &rec.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &rec, nil
}

func (s *Store) Recordings(ctx context.Context, sessionID int64) ([]interview.Recording, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+recordingCols+` FROM recordings WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []interview.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *Store) RecordingByID(ctx context.Context, id int64) (*interview.Recording, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordingCols+` FROM recordings WHERE id = $1`, id)
	return scanRecording(row)
}

func (s *Store) CreatePromptTemplate(ctx context.Context, t *interview.PromptTemplate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if t.Default {
		if _, err := tx.Exec(ctx, `UPDATE prompt_templates SET is_default = FALSE WHERE is_default`); err != nil {
			return err
		}
	}
	row := tx.QueryRow(ctx, `
		INSERT INTO prompt_templates (name, description, prompt_text, is_default)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		t.Name, t.Description, t.Text, t.Default)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListPromptTemplates(ctx context.Context) ([]*interview.PromptTemplate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, prompt_text, is_default, created_at, updated_at
		FROM prompt_templates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*interview.PromptTemplate
	for rows.Next() {
		var t interview.PromptTemplate
		err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Text, &t.Default, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *Store) DefaultPromptTemplate(ctx context.Context) (*interview.PromptTemplate, error) {
	var t interview.PromptTemplate
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, prompt_text, is_default, created_at, updated_at
		FROM prompt_templates WHERE is_default LIMIT 1`)
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Text, &t.Default, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}
