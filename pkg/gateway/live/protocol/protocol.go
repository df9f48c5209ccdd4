// Package protocol defines the JSON wire messages exchanged on the live
// interview WebSocket. Every frame carries a "type" discriminator;
// DecodeClientMessage validates and dispatches inbound frames to their
// typed representation.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// Client -> server messages.

type ClientJoin struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type ClientLeave struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// ClientAudio carries one base64-encoded audio chunk for transcription.
type ClientAudio struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	AudioB64  string   `json:"audio_data"`
	Format    string   `json:"format,omitempty"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

// ClientTranscript is a pre-transcribed segment pushed by the client.
type ClientTranscript struct {
	Type       string  `json:"type"`
	SessionID  string  `json:"session_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	StartTime  float64 `json:"start_time,omitempty"`
	EndTime    float64 `json:"end_time,omitempty"`
	QuestionID *int64  `json:"question_id,omitempty"`
}

type ClientAIRequest struct {
	Type              string `json:"type"`
	SessionID         string `json:"session_id"`
	QuestionID        int64  `json:"question_id"`
	TranscriptContext string `json:"transcript_context,omitempty"`
	Kind              string `json:"request_type,omitempty"`
}

type ClientVideoStreamStart struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Config    json.RawMessage `json:"config,omitempty"`
}

type ClientVideoStreamStop struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type RecordingFileInfo struct {
	Path     string  `json:"path,omitempty"`
	Size     int64   `json:"size,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

type ClientRecordingMetadata struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"session_id"`
	QuestionID *int64            `json:"question_id,omitempty"`
	Kind       string            `json:"recording_type,omitempty"`
	FileInfo   RecordingFileInfo `json:"file_info,omitempty"`
}

type ClientStatusUpdate struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Server -> client messages.

type ServerConnected struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ServerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ServerJoined struct {
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	CandidateName string `json:"candidate_name"`
	Status        string `json:"status"`
}

type ServerLeft struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type ServerTranscriptUpdate struct {
	Type       string  `json:"type"`
	SessionID  string  `json:"session_id"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	StartTime  float64 `json:"start_time,omitempty"`
	EndTime    float64 `json:"end_time,omitempty"`
	QuestionID *int64  `json:"question_id,omitempty"`
}

type ServerAudioProcessed struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	Timestamp *float64 `json:"timestamp,omitempty"`
	Status    string   `json:"status"`
}

type AIResponsePayload struct {
	Kind      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type ServerAIResponse struct {
	Type       string            `json:"type"`
	SessionID  string            `json:"session_id"`
	QuestionID int64             `json:"question_id"`
	Response   AIResponsePayload `json:"response"`
}

type ServerAIRequestReceived struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	QuestionID int64  `json:"question_id"`
	Kind       string `json:"request_type"`
}

type ServerVideoStreamStarted struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Config    json.RawMessage `json:"config,omitempty"`
}

type ServerVideoStreamStopped struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type ServerRecordingSaved struct {
	Type        string `json:"type"`
	SessionID   string `json:"session_id"`
	RecordingID int64  `json:"recording_id"`
	Kind        string `json:"recording_type"`
}

type ServerStatusUpdated struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Connected builds the greeting sent on every new connection.
func Connected() ServerConnected {
	return ServerConnected{Type: "connected", Message: "Connected to interview server"}
}

// Error builds an error frame.
func Error(message string) ServerError {
	return ServerError{Type: "error", Message: message}
}

// DecodeClientMessage parses one inbound frame into its typed message.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "join_interview":
		var msg ClientJoin
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid join_interview frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("Session ID is required", "session_id")
		}
		return msg, nil
	case "leave_interview":
		var msg ClientLeave
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid leave_interview frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("Session ID is required", "session_id")
		}
		return msg, nil
	case "audio_data":
		var msg ClientAudio
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_data frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" || strings.TrimSpace(msg.AudioB64) == "" {
			return nil, badRequest("Session ID and audio data are required", "")
		}
		return msg, nil
	case "transcript_segment":
		var msg ClientTranscript
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid transcript_segment frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" || strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("Session ID and text are required", "")
		}
		if msg.Confidence < 0 || msg.Confidence > 1 {
			return nil, badRequest("Confidence must be between 0 and 1", "confidence")
		}
		if msg.EndTime < msg.StartTime {
			return nil, badRequest("End time must not precede start time", "end_time")
		}
		return msg, nil
	case "ai_response_request":
		var msg ClientAIRequest
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid ai_response_request frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" || msg.QuestionID == 0 {
			return nil, badRequest("Session ID and question ID are required", "")
		}
		return msg, nil
	case "video_stream_start":
		var msg ClientVideoStreamStart
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid video_stream_start frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("Session ID is required", "session_id")
		}
		return msg, nil
	case "video_stream_stop":
		var msg ClientVideoStreamStop
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid video_stream_stop frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("Session ID is required", "session_id")
		}
		return msg, nil
	case "recording_metadata":
		var msg ClientRecordingMetadata
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid recording_metadata frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" {
			return nil, badRequest("Session ID is required", "session_id")
		}
		return msg, nil
	case "session_status_update":
		var msg ClientStatusUpdate
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid session_status_update frame", "")
		}
		if strings.TrimSpace(msg.SessionID) == "" || strings.TrimSpace(msg.Status) == "" {
			return nil, badRequest("Session ID and status are required", "")
		}
		return msg, nil
	default:
		return nil, unsupported(fmt.Sprintf("unsupported message type %q", typ), "type")
	}
}
