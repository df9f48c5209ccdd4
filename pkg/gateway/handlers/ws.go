package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hirewire/interview-gateway/pkg/gateway/config"
	"github.com/hirewire/interview-gateway/pkg/gateway/lifecycle"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/conns"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/dispatch"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/orchestrator"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/protocol"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/rooms"
	"github.com/hirewire/interview-gateway/pkg/interview"
	"github.com/hirewire/interview-gateway/pkg/interview/store"
)

// WSHandler serves the /ws live interview socket.
type WSHandler struct {
	Config       config.Config
	Store        store.Store
	Rooms        *rooms.Registry
	Orchestrator *orchestrator.Orchestrator
	Dispatcher   *dispatch.Dispatcher
	Lifecycle    *lifecycle.Lifecycle
	Connections  *conns.Tracker
	Logger       *slog.Logger
}

func (h WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, interview.NewInvalidRequestError("method not allowed"))
		return
	}
	if h.Lifecycle != nil && h.Lifecycle.IsDraining() {
		writeError(w, &interview.Error{Type: interview.ErrAPI, Message: "gateway is draining", Code: "draining"})
		return
	}
	if !h.originAllowed(r) {
		writeError(w, &interview.Error{Type: interview.ErrAuthentication, Message: "origin is not allowed", Param: "Origin"})
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if h.Config.WSMaxMessageBytes > 0 {
		ws.SetReadLimit(h.Config.WSMaxMessageBytes)
	}

	connID := "conn_" + uuid.NewString()
	client := rooms.NewClient(connID, h.Config.WSSendQueueSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	unregister := func() {}
	if h.Connections != nil {
		unregister = h.Connections.Register(connID, conns.Handle{
			Cancel: cancel,
			Notify: func(message string) error {
				data, err := json.Marshal(protocol.Error(message))
				if err != nil {
					return err
				}
				return client.Enqueue(data)
			},
		})
	}
	defer unregister()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := client.WritePump(ws, h.Config.WSPingInterval, h.Config.WSWriteTimeout); err != nil {
			cancel()
		}
	}()

	c := &wsConn{
		h:      h,
		ws:     ws,
		client: client,
	}
	c.send(protocol.Connected())

	c.readLoop(ctx)

	if c.current != nil {
		h.Rooms.Leave(c.current.Token, client)
	}
	client.Close()
	<-writerDone
}

func (h WSHandler) originAllowed(r *http.Request) bool {
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if _, ok := h.Config.CORSAllowedOrigins[origin]; ok {
		return true
	}
	// Allow same-host origins.
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	return false
}

// wsConn is the per-connection read side. A connection watches at most
// one session at a time; joining another session leaves the current one.
type wsConn struct {
	h       WSHandler
	ws      *websocket.Conn
	client  *rooms.Client
	current *interview.Session
}

// joinedSession returns the cached session when the connection is
// currently joined to token.
func (c *wsConn) joinedSession(token string) (*interview.Session, bool) {
	if c.current != nil && c.current.Token == token {
		return c.current, true
	}
	return nil, false
}

func (c *wsConn) send(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = c.client.Enqueue(data)
}

func (c *wsConn) sendError(message string) {
	c.send(protocol.Error(message))
}

func (c *wsConn) readLoop(ctx context.Context) {
	c.ws.SetPongHandler(func(string) error {
		if c.h.Config.WSReadTimeout > 0 {
			return c.ws.SetReadDeadline(time.Now().Add(c.h.Config.WSReadTimeout))
		}
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}
		if c.h.Config.WSReadTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(c.h.Config.WSReadTimeout))
		}
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			c.sendError("expected text frame")
			continue
		}

		decoded, err := protocol.DecodeClientMessage(data)
		if err != nil {
			c.sendError(err.Error())
			continue
		}

		switch msg := decoded.(type) {
		case protocol.ClientJoin:
			c.handleJoin(ctx, msg)
		case protocol.ClientLeave:
			c.handleLeave(msg)
		case protocol.ClientAudio:
			c.handleAudio(msg)
		case protocol.ClientTranscript:
			c.handleTranscript(ctx, msg)
		case protocol.ClientAIRequest:
			c.handleAIRequest(msg)
		case protocol.ClientVideoStreamStart:
			c.handleVideoStart(msg)
		case protocol.ClientVideoStreamStop:
			c.handleVideoStop(msg)
		case protocol.ClientRecordingMetadata:
			c.handleRecordingMetadata(ctx, msg)
		case protocol.ClientStatusUpdate:
			c.handleStatusUpdate(ctx, msg)
		default:
			c.sendError("unsupported message type")
		}
	}
}

func (c *wsConn) handleJoin(ctx context.Context, msg protocol.ClientJoin) {
	sess, err := c.h.Orchestrator.Session(ctx, msg.SessionID)
	if err != nil {
		c.sendError("Invalid session ID")
		return
	}

	// The registry moves the client out of its previous room; mirror that
	// here so stale session state is not reused.
	c.h.Rooms.Join(sess.Token, c.client, sess.Status, sess.CandidateName)
	c.current = sess

	c.send(protocol.ServerJoined{
		Type:          "joined_interview",
		SessionID:     sess.Token,
		CandidateName: sess.CandidateName,
		Status:        string(sess.Status),
	})

	if c.h.Logger != nil {
		c.h.Logger.Info("candidate joined session",
			"session_id", sess.Token, "candidate", sess.CandidateName, "conn_id", c.client.ID())
	}
}

func (c *wsConn) handleLeave(msg protocol.ClientLeave) {
	if _, ok := c.joinedSession(msg.SessionID); ok {
		c.h.Rooms.Leave(msg.SessionID, c.client)
		c.current = nil
	}
	c.send(protocol.ServerLeft{Type: "left_interview", SessionID: msg.SessionID})
}

func (c *wsConn) handleAudio(msg protocol.ClientAudio) {
	sess, ok := c.joinedSession(msg.SessionID)
	if !ok {
		c.sendError("Session not active")
		return
	}
	if status, ok := c.h.Rooms.Status(msg.SessionID); !ok || status.Terminal() {
		c.sendError("Session not active")
		return
	}
	// Base64 inflates by 4/3; compare in encoded space to skip a decode.
	if len(msg.AudioB64) > c.h.Config.WSMaxAudioChunkBytes*4/3+4 {
		c.sendError("audio chunk too large")
		return
	}

	c.h.Dispatcher.SubmitTranscription(sess, msg)

	c.send(protocol.ServerAudioProcessed{
		Type:      "audio_processed",
		SessionID: msg.SessionID,
		Timestamp: msg.Timestamp,
		Status:    "processing",
	})
}

func (c *wsConn) handleTranscript(ctx context.Context, msg protocol.ClientTranscript) {
	sess, err := c.sessionFor(ctx, msg.SessionID)
	if err != nil {
		c.sendError("Session not found")
		return
	}

	seg := &interview.TranscriptSegment{
		SessionID:  sess.ID,
		QuestionID: msg.QuestionID,
		Text:       msg.Text,
		Confidence: msg.Confidence,
		StartTime:  msg.StartTime,
		EndTime:    msg.EndTime,
	}
	if err := c.h.Store.AppendTranscript(ctx, seg); err != nil {
		c.sendError("Failed to save transcript")
		return
	}

	c.h.Rooms.Broadcast(sess.Token, protocol.ServerTranscriptUpdate{
		Type:       "transcript_update",
		SessionID:  sess.Token,
		Text:       msg.Text,
		Confidence: msg.Confidence,
		StartTime:  msg.StartTime,
		EndTime:    msg.EndTime,
		QuestionID: msg.QuestionID,
	})
}

func (c *wsConn) handleAIRequest(msg protocol.ClientAIRequest) {
	sess, ok := c.joinedSession(msg.SessionID)
	if !ok {
		c.sendError("Session not found")
		return
	}

	c.h.Dispatcher.SubmitAIResponse(sess, c.client, msg)

	c.send(protocol.ServerAIRequestReceived{
		Type:       "ai_request_received",
		SessionID:  msg.SessionID,
		QuestionID: msg.QuestionID,
		Kind:       msg.Kind,
	})
}

func (c *wsConn) handleVideoStart(msg protocol.ClientVideoStreamStart) {
	if _, ok := c.joinedSession(msg.SessionID); !ok {
		c.sendError("Session not active")
		return
	}
	c.h.Rooms.Broadcast(msg.SessionID, protocol.ServerVideoStreamStarted{
		Type:      "video_stream_started",
		SessionID: msg.SessionID,
		Config:    msg.Config,
	})
}

func (c *wsConn) handleVideoStop(msg protocol.ClientVideoStreamStop) {
	c.h.Rooms.Broadcast(msg.SessionID, protocol.ServerVideoStreamStopped{
		Type:      "video_stream_stopped",
		SessionID: msg.SessionID,
	})
}

func (c *wsConn) handleRecordingMetadata(ctx context.Context, msg protocol.ClientRecordingMetadata) {
	sess, err := c.sessionFor(ctx, msg.SessionID)
	if err != nil {
		c.sendError("Session not found")
		return
	}

	kind, ok := interview.ParseRecordingKind(strings.TrimSpace(msg.Kind))
	if !ok {
		kind = interview.RecordingVideo
	}
	rec := &interview.Recording{
		SessionID:  sess.ID,
		QuestionID: msg.QuestionID,
		Kind:       kind,
		Path:       msg.FileInfo.Path,
		Size:       msg.FileInfo.Size,
		Duration:   msg.FileInfo.Duration,
		Storage:    "local",
	}
	if err := c.h.Store.AddRecording(ctx, rec); err != nil {
		c.sendError("Failed to save recording")
		return
	}

	c.h.Rooms.Broadcast(sess.Token, protocol.ServerRecordingSaved{
		Type:        "recording_saved",
		SessionID:   sess.Token,
		RecordingID: rec.ID,
		Kind:        string(kind),
	})
}

func (c *wsConn) handleStatusUpdate(ctx context.Context, msg protocol.ClientStatusUpdate) {
	status, ok := interview.ParseStatus(strings.TrimSpace(msg.Status))
	if !ok {
		c.sendError("invalid status")
		return
	}

	sess, err := c.h.Orchestrator.SetStatus(ctx, msg.SessionID, status)
	if err != nil {
		c.sendError(interview.AsError(err).Message)
		return
	}

	if cached, ok := c.joinedSession(msg.SessionID); ok {
		*cached = *sess
	}

	// Terminal transitions broadcast and evict the room inside the
	// orchestrator; only live rooms need the update here.
	if !sess.Status.Terminal() {
		c.h.Rooms.Broadcast(msg.SessionID, protocol.ServerStatusUpdated{
			Type:      "session_status_updated",
			SessionID: msg.SessionID,
			Status:    string(sess.Status),
		})
	}
}

// sessionFor prefers the joined-session cache and falls back to the store.
func (c *wsConn) sessionFor(ctx context.Context, token string) (*interview.Session, error) {
	if sess, ok := c.joinedSession(token); ok {
		return sess, nil
	}
	return c.h.Orchestrator.Session(ctx, token)
}
