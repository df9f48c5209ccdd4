package server

import (
	"log/slog"
	"net/http"

	"github.com/hirewire/interview-gateway/pkg/gateway/config"
	"github.com/hirewire/interview-gateway/pkg/gateway/handlers"
	"github.com/hirewire/interview-gateway/pkg/gateway/lifecycle"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/conns"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/dispatch"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/orchestrator"
	"github.com/hirewire/interview-gateway/pkg/gateway/live/rooms"
	"github.com/hirewire/interview-gateway/pkg/gateway/mw"
	"github.com/hirewire/interview-gateway/pkg/interview/intel"
	"github.com/hirewire/interview-gateway/pkg/interview/media"
	"github.com/hirewire/interview-gateway/pkg/interview/store"
)

// Deps are the externally constructed dependencies: anything whose setup
// can fail or needs a context stays in main.
type Deps struct {
	Store store.Store
	Intel intel.Adapter // nil disables transcription and uses canned responses
	Media media.Store
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	store        store.Store
	rooms        *rooms.Registry
	orchestrator *orchestrator.Orchestrator
	dispatcher   *dispatch.Dispatcher
	media        media.Store
	lifecycle    *lifecycle.Lifecycle
	connections  *conns.Tracker
}

func New(cfg config.Config, logger *slog.Logger, deps Deps) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	registry := rooms.NewRegistry(logger)
	s := &Server{
		cfg:          cfg,
		logger:       logger,
		mux:          http.NewServeMux(),
		store:        deps.Store,
		rooms:        registry,
		orchestrator: orchestrator.New(deps.Store, registry),
		dispatcher:   dispatch.New(deps.Store, deps.Intel, registry, logger),
		media:        deps.Media,
		lifecycle:    &lifecycle.Lifecycle{},
		connections:  conns.NewTracker(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/", handlers.NotFoundHandler{})
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})

	s.mux.Handle("/ws", handlers.WSHandler{
		Config:       s.cfg,
		Store:        s.store,
		Rooms:        s.rooms,
		Orchestrator: s.orchestrator,
		Dispatcher:   s.dispatcher,
		Lifecycle:    s.lifecycle,
		Connections:  s.connections,
		Logger:       s.logger,
	})

	iv := handlers.InterviewHandler{
		Config:       s.cfg,
		Store:        s.store,
		Orchestrator: s.orchestrator,
		Media:        s.media,
		Logger:       s.logger,
	}
	s.mux.HandleFunc("POST /api/interview/validate-code", iv.ValidateCode)
	s.mux.HandleFunc("GET /api/interview/session/{token}", iv.GetSession)
	s.mux.HandleFunc("POST /api/interview/session/{token}/start", iv.StartSession)
	s.mux.HandleFunc("POST /api/interview/session/{token}/next-question", iv.NextQuestion)
	s.mux.HandleFunc("POST /api/interview/session/{token}/response", iv.SaveResponse)
	s.mux.HandleFunc("GET /api/interview/session/{token}/ai-prompt", iv.GetAIPrompt)
	s.mux.HandleFunc("GET /api/interview/session/{token}/recordings", iv.SessionRecordings)
	s.mux.HandleFunc("POST /api/interview/upload-recording", iv.UploadRecording)
	s.mux.HandleFunc("GET /api/interview/recording/{id}/download", iv.DownloadRecording)

	admin := handlers.AdminHandler{
		Config: s.cfg,
		Store:  s.store,
		Logger: s.logger,
	}
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /api/admin/codes", admin.ListCodes)
	adminMux.HandleFunc("POST /api/admin/codes", admin.CreateCode)
	adminMux.HandleFunc("DELETE /api/admin/codes/{id}", admin.DeleteCode)
	adminMux.HandleFunc("GET /api/admin/question-sets", admin.ListQuestionSets)
	adminMux.HandleFunc("POST /api/admin/question-sets", admin.CreateQuestionSet)
	adminMux.HandleFunc("POST /api/admin/question-sets/{id}/activate", admin.ActivateQuestionSet)
	adminMux.HandleFunc("GET /api/admin/sessions", admin.ListSessions)
	adminMux.HandleFunc("GET /api/admin/sessions/{token}", admin.SessionDetails)
	adminMux.HandleFunc("GET /api/admin/sessions/{token}/responses", admin.SessionResponses)
	adminMux.HandleFunc("GET /api/admin/sessions/{token}/transcripts", admin.SessionTranscripts)
	adminMux.HandleFunc("GET /api/admin/sessions/{token}/ai-responses", admin.SessionAIResponses)
	adminMux.HandleFunc("GET /api/admin/sessions/{token}/recordings", admin.SessionRecordings)
	adminMux.HandleFunc("GET /api/admin/ai-prompts", admin.ListPromptTemplates)
	adminMux.HandleFunc("POST /api/admin/ai-prompts", admin.CreatePromptTemplate)
	adminMux.HandleFunc("GET /api/admin/recordings/{id}/download", iv.DownloadRecording)
	s.mux.Handle("/api/admin/", mw.AdminAuth(s.cfg, adminMux))
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, s.cfg.TrustProxyHeaders, h)
	h = mw.RequestID(h)
	return h
}

// Lifecycle is the draining flag shared with the readiness handler.
func (s *Server) Lifecycle() *lifecycle.Lifecycle { return s.lifecycle }

// Connections tracks live websocket connections for graceful shutdown.
func (s *Server) Connections() *conns.Tracker { return s.connections }

// Dispatcher owns the background transcription and AI workers.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.dispatcher }
