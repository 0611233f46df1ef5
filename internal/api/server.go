// Package api provides the HTTP API server for FamilyConnect.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/familyconnect/familyconnect/internal/agent"
	"github.com/familyconnect/familyconnect/internal/hub"
	"github.com/familyconnect/familyconnect/internal/interagent"
	"github.com/familyconnect/familyconnect/internal/logging"
	"github.com/familyconnect/familyconnect/internal/storage"
	"github.com/familyconnect/familyconnect/internal/supervisor"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	// Components
	service     *interagent.Service
	coordinator *agent.Coordinator
	stores      *storage.Stores
	hub         *hub.Hub
	supervisor  *supervisor.Supervisor

	log *logging.Logger
}

// Config for the server
type Config struct {
	Host        string
	Port        int
	Service     *interagent.Service
	Coordinator *agent.Coordinator
	Stores      *storage.Stores
	Hub         *hub.Hub
	Supervisor  *supervisor.Supervisor
}

// New creates a new API server
func New(cfg Config) *Server {
	s := &Server{
		service:     cfg.Service,
		coordinator: cfg.Coordinator,
		stores:      cfg.Stores,
		hub:         cfg.Hub,
		supervisor:  cfg.Supervisor,
		log:         logging.Component("api"),
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.HandleWS)

	r.Route("/api", func(r chi.Router) {
		// Users and family
		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{userID}", s.handleGetUser)
		r.Get("/users/{userID}/connections", s.handleGetConnections)
		r.Post("/users/{userID}/connections", s.handleCreateConnection)
		r.Get("/users/{userID}/conversations", s.handleGetConversations)

		// Chat and inter-agent orchestration
		r.Post("/chat", s.handleChat)
		r.Post("/agent-messages", s.handleDirectAgentMessage)
		r.Get("/agent-communications", s.handleGetAgentCommunications)

		// Care coordination
		r.Post("/care-notifications", s.handleCreateCareNotification)
		r.Get("/users/{userID}/care-notifications", s.handleGetCareNotifications)
		r.Post("/care-notifications/{id}/acknowledge", s.handleAcknowledgeCareNotification)
		r.Post("/reminders", s.handleCreateReminder)
		r.Get("/users/{userID}/reminders", s.handleGetReminders)
		r.Post("/reminders/{id}/complete", s.handleCompleteReminder)
		r.Put("/users/{userID}/sleep-schedule", s.handleSetSleepSchedule)
		r.Get("/users/{userID}/sleep-schedule", s.handleGetSleepSchedule)

		// Picture frames
		r.Post("/picture-frames", s.handleCreateFrame)
		r.Get("/users/{userID}/picture-frames", s.handleGetFrames)
		r.Post("/picture-frames/{frameID}/photos", s.handleAddPhoto)
		r.Get("/picture-frames/{frameID}/photos", s.handleGetPhotos)
		r.Post("/photos/{id}/viewed", s.handleMarkPhotoViewed)
		r.Delete("/photos/{id}", s.handleDeletePhoto)

		// Agents: memory, runtimes, and the gateway-compatible surface
		r.Get("/agents", s.handleAgentStatuses)
		r.Post("/agents/start", s.handleStartAgents)
		r.Post("/agents/stop", s.handleStopAgents)
		r.Post("/agents/communicate", s.handleFacilitate)
		r.Post("/agents/{agentID}/message", s.handleAgentSend)
		r.Get("/agents/{agentID}/memory", s.handleAgentMemory)
		r.Get("/agents/v1/models", s.handleListModels)
		r.Post("/agents/{agentID}/v1/chat/completions", s.handleChatCompletion)
	})

	s.router = r
}

// Start runs the server until it is shut down
func (s *Server) Start() error {
	s.log.Info("API server listening on http://%s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler tree, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.hub.ConnectionCount(),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
