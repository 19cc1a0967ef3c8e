package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/datachat/datachat/internal/analyze"
	"github.com/datachat/datachat/internal/app"
	"github.com/datachat/datachat/internal/config"
	contextmgmt "github.com/datachat/datachat/internal/context"
	"github.com/datachat/datachat/internal/dataset"
)

// Server exposes the conversation and data analysis services over HTTP.
type Server struct {
	cfg      *config.Config
	chats    *app.Service
	analyzer *analyze.Router
	datasets *dataset.Registry
	cache    *contextmgmt.ResponseCache

	httpServer *http.Server
}

// NewServer creates the API server around the wired services.
func NewServer(cfg *config.Config, chats *app.Service, analyzer *analyze.Router, datasets *dataset.Registry, cache *contextmgmt.ResponseCache) *Server {
	return &Server{
		cfg:      cfg,
		chats:    chats,
		analyzer: analyzer,
		datasets: datasets,
		cache:    cache,
	}
}

// Start runs the HTTP server until it fails or Stop is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.setupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	log.Info("starting API server", "addr", s.cfg.Server.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()
	router.Use(s.corsMiddleware)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Conversation lifecycle
	api.HandleFunc("/conversations", s.handleConversations).Methods("GET", "POST")
	api.HandleFunc("/conversations/{id}", s.handleConversation).Methods("GET", "DELETE")

	// Messaging
	api.HandleFunc("/conversations/{id}/messages", s.handleMessages).Methods("GET", "POST")
	api.HandleFunc("/conversations/{id}/regenerate", s.handleRegenerate).Methods("POST")
	api.HandleFunc("/conversations/{id}/context", s.handleContextStats).Methods("GET")

	// Tabular data
	api.HandleFunc("/conversations/{id}/dataset", s.handleDatasetUpload).Methods("POST")
	api.HandleFunc("/conversations/{id}/dataset", s.handleDatasetInfo).Methods("GET")
	api.HandleFunc("/conversations/{id}/query", s.handleQuery).Methods("POST")

	// Diagnostics
	api.HandleFunc("/cache/stats", s.handleCacheStats).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	return router
}

// corsMiddleware adds CORS headers for local frontends.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Response helpers
func (s *Server) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// handleCacheStats reports response cache effectiveness.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats())
}
