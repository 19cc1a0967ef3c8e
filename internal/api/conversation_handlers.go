package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/datachat/datachat/internal/chat"
)

type createConversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// handleConversations lists conversations or creates a new one.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				s.writeError(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		convs, err := s.chats.ListConversations(r.Context(), limit)
		if err != nil {
			s.writeError(w, "failed to list conversations", http.StatusInternalServerError)
			return
		}
		if convs == nil {
			convs = []chat.Conversation{}
		}
		s.writeJSON(w, http.StatusOK, convs)

	case http.MethodPost:
		var req createConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		conv, err := s.chats.CreateConversation(r.Context(), req.Title)
		if err != nil {
			s.writeError(w, "failed to create conversation", http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusCreated, conv)
	}
}

// handleConversation fetches or deletes one conversation.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	switch r.Method {
	case http.MethodGet:
		conv, err := s.chats.GetConversation(r.Context(), id)
		if err != nil {
			s.conversationError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, conv)

	case http.MethodDelete:
		if err := s.chats.DeleteConversation(r.Context(), id); err != nil {
			s.conversationError(w, err)
			return
		}
		// Drop any dataset and analyzer state tied to the conversation.
		s.datasets.Remove(id)
		s.analyzer.States().Invalidate(id)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// handleMessages returns the conversation history or processes a new
// user turn.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	switch r.Method {
	case http.MethodGet:
		if _, err := s.chats.GetConversation(r.Context(), id); err != nil {
			s.conversationError(w, err)
			return
		}
		history, err := s.chats.History(r.Context(), id)
		if err != nil {
			s.writeError(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		if history == nil {
			history = []chat.Message{}
		}
		s.writeJSON(w, http.StatusOK, history)

	case http.MethodPost:
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			s.writeError(w, "message must not be empty", http.StatusBadRequest)
			return
		}

		result, err := s.chats.Send(r.Context(), id, req.Message)
		if err != nil {
			s.conversationError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

// handleRegenerate replaces the conversation's last assistant answer
// with a freshly generated one.
func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := s.chats.Regenerate(r.Context(), id)
	if err != nil {
		s.conversationError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleContextStats reports how the conversation sits against the
// context window budgets.
func (s *Server) handleContextStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := s.chats.GetConversation(r.Context(), id); err != nil {
		s.conversationError(w, err)
		return
	}
	stats, err := s.chats.Stats(r.Context(), id)
	if err != nil {
		s.writeError(w, "failed to compute context stats", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// conversationError maps service errors to HTTP status codes.
func (s *Server) conversationError(w http.ResponseWriter, err error) {
	if errors.Is(err, chat.ErrConversationNotFound) {
		s.writeError(w, "conversation not found", http.StatusNotFound)
		return
	}
	s.writeError(w, err.Error(), http.StatusInternalServerError)
}
