package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/datachat/datachat/internal/chat"
	"github.com/datachat/datachat/internal/dataset"
)

const uploadPreviewRows = 5

type queryRequest struct {
	Query string `json:"query"`
}

// handleDatasetUpload attaches a CSV file to the conversation. The
// upload replaces any previous dataset, invalidates derived analyzer
// state, and records a table message in the conversation history so the
// chat model can reference the data in later turns.
func (s *Server) handleDatasetUpload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := s.chats.GetConversation(r.Context(), id); err != nil {
		s.conversationError(w, err)
		return
	}

	maxBytes := int64(s.cfg.Server.MaxUploadSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.writeError(w, fmt.Sprintf("upload exceeds %dMB limit", s.cfg.Server.MaxUploadSizeMB), http.StatusRequestEntityTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		s.writeError(w, "only CSV files are supported", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, "failed to read upload", http.StatusBadRequest)
		return
	}

	ds, err := dataset.FromCSV(data)
	if err != nil {
		s.writeError(w, fmt.Sprintf("invalid CSV: %v", err), http.StatusBadRequest)
		return
	}

	s.datasets.Put(id, header.Filename, ds)
	s.analyzer.States().Invalidate(id)

	// The table message carries a preview so later chat turns can refer
	// back to the upload.
	if _, err := s.chats.AppendMessage(r.Context(), id, chat.RoleUser, []chat.ContentPart{{
		Kind:         chat.PartTable,
		TableRef:     header.Filename,
		TablePreview: ds.PreviewString(uploadPreviewRows),
	}}); err != nil {
		s.writeError(w, "failed to record upload", http.StatusInternalServerError)
		return
	}

	log.Info("dataset uploaded",
		"conversation", id, "file", header.Filename,
		"rows", ds.NumRows(), "columns", ds.NumCols())

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"filename": header.Filename,
		"info":     ds.Info(),
	})
}

// handleDatasetInfo describes the conversation's active dataset.
func (s *Server) handleDatasetInfo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ds, name, ok := s.datasets.Get(id)
	if !ok {
		s.writeError(w, "no dataset uploaded for this conversation", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"filename": name,
		"info":     ds.Info(),
		"preview":  ds.Preview(uploadPreviewRows),
	})
}

// handleQuery runs a data analysis query against the conversation's
// dataset. The analysis outcome, including analysis failures, is
// reported in the result envelope with HTTP 200; only transport level
// problems map to error status codes.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, "query must not be empty", http.StatusBadRequest)
		return
	}

	ds, _, ok := s.datasets.Get(id)
	if !ok {
		s.writeError(w, "no dataset uploaded for this conversation", http.StatusNotFound)
		return
	}

	result := s.analyzer.Analyze(r.Context(), ds, req.Query, id)
	s.writeJSON(w, http.StatusOK, result)
}
