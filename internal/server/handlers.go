package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

// maxQueryLogLen is the maximum length for logged queries before
// truncation.
const maxQueryLogLen = 200

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}

	resp, err := s.assistant.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		s.logger.Error("query failed", "query", truncate(req.Query, maxQueryLogLen), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to answer query"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	stats, err := s.assistant.Stats(r.Context())
	if err != nil {
		s.logger.Error("course stats failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load course stats"})
		return
	}
	if stats.CourseTitles == nil {
		stats.CourseTitles = []string{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.collector == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "metrics disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.collector.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
