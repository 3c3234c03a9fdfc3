package server

import (
	"encoding/json"
	"net/http"

	"newsradar/internal/core"
	"newsradar/internal/ingest"
)

// HealthResponse reports per-dependency checks.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// IngestRequest is the synchronous single-article ingestion body.
type IngestRequest struct {
	SourceName  string `json:"source_name" validate:"required"`
	URL         string `json:"url" validate:"required,url"`
	Title       string `json:"title" validate:"required"`
	Content     string `json:"content"`
	PublishedAt string `json:"published_at"`
}

// IngestResponse reports the outcome. Story is present only when the
// article's cluster cleared the hotness threshold.
type IngestResponse struct {
	Status    string      `json:"status"`
	ArticleID string      `json:"article_id,omitempty"`
	ClusterID string      `json:"cluster_id,omitempty"`
	Hot       bool        `json:"hot"`
	Hotness   float64     `json:"hotness"`
	Story     *core.Story `json:"story,omitempty"`
}

// AnalyseRequest bounds the ranking job's parameters.
type AnalyseRequest struct {
	WindowHours int `json:"window_hours" validate:"omitempty,min=1,max=168"`
	TopK        int `json:"top_k" validate:"omitempty,min=1,max=50"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleHealth reports liveness plus dependency checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if err := s.db.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	checks["database"] = "ok"

	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

// handleIngest runs the full pipeline for one article and reports whether
// its cluster is hot. A hot cluster also gets an enriched story.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if !s.decode(w, r, &req) {
		return
	}

	outcome, err := s.ingestor.Process(r.Context(), core.ArticleMessage{
		SourceName:  req.SourceName,
		URL:         req.URL,
		Title:       req.Title,
		Content:     req.Content,
		PublishedAt: req.PublishedAt,
	})
	if err != nil {
		s.log.Error("Synchronous ingest failed", "url", req.URL, "error", err)
		s.respondError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	resp := IngestResponse{Status: string(outcome.Status)}
	if outcome.Status != ingest.StatusIngested {
		s.respondJSON(w, http.StatusOK, resp)
		return
	}
	resp.ArticleID = outcome.Article.ID
	resp.ClusterID = outcome.Article.ClusterID

	breakdown, articles, err := s.analyzer.ScoreCluster(r.Context(), outcome.Article.ClusterID)
	if err != nil {
		s.log.Error("Failed to score cluster", "cluster_id", outcome.Article.ClusterID, "error", err)
		s.respondError(w, http.StatusInternalServerError, "scoring failed")
		return
	}
	resp.Hotness = breakdown.Final

	// Story synthesis only past the hot gate on this path.
	if breakdown.Final >= s.analyzer.HotnessThreshold() {
		resp.Hot = true
		story := s.analyzer.BuildStory(r.Context(), outcome.Article.ClusterID, articles, breakdown)
		resp.Story = &story
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleAnalyse runs the ranking job synchronously and returns the result.
func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	var req AnalyseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.WindowHours == 0 {
		req.WindowHours = 24
	}

	result, err := s.analyzer.Analyse(r.Context(), req.WindowHours, req.TopK)
	if err != nil {
		s.log.Error("Analyse failed", "error", err)
		s.respondError(w, http.StatusInternalServerError, "analysis failed")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

// decode unmarshals and validates the request body, answering 400 itself
// when either step fails.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorResponse{Error: msg})
}
