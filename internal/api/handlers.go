package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/femibol/propel-command-center/internal/catalog"
	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/integrations/llm"
	"github.com/femibol/propel-command-center/internal/pipeline"
	"github.com/femibol/propel-command-center/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func queryRange(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	if err := pipeline.ValidateRange(start, end); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", "", false
	}
	return start, end, true
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Activity.Stats(r.Context()))
}

func (s *server) blocks(w http.ResponseWriter, r *http.Request) {
	start, end, ok := queryRange(w, r)
	if !ok {
		return
	}
	report, err := s.Pipeline.Blocks(r.Context(), start, end)
	if err != nil {
		s.Logger.Error("blocks failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report.Blocks == nil {
		report.Blocks = []domain.Block{}
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) apps(w http.ResponseWriter, r *http.Request) {
	start, end, ok := queryRange(w, r)
	if !ok {
		return
	}
	usage, err := s.Activity.AppBreakdown(r.Context(), start, end)
	if errors.Is(err, storage.ErrUnavailable) {
		writeJSON(w, http.StatusOK, []storage.AppUsage{})
		return
	}
	if err != nil {
		s.Logger.Error("app breakdown failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if usage == nil {
		usage = []storage.AppUsage{}
	}
	writeJSON(w, http.StatusOK, usage)
}

type rangeRequest struct {
	Start string        `json:"start"`
	End   string        `json:"end"`
	Tasks []domain.Task `json:"tasks"`
	// Assist runs the hosted-model review over unmatched blocks.
	Assist bool `json:"assist"`
}

func (s *server) decodeRange(w http.ResponseWriter, r *http.Request) (rangeRequest, bool) {
	var req rangeRequest
	if !decodeBody(w, r, &req) {
		return req, false
	}
	if err := pipeline.ValidateRange(req.Start, req.End); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if req.Tasks == nil {
		req.Tasks = s.catalogTasks(r)
	}
	return req, true
}

// catalogTasks falls back to an empty catalog when boards are unreachable so
// the request still returns every block, unmatched.
func (s *server) catalogTasks(r *http.Request) []domain.Task {
	if s.Catalog == nil {
		return []domain.Task{}
	}
	snap, err := s.Catalog.Get(r.Context())
	if err != nil {
		s.Logger.Warn("task catalog unavailable, matching without tasks", "err", err)
		return []domain.Task{}
	}
	return snap.Tasks
}

func (s *server) match(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRange(w, r)
	if !ok {
		return
	}
	report, err := s.Pipeline.Match(r.Context(), req.Start, req.End, req.Tasks, req.Assist)
	if err != nil {
		s.Logger.Error("match failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) claudeSessions(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRange(w, r)
	if !ok {
		return
	}
	report, err := s.Pipeline.ClaudeSessions(r.Context(), req.Start, req.End, req.Tasks)
	if err != nil {
		s.Logger.Error("claude sessions failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) settings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Activity.Settings(r.Context())
	if errors.Is(err, storage.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, storage.Redact(settings))
}

func (s *server) allBoards(w http.ResponseWriter, r *http.Request) {
	if s.Catalog == nil {
		writeError(w, http.StatusServiceUnavailable, catalog.ErrNoFetcher.Error())
		return
	}
	snap, err := s.Catalog.Get(r.Context())
	if errors.Is(err, catalog.ErrNoFetcher) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) invalidateBoards(w http.ResponseWriter, r *http.Request) {
	if s.Catalog != nil {
		if err := s.Catalog.Invalidate(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type reviewRequest struct {
	UnmatchedBlocks []domain.Block `json:"unmatchedBlocks"`
	AvailableTasks  []domain.Task  `json:"availableTasks"`
}

type reviewResponse struct {
	Matches []domain.Suggestion `json:"matches"`
	Usage   llm.Usage           `json:"usage"`
	Error   string              `json:"error,omitempty"`
}

func (s *server) matchReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.Reviewer == nil || !s.Reviewer.Enabled() {
		writeError(w, http.StatusServiceUnavailable, llm.ErrDisabled.Error())
		return
	}
	matches, usage, err := s.Reviewer.Review(r.Context(), req.UnmatchedBlocks, req.AvailableTasks)
	resp := reviewResponse{Matches: matches, Usage: usage}
	if resp.Matches == nil {
		resp.Matches = []domain.Suggestion{}
	}
	if err != nil {
		s.Logger.Error("match review failed", "err", err)
		if len(matches) == 0 {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type dailyTasksRequest struct {
	Subitems       []llm.PlanTask         `json:"subitems"`
	TimeBlocks     []domain.Block         `json:"timeBlocks"`
	ClaudeSessions []domain.ClaudeSession `json:"claudeSessions"`
}

func (s *server) dailyTasks(w http.ResponseWriter, r *http.Request) {
	var req dailyTasksRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if s.Planner == nil || !s.Planner.Enabled() {
		writeError(w, http.StatusServiceUnavailable, llm.ErrDisabled.Error())
		return
	}
	if req.Subitems == nil {
		for _, t := range s.catalogTasks(r) {
			req.Subitems = append(req.Subitems, llm.PlanTask{Name: t.Name, Client: t.ClientName})
		}
	}
	plan, err := s.Planner.DailyTasks(r.Context(), req.Subitems, req.TimeBlocks, req.ClaudeSessions)
	if err != nil {
		s.Logger.Error("daily tasks failed", "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, plan)
}
