// Package api exposes the timesheet pipeline over HTTP for the local UI.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/femibol/propel-command-center/internal/catalog"
	"github.com/femibol/propel-command-center/internal/domain"
	"github.com/femibol/propel-command-center/internal/integrations/llm"
	"github.com/femibol/propel-command-center/internal/pipeline"
	"github.com/femibol/propel-command-center/internal/storage"
)

// Activity is the read side of the monitoring agent's database.
type Activity interface {
	Stats(ctx context.Context) storage.Stats
	AppBreakdown(ctx context.Context, start, end string) ([]storage.AppUsage, error)
	Settings(ctx context.Context) (map[string]any, error)
}

// Catalog serves the cached task catalog.
type Catalog interface {
	Get(ctx context.Context) (catalog.Snapshot, error)
	Invalidate(ctx context.Context) error
}

// Planner ranks the day's work with a hosted model.
type Planner interface {
	Enabled() bool
	DailyTasks(ctx context.Context, tasks []llm.PlanTask, blocks []domain.Block, sessions []domain.ClaudeSession) (llm.DailyPlan, error)
}

type Deps struct {
	Pipeline    *pipeline.Service
	Activity    Activity
	Catalog     Catalog
	Reviewer    pipeline.Reviewer
	Planner     Planner
	Logger      *log.Logger
	CORSOrigins []string
	Version     string
}

type server struct {
	Deps
}

// NewHandler builds the router with request IDs, access logs and CORS.
func NewHandler(d Deps) http.Handler {
	s := &server{Deps: d}

	r := mux.NewRouter()
	r.Use(requestID, s.accessLog)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.health).Methods(http.MethodGet)

	timely := api.PathPrefix("/timely").Subrouter()
	timely.HandleFunc("/stats", s.stats).Methods(http.MethodGet)
	timely.HandleFunc("/blocks", s.blocks).Methods(http.MethodGet)
	timely.HandleFunc("/apps", s.apps).Methods(http.MethodGet)
	timely.HandleFunc("/match", s.match).Methods(http.MethodPost)
	timely.HandleFunc("/claude-sessions", s.claudeSessions).Methods(http.MethodPost)
	timely.HandleFunc("/settings", s.settings).Methods(http.MethodGet)

	boards := api.PathPrefix("/boards").Subrouter()
	boards.HandleFunc("/all", s.allBoards).Methods(http.MethodGet)
	boards.HandleFunc("/invalidate", s.invalidateBoards).Methods(http.MethodPost)

	api.HandleFunc("/ai/match-review", s.matchReview).Methods(http.MethodPost)
	api.HandleFunc("/ai/daily-tasks", s.dailyTasks).Methods(http.MethodPost)

	return cors(d.CORSOrigins, r)
}

// NewServer wraps the handler with the listener timeouts.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Assist runs can take a while.
		WriteTimeout: 180 * time.Second,
	}
}

type healthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		OK:      true,
		Service: "propel-command-center",
		Version: s.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}
