// Package statusserver exposes the application master's read-only HTTP
// status surface: a JSON snapshot of job progress, the Prometheus
// scrape endpoint, and the health/readiness probes. Each is a GET-only
// gorilla/mux route on its exact path.
package statusserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/cuemby/streamtask/pkg/jobstate"
	"github.com/cuemby/streamtask/pkg/metrics"
)

// TaskStatus is one running task group's container binding.
type TaskStatus struct {
	TaskID      int    `json:"taskId"`
	ContainerID string `json:"containerId"`
	NodeURL     string `json:"nodeUrl"`
}

// StatusResponse is the JSON body served at GET /status.
type StatusResponse struct {
	Status             string       `json:"status"`
	TaskCount          int          `json:"taskCount"`
	UnclaimedTasks     int          `json:"unclaimedTasks"`
	RunningTasks       int          `json:"runningTasks"`
	FinishedTasks      int          `json:"finishedTasks"`
	NeededContainers   int          `json:"neededContainers"`
	CompletedTasks     int          `json:"completedTasks"`
	FailedContainers   int          `json:"failedContainers"`
	ReleasedContainers int          `json:"releasedContainers"`
	Tasks              []TaskStatus `json:"tasks"`
}

// Server serves the status JSON and metrics endpoints for one job.
type Server struct {
	state  *jobstate.State
	router *mux.Router
	http   *http.Server
	logger zerolog.Logger
}

// New builds a Server listening on addr. Call Start to begin serving.
func New(addr string, state *jobstate.State, logger zerolog.Logger) *Server {
	s := &Server{
		state:  state,
		router: mux.NewRouter(),
		logger: logger.With().Str("component", "statusserver").Logger(),
	}
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/health", metrics.HealthHandler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", metrics.ReadyHandler()).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine and logs any error
// other than the expected shutdown error.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("status server stopped unexpectedly")
		}
	}()
	s.logger.Info().Str("addr", s.http.Addr).Msg("status server listening")
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("statusserver: shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()

	tasks := make([]TaskStatus, 0, len(snap.RunningTasks))
	for taskID, handle := range snap.RunningTasks {
		tasks = append(tasks, TaskStatus{
			TaskID:      int(taskID),
			ContainerID: handle.ID,
			NodeURL:     fmt.Sprintf("http://%s:%d", handle.Host, handle.Port),
		})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].TaskID < tasks[j].TaskID })

	resp := StatusResponse{
		Status:             string(snap.Status),
		TaskCount:          snap.TaskCount,
		UnclaimedTasks:     len(snap.UnclaimedTasks),
		RunningTasks:       len(snap.RunningTasks),
		FinishedTasks:      len(snap.FinishedTasks),
		NeededContainers:   snap.NeededContainers,
		CompletedTasks:     snap.CompletedTasks,
		FailedContainers:   snap.FailedContainers,
		ReleasedContainers: snap.ReleasedContainers,
		Tasks:              tasks,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode status response")
	}
}
