package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/lifetable/internal/logging"
	"github.com/JonMunkholm/lifetable/internal/pipeline"
)

// startResponse is returned when a run is accepted.
type startResponse struct {
	RunID     string `json:"run_id"`
	StatusURL string `json:"status_url"`
}

// handleStartRun starts a background run and returns 202 with its ID.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.Start(r.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrTooManyRuns) {
			w.Header().Set("Retry-After", "30")
		}
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.WithFields(r.Context(), "run_id", id).Info("run accepted")
	statusURL := "/api/runs/" + id
	w.Header().Set("Location", statusURL)
	writeJSON(w, http.StatusAccepted, startResponse{RunID: id, StatusURL: statusURL})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.List())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Get(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runID")
	if err := s.service.Cancel(id); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	logging.FromContext(r.Context()).Info("run cancel requested")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// handleArtifact streams one file of a run's output directory. Only names
// the run itself reported are served.
func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	path, err := s.service.Artifact(chi.URLParam(r, "runID"), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// handleRunEvents streams progress as server-sent events until the run ends.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	updates, err := s.service.Subscribe(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case p, ok := <-updates:
			if !ok {
				fmt.Fprint(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(p)
			if err != nil {
				return
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// healthResponse reports liveness and run slot usage.
type healthResponse struct {
	Status string                 `json:"status"`
	Uptime string                 `json:"uptime"`
	Runs   pipeline.LimiterStatus `json:"runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(startedAt).Round(time.Second).String(),
		Runs:   s.service.LimiterStatus(),
	})
}
