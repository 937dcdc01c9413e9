package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"gavel/internal/api"
	"gavel/internal/config"
	"gavel/internal/logging"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/hearings", authMiddleware(token, srv.handleHearings))
	mux.HandleFunc("/api/hearings/", authMiddleware(token, srv.handleHearingItem))
	mux.HandleFunc("/api/runs", authMiddleware(token, srv.handleRuns))
	mux.HandleFunc("/api/runs/", authMiddleware(token, srv.handleRunItem))
	mux.HandleFunc("/api/pipeline", authMiddleware(token, srv.handlePipeline))
	mux.HandleFunc("/api/pipeline/", authMiddleware(token, srv.handlePipelineAction))
	mux.HandleFunc("/api/stage/", authMiddleware(token, srv.handleStageRun))
	mux.HandleFunc("/api/review", authMiddleware(token, srv.handleReview))
	mux.HandleFunc("/api/review/", authMiddleware(token, srv.handleReviewItem))
	mux.HandleFunc("/api/schedules", authMiddleware(token, srv.handleSchedules))
	mux.HandleFunc("/api/schedules/", authMiddleware(token, srv.handleScheduleItem))

	srv.handler = mux
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	// Shutdown is terminal for an http.Server, so each start gets a fresh one.
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, useful when the bind port is 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleHearings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	items, err := s.daemon.Hearings().List(r.Context(), api.HearingFilter{
		Stage:     query.Get("stage"),
		Status:    query.Get("status"),
		StateCode: query.Get("state"),
		Limit:     limit,
	})
	if err != nil {
		s.writeError(w, api.HTTPStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HearingListResponse{Items: items})
}

func (s *apiServer) handleHearingItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/hearings/")
	if rest == "retry" {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		updated, err := s.daemon.Hearings().RetryAll(r.Context())
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
		return
	}

	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid hearing id")
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		item, err := s.daemon.Hearings().Describe(r.Context(), id)
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		if item == nil {
			s.writeError(w, http.StatusNotFound, "hearing not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.HearingItemResponse{Item: *item})
	case "retry", "skip", "restore":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var opErr error
		switch action {
		case "retry":
			opErr = s.daemon.Hearings().Retry(r.Context(), id)
		case "skip":
			opErr = s.daemon.Hearings().Skip(r.Context(), id)
		case "restore":
			opErr = s.daemon.Hearings().Restore(r.Context(), id)
		}
		if opErr != nil {
			s.writeError(w, api.HTTPStatus(opErr), opErr.Error())
			return
		}
		item, err := s.daemon.Hearings().Describe(r.Context(), id)
		if err != nil || item == nil {
			s.writeJSON(w, http.StatusOK, nil)
			return
		}
		s.writeJSON(w, http.StatusOK, api.HearingItemResponse{Item: *item})
	case "candidates":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		candidates, err := s.daemon.Review().ByHearing(r.Context(), id)
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ReviewListResponse{Candidates: candidates})
	default:
		s.writeError(w, http.StatusNotFound, "unknown hearing operation")
	}
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.daemon.Pipeline().Runs(r.Context(), limit)
	if err != nil {
		s.writeError(w, api.HTTPStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunListResponse{Runs: runs})
}

func (s *apiServer) handleRunItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := s.daemon.Pipeline().DescribeRun(r.Context(), id)
	if err != nil {
		s.writeError(w, api.HTTPStatus(err), err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *apiServer) handlePipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Pipeline().Status(r.Context()))
}

func (s *apiServer) handlePipelineAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	action := strings.TrimPrefix(r.URL.Path, "/api/pipeline/")
	switch action {
	case "start":
		// An empty body starts with configured defaults.
		var req api.StartPipelineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		run, err := s.daemon.Pipeline().Start(r.Context(), req)
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusAccepted, run)
	case "stop":
		s.writeActionResult(w, s.daemon.Pipeline().Stop())
	case "pause":
		s.writeActionResult(w, s.daemon.Pipeline().Pause())
	case "resume":
		s.writeActionResult(w, s.daemon.Pipeline().Resume())
	default:
		s.writeError(w, http.StatusNotFound, "unknown pipeline action")
	}
}

// handleStageRun starts a single-stage run: POST /api/stage/{name}/run.
func (s *apiServer) handleStageRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name, action, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/api/stage/"), "/")
	if name == "" || action != "run" {
		s.writeError(w, http.StatusNotFound, "unknown stage operation")
		return
	}
	// The body is optional; it narrows the sweep to specific hearings or
	// states.
	req := api.StartPipelineRequest{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "bad request body: "+err.Error())
			return
		}
	}
	req.OnlyStage = name
	req.DiscoverOnly = false
	run, err := s.daemon.Pipeline().Start(r.Context(), req)
	if err != nil {
		s.writeError(w, api.HTTPStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, run)
}

func (s *apiServer) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	candidates, err := s.daemon.Review().Pending(r.Context(), query.Get("type"), limit)
	if err != nil {
		s.writeError(w, api.HTTPStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ReviewListResponse{Candidates: candidates})
}

func (s *apiServer) handleReviewItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/review/")
	switch rest {
	case "hearings":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		summaries, err := s.daemon.Review().Hearings(r.Context())
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ReviewHearingsResponse{Hearings: summaries})
		return
	case "bulk":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var req api.ReviewBulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		resolved, err := s.daemon.Review().Bulk(r.Context(), req)
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ReviewBulkResponse{Resolved: resolved})
		return
	}

	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid candidate id")
		return
	}
	switch r.Method {
	case http.MethodGet:
		candidate, err := s.daemon.Review().Describe(r.Context(), id)
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		if candidate == nil {
			s.writeError(w, http.StatusNotFound, "candidate not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.ReviewCandidateResponse{Candidate: *candidate})
	case http.MethodPost:
		var req api.ReviewActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		candidate, err := s.daemon.Review().Act(r.Context(), id, req)
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ReviewCandidateResponse{Candidate: *candidate})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleSchedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		schedules, err := s.daemon.Schedules().List(r.Context())
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.ScheduleListResponse{Schedules: schedules})
	case http.MethodPost:
		var req api.ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		schedule, err := s.daemon.Schedules().Create(r.Context(), req)
		if err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, api.ScheduleItemResponse{Schedule: *schedule})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleScheduleItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/schedules/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			schedule, err := s.daemon.Schedules().Describe(r.Context(), id)
			if err != nil {
				s.writeError(w, api.HTTPStatus(err), err.Error())
				return
			}
			if schedule == nil {
				s.writeError(w, http.StatusNotFound, "schedule not found")
				return
			}
			s.writeJSON(w, http.StatusOK, api.ScheduleItemResponse{Schedule: *schedule})
		case http.MethodPut:
			var req api.ScheduleRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				s.writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			schedule, err := s.daemon.Schedules().Update(r.Context(), id, req)
			if err != nil {
				s.writeError(w, api.HTTPStatus(err), err.Error())
				return
			}
			s.writeJSON(w, http.StatusOK, api.ScheduleItemResponse{Schedule: *schedule})
		case http.MethodDelete:
			if err := s.daemon.Schedules().Delete(r.Context(), id); err != nil {
				s.writeError(w, api.HTTPStatus(err), err.Error())
				return
			}
			s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
		default:
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "enable", "disable":
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := s.daemon.Schedules().SetEnabled(r.Context(), id, action == "enable"); err != nil {
			s.writeError(w, api.HTTPStatus(err), err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": action == "enable"})
	default:
		s.writeError(w, http.StatusNotFound, "unknown schedule operation")
	}
}

func (s *apiServer) writeActionResult(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeError(w, api.HTTPStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String("component", "api-server"))
	}
	return logging.NewNop()
}
