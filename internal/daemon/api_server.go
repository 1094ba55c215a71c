package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hlsforge/internal/api"
	"hlsforge/internal/config"
	"hlsforge/internal/library"
	"hlsforge/internal/logging"
	"hlsforge/internal/services"
)

// manifestCacheControl is sent with playlist responses. Completed HLS output
// is immutable until a new job replaces it, so short-lived caching is safe.
const manifestCacheControl = "max-age=3600"

const manifestContentType = "application/vnd.apple.mpegurl"

const segmentContentType = "video/mp2t"

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	mux := http.NewServeMux()
	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/videos", srv.handleVideos)
	mux.HandleFunc("/api/videos/", srv.handleVideoSubtree)
	mux.HandleFunc("/api/jobs", srv.handleJobs)
	mux.HandleFunc("/api/jobs/", srv.handleJobSubtree)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
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

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
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
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

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
	status := s.daemon.Status(r.Context())
	dependencies := make([]api.DependencyStatus, len(status.Dependencies))
	for i, dep := range status.Dependencies {
		dependencies[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		LibraryDBPath: status.LibraryDBPath,
		LockFilePath:  status.LockFilePath,
		Jobs:          api.FromHealth(status.Jobs),
		Dependencies:  dependencies,
	})
}

func (s *apiServer) handleVideos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		videos, err := s.daemon.store.ListVideos(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.VideoListResponse{Videos: api.FromVideos(videos)})
	case http.MethodPost:
		var req api.AddVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		video, err := s.daemon.AddVideo(r.Context(), req.Title, req.SourcePath)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, api.VideoResponse{Video: api.FromVideo(video)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleVideoSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	idStr, tail, _ := strings.Cut(rest, "/")
	videoID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid video id")
		return
	}
	action, name, _ := strings.Cut(tail, "/")

	switch action {
	case "":
		s.handleVideoByID(w, r, videoID)
	case "jobs":
		s.handleVideoJobs(w, r, videoID)
	case "manifest":
		s.handleVideoManifest(w, r, videoID)
	case "segments":
		s.handleVideoSegment(w, r, videoID, name)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleVideoByID(w http.ResponseWriter, r *http.Request, videoID int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	video, err := s.daemon.store.GetVideo(r.Context(), videoID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if video == nil {
		s.writeError(w, http.StatusNotFound, "video not found")
		return
	}
	dto := api.FromVideo(video)
	if segments, err := s.daemon.store.SegmentsByVideo(r.Context(), videoID); err == nil {
		dto.SegmentCount = len(segments)
	}
	s.writeJSON(w, http.StatusOK, api.VideoResponse{Video: dto})
}

func (s *apiServer) handleVideoJobs(w http.ResponseWriter, r *http.Request, videoID int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.SubmitJobRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	job, err := s.daemon.SubmitJob(r.Context(), videoID, req.SegmentSeconds)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.SubmitJobResponse{JobID: job.ID})
}

func (s *apiServer) handleVideoManifest(w http.ResponseWriter, r *http.Request, videoID int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	video, err := s.daemon.store.GetVideo(r.Context(), videoID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if video == nil {
		s.writeError(w, http.StatusNotFound, "video not found")
		return
	}
	if !video.HasManifest() {
		// No output yet: queue a transcode with the default segment
		// duration so the requester can retry once it finishes.
		job, err := s.daemon.SubmitJob(r.Context(), videoID, 0)
		if err != nil {
			if errors.Is(err, services.ErrConflict) {
				s.writeJSON(w, http.StatusConflict, api.ManifestPendingResponse{
					Error: "hls output not ready; a transcode is already in progress",
				})
				return
			}
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusConflict, api.ManifestPendingResponse{
			Error: "hls output not ready; transcode queued",
			JobID: job.ID,
		})
		return
	}
	w.Header().Set("Content-Type", manifestContentType)
	w.Header().Set("Cache-Control", manifestCacheControl)
	http.ServeFile(w, r, video.ManifestPath)
}

// handleVideoSegment serves a single media segment by name. Names are matched
// against the persisted segment rows, never joined into a filesystem path
// from request input.
func (s *apiServer) handleVideoSegment(w http.ResponseWriter, r *http.Request, videoID int64, name string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if name == "" {
		s.writeError(w, http.StatusNotFound, "segment not found")
		return
	}
	segments, err := s.daemon.store.SegmentsByVideo(r.Context(), videoID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, segment := range segments {
		if filepath.Base(segment.FilePath) == name {
			w.Header().Set("Content-Type", segmentContentType)
			w.Header().Set("Cache-Control", manifestCacheControl)
			http.ServeFile(w, r, segment.FilePath)
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "segment not found")
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []library.JobStatus
	for _, value := range r.URL.Query()["status"] {
		status, ok := library.ParseJobStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown job status %q", value))
			return
		}
		statuses = append(statuses, status)
	}
	jobs, err := s.daemon.store.ListJobs(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(jobs)})
}

func (s *apiServer) handleJobSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID, action, _ := strings.Cut(rest, "/")
	if jobID == "" {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	switch action {
	case "":
		s.handleJobByID(w, r, jobID)
	case "progress":
		s.handleJobProgress(w, r, jobID)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleJobByID(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	job, err := s.daemon.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{Job: api.FromJob(job)})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}
	s.writeError(w, status, services.Message(err))
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
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.WithComponent(s.logger, "api-server")
	}
	return logging.NewNop()
}
