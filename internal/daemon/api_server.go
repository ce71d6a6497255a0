package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"gloss/internal/api"
	"gloss/internal/config"
	"gloss/internal/logging"
	"gloss/internal/services"
	"gloss/internal/upload"
)

type apiServer struct {
	bind   string
	token  string
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

	srv := &apiServer{
		bind:   bind,
		token:  strings.TrimSpace(cfg.Paths.APIToken),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.route(srv.handleStatus))
	mux.HandleFunc("/api/batch", srv.route(srv.handleBatch))
	mux.HandleFunc("/api/progress", srv.route(srv.handleProgress))
	mux.HandleFunc("/api/images/", srv.route(srv.handleImage))
	mux.HandleFunc("/api/export/archive", srv.route(srv.handleExportArchive))
	mux.HandleFunc("/api/export/dam", srv.route(srv.handleExportDam))
	mux.HandleFunc("/api/summary", srv.route(srv.handleSummary))
	mux.HandleFunc("/api/reset", srv.route(srv.handleReset))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
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

// route chains auth with a per-request correlation id. Downstream component
// logs pick the id up from the request context, tying them back to one API
// call.
func (s *apiServer) route(next http.HandlerFunc) http.HandlerFunc {
	return s.auth(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), uuid.NewString())
		next(w, r.WithContext(ctx))
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w)
		return
	}
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		SessionDB:    status.SessionDB,
		LockFilePath: status.LockFilePath,
		ActiveBatch:  status.ActiveBatch,
	})
}

func (s *apiServer) handleBatch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		b, err := s.daemon.store.Batch(r.Context())
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.BatchResponse{Batch: api.FromBatch(b)})
	case http.MethodPost:
		var req api.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, services.KindInvalidInput, "invalid request body: "+err.Error())
			return
		}
		inputs := make([]upload.Input, len(req.Images))
		for i, img := range req.Images {
			inputs[i] = upload.Input{Name: img.Name, Data: img.Data}
		}
		batchID, err := s.daemon.uploader.Submit(r.Context(), inputs, req.Instructions)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.SubmitResponse{BatchID: batchID})
	default:
		s.writeMethodNotAllowed(w)
	}
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeMethodNotAllowed(w)
		return
	}
	progress, err := s.daemon.supervisor.Progress(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProgressResponse{Progress: api.FromProgress(progress)})
}

// handleImage routes /api/images/{id}/retouch and /api/images/{id}/requeue.
func (s *apiServer) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/images/")
	imageID, action, ok := strings.Cut(rest, "/")
	if !ok || imageID == "" {
		s.writeError(w, http.StatusNotFound, services.KindNotFound, "unknown image endpoint")
		return
	}

	switch action {
	case "retouch":
		var req api.RetouchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, services.KindInvalidInput, "invalid request body: "+err.Error())
			return
		}
		img, err := s.daemon.retoucher.Retouch(r.Context(), imageID, req.Instruction)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.RetouchResponse{Image: api.FromImage(img)})
	case "requeue":
		if err := s.daemon.supervisor.Requeue(r.Context(), imageID); err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, nil)
	default:
		s.writeError(w, http.StatusNotFound, services.KindNotFound, "unknown image action "+action)
	}
}

func (s *apiServer) handleExportArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	archivePath, err := s.daemon.exporter.ExportArchive(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ExportArchiveResponse{ArchivePath: archivePath})
}

func (s *apiServer) handleExportDam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	var req api.ExportDamRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, services.KindInvalidInput, "invalid request body: "+err.Error())
			return
		}
	}
	report, err := s.daemon.exporter.ExportDam(r.Context(), api.ToConnection(req.Connection))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ExportDamResponse{Report: api.FromReport(report)})
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	var req api.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, services.KindInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if err := s.daemon.store.SetSummary(r.Context(), req.Summary); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *apiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeMethodNotAllowed(w)
		return
	}
	if err := s.daemon.store.Reset(r.Context()); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, nil)
}

// httpStatusFor maps the error taxonomy onto HTTP statuses.
func httpStatusFor(kind string) int {
	switch kind {
	case services.KindInvalidInput:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict, services.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	kind := services.Kind(err)
	s.writeError(w, httpStatusFor(kind), kind, err.Error())
}

func (s *apiServer) writeMethodNotAllowed(w http.ResponseWriter) {
	s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
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

func (s *apiServer) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}

func (s *apiServer) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
