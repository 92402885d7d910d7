// Package httpapi exposes the engine over HTTP:
// upload/job/progress/extraction/recovery endpoints, plus the
// supplementary /healthz and /metrics endpoints every deployment needs.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/clinotect/noteengine/internal/jobs"
	"github.com/clinotect/noteengine/internal/progress"
	"github.com/clinotect/noteengine/internal/recovery"
	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

// Server wires the job manager, progress bus, and storage backend
// into the HTTP route table.
type Server struct {
	jobs      *jobs.Manager
	bus       *progress.Bus
	store     storage.Store
	uploadDir string

	httpServer *http.Server
	listener   net.Listener
}

// New constructs a Server. uploadDir is where POST /uploads spools
// multipart files before enqueueing an upload job.
func New(jm *jobs.Manager, bus *progress.Bus, store storage.Store, uploadDir string) *Server {
	return &Server{jobs: jm, bus: bus, store: store, uploadDir: uploadDir}
}

// Start binds addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Handler:      s.mux(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams hold the connection open
		IdleTimeout:  120 * time.Second,
	}

	var err error
	s.listener, err = net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen on %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	return s.httpServer.Serve(s.listener)
}

// mux builds the route table. Split out from Start so tests
// can exercise handlers through httptest without binding a real socket.
func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/uploads", s.handleUploads)
	mux.HandleFunc("/jobs/", s.handleJobByID)
	mux.HandleFunc("/jobs", s.handleJobsList)
	mux.HandleFunc("/progress/stream", s.handleProgressStream)
	mux.HandleFunc("/progress/latest", s.handleProgressLatest)
	mux.HandleFunc("/extractions", s.handleExtractions)
	mux.HandleFunc("/recovery/clear-mentions", s.handleRecoveryClearMentions)
	mux.HandleFunc("/recovery/reset-status", s.handleRecoveryResetStatus)
	mux.HandleFunc("/recovery/purge", s.handleRecoveryPurge)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleUploads implements POST /uploads: multipart body with a file,
// returns {job_id}.
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		http.Error(w, "missing tenant query parameter", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "invalid multipart body: "+err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	spooled, err := s.spool(file, header)
	if err != nil {
		http.Error(w, "failed to spool upload: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jobID, err := s.jobs.EnqueueUpload(r.Context(), jobs.UploadRequest{
		TenantID: tenantID, FilePath: spooled, FileName: header.Filename,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) spool(file multipart.File, header *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(s.uploadDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), header.Filename))
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return "", err
	}
	return dst, nil
}

// handleJobByID implements GET /jobs/{job_id} and DELETE /jobs/{job_id}.
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Path[len("/jobs/"):]
	if jobID == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		job, err := s.jobs.Get(r.Context(), jobID)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "job not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		if !s.jobs.Cancel(jobID) {
			http.Error(w, "job is running and cannot be cancelled", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsList implements GET /jobs?tenant=….
func (s *Server) handleJobsList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		http.Error(w, "missing tenant query parameter", http.StatusBadRequest)
		return
	}
	list, err := s.jobs.ListByTenant(r.Context(), tenantID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleProgressStream implements GET /progress/stream?tenant=…: an
// SSE stream that opens with a {type: connection} frame and then
// forwards every event published for the tenant.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		http.Error(w, "missing tenant query parameter", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsubscribe := s.bus.Subscribe(tenantID)
	defer unsubscribe()

	ctx := r.Context()
	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, event)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event progress.Event) {
	payload := map[string]any{"type": event.Type, "timestamp": event.Timestamp}
	for k, v := range event.Fields {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// handleProgressLatest implements GET /progress/latest?tenant=…&process_type=….
func (s *Server) handleProgressLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID := r.URL.Query().Get("tenant")
	processType := types.ProcessType(r.URL.Query().Get("process_type"))
	if tenantID == "" || processType == "" {
		http.Error(w, "missing tenant or process_type query parameter", http.StatusBadRequest)
		return
	}
	status, err := s.store.GetProcessStatus(r.Context(), tenantID, processType)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "no status recorded", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleExtractions implements POST /extractions: manual extraction
// enqueue, typically used for recovery.
func (s *Server) handleExtractions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Tenant    string `json:"tenant"`
		BatchSize int    `json:"batch_size"`
		DelayMS   int    `json:"delay_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Tenant == "" {
		http.Error(w, "missing tenant", http.StatusBadRequest)
		return
	}
	jobID, err := s.jobs.EnqueueExtraction(r.Context(), jobs.ExtractionRequest{
		TenantID: body.Tenant, BatchSize: body.BatchSize, DelayMS: body.DelayMS,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleRecoveryClearMentions(w http.ResponseWriter, r *http.Request) {
	s.handleRecoveryOp(w, r, func(ctx context.Context, tenant string) error {
		return recovery.ClearMentions(ctx, s.store, tenant)
	})
}

func (s *Server) handleRecoveryResetStatus(w http.ResponseWriter, r *http.Request) {
	s.handleRecoveryOp(w, r, func(ctx context.Context, tenant string) error {
		return recovery.ResetStatus(ctx, s.store, tenant, types.ProcessExtraction)
	})
}

func (s *Server) handleRecoveryPurge(w http.ResponseWriter, r *http.Request) {
	s.handleRecoveryOp(w, r, func(ctx context.Context, tenant string) error {
		return recovery.PurgeTenant(ctx, s.store, tenant)
	})
}

func (s *Server) handleRecoveryOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, tenant string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Tenant string `json:"tenant"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Tenant == "" {
		http.Error(w, "missing tenant in request body", http.StatusBadRequest)
		return
	}
	if err := op(r.Context(), body.Tenant); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
