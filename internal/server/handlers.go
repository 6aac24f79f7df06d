package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/medidispatch/dispatch-ocr/internal/batch"
)

// Handler builds the HTTP surface.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("POST /v1/batches", s.uploadBatch)
	mux.HandleFunc("GET /v1/batches/{id}", s.getBatch)
	mux.HandleFunc("POST /v1/batches/{id}/process", s.processBatch)
	mux.HandleFunc("POST /v1/batches/{id}/confirm", s.confirmBatch)
	mux.HandleFunc("GET /v1/batches/{id}/report.xlsx", s.batchReport)
	mux.HandleFunc("DELETE /v1/batches/{id}/jobs/{jobID}", s.removeJob)
	return requestIDMiddleware(accessLogMiddleware(s.logger, mux))
}

func (s *Service) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type rejectedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

type uploadResponse struct {
	BatchID  uuid.UUID        `json:"batch_id"`
	Jobs     []batch.ImageJob `json:"jobs"`
	Rejected []rejectedFile   `json:"rejected,omitempty"`
}

func (s *Service) uploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form required"})
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	batchID, orch := s.createBatch()
	dir := filepath.Join(s.uploadDir, batchID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("create upload dir failed", "dir", dir, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "storage unavailable"})
		return
	}

	resp := uploadResponse{BatchID: batchID}
	for _, fh := range files {
		path, err := saveUpload(fh, dir)
		if err != nil {
			resp.Rejected = append(resp.Rejected, rejectedFile{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		job, err := orch.Add(path, fh.Filename, fh.Size)
		if err != nil {
			_ = os.Remove(path)
			resp.Rejected = append(resp.Rejected, rejectedFile{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		resp.Jobs = append(resp.Jobs, *job)
	}

	writeJSON(w, http.StatusCreated, resp)
}

func saveUpload(fh *multipart.FileHeader, dir string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	// stored name is unique per part; same-named files in one batch must
	// not share bytes
	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Service) getBatch(w http.ResponseWriter, r *http.Request) {
	orch, ok := s.batchFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":    orch.Jobs(),
		"summary": orch.Summary(),
	})
}

func (s *Service) processBatch(w http.ResponseWriter, r *http.Request) {
	id, _, ok := s.batchAndIDFromPath(w, r)
	if !ok {
		return
	}
	if err := s.queue.Enqueue(r.Context(), batch.Job{BatchID: id}); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue unavailable"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type confirmRequest struct {
	JobIDs            []uuid.UUID `json:"job_ids"`
	AllHighConfidence bool        `json:"all_high_confidence"`
}

func (s *Service) confirmBatch(w http.ResponseWriter, r *http.Request) {
	orch, ok := s.batchFromPath(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	var outcome batch.ConfirmOutcome
	switch {
	case req.AllHighConfidence:
		outcome = orch.ConfirmAllHighConfidence(r.Context())
	case len(req.JobIDs) > 0:
		outcome = orch.ConfirmSelected(r.Context(), req.JobIDs)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job_ids or all_high_confidence required"})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Service) batchReport(w http.ResponseWriter, r *http.Request) {
	orch, ok := s.batchFromPath(w, r)
	if !ok {
		return
	}
	data, err := s.exporter.BuildReportXLSX(orch.Jobs(), orch.Summary())
	if err != nil {
		s.logger.Error("report export failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="reconciliation.xlsx"`)
	_, _ = w.Write(data)
}

func (s *Service) removeJob(w http.ResponseWriter, r *http.Request) {
	orch, ok := s.batchFromPath(w, r)
	if !ok {
		return
	}
	jobID, err := uuid.Parse(r.PathValue("jobID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid job id"})
		return
	}
	if err := orch.Remove(jobID); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) batchFromPath(w http.ResponseWriter, r *http.Request) (*batch.Orchestrator, bool) {
	_, orch, ok := s.batchAndIDFromPath(w, r)
	return orch, ok
}

func (s *Service) batchAndIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, *batch.Orchestrator, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid batch id"})
		return uuid.Nil, nil, false
	}
	orch, ok := s.batch(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
		return uuid.Nil, nil, false
	}
	return id, orch, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// response already committed; nothing useful to do
		_ = err
	}
}
