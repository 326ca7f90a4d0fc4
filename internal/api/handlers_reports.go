package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/finbrief/reportseg/internal/parser"
	"github.com/finbrief/reportseg/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	platforms := s.cfg.DefaultPlatforms
	if v := r.FormValue("platforms"); v != "" {
		platforms = splitCSV(v)
	}
	if len(platforms) == 0 {
		jsonError(w, "platforms must name at least one platform", http.StatusBadRequest)
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(r.FormValue("ticker")))

	now := time.Now()
	job := &pipeline.Job{
		ID:        pipeline.ContentHashHex([]byte(fmt.Sprintf("%s-%d", filename, now.UnixNano())))[:20],
		Ticker:    ticker,
		Status:    pipeline.StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Platforms: platforms,
		Progress:  pipeline.Progress{PlatformsTotal: len(platforms)},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Parsers read from disk, so spool the upload next to the data dir.
	spooled, err := s.spoolUpload(file, job.ID, filename)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, errTooLarge) {
			code = http.StatusRequestEntityTooLarge
		}
		jsonError(w, err.Error(), code)
		return
	}
	job.SetSourcePath(spooled)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":    job.ID,
		"status":    pipeline.StatusQueued,
		"platforms": platforms,
		"poll_url":  fmt.Sprintf("/api/reports/%s/status", job.ID),
	})
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":    snap.ID,
		"ticker":    snap.Ticker,
		"status":    snap.Status,
		"phase":     snap.Phase,
		"platforms": snap.Platforms,
		"progress":  snap.Progress,
	})
}

// spoolUpload copies the uploaded file into the data dir so workers can
// re-read it by path. Each job gets its own subdirectory and the upload
// keeps its submitted name: parsers derive the ticker from the filename
// when no explicit ticker accompanies the upload.
func (s *Server) spoolUpload(file io.Reader, jobID, filename string) (string, error) {
	dir := filepath.Join(s.cfg.DataDir, "uploads", jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("spool upload: %w", err)
	}
	defer out.Close()

	n, err := io.Copy(out, io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("spool upload: %w", err)
	}
	if n > s.cfg.MaxUploadBytes {
		os.Remove(path)
		return "", fmt.Errorf("%w (%d bytes)", errTooLarge, s.cfg.MaxUploadBytes)
	}
	return path, nil
}

var errTooLarge = errors.New("file exceeds max size")

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
