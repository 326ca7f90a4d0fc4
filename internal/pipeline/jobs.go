// Package pipeline orchestrates report processing: parse the source file,
// split it into platform segments, and persist the resulting bundles.
package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the state of a segmentation job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusParsing   JobStatus = "parsing"
	StatusSplitting JobStatus = "splitting"
	StatusStoring   JobStatus = "storing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Job tracks the state of a single report segmentation.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	Ticker string `json:"ticker"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`

	Platforms []string `json:"platforms"`
	Progress  Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	sourcePath string
	errors     []string
}

// Progress tracks per-platform processing progress.
type Progress struct {
	PlatformsTotal  int      `json:"platforms_total"`
	PlatformsDone   int      `json:"platforms_done"`
	SegmentsEmitted int      `json:"segments_emitted"`
	Errors          []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrPlatformsDone atomically increments the finished-platform count.
func (j *Job) IncrPlatformsDone() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.PlatformsDone++
	j.UpdatedAt = time.Now()
}

// AddSegments records emitted segment counts.
func (j *Job) AddSegments(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SegmentsEmitted += n
	j.UpdatedAt = time.Now()
}

// SetTicker records the ticker resolved during parsing.
func (j *Job) SetTicker(ticker string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Ticker = ticker
	j.UpdatedAt = time.Now()
}

// SetSourcePath sets the spooled source file path for processing.
func (j *Job) SetSourcePath(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sourcePath = path
}

// SourcePath returns the spooled source file path.
func (j *Job) SourcePath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sourcePath
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Ticker    string    `json:"ticker"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filename  string    `json:"filename"`
	Platforms []string  `json:"platforms"`
	Progress  Progress  `json:"progress"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:        j.ID,
		Ticker:    j.Ticker,
		Status:    j.Status,
		Phase:     j.Phase,
		Filename:  j.Filename,
		Platforms: j.Platforms,
		Progress: Progress{
			PlatformsTotal:  j.Progress.PlatformsTotal,
			PlatformsDone:   j.Progress.PlatformsDone,
			SegmentsEmitted: j.Progress.SegmentsEmitted,
			Errors:          errs,
		},
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
