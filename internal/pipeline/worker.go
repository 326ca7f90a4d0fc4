package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/finbrief/reportseg/internal/parser"
	"github.com/finbrief/reportseg/internal/segstore"
	"github.com/finbrief/reportseg/internal/splitter"
)

// Worker processes a single report job.
type Worker struct {
	store  *segstore.Store
	log    *slog.Logger
	themes map[string][]string

	maxConcurrentStore int
}

func NewWorker(store *segstore.Store, log *slog.Logger, themes map[string][]string, maxStore int) *Worker {
	return &Worker{
		store:              store,
		log:                log,
		themes:             themes,
		maxConcurrentStore: maxStore,
	}
}

// aborted fails the job when the pipeline is shutting down, so a cancelled
// run never advances to its next phase.
func (w *Worker) aborted(ctx context.Context, job *Job, log *slog.Logger, phase string) bool {
	err := ctx.Err()
	if err == nil {
		return false
	}
	log.Warn("job aborted", "phase", phase, "error", err)
	job.AddError("aborted: " + err.Error())
	job.SetStatus(StatusFailed, phase)
	return true
}

// Process runs the full segmentation pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	if w.aborted(ctx, job, log, "parsing") {
		return
	}

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	rd, err := p.Parse(job.SourcePath())
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// A ticker supplied at submission overrides the parsed guess.
	if job.Ticker != "" {
		rd.Metadata.Ticker = job.Ticker
	} else {
		job.SetTicker(rd.Metadata.Ticker)
	}

	raw, err := os.ReadFile(job.SourcePath())
	if err != nil {
		log.Warn("hash read failed", "error", err)
	} else {
		job.ContentHash = ContentHashHex(raw)
	}

	log = log.With("ticker", rd.Metadata.Ticker)
	log.Info("parsed report", "chapters", len(rd.Chapters), "language", rd.Metadata.Language)

	if w.aborted(ctx, job, log, "splitting") {
		return
	}

	// Phase 2: Split per platform.
	job.SetStatus(StatusSplitting, "splitting")
	type platformResult struct {
		platform string
		bundle   *segstore.Bundle
	}
	bundles := make([]platformResult, 0, len(job.Platforms))
	for _, platform := range job.Platforms {
		sp := splitter.NewWithThemes(platform, w.themes[platform])
		segments := sp.Split(rd)
		job.AddSegments(len(segments))
		log.Info("split report", "platform", platform, "segments", len(segments))
		bundles = append(bundles, platformResult{
			platform: platform,
			bundle: &segstore.Bundle{
				Ticker:      rd.Metadata.Ticker,
				Platform:    platform,
				Metadata:    rd.Metadata,
				Segments:    segments,
				SourceFile:  job.Filename,
				ContentHash: job.ContentHash,
				CreatedAt:   time.Now().UTC(),
			},
		})
	}

	if w.aborted(ctx, job, log, "storing") {
		return
	}

	// Phase 3: Store bundles with bounded concurrency.
	job.SetStatus(StatusStoring, "storing")
	sem := make(chan struct{}, w.maxConcurrentStore)
	type storeResult struct {
		platform string
		err      error
	}
	results := make(chan storeResult, len(bundles))

	for _, pr := range bundles {
		sem <- struct{}{}
		go func(pr platformResult) {
			defer func() { <-sem }()
			results <- storeResult{platform: pr.platform, err: w.store.Save(pr.bundle)}
		}(pr)
	}

	hadErrors := false
	stored := 0
	for range bundles {
		r := <-results
		job.IncrPlatformsDone()
		if r.err != nil {
			log.Error("store failed", "platform", r.platform, "error", r.err)
			job.AddError(fmt.Sprintf("store %s: %s", r.platform, r.err))
			hadErrors = true
			continue
		}
		stored++
	}

	log.Info("storage complete", "stored", stored, "total", len(bundles))

	switch {
	case hadErrors && stored > 0:
		job.SetStatus(StatusPartial, "done")
	case hadErrors:
		job.SetStatus(StatusFailed, "storing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}
