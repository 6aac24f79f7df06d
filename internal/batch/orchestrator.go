package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medidispatch/dispatch-ocr/constants"
	"github.com/medidispatch/dispatch-ocr/internal/common"
	"github.com/medidispatch/dispatch-ocr/internal/entity"
	"github.com/medidispatch/dispatch-ocr/internal/metrics"
)

// TextExtractor is the extraction stage: report file -> field candidates.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (entity.OCRResult, error)
}

// Evaluator is the matching stage: extraction -> graded verdict.
type Evaluator interface {
	Evaluate(ctx context.Context, extraction entity.OCRResult) entity.MatchResult
}

// Committer applies an accepted match to the dispatch store. It reports
// success as a bool so fan-out callers can count failures without per-call
// error handling.
type Committer interface {
	ApplyMatch(ctx context.Context, dispatchID uuid.UUID, extraction entity.OCRResult) bool
}

// Summary is the aggregate view surfaced after processing. Counts cover
// jobs that reached COMPLETED; ERROR jobs are tallied separately.
type Summary struct {
	TotalProcessed            int `json:"total_processed"`
	AutoApplied               int `json:"auto_applied"`
	NeedsReview               int `json:"needs_review"`
	HighConfidenceNeedsReview int `json:"high_confidence_needs_review"`
	Errors                    int `json:"errors"`
}

// ConfirmOutcome reports a fan-out confirm action: how many commits
// succeeded and which specific jobs did not.
type ConfirmOutcome struct {
	Succeeded int         `json:"succeeded"`
	Failed    []uuid.UUID `json:"failed,omitempty"`
}

// Orchestrator drives a batch of independent image jobs through
// extraction -> evaluation -> (auto-)commit. The main loop is strictly
// sequential; fan-out confirm actions are the only concurrent paths.
type Orchestrator struct {
	extractor TextExtractor
	evaluator Evaluator
	committer Committer
	metrics   *metrics.BatchMetrics
	logger    *slog.Logger

	mu    sync.Mutex
	jobs  map[uuid.UUID]*ImageJob
	order []uuid.UUID
}

type Option func(*Orchestrator)

func WithMetrics(m *metrics.BatchMetrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func NewOrchestrator(extractor TextExtractor, evaluator Evaluator, committer Committer, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		extractor: extractor,
		evaluator: evaluator,
		committer: committer,
		logger:    logger,
		jobs:      make(map[uuid.UUID]*ImageJob),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Add accepts one report file into the batch as a pending job. path is
// where the bytes live on disk, filename the caller-facing name; they can
// differ when the caller stores uploads under collision-free names. Files
// over the size cap or with an extension the engine cannot take are
// rejected here, before any processing starts.
func (o *Orchestrator) Add(path, filename string, size int64) (*ImageJob, error) {
	name := filepath.Base(filename)
	if size > constants.MaxUploadBytes {
		return nil, common.NewAppError("FILE_TOO_LARGE",
			fmt.Sprintf("%s: file size must be less than 10MB", name), common.ErrInvalidInput)
	}
	if constants.MapExtToFormat(filepath.Ext(name)) == "" {
		return nil, common.NewAppError("UNSUPPORTED_FILE",
			fmt.Sprintf("%s: must be a valid image or PDF file", name), common.ErrInvalidInput)
	}

	job := &ImageJob{
		ID:       uuid.New(),
		Path:     path,
		Filename: name,
		Size:     size,
		Status:   constants.JobStatusPending,
		AddedAt:  time.Now().UTC(),
	}

	o.mu.Lock()
	o.jobs[job.ID] = job
	o.order = append(o.order, job.ID)
	o.mu.Unlock()

	o.logger.Debug("job added", "job_id", job.ID, "filename", name, "size", size)
	return job, nil
}

// Remove discards a job from the batch. A job mid-processing cannot be
// removed; removing a pending job is the only way to skip it.
func (o *Orchestrator) Remove(id uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	job, ok := o.jobs[id]
	if !ok {
		return common.NewAppError("JOB_NOT_FOUND", id.String(), common.ErrNotFound)
	}
	if job.Status == constants.JobStatusProcessing {
		return common.NewAppError("JOB_BUSY", "cannot remove a job while it is processing", common.ErrInvalidInput)
	}
	delete(o.jobs, id)
	for i, jid := range o.order {
		if jid == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return nil
}

// Job returns a snapshot of one job.
func (o *Orchestrator) Job(id uuid.UUID) (ImageJob, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[id]
	if !ok {
		return ImageJob{}, false
	}
	return *job, true
}

// Jobs returns snapshots of all jobs in submission order.
func (o *Orchestrator) Jobs() []ImageJob {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ImageJob, 0, len(o.order))
	for _, id := range o.order {
		if job, ok := o.jobs[id]; ok {
			out = append(out, *job)
		}
	}
	return out
}

// ProcessAll runs every pending job to a terminal state, in submission
// order, one at a time. Jobs already terminal are skipped, so re-invoking
// on a partially processed batch only touches what is still pending. A
// single job's failure never halts the rest of the batch.
func (o *Orchestrator) ProcessAll(ctx context.Context) {
	for _, id := range o.pendingIDs() {
		o.processOne(ctx, id)
	}
}

func (o *Orchestrator) pendingIDs() []uuid.UUID {
	o.mu.Lock()
	defer o.mu.Unlock()
	var ids []uuid.UUID
	for _, id := range o.order {
		if job, ok := o.jobs[id]; ok && job.Status == constants.JobStatusPending {
			ids = append(ids, id)
		}
	}
	return ids
}

func (o *Orchestrator) processOne(ctx context.Context, id uuid.UUID) {
	o.mu.Lock()
	job, ok := o.jobs[id]
	if !ok || !job.markProcessing() {
		o.mu.Unlock()
		return
	}
	path := job.Path
	o.mu.Unlock()

	start := time.Now()

	extraction, err := o.extractor.Extract(ctx, path)
	if err != nil {
		o.failJob(id, err.Error(), start)
		return
	}
	if extraction.Empty() {
		o.failJob(id, "failed to extract tracking ID or amount from image", start)
		return
	}

	verdict := o.evaluator.Evaluate(ctx, extraction)

	// auto-apply is unconditional once the confidence+payment gate passed
	if verdict.Status == constants.StatusAutoApplied && verdict.Dispatch != nil {
		ok := o.committer.ApplyMatch(ctx, verdict.Dispatch.ID, extraction)
		o.metrics.RecordCommit(ok)
		if !ok {
			o.logger.Warn("auto-apply commit failed",
				"job_id", id, "dispatch_id", verdict.Dispatch.ID, "tracking_id", verdict.Dispatch.TrackingID)
		}
	}

	o.mu.Lock()
	if job, ok := o.jobs[id]; ok {
		job.complete(&verdict)
	}
	o.mu.Unlock()

	o.metrics.ObserveJob(string(constants.JobStatusCompleted), time.Since(start))
	o.logger.Info("job completed",
		"job_id", id,
		"status", verdict.Status,
		"match_confidence", verdict.Confidence,
		"amount_matches", verdict.AmountMatches,
	)
}

func (o *Orchestrator) failJob(id uuid.UUID, message string, start time.Time) {
	o.mu.Lock()
	if job, ok := o.jobs[id]; ok {
		job.fail(message)
	}
	o.mu.Unlock()

	o.metrics.ObserveJob(string(constants.JobStatusError), time.Since(start))
	o.logger.Warn("job failed", "job_id", id, "error", message)
}

// Confirm commits one needs_review job and, on success, advances its
// verdict to auto_applied in place. The evaluator is not re-run; the
// stored status is the single source of truth.
func (o *Orchestrator) Confirm(ctx context.Context, id uuid.UUID) bool {
	o.mu.Lock()
	job, ok := o.jobs[id]
	eligible := ok && job.Status == constants.JobStatusCompleted &&
		job.Result != nil && job.Result.Status == constants.StatusNeedsReview &&
		job.Result.Dispatch != nil
	var dispatchID uuid.UUID
	var extraction entity.OCRResult
	if eligible {
		dispatchID = job.Result.Dispatch.ID
		extraction = job.Result.Extraction
	}
	o.mu.Unlock()

	if !eligible {
		return false
	}

	ok = o.committer.ApplyMatch(ctx, dispatchID, extraction)
	o.metrics.RecordCommit(ok)
	if !ok {
		return false
	}

	o.mu.Lock()
	if job, present := o.jobs[id]; present && job.Result != nil {
		job.Result.Status = constants.StatusAutoApplied
	}
	o.mu.Unlock()
	return true
}

// ConfirmSelected commits the given needs_review jobs concurrently and
// joins before reporting. Requested jobs that are not eligible, or whose
// commit fails, come back in Failed.
func (o *Orchestrator) ConfirmSelected(ctx context.Context, ids []uuid.UUID) ConfirmOutcome {
	return o.confirmMany(ctx, ids)
}

// ConfirmAllHighConfidence commits every needs_review job whose grade is
// high, with the same fan-out-and-join pattern as ConfirmSelected.
func (o *Orchestrator) ConfirmAllHighConfidence(ctx context.Context) ConfirmOutcome {
	o.mu.Lock()
	var ids []uuid.UUID
	for _, id := range o.order {
		job, ok := o.jobs[id]
		if ok && job.Status == constants.JobStatusCompleted && job.Result != nil &&
			job.Result.Status == constants.StatusNeedsReview &&
			job.Result.Confidence == constants.ConfidenceHigh {
			ids = append(ids, id)
		}
	}
	o.mu.Unlock()

	return o.confirmMany(ctx, ids)
}

func (o *Orchestrator) confirmMany(ctx context.Context, ids []uuid.UUID) ConfirmOutcome {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		outcome ConfirmOutcome
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			ok := o.Confirm(ctx, id)
			mu.Lock()
			if ok {
				outcome.Succeeded++
			} else {
				outcome.Failed = append(outcome.Failed, id)
			}
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if len(outcome.Failed) > 0 {
		failed := make([]string, 0, len(outcome.Failed))
		for _, id := range outcome.Failed {
			failed = append(failed, id.String())
		}
		o.logger.Warn("confirm fan-out had failures",
			"succeeded", outcome.Succeeded, "failed", strings.Join(failed, ","))
	}
	return outcome
}

// Summary tallies the batch for display.
func (o *Orchestrator) Summary() Summary {
	o.mu.Lock()
	defer o.mu.Unlock()

	var s Summary
	for _, job := range o.jobs {
		switch job.Status {
		case constants.JobStatusError:
			s.Errors++
		case constants.JobStatusCompleted:
			s.TotalProcessed++
			if job.Result == nil {
				continue
			}
			switch job.Result.Status {
			case constants.StatusAutoApplied:
				s.AutoApplied++
			case constants.StatusNeedsReview:
				s.NeedsReview++
				if job.Result.Confidence == constants.ConfidenceHigh {
					s.HighConfidenceNeedsReview++
				}
			}
		}
	}
	return s
}
