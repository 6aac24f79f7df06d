package batch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/medidispatch/dispatch-ocr/constants"
	"github.com/medidispatch/dispatch-ocr/internal/entity"
	"github.com/medidispatch/dispatch-ocr/internal/match"
)

type fakeExtractor struct {
	mu      sync.Mutex
	results map[string]entity.OCRResult
	errs    map[string]error
	calls   map[string]int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		results: make(map[string]entity.OCRResult),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeExtractor) Extract(_ context.Context, path string) (entity.OCRResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	if err, ok := f.errs[path]; ok {
		return entity.OCRResult{}, err
	}
	return f.results[path], nil
}

type fakeEvaluator struct {
	verdicts map[string]entity.MatchResult
}

func (f *fakeEvaluator) Evaluate(_ context.Context, extraction entity.OCRResult) entity.MatchResult {
	v := f.verdicts[extraction.RawText]
	v.Extraction = extraction
	return v
}

type fakeCommitter struct {
	mu    sync.Mutex
	ok    bool
	calls []uuid.UUID
}

func (f *fakeCommitter) ApplyMatch(_ context.Context, dispatchID uuid.UUID, _ entity.OCRResult) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchID)
	return f.ok
}

func (f *fakeCommitter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func extractionFor(key string) entity.OCRResult {
	tid := "EZ1"
	amt := 500.0
	return entity.OCRResult{TrackingID: &tid, Amount: &amt, Confidence: 90, RawText: key}
}

func needsReview(confidence constants.MatchConfidence, dispatchID uuid.UUID) entity.MatchResult {
	return entity.MatchResult{
		Dispatch:   &entity.Dispatch{ID: dispatchID, TrackingID: "EZ1", Amount: 500},
		Confidence: confidence,
		Status:     constants.StatusNeedsReview,
	}
}

func TestAddValidation(t *testing.T) {
	o := NewOrchestrator(newFakeExtractor(), &fakeEvaluator{}, &fakeCommitter{}, nil)

	if _, err := o.Add("scan.jpg", "scan.jpg", constants.MaxUploadBytes+1); err == nil {
		t.Error("oversize file accepted")
	}
	if _, err := o.Add("notes.docx", "notes.docx", 100); err == nil {
		t.Error("unsupported extension accepted")
	}
	job, err := o.Add("scan.jpg", "scan.jpg", 100)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if job.Status != constants.JobStatusPending {
		t.Errorf("Status = %s, want PENDING", job.Status)
	}
	if job.ID == uuid.Nil {
		t.Error("job ID not assigned")
	}
}

func TestProcessAllIsolatesFailures(t *testing.T) {
	ex := newFakeExtractor()
	ex.results["a.jpg"] = extractionFor("a")
	ex.errs["b.jpg"] = errors.New("engine crashed")
	ex.results["c.jpg"] = extractionFor("c")

	ev := &fakeEvaluator{verdicts: map[string]entity.MatchResult{
		"a": {Status: constants.StatusNoMatch, Confidence: constants.ConfidenceNone},
		"c": {Status: constants.StatusNoMatch, Confidence: constants.ConfidenceNone},
	}}
	o := NewOrchestrator(ex, ev, &fakeCommitter{}, nil)

	ja, _ := o.Add("a.jpg", "a.jpg", 10)
	jb, _ := o.Add("b.jpg", "b.jpg", 10)
	jc, _ := o.Add("c.jpg", "c.jpg", 10)

	o.ProcessAll(context.Background())

	for _, tc := range []struct {
		id   uuid.UUID
		want constants.JobStatus
	}{
		{ja.ID, constants.JobStatusCompleted},
		{jb.ID, constants.JobStatusError},
		{jc.ID, constants.JobStatusCompleted},
	} {
		job, ok := o.Job(tc.id)
		if !ok {
			t.Fatalf("job %s missing", tc.id)
		}
		if job.Status != tc.want {
			t.Errorf("job %s status = %s, want %s", job.Filename, job.Status, tc.want)
		}
	}
}

func TestProcessAllIsIdempotent(t *testing.T) {
	ex := newFakeExtractor()
	ex.results["a.jpg"] = extractionFor("a")
	ev := &fakeEvaluator{verdicts: map[string]entity.MatchResult{
		"a": {Status: constants.StatusNoMatch, Confidence: constants.ConfidenceNone},
	}}
	o := NewOrchestrator(ex, ev, &fakeCommitter{}, nil)
	o.Add("a.jpg", "a.jpg", 10)

	o.ProcessAll(context.Background())
	o.ProcessAll(context.Background())

	if got := ex.calls["a.jpg"]; got != 1 {
		t.Errorf("extract calls = %d, want 1", got)
	}
}

func TestProcessAllEmptyExtractionFailsJob(t *testing.T) {
	ex := newFakeExtractor()
	ex.results["blank.jpg"] = entity.OCRResult{RawText: "noise"}
	o := NewOrchestrator(ex, &fakeEvaluator{}, &fakeCommitter{}, nil)
	job, _ := o.Add("blank.jpg", "blank.jpg", 10)

	o.ProcessAll(context.Background())

	got, _ := o.Job(job.ID)
	if got.Status != constants.JobStatusError {
		t.Fatalf("Status = %s, want ERROR", got.Status)
	}
	if got.Error != "failed to extract tracking ID or amount from image" {
		t.Errorf("Error = %q", got.Error)
	}
}

func TestProcessAllAutoAppliesOnce(t *testing.T) {
	dispatchID := uuid.New()
	ex := newFakeExtractor()
	ex.results["a.jpg"] = extractionFor("a")
	ev := &fakeEvaluator{verdicts: map[string]entity.MatchResult{
		"a": {
			Dispatch:      &entity.Dispatch{ID: dispatchID, TrackingID: "EZ1", Amount: 500},
			Confidence:    constants.ConfidenceHigh,
			AmountMatches: true,
			Status:        constants.StatusAutoApplied,
		},
	}}
	com := &fakeCommitter{ok: true}
	o := NewOrchestrator(ex, ev, com, nil)
	o.Add("a.jpg", "a.jpg", 10)

	o.ProcessAll(context.Background())

	if com.callCount() != 1 {
		t.Fatalf("commit calls = %d, want 1", com.callCount())
	}
	if com.calls[0] != dispatchID {
		t.Errorf("committed dispatch = %s, want %s", com.calls[0], dispatchID)
	}
}

func TestRemove(t *testing.T) {
	o := NewOrchestrator(newFakeExtractor(), &fakeEvaluator{}, &fakeCommitter{}, nil)
	job, _ := o.Add("a.jpg", "a.jpg", 10)

	if err := o.Remove(uuid.New()); err == nil {
		t.Error("removing unknown job succeeded")
	}
	if err := o.Remove(job.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := o.Job(job.ID); ok {
		t.Error("job still present after Remove")
	}
	if len(o.Jobs()) != 0 {
		t.Error("Jobs still lists removed job")
	}
}

func TestConfirmSelected(t *testing.T) {
	ex := newFakeExtractor()
	ex.results["a.jpg"] = extractionFor("a")
	ex.results["b.jpg"] = extractionFor("b")
	dispatchA, dispatchB := uuid.New(), uuid.New()
	ev := &fakeEvaluator{verdicts: map[string]entity.MatchResult{
		"a": needsReview(constants.ConfidenceHigh, dispatchA),
		"b": needsReview(constants.ConfidenceMedium, dispatchB),
	}}
	com := &fakeCommitter{ok: true}
	o := NewOrchestrator(ex, ev, com, nil)
	ja, _ := o.Add("a.jpg", "a.jpg", 10)
	jb, _ := o.Add("b.jpg", "b.jpg", 10)
	o.ProcessAll(context.Background())

	bogus := uuid.New()
	outcome := o.ConfirmSelected(context.Background(), []uuid.UUID{ja.ID, jb.ID, bogus})

	if outcome.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", outcome.Succeeded)
	}
	if len(outcome.Failed) != 1 || outcome.Failed[0] != bogus {
		t.Errorf("Failed = %v, want [%s]", outcome.Failed, bogus)
	}
	for _, id := range []uuid.UUID{ja.ID, jb.ID} {
		job, _ := o.Job(id)
		if job.Result.Status != constants.StatusAutoApplied {
			t.Errorf("job %s result status = %s, want auto_applied", job.Filename, job.Result.Status)
		}
	}
}

func TestConfirmAllHighConfidence(t *testing.T) {
	ex := newFakeExtractor()
	ex.results["a.jpg"] = extractionFor("a")
	ex.results["b.jpg"] = extractionFor("b")
	ev := &fakeEvaluator{verdicts: map[string]entity.MatchResult{
		"a": needsReview(constants.ConfidenceHigh, uuid.New()),
		"b": needsReview(constants.ConfidenceMedium, uuid.New()),
	}}
	com := &fakeCommitter{ok: true}
	o := NewOrchestrator(ex, ev, com, nil)
	ja, _ := o.Add("a.jpg", "a.jpg", 10)
	jb, _ := o.Add("b.jpg", "b.jpg", 10)
	o.ProcessAll(context.Background())

	outcome := o.ConfirmAllHighConfidence(context.Background())

	if outcome.Succeeded != 1 || len(outcome.Failed) != 0 {
		t.Fatalf("outcome = %+v, want 1 succeeded, none failed", outcome)
	}
	high, _ := o.Job(ja.ID)
	if high.Result.Status != constants.StatusAutoApplied {
		t.Errorf("high-confidence job status = %s, want auto_applied", high.Result.Status)
	}
	medium, _ := o.Job(jb.ID)
	if medium.Result.Status != constants.StatusNeedsReview {
		t.Errorf("medium-confidence job status = %s, want needs_review", medium.Result.Status)
	}
}

func TestConfirmCommitFailureKeepsReviewStatus(t *testing.T) {
	ex := newFakeExtractor()
	ex.results["a.jpg"] = extractionFor("a")
	ev := &fakeEvaluator{verdicts: map[string]entity.MatchResult{
		"a": needsReview(constants.ConfidenceHigh, uuid.New()),
	}}
	o := NewOrchestrator(ex, ev, &fakeCommitter{ok: false}, nil)
	job, _ := o.Add("a.jpg", "a.jpg", 10)
	o.ProcessAll(context.Background())

	if o.Confirm(context.Background(), job.ID) {
		t.Fatal("Confirm reported success on failed commit")
	}
	got, _ := o.Job(job.ID)
	if got.Result.Status != constants.StatusNeedsReview {
		t.Errorf("result status = %s, want needs_review", got.Result.Status)
	}
}

type fixedLookup struct {
	dispatch *entity.Dispatch
}

func (f fixedLookup) LookupByTrackingID(_ context.Context, _ string) (*entity.Dispatch, error) {
	return f.dispatch, nil
}

func TestProcessAllEndToEnd(t *testing.T) {
	dispatchID := uuid.New()
	tid := "EZ99"
	amt := 500.0

	ex := newFakeExtractor()
	ex.results["report.jpg"] = entity.OCRResult{
		TrackingID: &tid, Amount: &amt, Confidence: 90, RawText: "EZ99 Rs 500",
	}
	ev := match.NewEvaluator(fixedLookup{dispatch: &entity.Dispatch{
		ID: dispatchID, TrackingID: tid, Amount: 500,
	}}, nil)
	com := &fakeCommitter{ok: true}
	o := NewOrchestrator(ex, ev, com, nil)
	job, _ := o.Add("report.jpg", "report.jpg", 10)

	o.ProcessAll(context.Background())

	got, _ := o.Job(job.ID)
	if got.Status != constants.JobStatusCompleted {
		t.Fatalf("Status = %s, want COMPLETED", got.Status)
	}
	res := got.Result
	if res.Confidence != constants.ConfidenceHigh || !res.AmountMatches || res.Status != constants.StatusAutoApplied {
		t.Errorf("verdict = (%s, %v, %s), want (high, true, auto_applied)", res.Confidence, res.AmountMatches, res.Status)
	}
	if com.callCount() != 1 || com.calls[0] != dispatchID {
		t.Errorf("commits = %v, want exactly one for %s", com.calls, dispatchID)
	}
}

func TestSummary(t *testing.T) {
	ex := newFakeExtractor()
	ex.results["auto.jpg"] = extractionFor("auto")
	ex.results["review.jpg"] = extractionFor("review")
	ex.errs["broken.jpg"] = errors.New("boom")
	ev := &fakeEvaluator{verdicts: map[string]entity.MatchResult{
		"auto": {
			Dispatch:   &entity.Dispatch{ID: uuid.New()},
			Confidence: constants.ConfidenceHigh,
			Status:     constants.StatusAutoApplied,
		},
		"review": needsReview(constants.ConfidenceHigh, uuid.New()),
	}}
	o := NewOrchestrator(ex, ev, &fakeCommitter{ok: true}, nil)
	o.Add("auto.jpg", "auto.jpg", 10)
	o.Add("review.jpg", "review.jpg", 10)
	o.Add("broken.jpg", "broken.jpg", 10)
	o.ProcessAll(context.Background())

	s := o.Summary()
	want := Summary{TotalProcessed: 2, AutoApplied: 1, NeedsReview: 1, HighConfidenceNeedsReview: 1, Errors: 1}
	if s != want {
		t.Errorf("Summary = %+v, want %+v", s, want)
	}
}
