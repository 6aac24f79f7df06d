package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/medidispatch/dispatch-ocr/constants"
	"github.com/medidispatch/dispatch-ocr/internal/entity"
)

// ImageJob wraps one report file accepted into a batch. Jobs are addressed
// by ID everywhere; positions shift when jobs are removed, IDs do not.
//
// Lifecycle: PENDING -> PROCESSING -> COMPLETED | ERROR. Terminal jobs are
// never retried automatically.
type ImageJob struct {
	ID       uuid.UUID           `json:"id"`
	Path     string              `json:"-"`
	Filename string              `json:"filename"`
	Size     int64               `json:"size"`
	Status   constants.JobStatus `json:"status"`
	Result   *entity.MatchResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
	AddedAt  time.Time           `json:"added_at"`
}

// markProcessing advances PENDING -> PROCESSING; any other source state is
// refused, which is what makes batch re-runs idempotent.
func (j *ImageJob) markProcessing() bool {
	if j.Status != constants.JobStatusPending {
		return false
	}
	j.Status = constants.JobStatusProcessing
	return true
}

func (j *ImageJob) complete(result *entity.MatchResult) {
	j.Status = constants.JobStatusCompleted
	j.Result = result
	j.Error = ""
}

func (j *ImageJob) fail(message string) {
	j.Status = constants.JobStatusError
	j.Result = nil
	j.Error = message
}
