package constants

// JobStatus is the canonical lifecycle state for a batch image job.
type JobStatus string

// Stable values (surfaced over the API as-is).
const (
	JobStatusPending    JobStatus = "PENDING"    // accepted into the batch, not yet processed
	JobStatusProcessing JobStatus = "PROCESSING" // extraction/evaluation in progress
	JobStatusCompleted  JobStatus = "COMPLETED"  // terminal, carries a MatchResult
	JobStatusError      JobStatus = "ERROR"      // terminal failure, carries a message
)

// IsTerminal reports whether a job in this state will never be processed again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// MatchConfidence grades how strongly an extraction agrees with a dispatch.
type MatchConfidence string

const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
	ConfidenceNone   MatchConfidence = "none"
)

// MatchStatus is the recommended (or confirmed) action for a match verdict.
type MatchStatus string

const (
	StatusAutoApplied MatchStatus = "auto_applied"
	StatusNeedsReview MatchStatus = "needs_review"
	StatusNoMatch     MatchStatus = "no_match"
)

// DeliveryStatus mirrors the dispatch store's delivery_status column.
type DeliveryStatus string

const (
	DeliveryDispatched DeliveryStatus = "Dispatched"
	DeliveryDelivered  DeliveryStatus = "Delivered"
	DeliveryReturned   DeliveryStatus = "Returned"
	DeliveryLost       DeliveryStatus = "Lost"
)

// OCRActorIdentity is recorded as payment_received_by when a commit is
// issued by the pipeline rather than a named operator.
const OCRActorIdentity = "ocr_auto"
