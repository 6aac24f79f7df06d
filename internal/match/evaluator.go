package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/medidispatch/dispatch-ocr/constants"
	"github.com/medidispatch/dispatch-ocr/internal/entity"
)

// AmountTolerance is the currency-unit slack allowed between the extracted
// amount and the dispatch's expected amount.
const AmountTolerance = 5.0

// DispatchLookup is the exact-match query the evaluator depends on.
// Implementations return (nil, nil) when no dispatch carries the tracking ID.
type DispatchLookup interface {
	LookupByTrackingID(ctx context.Context, trackingID string) (*entity.Dispatch, error)
}

// Evaluator combines an extraction with the looked-up dispatch into a
// confidence-graded verdict. Deterministic given a stable backing store.
type Evaluator struct {
	lookup DispatchLookup
	logger *slog.Logger
}

func NewEvaluator(lookup DispatchLookup, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{lookup: lookup, logger: logger}
}

// Evaluate grades one extraction. Lookup failures downgrade to a no_match
// verdict with a message rather than returning an error, so a transient
// store issue never aborts the surrounding batch.
func (e *Evaluator) Evaluate(ctx context.Context, extraction entity.OCRResult) entity.MatchResult {
	if extraction.TrackingID == nil {
		return noMatch(extraction, "No tracking ID found in OCR")
	}

	dispatch, err := e.lookup.LookupByTrackingID(ctx, *extraction.TrackingID)
	if err != nil {
		e.logger.Error("dispatch lookup failed", "tracking_id", *extraction.TrackingID, "error", err)
		return noMatch(extraction, "Error during matching process")
	}
	if dispatch == nil {
		return noMatch(extraction, fmt.Sprintf("No dispatch found with tracking ID: %s", *extraction.TrackingID))
	}

	amountMatches := false
	if extraction.Amount != nil {
		amountMatches = math.Abs(dispatch.Amount-*extraction.Amount) <= AmountTolerance
	}

	confidence := grade(extraction.Confidence, amountMatches)

	// High-confidence matches against an already-paid dispatch stay in
	// review: they signal a possible duplicate submission, not a skip.
	if confidence == constants.ConfidenceHigh && !dispatch.PaymentReceived {
		return entity.MatchResult{
			Extraction:    extraction,
			Dispatch:      dispatch,
			Confidence:    confidence,
			AmountMatches: amountMatches,
			Status:        constants.StatusAutoApplied,
			Message:       "High confidence match - ready for auto-update",
		}
	}

	return entity.MatchResult{
		Extraction:    extraction,
		Dispatch:      dispatch,
		Confidence:    confidence,
		AmountMatches: amountMatches,
		Status:        constants.StatusNeedsReview,
		Message:       "Match found but needs manual review",
	}
}

// grade is a total function of (engine confidence, amount agreement).
func grade(confidence float32, amountMatches bool) constants.MatchConfidence {
	switch {
	case confidence > 80 && amountMatches:
		return constants.ConfidenceHigh
	case confidence > 60 || amountMatches:
		return constants.ConfidenceMedium
	default:
		return constants.ConfidenceLow
	}
}

func noMatch(extraction entity.OCRResult, message string) entity.MatchResult {
	return entity.MatchResult{
		Extraction: extraction,
		Confidence: constants.ConfidenceNone,
		Status:     constants.StatusNoMatch,
		Message:    message,
	}
}
