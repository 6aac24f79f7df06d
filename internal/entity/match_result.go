package entity

import "github.com/medidispatch/dispatch-ocr/constants"

// MatchResult is the evaluator's verdict for one extraction. Status is the
// single source of truth for downstream state transitions: a human confirm
// advances it to auto_applied in place without re-running the evaluator.
type MatchResult struct {
	Extraction    OCRResult                 `json:"extraction"`
	Dispatch      *Dispatch                 `json:"dispatch,omitempty"`
	Confidence    constants.MatchConfidence `json:"match_confidence"`
	AmountMatches bool                      `json:"amount_matches"`
	Status        constants.MatchStatus     `json:"status"`
	Message       string                    `json:"message"`
}
