package entity

// OCRResult is the structured output of one extraction pass over one image.
// Absent fields are nil, not an error; Confidence is the engine-reported
// quality score on a 0..100 scale and is opaque beyond "higher is better".
// Immutable once returned by the extractor.
type OCRResult struct {
	TrackingID *string  `json:"tracking_id"`
	Amount     *float64 `json:"amount"`
	Confidence float32  `json:"confidence"`
	RawText    string   `json:"raw_text"`
}

// Empty reports whether the pass yielded neither a tracking ID nor an amount.
func (r OCRResult) Empty() bool {
	return r.TrackingID == nil && r.Amount == nil
}

// Snapshot is the provenance payload stored on the dispatch at commit time.
type Snapshot struct {
	TrackingID *string  `json:"tracking_id"`
	Amount     *float64 `json:"amount"`
	RawText    string   `json:"raw_text"`
}

// Snapshot returns the portion of the result persisted as ocr_raw_data.
func (r OCRResult) Snapshot() Snapshot {
	return Snapshot{TrackingID: r.TrackingID, Amount: r.Amount, RawText: r.RawText}
}
