package ocr

// naive heuristic confidence based on decoded text characteristics,
// used when the engine reports no word-level confidence
func heuristicConfidence(txt string) float32 {
	// boost if we see common report artifacts: a tracking-ID-shaped
	// token, an amount-shaped token, enough content overall
	score := float32(20) // base
	if reTrackingID.MatchString(txt) {
		score += 25
	}
	if reAmount.MatchString(txt) {
		score += 20
	}
	if len(txt) > 120 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}
