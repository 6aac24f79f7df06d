package ocr

import (
	"regexp"
	"strconv"
	"strings"
)

// Fields is the structured candidate pulled out of recognized text.
type Fields struct {
	TrackingID *string
	Amount     *float64
}

// FieldParser turns a raw recognized-text blob into field candidates.
// Parsing never fails: absent fields come back nil.
type FieldParser interface {
	Parse(rawText string) Fields
}

var (
	// tracking IDs are EZ- or JO-prefixed alphanumeric tokens
	reTrackingID = regexp.MustCompile(`(?i)\b(?:EZ|JO)[A-Z0-9]+\b`)
	// optional ₹ / Rs / Rs. / INR marker, then digits with optional
	// thousands separators and a two-decimal fraction
	reAmount     = regexp.MustCompile(`(?i)(?:₹|Rs\.?|INR)?\s*(\d+(?:[,.\s]\d+)*(?:\.\d{2})?)`)
	reSeparators = regexp.MustCompile(`[,\s]`)
)

// RegexFieldParser is the single-pass, first-match-wins strategy: no layout
// analysis, no multi-record detection, no O/0 or I/1 correction.
type RegexFieldParser struct{}

func NewRegexFieldParser() RegexFieldParser { return RegexFieldParser{} }

func (RegexFieldParser) Parse(rawText string) Fields {
	var f Fields

	if m := reTrackingID.FindString(rawText); m != "" {
		id := strings.ToUpper(m)
		f.TrackingID = &id
	}

	if m := reAmount.FindStringSubmatch(rawText); m != nil {
		clean := reSeparators.ReplaceAllString(m[1], "")
		if v, err := strconv.ParseFloat(clean, 64); err == nil {
			f.Amount = &v
		}
	}

	return f
}
