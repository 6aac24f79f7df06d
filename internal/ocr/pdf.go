package ocr

import (
	"bytes"

	"github.com/ledongthuc/pdf"
)

// pdfPlainText reads the embedded text layer of a PDF report. Scanned PDFs
// without a text layer yield an empty string, which the field parser treats
// the same as unreadable handwriting.
func pdfPlainText(path string) (string, int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", 0, err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", 0, err
	}
	return buf.String(), r.NumPage(), nil
}
