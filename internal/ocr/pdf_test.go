package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTextPDF builds a one-page PDF with an embedded text layer, tracking
// object offsets so the xref table is exact.
func writeTextPDF(t *testing.T, text string) string {
	t.Helper()

	var buf bytes.Buffer
	offsets := make([]int, 6)
	writeObj := func(n int, body string) {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	buf.WriteString("%PDF-1.4\n")
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
		"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>")
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	writeObj(4, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	writeObj(5, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	xref := buf.Len()
	buf.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for n := 1; n <= 5; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)

	path := filepath.Join(t.TempDir(), "report.pdf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestPDFPlainText(t *testing.T) {
	path := writeTextPDF(t, "EZ99 Rs 500")

	text, pages, err := pdfPlainText(path)
	if err != nil {
		t.Fatalf("pdfPlainText: %v", err)
	}
	if pages != 1 {
		t.Errorf("pages = %d, want 1", pages)
	}
	if !strings.Contains(text, "EZ99") {
		t.Errorf("text = %q, want it to contain EZ99", text)
	}
}

func TestExtractPDFTextLayer(t *testing.T) {
	path := writeTextPDF(t, "EZ99 Rs 500")
	runner := &stubRunner{}
	e := newTestExtractor(runner)

	res, err := e.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	// the text layer is exact, so no recognition pass and full confidence
	if res.Confidence != 100 {
		t.Errorf("Confidence = %v, want 100", res.Confidence)
	}
	if len(runner.calls) != 0 {
		t.Errorf("runner calls = %d, want 0 for a PDF", len(runner.calls))
	}
	if res.TrackingID == nil || *res.TrackingID != "EZ99" {
		t.Errorf("TrackingID = %v, want EZ99", res.TrackingID)
	}
	if res.Amount == nil || *res.Amount != 500 {
		t.Errorf("Amount = %v, want 500", res.Amount)
	}
}

func TestExtractPDFWithoutFileIsError(t *testing.T) {
	e := newTestExtractor(&stubRunner{})

	if _, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("Extract() error = nil, want open failure")
	}
}
