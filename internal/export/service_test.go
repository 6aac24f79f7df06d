package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/medidispatch/dispatch-ocr/constants"
	"github.com/medidispatch/dispatch-ocr/internal/batch"
	"github.com/medidispatch/dispatch-ocr/internal/entity"
)

func TestBuildReportXLSX(t *testing.T) {
	tid := "EZ548KQ"
	amt := 500.0
	jobs := []batch.ImageJob{
		{
			ID:       uuid.New(),
			Filename: "scan-1.jpg",
			Status:   constants.JobStatusCompleted,
			Result: &entity.MatchResult{
				Extraction:    entity.OCRResult{TrackingID: &tid, Amount: &amt, Confidence: 92},
				Dispatch:      &entity.Dispatch{ID: uuid.New(), TrackingID: tid, Amount: 500},
				Confidence:    constants.ConfidenceHigh,
				AmountMatches: true,
				Status:        constants.StatusAutoApplied,
				Message:       "High confidence match - ready for auto-update",
			},
			AddedAt: time.Now().UTC(),
		},
		{
			ID:       uuid.New(),
			Filename: "scan-2.jpg",
			Status:   constants.JobStatusError,
			Error:    "failed to extract tracking ID or amount from image",
			AddedAt:  time.Now().UTC(),
		},
	}
	summary := batch.Summary{TotalProcessed: 1, AutoApplied: 1, Errors: 1}

	data, err := NewService(nil).BuildReportXLSX(jobs, summary)
	if err != nil {
		t.Fatalf("BuildReportXLSX: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	const sheet = "Reconciliation"
	got, err := f.GetCellValue(sheet, "A1")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if got != "File" {
		t.Errorf("A1 = %q, want File", got)
	}

	if got, _ := f.GetCellValue(sheet, "C2"); got != "EZ548KQ" {
		t.Errorf("C2 = %q, want tracking ID", got)
	}
	if got, _ := f.GetCellValue(sheet, "I2"); got != "auto_applied" {
		t.Errorf("I2 = %q, want auto_applied", got)
	}
	if got, _ := f.GetCellValue(sheet, "B3"); got != "ERROR" {
		t.Errorf("B3 = %q, want ERROR", got)
	}
	if got, _ := f.GetCellValue(sheet, "J3"); got != "failed to extract tracking ID or amount from image" {
		t.Errorf("J3 = %q", got)
	}
}
