package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/medidispatch/dispatch-ocr/internal/batch"
)

// Service produces XLSX bytes for reconciliation review: one row per job
// in the batch, with the verdict fields a clerk checks by hand.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// BuildReportXLSX returns an XLSX workbook (as bytes) for the given jobs.
func (s *Service) BuildReportXLSX(jobs []batch.ImageJob, summary batch.Summary) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Reconciliation"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"File",
		"Job Status",
		"Tracking ID",
		"Extracted Amount",
		"Dispatch Amount",
		"Amount Matches",
		"Engine Confidence",
		"Match Confidence",
		"Match Status",
		"Message",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, job := range jobs {
		values := []any{job.Filename, string(job.Status)}
		if job.Result != nil {
			res := job.Result
			trackingID := ""
			if res.Extraction.TrackingID != nil {
				trackingID = *res.Extraction.TrackingID
			}
			var extracted, expected any
			if res.Extraction.Amount != nil {
				extracted = *res.Extraction.Amount
			}
			if res.Dispatch != nil {
				expected = res.Dispatch.Amount
			}
			values = append(values,
				trackingID,
				extracted,
				expected,
				res.AmountMatches,
				res.Extraction.Confidence,
				string(res.Confidence),
				string(res.Status),
				res.Message,
			)
		} else {
			values = append(values, "", "", "", "", "", "", "", job.Error)
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	// summary block under the table
	row++
	summaryRows := [][2]any{
		{"Total processed", summary.TotalProcessed},
		{"Auto-applied", summary.AutoApplied},
		{"Needs review", summary.NeedsReview},
		{"High-confidence needs review", summary.HighConfidenceNeedsReview},
		{"Errors", summary.Errors},
	}
	for _, sr := range summaryRows {
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(sheet, labelCell, sr[0])
		_ = f.SetCellValue(sheet, valueCell, sr[1])
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Debug("reconciliation report built",
		"jobs", len(jobs), "duration_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
