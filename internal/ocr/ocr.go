package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/medidispatch/dispatch-ocr/constants"
	"github.com/medidispatch/dispatch-ocr/internal/common"
	"github.com/medidispatch/dispatch-ocr/internal/entity"
)

type Config struct {
	Engine string // "cli" (default) shells out to tesseract; "native" uses libtesseract

	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	TesseractLang string // default "eng"
	TessdataDir   string

	PSM int // e.g., 6 is good for a uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	EnableTSVConfidence bool
}

// Extractor runs one recognition pass per report file and parses the field
// candidates out of the recognized text. PDF reports with a text layer skip
// the engine entirely.
type Extractor struct {
	cfg    Config
	engine Engine
	parser FieldParser
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}

	var engine Engine
	if cfg.Engine == "native" {
		engine = nativeEngine{cfg: cfg}
	} else {
		engine = cliEngine{cfg: cfg, runner: execRunner{}}
	}
	return &Extractor{cfg: cfg, engine: engine, parser: NewRegexFieldParser(), logger: logger}
}

// WithParser swaps the field-parsing strategy. The default is the
// first-match-wins regex parser.
func (e *Extractor) WithParser(p FieldParser) *Extractor {
	if p != nil {
		e.parser = p
	}
	return e
}

// Extract runs recognition over one report file and returns the field
// candidates plus the engine confidence. A file the engine cannot process
// is an error; recognized text with no matching substrings is not, and
// absent fields come back nil.
func (e *Extractor) Extract(ctx context.Context, path string) (entity.OCRResult, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting extraction", "path", path, "ext", ext)

	var (
		text string
		conf float32
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		txt, pages, err := pdfPlainText(path)
		if err != nil {
			e.logger.Error("pdf text extraction failed", "path", path, "error", err)
			return entity.OCRResult{}, common.WrapKind(common.ErrExtraction, "pdf text", err)
		}
		e.logger.Debug("pdf text layer read", "path", path, "pages", pages)
		// the text layer is exact, not recognized
		text, conf = txt, 100
	case constants.IMAGE:
		txt, c, err := e.engine.Recognize(ctx, path)
		if err != nil {
			e.logger.Error("recognition failed", "path", path, "error", err)
			return entity.OCRResult{}, common.WrapKind(common.ErrExtraction, "recognize", err)
		}
		text, conf = txt, c
	default:
		return entity.OCRResult{}, common.WrapKind(common.ErrExtraction, "extract",
			fmt.Errorf("unsupported extension: %q", ext))
	}

	fields := e.parser.Parse(text)
	res := entity.OCRResult{
		TrackingID: fields.TrackingID,
		Amount:     fields.Amount,
		Confidence: conf,
		RawText:    text,
	}
	e.logger.Debug("extraction done",
		"path", path,
		"tracking_id_found", res.TrackingID != nil,
		"amount_found", res.Amount != nil,
		"confidence", res.Confidence,
	)
	return res, nil
}
