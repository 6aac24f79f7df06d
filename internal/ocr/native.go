//go:build cgo

package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// nativeEngine recognizes through libtesseract (cgo). A client is created
// per call and closed on every exit path, mirroring the per-call worker
// lifecycle of the CLI engine.
type nativeEngine struct {
	cfg Config
}

func (e nativeEngine) Recognize(ctx context.Context, path string) (string, float32, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if e.cfg.TessdataDir != "" {
		client.TessdataPrefix = e.cfg.TessdataDir
	}
	if err := client.SetLanguage(e.cfg.TesseractLang); err != nil {
		return "", 0, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return "", 0, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("recognize: %w", err)
	}

	conf := meanWordConfidence(client)
	if conf == 0 {
		conf = heuristicConfidence(text)
	}
	return text, conf, nil
}

func meanWordConfidence(client *gosseract.Client) float32 {
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return float32(sum / float64(len(boxes)))
}
