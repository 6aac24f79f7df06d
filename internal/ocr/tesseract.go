package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// cliEngine shells out to the tesseract binary. Each Recognize call is a
// fresh process, so the engine resource is scoped to the call by
// construction.
type cliEngine struct {
	cfg    Config
	runner Runner
}

func (e cliEngine) Recognize(ctx context.Context, path string) (string, float32, error) {
	txt, err := e.ocrText(ctx, path)
	if err != nil {
		return "", 0, err
	}

	var conf float32
	if e.cfg.EnableTSVConfidence {
		if c, err2 := e.tsvConfidence(ctx, path); err2 == nil && c > 0 {
			conf = c
		}
	}
	// blend: weight engine-reported confidence higher when present
	heur := heuristicConfidence(txt)
	if conf > 0 {
		conf = 0.7*conf + 0.3*heur
	} else {
		conf = heur
	}
	if conf > 100 {
		conf = 100
	}
	return txt, conf, nil
}

func (e cliEngine) ocrText(ctx context.Context, path string) (string, error) {
	args := e.baseArgs(path)

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %s: %w", clip(string(errb), 512), err)
	}
	return string(out), nil
}

// tsvConfidence runs tesseract in TSV mode and returns the mean word
// confidence in 0..100.
func (e cliEngine) tsvConfidence(ctx context.Context, path string) (float32, error) {
	args := append(e.baseArgs(path), "tsv")

	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}

	lines := strings.Split(string(out), "\n")
	// conf is the second-to-last column; -1 marks non-word rows
	var sum, n float64
	for i, ln := range lines {
		if i == 0 || len(ln) == 0 {
			continue // skip header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[len(cols)-2]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float32(sum / n), nil
}

func (e cliEngine) baseArgs(path string) []string {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return args
}
