//go:build !cgo

package ocr

import (
	"context"
	"errors"
)

// nativeEngine requires libtesseract via cgo; in a build without cgo it
// compiles but cannot recognize anything.
type nativeEngine struct {
	cfg Config
}

func (e nativeEngine) Recognize(ctx context.Context, path string) (string, float32, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	return "", 0, errors.New("native OCR engine unavailable: built without cgo")
}
