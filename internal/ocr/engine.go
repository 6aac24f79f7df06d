package ocr

import "context"

// Engine performs full-image text recognition and reports an overall
// confidence on a 0..100 scale. Implementations acquire and release any
// engine resource within the call, on every exit path, so repeated calls
// do not leak workers.
type Engine interface {
	Recognize(ctx context.Context, path string) (text string, confidence float32, err error)
}
