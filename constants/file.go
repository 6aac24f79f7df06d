package constants

import "strings"

// Source formats handled by the extractor.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// MaxUploadBytes caps a single report file accepted into a batch.
const MaxUploadBytes = 10 << 20 // 10 MB

// AllowedExtensions holds the file extensions accepted for report uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"bmp":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a normalized extension to a source format,
// or "" when the extension is not accepted.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tif", "tiff", "bmp":
		return IMAGE
	default:
		return ""
	}
}
