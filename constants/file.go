package constants

import "strings"

// AllowedContentTypes holds the accepted mimetypes for uploaded scans.
var AllowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"application/pdf": {},
}

// AllowedExtensions holds the accepted file extensions for batch ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedContentType reports whether the mimetype is accepted for upload.
func IsAllowedContentType(ct string) bool {
	_, ok := AllowedContentTypes[strings.ToLower(strings.TrimSpace(ct))]
	return ok
}
