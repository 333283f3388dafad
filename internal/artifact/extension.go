// Package artifact implements the Artifact Writer (§4.8): content-type to
// extension mapping, the deterministic output file layout, the results
// CSV, and the append-only run log. Grounded on runpipe/observer's
// zap-backed structured logging and on the teacher's single-writer
// discipline for process-wide shared state.
package artifact

import "strings"

var extensionByMediaType = map[string]string{
	"application/json": ".json",
	"text/plain":        ".txt",
	"text/csv":          ".csv",
	"application/xml":   ".xml",
	"text/xml":          ".xml",
	"application/pdf":   ".pdf",
	"image/png":         ".png",
	"image/jpeg":        ".jpg",
}

// ExtensionFor implements §4.8's extension table: the primary media type is
// lower-cased and stripped of parameters before lookup; anything unknown,
// missing, or with a negative status falls back to ".txt".
func ExtensionFor(contentType string, status int) string {
	if status < 0 {
		return ".txt"
	}
	media := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(media, ";"); i >= 0 {
		media = strings.TrimSpace(media[:i])
	}
	if ext, ok := extensionByMediaType[media]; ok {
		return ext
	}
	return ".txt"
}
