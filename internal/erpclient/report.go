package erpclient

import (
	"encoding/base64"
	"net/http"
)

// decodeReportBytes decodes the base64 payload the wire protocol
// carries generate_report bytes in.
func decodeReportBytes(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}

// sniffMimeType detects a report's content type when the backend
// doesn't supply one, defaulting effectively to application/pdf for
// PDF bytes (§6's supplemented mime_type field).
func sniffMimeType(raw []byte) string {
	if len(raw) == 0 {
		return "application/pdf"
	}
	return http.DetectContentType(raw)
}
