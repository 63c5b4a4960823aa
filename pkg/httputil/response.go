// Package httputil provides shared HTTP response helpers.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// ContentTypeJSON is the Content-Type of every JSON body written here.
const ContentTypeJSON = "application/json; charset=utf-8"

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	WriteJSONAs(w, status, ContentTypeJSON, data)
}

// WriteJSONAs writes data as compact JSON with no trailing newline under an
// explicit Content-Type. Content-Length is set from the encoded size.
func WriteJSONAs(w http.ResponseWriter, status int, contentType string, data any) {
	var body []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			status = http.StatusInternalServerError
			contentType = ContentTypeJSON
			b = []byte(`{"message":"failed to encode response"}`)
		}
		body = b
	}
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Del("Content-Length")
	if body != nil {
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	w.WriteHeader(status)
	if body != nil {
		_, _ = w.Write(body)
	}
}

// WriteError writes a JSON error response with a machine-readable code and a
// human-readable message.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   errCode,
		"message": message,
	})
}
