package problem

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const contentType = "application/problem+json"
const baseTypeURL = "https://errors.ussd-relay.dev/"

// Details represents RFC 7807 Problem Details.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
}

// Type expands a slug such as "transfer/not-processing" into a full problem type URI.
func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}
	instance := ""
	requestID := ""
	if r != nil {
		instance = r.URL.Path
		requestID = r.Header.Get("X-Trace-ID")
	}
	if requestID == "" {
		requestID = w.Header().Get("X-Trace-ID")
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Details{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		Instance:  instance,
		RequestID: requestID,
	})
}

// Slug is the inverse of Type. It returns "" for types outside the relay's namespace.
func (d Details) Slug() string {
	slug, ok := strings.CutPrefix(d.Type, baseTypeURL)
	if !ok {
		return ""
	}
	return slug
}

// Decode reads a problem document from an error response body.
func Decode(r io.Reader) (*Details, error) {
	var d Details
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode problem details: %w", err)
	}
	return &d, nil
}
