// Package validator checks document write requests before they reach the
// store or the engine, reporting every failing field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	maxIDLength    = 256
	maxTitleLength = 1024
	maxBodyLength  = 1 << 20
)

// DocumentRequest is the JSON body of PUT /api/v1/documents/{id}.
type DocumentRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateDocumentID rejects blank, oversized or non-UTF-8 ids.
func ValidateDocumentID(id string) error {
	if msg := checkID(id); msg != "" {
		return &ValidationError{Fields: map[string]string{"id": msg}}
	}
	return nil
}

// ValidateDocument checks the id together with the request body.
func ValidateDocument(id string, req *DocumentRequest) error {
	errs := textErrors(req)
	if msg := checkID(id); msg != "" {
		errs["id"] = msg
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateText checks title and body only, for requests that carry no id.
func ValidateText(req *DocumentRequest) error {
	if errs := textErrors(req); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func textErrors(req *DocumentRequest) map[string]string {
	errs := make(map[string]string)
	if len(req.Title) > maxTitleLength {
		errs["title"] = fmt.Sprintf("title must be at most %d bytes", maxTitleLength)
	} else if !utf8.ValidString(req.Title) {
		errs["title"] = "title must be valid UTF-8"
	}
	if len(req.Body) > maxBodyLength {
		errs["body"] = fmt.Sprintf("body must be at most %d bytes", maxBodyLength)
	} else if !utf8.ValidString(req.Body) {
		errs["body"] = "body must be valid UTF-8"
	}
	if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.Body) == "" {
		errs["body"] = "title or body is required"
	}
	return errs
}

func checkID(id string) string {
	switch {
	case strings.TrimSpace(id) == "":
		return "id is required"
	case len(id) > maxIDLength:
		return fmt.Sprintf("id must be at most %d bytes", maxIDLength)
	case !utf8.ValidString(id):
		return "id must be valid UTF-8"
	}
	return ""
}
