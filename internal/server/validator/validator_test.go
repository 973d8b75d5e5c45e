package validator

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		req     DocumentRequest
		invalid []string
	}{
		{"ok", "doc-1", DocumentRequest{Title: "Electric Cars", Body: "fast"}, nil},
		{"title only", "doc-1", DocumentRequest{Title: "Electric Cars"}, nil},
		{"blank id", "  ", DocumentRequest{Body: "x"}, []string{"id"}},
		{"long id", strings.Repeat("a", maxIDLength+1), DocumentRequest{Body: "x"}, []string{"id"}},
		{"no text", "doc-1", DocumentRequest{Title: " ", Body: "\n"}, []string{"body"}},
		{"long title", "doc-1", DocumentRequest{Title: strings.Repeat("t", maxTitleLength+1), Body: "x"}, []string{"title"}},
		{"bad utf8", "doc-1", DocumentRequest{Body: "ok \xff"}, []string{"body"}},
		{"several", "", DocumentRequest{Title: strings.Repeat("t", maxTitleLength+1)}, []string{"id", "title"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.id, &tt.req)
			if tt.invalid == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			for _, field := range tt.invalid {
				if _, ok := verr.Fields[field]; !ok {
					t.Errorf("field %q not reported in %v", field, verr.Fields)
				}
			}
		})
	}
}

func TestValidateDocumentID(t *testing.T) {
	if err := ValidateDocumentID("doc-1"); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	if err := ValidateDocumentID(""); err == nil || !strings.Contains(err.Error(), "id is required") {
		t.Errorf("err = %v", err)
	}
}
