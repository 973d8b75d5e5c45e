// Package ingest carries document changes between the service and the index
// over the Kafka change feed. Every replica consumes the feed and applies it
// to its own in-memory engine.
package ingest

import (
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// ChangeEvent is the Kafka message payload for one document change.
type ChangeEvent struct {
	Op         Op        `json:"op"`
	DocumentID string    `json:"document_id"`
	Title      string    `json:"title,omitempty"`
	Body       string    `json:"body,omitempty"`
	ChangedAt  time.Time `json:"changed_at"`
}

// Validate rejects events no replica could apply.
func (e ChangeEvent) Validate() error {
	if strings.TrimSpace(e.DocumentID) == "" {
		return apperrors.Invalidf("change event without document id")
	}
	switch e.Op {
	case OpUpsert, OpDelete:
		return nil
	default:
		return apperrors.Invalidf("unknown change op %q for document %s", e.Op, e.DocumentID)
	}
}
