package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/metrics"
)

// Applier is the part of the engine the feed writes to.
type Applier interface {
	IngestDocument(ctx context.Context, id, title, body string) error
	DeleteDocument(ctx context.Context, id string) error
}

// Handler applies change events to an engine.
type Handler struct {
	applier Applier
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler builds a Handler. m may be nil.
func NewHandler(applier Applier, m *metrics.Metrics) *Handler {
	return &Handler{
		applier: applier,
		metrics: m,
		logger:  slog.Default().With("component", "change-consumer"),
	}
}

// Handle is a kafka.MessageHandler. Messages that can never be applied
// (undecodable, invalid, deletes of unknown documents) are logged and
// acknowledged; only failures worth redelivering are returned.
func (h *Handler) Handle(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[ChangeEvent](value)
	if err != nil {
		h.logger.Error("failed to decode change event", "error", err, "key", string(key))
		h.countError("decode")
		return nil
	}
	if err := event.Validate(); err != nil {
		h.logger.Warn("dropping invalid change event", "error", err, "key", string(key))
		h.countError("invalid_event")
		return nil
	}

	switch event.Op {
	case OpUpsert:
		err = h.applier.IngestDocument(ctx, event.DocumentID, event.Title, event.Body)
	case OpDelete:
		err = h.applier.DeleteDocument(ctx, event.DocumentID)
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			h.logger.Info("delete for unknown document ignored", "doc_id", event.DocumentID)
			return nil
		}
	}
	if errors.Is(err, apperrors.ErrInvalidInput) {
		h.logger.Warn("change event rejected by engine", "doc_id", event.DocumentID, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("applying %s of document %s: %w", event.Op, event.DocumentID, err)
	}
	h.logger.Debug("change applied", "op", event.Op, "doc_id", event.DocumentID)
	return nil
}

func (h *Handler) countError(kind string) {
	if h.metrics != nil {
		h.metrics.IngestErrorsTotal.WithLabelValues(kind).Inc()
	}
}
