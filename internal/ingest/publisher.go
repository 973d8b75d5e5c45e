package ingest

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/kafka"
)

// EventWriter is satisfied by *kafka.Producer.
type EventWriter interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher emits change events keyed by document id.
type Publisher struct {
	writer EventWriter
	now    func() time.Time
}

func NewPublisher(w EventWriter) *Publisher {
	return &Publisher{writer: w, now: time.Now}
}

func (p *Publisher) PublishUpsert(ctx context.Context, id, title, body string) error {
	return p.publish(ctx, ChangeEvent{Op: OpUpsert, DocumentID: id, Title: title, Body: body})
}

func (p *Publisher) PublishDelete(ctx context.Context, id string) error {
	return p.publish(ctx, ChangeEvent{Op: OpDelete, DocumentID: id})
}

func (p *Publisher) publish(ctx context.Context, event ChangeEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	event.ChangedAt = p.now().UTC()
	return p.writer.Publish(ctx, kafka.Event{Key: event.DocumentID, Value: event})
}
