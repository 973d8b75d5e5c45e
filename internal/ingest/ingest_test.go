package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/metrics"
)

type fakeApplier struct {
	docs      map[string]string
	ingestErr error
	calls     []string
}

func newFakeApplier() *fakeApplier {
	return &fakeApplier{docs: make(map[string]string)}
}

func (f *fakeApplier) IngestDocument(ctx context.Context, id, title, body string) error {
	f.calls = append(f.calls, "upsert:"+id)
	if f.ingestErr != nil {
		return f.ingestErr
	}
	f.docs[id] = title + " " + body
	return nil
}

func (f *fakeApplier) DeleteDocument(ctx context.Context, id string) error {
	f.calls = append(f.calls, "delete:"+id)
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("deleting %s: %w", id, apperrors.ErrDocumentNotFound)
	}
	delete(f.docs, id)
	return nil
}

func encode(t *testing.T, e ChangeEvent) []byte {
	t.Helper()
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHandleUpsertThenDelete(t *testing.T) {
	app := newFakeApplier()
	h := NewHandler(app, nil)
	ctx := context.Background()

	if err := h.Handle(ctx, []byte("1"), encode(t, ChangeEvent{Op: OpUpsert, DocumentID: "1", Title: "Electric Cars", Body: "fast"})); err != nil {
		t.Fatal(err)
	}
	if app.docs["1"] != "Electric Cars fast" {
		t.Errorf("doc = %q", app.docs["1"])
	}
	if err := h.Handle(ctx, []byte("1"), encode(t, ChangeEvent{Op: OpDelete, DocumentID: "1"})); err != nil {
		t.Fatal(err)
	}
	if _, ok := app.docs["1"]; ok {
		t.Error("document still present after delete")
	}
}

func TestHandleAcknowledgesUnappliableMessages(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	app := newFakeApplier()
	h := NewHandler(app, m)
	ctx := context.Background()

	tests := []struct {
		name  string
		value []byte
	}{
		{"garbage", []byte("{not json")},
		{"missing id", encode(t, ChangeEvent{Op: OpUpsert, Body: "x"})},
		{"unknown op", encode(t, ChangeEvent{Op: "merge", DocumentID: "1"})},
		{"delete unknown", encode(t, ChangeEvent{Op: OpDelete, DocumentID: "missing"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.Handle(ctx, nil, tt.value); err != nil {
				t.Errorf("Handle returned %v, want nil", err)
			}
		})
	}
	if strings.Join(app.calls, ",") != "delete:missing" {
		t.Errorf("applier calls = %v", app.calls)
	}
}

func TestHandleRejectedByEngineIsAcknowledged(t *testing.T) {
	app := newFakeApplier()
	app.ingestErr = apperrors.Invalidf("document id is required")
	h := NewHandler(app, nil)
	err := h.Handle(context.Background(), nil, encode(t, ChangeEvent{Op: OpUpsert, DocumentID: "1"}))
	if err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestHandleReturnsRetryableFailures(t *testing.T) {
	app := newFakeApplier()
	closed := apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "engine closed")
	app.ingestErr = closed
	h := NewHandler(app, nil)
	err := h.Handle(context.Background(), nil, encode(t, ChangeEvent{Op: OpUpsert, DocumentID: "1"}))
	if !errors.Is(err, apperrors.ErrInternal) {
		t.Errorf("err = %v", err)
	}
}

type recordingWriter struct {
	events []kafka.Event
	err    error
}

func (w *recordingWriter) Publish(ctx context.Context, e kafka.Event) error {
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, e)
	return nil
}

func TestPublisherKeysByDocumentID(t *testing.T) {
	w := &recordingWriter{}
	p := NewPublisher(w)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	ctx := context.Background()

	if err := p.PublishUpsert(ctx, "doc-9", "Title", "Body"); err != nil {
		t.Fatal(err)
	}
	if err := p.PublishDelete(ctx, "doc-9"); err != nil {
		t.Fatal(err)
	}
	if len(w.events) != 2 {
		t.Fatalf("published %d events", len(w.events))
	}
	for _, e := range w.events {
		if e.Key != "doc-9" {
			t.Errorf("key = %q", e.Key)
		}
	}
	up := w.events[0].Value.(ChangeEvent)
	if up.Op != OpUpsert || up.Title != "Title" || !up.ChangedAt.Equal(fixed) {
		t.Errorf("upsert event = %+v", up)
	}
	if w.events[1].Value.(ChangeEvent).Op != OpDelete {
		t.Errorf("second event = %+v", w.events[1].Value)
	}
}

func TestPublisherRejectsEmptyID(t *testing.T) {
	w := &recordingWriter{}
	err := NewPublisher(w).PublishUpsert(context.Background(), "  ", "t", "b")
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
	if len(w.events) != 0 {
		t.Error("invalid event was published")
	}
}

func TestPublishedEventRoundTripsThroughHandler(t *testing.T) {
	w := &recordingWriter{}
	if err := NewPublisher(w).PublishUpsert(context.Background(), "7", "Gas Cars", "common"); err != nil {
		t.Fatal(err)
	}
	value, err := json.Marshal(w.events[0].Value)
	if err != nil {
		t.Fatal(err)
	}
	app := newFakeApplier()
	if err := NewHandler(app, nil).Handle(context.Background(), []byte(w.events[0].Key), value); err != nil {
		t.Fatal(err)
	}
	if app.docs["7"] != "Gas Cars common" {
		t.Errorf("doc = %q", app.docs["7"])
	}
}
