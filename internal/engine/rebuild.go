package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

// DocumentSource is the durable document store the index is derived from.
// Scan calls fn once per stored document and stops at the first error fn
// returns.
type DocumentSource interface {
	Scan(ctx context.Context, fn func(Document) error) error
}

// Rebuild re-ingests every document of src with cfg.RebuildWorkers
// concurrent workers and returns how many were indexed. Documents the engine
// rejects as invalid are skipped and logged; any other failure aborts the
// rebuild.
func (e *Engine) Rebuild(ctx context.Context, src DocumentSource) (int, error) {
	start := time.Now()
	workers := e.cfg.RebuildWorkers
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var indexed, skipped atomic.Int64
	scanErr := src.Scan(gctx, func(doc Document) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			err := e.IngestDocument(gctx, doc.ID, doc.Title, doc.Body)
			switch {
			case err == nil:
				indexed.Add(1)
				return nil
			case errors.Is(err, apperrors.ErrInvalidInput):
				skipped.Add(1)
				e.logger.Warn("skipping invalid document during rebuild", "doc_id", doc.ID, "error", err)
				return nil
			default:
				return err
			}
		})
		return nil
	})
	if err := errors.Join(scanErr, g.Wait()); err != nil {
		return int(indexed.Load()), fmt.Errorf("rebuilding index: %w", err)
	}
	e.logger.Info("index rebuilt",
		"documents", indexed.Load(),
		"skipped", skipped.Load(),
		"workers", workers,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return int(indexed.Load()), nil
}
