// Package store is the durable document store the in-memory index is derived
// from. Documents live in a single PostgreSQL table keyed by their id.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/engine"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/resilience"
)

const defaultPageSize = 500

const schema = `CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// StoredDocument is a row of the documents table.
type StoredDocument struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Postgres reads and writes documents. It implements engine.DocumentSource.
type Postgres struct {
	db       *postgres.Client
	pageSize int
	logger   *slog.Logger
}

func NewPostgres(db *postgres.Client, pageSize int) *Postgres {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Postgres{
		db:       db,
		pageSize: pageSize,
		logger:   slog.Default().With("component", "document-store"),
	}
}

// Migrate creates the documents table when it does not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating documents table: %w", err)
	}
	return nil
}

// Scan pages through the table in byte-wise id order with keyset pagination so no
// cursor is held open while fn runs. Each page read is retried on transient
// failures.
func (s *Postgres) Scan(ctx context.Context, fn func(engine.Document) error) error {
	after := ""
	total := 0
	for {
		var page []engine.Document
		err := resilience.Retry(ctx, "documents-scan", resilience.RetryConfig{}, func() error {
			var err error
			page, err = s.readPage(ctx, after)
			if ctx.Err() != nil {
				return resilience.Permanent(ctx.Err())
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("scanning documents after %q: %w", after, err)
		}
		for _, doc := range page {
			if err := fn(doc); err != nil {
				return err
			}
		}
		total += len(page)
		if len(page) < s.pageSize {
			s.logger.Debug("document scan finished", "documents", total)
			return nil
		}
		after = page[len(page)-1].ID
	}
}

func (s *Postgres) readPage(ctx context.Context, after string) ([]engine.Document, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, title, body FROM documents WHERE id COLLATE "C" > $1 ORDER BY id COLLATE "C" LIMIT $2`,
		after, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	page := make([]engine.Document, 0, s.pageSize)
	for rows.Next() {
		var doc engine.Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Body); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		page = append(page, doc)
	}
	return page, rows.Err()
}

// Put inserts or replaces a document.
func (s *Postgres) Put(ctx context.Context, id, title, body string) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, title, body, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body, updated_at = now()`,
			id, title, body)
		if err != nil {
			return fmt.Errorf("upserting document %s: %w", id, err)
		}
		return nil
	})
}

// Delete removes a document. Unknown ids wrap ErrDocumentNotFound.
func (s *Postgres) Delete(ctx context.Context, id string) error {
	res, err := s.db.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s not found", id)
	}
	return nil
}

// Get loads a single document.
func (s *Postgres) Get(ctx context.Context, id string) (*StoredDocument, error) {
	var doc StoredDocument
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT id, title, body, updated_at FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Title, &doc.Body, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "document %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}
	return &doc, nil
}

// Count returns the number of stored documents.
func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}
