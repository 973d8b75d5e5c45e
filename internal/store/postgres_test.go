package store

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/search-core/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/postgres"
)

// newStore connects to the database named by SP_POSTGRES_* and skips the
// test when none is configured.
func newStore(t *testing.T) *Postgres {
	t.Helper()
	if os.Getenv("SP_POSTGRES_HOST") == "" {
		t.Skip("SP_POSTGRES_HOST not set")
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	db, err := postgres.New(context.Background(), cfg.Postgres)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	s := NewPostgres(db, 2)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id := "test-" + uuid.NewString()
	before, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Put(ctx, id, "Electric Cars", "electric cars are efficient"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, id, "Electric Cars", "updated body"); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Body != "updated body" {
		t.Errorf("body = %q", doc.Body)
	}
	if n, err := s.Count(ctx); err != nil || n != before+1 {
		t.Errorf("count after upserts = %d, %v; want %d", n, err, before+1)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if n, err := s.Count(ctx); err != nil || n != before {
		t.Errorf("count after delete = %d, %v; want %d", n, err, before)
	}
	err = s.Delete(ctx, id)
	if !errors.Is(err, apperrors.ErrDocumentNotFound) || apperrors.HTTPStatusCode(err) != http.StatusNotFound {
		t.Errorf("second delete err = %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, apperrors.ErrDocumentNotFound) {
		t.Errorf("get after delete err = %v", err)
	}
}

func TestScanPagesInIDOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	prefix := "scan-" + uuid.NewString() + "-"
	ids := []string{prefix + "a", prefix + "b", prefix + "c", prefix + "d", prefix + "e"}
	for _, id := range ids {
		if err := s.Put(ctx, id, "t", "body "+id); err != nil {
			t.Fatal(err)
		}
	}
	t.Cleanup(func() {
		for _, id := range ids {
			s.Delete(context.Background(), id)
		}
	})

	var seen []string
	last := ""
	err := s.Scan(ctx, func(doc engine.Document) error {
		if doc.ID <= last {
			t.Errorf("scan out of order: %q after %q", doc.ID, last)
		}
		last = doc.ID
		if strings.HasPrefix(doc.ID, prefix) {
			seen = append(seen, doc.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != len(ids) {
		t.Errorf("scan saw %v, want %v", seen, ids)
	}
}

func TestScanStopsOnCallbackError(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id := "stop-" + uuid.NewString()
	if err := s.Put(ctx, id, "t", "b"); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Delete(context.Background(), id) })

	stop := errors.New("stop")
	calls := 0
	err := s.Scan(ctx, func(engine.Document) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}
