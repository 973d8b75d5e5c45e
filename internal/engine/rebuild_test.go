package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

type sliceSource struct {
	docs []Document
	err  error
}

func (s sliceSource) Scan(ctx context.Context, fn func(Document) error) error {
	for _, d := range s.docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return s.err
}

func TestRebuild(t *testing.T) {
	e := newEngine(t)
	src := sliceSource{docs: []Document{
		{ID: "1", Title: "Electric Cars", Body: "electric cars are efficient"},
		{ID: "2", Title: "Gas Cars", Body: "gas cars are common"},
		{ID: "", Title: "broken", Body: "no id"},
	}}
	for i := 3; i < 40; i++ {
		src.docs = append(src.docs, Document{ID: fmt.Sprint(i), Title: "filler", Body: "padding text"})
	}

	n, err := e.Rebuild(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if n != 39 {
		t.Errorf("indexed %d, want 39", n)
	}
	if e.Stats().CorpusSize != 39 {
		t.Errorf("corpus = %d", e.Stats().CorpusSize)
	}
	res, _ := e.Search(context.Background(), "cars", 10, 0)
	if !reflect.DeepEqual(resultIDs(res), []string{"1", "2"}) {
		t.Errorf("cars after rebuild = %v", resultIDs(res))
	}
}

func TestRebuildScanError(t *testing.T) {
	e := newEngine(t)
	broken := errors.New("connection reset")
	_, err := e.Rebuild(context.Background(), sliceSource{
		docs: []Document{{ID: "1", Body: "x"}},
		err:  broken,
	})
	if !errors.Is(err, broken) {
		t.Errorf("err = %v", err)
	}
}

func TestRebuildCancelled(t *testing.T) {
	e := newEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Rebuild(ctx, sliceSource{docs: []Document{{ID: "1", Body: "x"}}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
