package docstore

import (
	"context"
	"time"
)

// Observer はストア操作の結果を受け取るインターフェース。
type Observer interface {
	ObserveStoreOperation(op, kind string, err error, elapsed time.Duration)
}

// Instrumented は各操作の結果と所要時間をObserverへ通知するStoreのラッパー。
type Instrumented struct {
	next     Store
	observer Observer
}

// NewInstrumented はInstrumentedを生成する。
func NewInstrumented(next Store, observer Observer) *Instrumented {
	return &Instrumented{next: next, observer: observer}
}

func (s *Instrumented) observe(op string, path Path, start time.Time, err error) {
	s.observer.ObserveStoreOperation(op, path.Kind(), err, time.Since(start))
}

func (s *Instrumented) Create(ctx context.Context, path Path, doc any) (string, error) {
	start := time.Now()
	id, err := s.next.Create(ctx, path, doc)
	s.observe("create", path, start, err)
	return id, err
}

func (s *Instrumented) Set(ctx context.Context, path Path, id string, doc any) error {
	start := time.Now()
	err := s.next.Set(ctx, path, id, doc)
	s.observe("set", path, start, err)
	return err
}

func (s *Instrumented) Get(ctx context.Context, path Path, id string) (*Document, error) {
	start := time.Now()
	doc, err := s.next.Get(ctx, path, id)
	s.observe("get", path, start, err)
	return doc, err
}

func (s *Instrumented) List(ctx context.Context, path Path) ([]Document, error) {
	start := time.Now()
	docs, err := s.next.List(ctx, path)
	s.observe("list", path, start, err)
	return docs, err
}

func (s *Instrumented) Query(ctx context.Context, path Path, field string, value any) ([]Document, error) {
	start := time.Now()
	docs, err := s.next.Query(ctx, path, field, value)
	s.observe("query", path, start, err)
	return docs, err
}

func (s *Instrumented) Update(ctx context.Context, path Path, id string, fields map[string]any) error {
	start := time.Now()
	err := s.next.Update(ctx, path, id, fields)
	s.observe("update", path, start, err)
	return err
}

func (s *Instrumented) Delete(ctx context.Context, path Path, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, path, id)
	s.observe("delete", path, start, err)
	return err
}

func (s *Instrumented) DeleteMany(ctx context.Context, path Path, ids []string) error {
	start := time.Now()
	err := s.next.DeleteMany(ctx, path, ids)
	s.observe("delete_many", path, start, err)
	return err
}

func (s *Instrumented) CollectionGroup(ctx context.Context, kind string) ([]Document, error) {
	start := time.Now()
	docs, err := s.next.CollectionGroup(ctx, kind)
	s.observer.ObserveStoreOperation("collection_group", kind, err, time.Since(start))
	return docs, err
}

func (s *Instrumented) DeleteTree(ctx context.Context, doc Path) (int64, error) {
	start := time.Now()
	n, err := s.next.DeleteTree(ctx, doc)
	s.observe("delete_tree", doc, start, err)
	return n, err
}

var _ Store = (*Instrumented)(nil)
