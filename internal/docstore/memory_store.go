package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore はプロセス内メモリを使用したドキュメントストア。
// テストやローカル開発で使用する。
type MemoryStore struct {
	mu    sync.Mutex
	docs  map[string]map[string]Document
	order map[string][]string
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]map[string]Document),
		order: make(map[string][]string),
	}
}

func (s *MemoryStore) put(collection, id string, data []byte) {
	now := time.Now()
	docs, ok := s.docs[collection]
	if !ok {
		docs = make(map[string]Document)
		s.docs[collection] = docs
	}
	if prev, exists := docs[id]; exists {
		docs[id] = Document{ID: id, Data: data, CreatedAt: prev.CreatedAt, UpdatedAt: now}
		return
	}
	docs[id] = Document{ID: id, Data: data, CreatedAt: now, UpdatedAt: now}
	s.order[collection] = append(s.order[collection], id)
}

func (s *MemoryStore) Create(_ context.Context, path Path, doc any) (string, error) {
	if err := path.Validate(); err != nil {
		return "", err
	}
	id := uuid.New().String()
	data, err := encodeWithID(doc, id)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(path.String(), id, data)
	return id, nil
}

func (s *MemoryStore) Set(_ context.Context, path Path, id string, doc any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	data, err := encodeWithID(doc, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(path.String(), id, data)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, path Path, id string) (*Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[path.String()][id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *MemoryStore) List(_ context.Context, path Path) ([]Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(path.String(), func(Document) bool { return true }), nil
}

func (s *MemoryStore) Query(_ context.Context, path Path, field string, value any) ([]Document, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}
	want, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query filter: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(path.String(), func(d Document) bool {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(d.Data, &obj); err != nil {
			return false
		}
		return bytes.Equal(obj[field], want)
	}), nil
}

func (s *MemoryStore) Update(_ context.Context, path Path, id string, fields map[string]any) error {
	if err := path.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[path.String()][id]
	if !ok {
		return ErrNotFound
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(doc.Data, &obj); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode update: %w", err)
		}
		obj[k] = raw
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	s.put(path.String(), id, data)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, path Path, id string) error {
	if err := path.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remove(path.String(), id)
	return nil
}

func (s *MemoryStore) DeleteMany(_ context.Context, path Path, ids []string) error {
	if err := path.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.remove(path.String(), id)
	}
	return nil
}

func (s *MemoryStore) DeleteTree(_ context.Context, doc Path) (int64, error) {
	if err := validateDocPrefix(doc); err != nil {
		return 0, err
	}
	prefix := doc.String() + "/"
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for collection, docs := range s.docs {
		if !strings.HasPrefix(collection, prefix) {
			continue
		}
		n += int64(len(docs))
		delete(s.docs, collection)
		delete(s.order, collection)
	}
	return n, nil
}

func (s *MemoryStore) CollectionGroup(_ context.Context, kind string) ([]Document, error) {
	if _, err := validateKind(kind); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Document
	for collection := range s.docs {
		if Path(strings.Split(collection, "/")).Kind() != kind {
			continue
		}
		for _, doc := range s.collect(collection, func(Document) bool { return true }) {
			doc.Collection = collection
			out = append(out, doc)
		}
	}
	slices.SortStableFunc(out, func(a, b Document) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *MemoryStore) remove(collection, id string) {
	if _, ok := s.docs[collection][id]; !ok {
		return
	}
	delete(s.docs[collection], id)
	ids := s.order[collection]
	for i, v := range ids {
		if v == id {
			s.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// collect は作成順にmatchを満たすドキュメントを返す。
func (s *MemoryStore) collect(collection string, match func(Document) bool) []Document {
	var out []Document
	for _, id := range s.order[collection] {
		doc := s.docs[collection][id]
		if match(doc) {
			out = append(out, doc)
		}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
