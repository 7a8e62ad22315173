package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Storage はクライアント側でセッションレコードを永続化するキーバリューストア。
type Storage interface {
	// Load はキーに対応する値を返す。存在しない場合はnilを返す。
	Load(key string) ([]byte, error)
	Save(key string, value []byte) error
	Delete(key string) error
}

// BadgerStorage はBadgerDBを使用したStorageの実装。
// クライアントごとのディレクトリにセッションを保存する。
type BadgerStorage struct {
	db *badger.DB
}

// OpenBadgerStorage は指定ディレクトリのBadgerDBを開く。
func OpenBadgerStorage(dir string) (*BadgerStorage, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	return &BadgerStorage{db: db}, nil
}

// NewBadgerStorage は既に開かれたBadgerDBからBadgerStorageを生成する。
func NewBadgerStorage(db *badger.DB) *BadgerStorage {
	return &BadgerStorage{db: db}
}

// Load はキーに対応する値を返す。存在しない場合はnilを返す。
func (s *BadgerStorage) Load(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return value, nil
}

// Save はキーに値を保存する。
func (s *BadgerStorage) Save(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Delete はキーを削除する。存在しなくてもエラーにしない。
func (s *BadgerStorage) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close はBadgerDBを閉じる。
func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// MemoryStorage はプロセス内メモリを使用したStorageの実装。
// 永続化が不要なクライアントやテストで使用する。
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

func (s *MemoryStorage) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStorage) Save(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

var (
	_ Storage = (*BadgerStorage)(nil)
	_ Storage = (*MemoryStorage)(nil)
)
