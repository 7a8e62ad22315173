package optimistic

import "sync"

// List はビューが保持するローカルの一覧状態。
// 複数のgoroutineから安全に読み書きできる。
type List[T any] struct {
	mu    sync.RWMutex
	items []T
}

// NewList は初期値を持つListを生成する。
func NewList[T any](items []T) *List[T] {
	return &List[T]{items: clone(items)}
}

// Items は現在の一覧のコピーを返す。
func (l *List[T]) Items() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return clone(l.items)
}

// Len は現在の件数を返す。
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Set は一覧を置き換える。
func (l *List[T]) Set(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = clone(items)
}

// Update はfnで変換した一覧に置き換え、変換前の一覧を返す。
// fnには一覧のコピーが渡される。
func (l *List[T]) Update(fn func([]T) []T) []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	prev := l.items
	l.items = fn(clone(prev))
	return clone(prev)
}

func clone[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}
