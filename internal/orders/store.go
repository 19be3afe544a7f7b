package orders

import (
	"context"
	"errors"
	"sync"
)

// ErrOrderNotFound は指定したIDの注文が存在しないことを表す。
var ErrOrderNotFound = errors.New("order not found")

// Store は注文の保存先。
// 返す注文は呼び出し側が変更しても保存内容に影響しない複製であること。
type Store interface {
	// Put は注文を保存する。同じIDの注文があれば置き換える。
	Put(ctx context.Context, o Order) error
	// Get はIDで注文を取得する。存在しない場合はErrOrderNotFoundを返す。
	Get(ctx context.Context, id string) (Order, error)
	// All は全注文を最初に保存された順で返す。
	All(ctx context.Context) ([]Order, error)
}

// MemoryStore はプロセス内のメモリに注文を保持するStore。
type MemoryStore struct {
	mu sync.RWMutex
	// orders はIDをキーとした注文。
	orders map[string]Order
	// ids は最初に保存された順のID。
	ids []string
}

// NewMemoryStore は空のMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]Order)}
}

// Put は注文を保存する。
func (s *MemoryStore) Put(_ context.Context, o Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; !ok {
		s.ids = append(s.ids, o.ID)
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

// Get はIDで注文を取得する。
func (s *MemoryStore) Get(_ context.Context, id string) (Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o.Clone(), nil
}

// All は全注文のスナップショットを返す。
func (s *MemoryStore) All(_ context.Context) ([]Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Order, 0, len(s.ids))
	for _, id := range s.ids {
		all = append(all, s.orders[id].Clone())
	}
	return all, nil
}
