package event

import (
	"context"
	"log"
	"slices"
	"sync"
)

// Observer はイベントの購読者。
type Observer interface {
	// Name はログに出力する購読者名。
	Name() string
	// Notify はイベントを受け取る。エラーは発行者には伝播しない。
	Notify(ctx context.Context, e Event) error
}

// ObserverFunc は関数をObserverとして扱うためのアダプタ。
type ObserverFunc struct {
	// ObserverName は購読者名。
	ObserverName string
	// Fn はイベントを受け取る関数。
	Fn func(ctx context.Context, e Event) error
}

// Name は購読者名を返す。
func (f ObserverFunc) Name() string { return f.ObserverName }

// Notify はFnを呼び出す。
func (f ObserverFunc) Notify(ctx context.Context, e Event) error { return f.Fn(ctx, e) }

// Broadcaster は登録順に購読者へイベントを配布する。
// 購読者のエラーやpanicはログに記録し、後続の購読者と発行者には影響させない。
type Broadcaster struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewBroadcaster は購読者を登録済みのBroadcasterを生成する。
func NewBroadcaster(observers ...Observer) *Broadcaster {
	return &Broadcaster{observers: slices.Clone(observers)}
}

// Subscribe は購読者を末尾に追加する。
func (b *Broadcaster) Subscribe(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Publish はイベントを全購読者へ同期的に配布する。
func (b *Broadcaster) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	observers := slices.Clone(b.observers)
	b.mu.RUnlock()

	for _, o := range observers {
		notify(ctx, o, e)
	}
}

// notify は1つの購読者を呼び出す。Dataは購読者ごとに複製して渡す。
func notify(ctx context.Context, o Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Event] 購読者がpanicしました observer=%s type=%s event_id=%s: %v", o.Name(), e.Type, e.ID, r)
		}
	}()

	e.Data = slices.Clone(e.Data)
	if err := o.Notify(ctx, e); err != nil {
		log.Printf("[Event] 購読者の処理に失敗 observer=%s type=%s event_id=%s: %v", o.Name(), e.Type, e.ID, err)
	}
}

// LogObserver はイベントをログに出力する購読者。
type LogObserver struct {
	// Service はログの接頭辞に使うサービス名。
	Service string
}

// Name は購読者名を返す。
func (l LogObserver) Name() string { return "log" }

// Notify はイベントの種類と内容をログに出力する。
func (l LogObserver) Notify(_ context.Context, e Event) error {
	log.Printf("[%s] イベント発行 type=%s aggregate_id=%s event_id=%s data=%s", l.Service, e.Type, e.AggregateID, e.ID, e.Data)
	return nil
}
