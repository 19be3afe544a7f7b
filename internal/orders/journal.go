package orders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nao1215/minishop/pkg/event"
)

// EventJournal は発行した注文イベントをSQLiteに追記する購読者。
// 注文ごとに1から始まるバージョンを振り、発生順に読み出せるようにする。
type EventJournal struct {
	db *sql.DB
}

// NewEventJournal はSQLiteStoreと同じデータベースを使うEventJournalを生成する。
func NewEventJournal(store *SQLiteStore) *EventJournal {
	return &EventJournal{db: store.db}
}

// Name は購読者名を返す。
func (j *EventJournal) Name() string { return "journal" }

// Notify はイベントを追記する。バージョンは同じ注文の最大値に1を加えた値とする。
func (j *EventJournal) Notify(ctx context.Context, e event.Event) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO order_events (id, order_id, event_type, data, version, occurred_at)
		SELECT ?, ?, ?, ?, COALESCE(MAX(version), 0) + 1, ?
		FROM order_events WHERE order_id = ?
	`, e.ID, e.AggregateID, string(e.Type), string(e.Data), e.Timestamp.UTC().Format(time.RFC3339Nano), e.AggregateID)
	if err != nil {
		return fmt.Errorf("イベントの追記に失敗: %w", err)
	}
	return nil
}

// JournalEntry は追記済みのイベントとそのバージョン。
type JournalEntry struct {
	// Version は注文ごとの連番。
	Version int
	// Event は追記したイベント。
	Event event.Event
}

// ByOrder は注文のイベントをバージョン順に返す。
func (j *EventJournal) ByOrder(ctx context.Context, orderID string) ([]JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, order_id, event_type, data, version, occurred_at
		FROM order_events WHERE order_id = ? ORDER BY version
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			entry                 JournalEntry
			eventType, data, when string
		)
		if err := rows.Scan(&entry.Event.ID, &entry.Event.AggregateID, &eventType, &data, &entry.Version, &when); err != nil {
			return nil, fmt.Errorf("イベントの読み取りに失敗: %w", err)
		}
		entry.Event.Type = event.Type(eventType)
		entry.Event.Data = []byte(data)
		if entry.Event.Timestamp, err = time.Parse(time.RFC3339Nano, when); err != nil {
			return nil, fmt.Errorf("発生日時の解析に失敗: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベントの取得に失敗: %w", err)
	}
	return entries, nil
}
